package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"dcpkit/internal/cli"
	"dcpkit/internal/signing"
	"dcpkit/internal/testsupport"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	configPath := testsupport.WriteConfig(t, testsupport.NewConfig(t, testsupport.WithDigestCache()))
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func requireContains(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDescribePackage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pkg")
	built := testsupport.NewPackage(t, dir, testsupport.WithReels(2), testsupport.WithPicture("pic.mxf", []byte("x")))
	cpl := built.CPLs()[0]

	out, err := runCLI(t, dir)
	if err != nil {
		t.Fatalf("dcpinfo: %v", err)
	}
	requireContains(t, out,
		"(interop, 5 assets)",
		"CPL "+cpl.ID()+": Test Feature (feature)",
		"Issuer: testsupport",
		"Signature: unsigned",
		"Reels: 2, duration 96 frames",
		"1\tpicture\t"+cpl.Reels[0].Entries[0].ID+"\tpic_0.mxf\t48\t24 1\n",
		"2\tsound\t",
	)
}

func TestDescribeSubtitles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pkg")
	testsupport.NewPackage(t, dir, testsupport.WithSubtitles("font.ttf", []byte("font")))

	out, err := runCLI(t, "--subtitles", dir)
	if err != nil {
		t.Fatalf("dcpinfo --subtitles: %v", err)
	}
	requireContains(t, out,
		": English, reel 1",
		"  00:00:01:000 --> 00:00:02:000  [theFont 42pt]  First line\n",
		"  00:00:03:000 --> 00:00:04:000  [theFont 42pt]  Second line\n",
	)

	out, err = runCLI(t, "--at", "00:00:03:100", dir)
	if err != nil {
		t.Fatalf("dcpinfo --at: %v", err)
	}
	if strings.Contains(out, "First line") || !strings.Contains(out, "Second line") {
		t.Fatalf("--at selected the wrong events:\n%s", out)
	}

	if _, err := runCLI(t, "--at", "soon", dir); err == nil {
		t.Fatal("expected invalid --at error")
	}
}

func TestDescribeSignedPackage(t *testing.T) {
	cred, err := signing.Generate("Info Signer", nil)
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(t.TempDir(), "pkg")
	testsupport.NewPackage(t, dir, testsupport.WithSigner(cred))

	out, err := runCLI(t, dir)
	if err != nil {
		t.Fatalf("dcpinfo: %v", err)
	}
	requireContains(t, out, "Signature: signed by Info Signer")
}

func TestVerifyHashesFlag(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pkg")
	testsupport.NewPackage(t, dir, testsupport.WithPicture("pic.mxf", []byte("original")))

	out, err := runCLI(t, "--hashes", dir)
	if err != nil {
		t.Fatalf("dcpinfo --hashes: %v", err)
	}
	requireContains(t, out, "Hashes OK")

	testsupport.WriteBytes(t, filepath.Join(dir, "pic.mxf"), []byte("modified!"))
	out, err = runCLI(t, "--hashes", dir)
	var exit *cli.ExitError
	if !errors.As(err, &exit) || exit.Code != 1 {
		t.Fatalf("expected exit 1 after tampering, got %v", err)
	}
	requireContains(t, out, "differs from packing list hash")
}

func TestMissingPackage(t *testing.T) {
	_, err := runCLI(t, filepath.Join(t.TempDir(), "absent"))
	if err == nil || !strings.Contains(err.Error(), "could not read DCP") {
		t.Fatalf("expected read error, got %v", err)
	}
}
