package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dcpkit/internal/config"
	"dcpkit/internal/dcp"
	"dcpkit/internal/signing"
	"dcpkit/internal/testsupport"
)

func runCLI(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", testsupport.WriteConfig(t, cfg)}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func TestCombinePackages(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	b := filepath.Join(root, "b")
	testsupport.NewPackage(t, a, testsupport.WithPicture("picture.mxf", []byte("a")))
	testsupport.NewPackage(t, b, testsupport.WithPicture("picture.mxf", []byte("b")))
	output := filepath.Join(root, "out")
	cfg := testsupport.NewConfig(t, testsupport.WithIssuer("Config Issuer"))

	out, err := runCLI(t, cfg, "-o", output, "--creator", "Flag Creator",
		"--issue-date", "2024-05-06T07:08:09Z", "--annotation-text", "Double feature", a, b)
	if err != nil {
		t.Fatalf("dcpcombine: %v", err)
	}
	if !strings.Contains(out, "Combined 2 packages into "+output) || !strings.Contains(out, "2 CPLs") {
		t.Fatalf("unexpected output %q", out)
	}

	pkg := testsupport.OpenPackage(t, output)
	if len(pkg.CPLs()) != 2 {
		t.Fatalf("expected 2 CPLs, got %d", len(pkg.CPLs()))
	}
	pkls, _ := filepath.Glob(filepath.Join(output, "PKL_*.xml"))
	if len(pkls) != 1 {
		t.Fatalf("expected one packing list, got %v", pkls)
	}
	pkl := string(testsupport.ReadFile(t, pkls[0]))
	for _, want := range []string{
		"<Issuer>Config Issuer</Issuer>",
		"<Creator>Flag Creator</Creator>",
		"<IssueDate>2024-05-06T07:08:09+00:00</IssueDate>",
		"<AnnotationText>Double feature</AnnotationText>",
	} {
		if !strings.Contains(pkl, want) {
			t.Fatalf("packing list missing %s:\n%s", want, pkl)
		}
	}
}

func TestCombineSignGeneratesKey(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "in")
	testsupport.NewPackage(t, input)
	output := filepath.Join(root, "out")
	cfg := testsupport.NewConfig(t)
	cfg.Signing.SignerName = "CLI Signer"

	if _, err := runCLI(t, cfg, "--sign", "-o", output, input); err != nil {
		t.Fatalf("dcpcombine --sign: %v", err)
	}
	cred, err := signing.Load(cfg.Signing.KeyPath, cfg.Signing.SignerName)
	if err != nil {
		t.Fatalf("generated key not saved: %v", err)
	}
	pkg := testsupport.OpenPackage(t, output)
	info, err := signing.VerifyFile(pkg.CPLs()[0].File())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if info.Name != "CLI Signer" || !bytes.Equal(info.PublicKey, cred.PublicKey()) {
		t.Fatalf("unexpected signer %+v", info)
	}

	// A second run reuses the saved key.
	second := filepath.Join(root, "out2")
	if _, err := runCLI(t, cfg, "--sign", "-o", second, input); err != nil {
		t.Fatalf("second dcpcombine --sign: %v", err)
	}
	info, err = signing.VerifyFile(testsupport.OpenPackage(t, second).CPLs()[0].File())
	if err != nil || !bytes.Equal(info.PublicKey, cred.PublicKey()) {
		t.Fatalf("second run used a different key: %+v, %v", info, err)
	}
}

func TestCombineFailures(t *testing.T) {
	root := t.TempDir()
	interop := filepath.Join(root, "interop")
	smpte := filepath.Join(root, "smpte")
	testsupport.NewPackage(t, interop)
	testsupport.NewPackage(t, smpte, testsupport.WithStandard(dcp.SMPTE))
	cfg := testsupport.NewConfig(t)

	output := filepath.Join(root, "out")
	_, err := runCLI(t, cfg, "-o", output, interop, smpte)
	if !errors.Is(err, dcp.ErrStandardMismatch) {
		t.Fatalf("expected standard mismatch, got %v", err)
	}
	if _, statErr := os.Stat(output); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("output created on failure: %v", statErr)
	}

	if _, err := runCLI(t, cfg, interop); err == nil {
		t.Fatal("expected error without --output")
	}
	if _, err := runCLI(t, cfg, "-o", output, "--issue-date", "yesterday", interop); err == nil {
		t.Fatal("expected invalid issue date error")
	}

	cfg.Signing.KeyPath = ""
	if _, err := runCLI(t, cfg, "--sign", "-o", output, interop); err == nil {
		t.Fatal("expected error when signing without a key path")
	}
}
