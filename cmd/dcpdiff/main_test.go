package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dcpkit/internal/cli"
	"dcpkit/internal/config"
	"dcpkit/internal/subtitles"
	"dcpkit/internal/testsupport"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLIWithConfig(t, testsupport.NewConfig(t), args...)
}

func runCLIWithConfig(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	configPath := testsupport.WriteConfig(t, cfg)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	var exit *cli.ExitError
	if !errors.As(err, &exit) || exit.Code != code {
		t.Fatalf("expected exit code %d, got %v", code, err)
	}
}

func TestIdenticalPackages(t *testing.T) {
	a := filepath.Join(t.TempDir(), "a")
	b := filepath.Join(t.TempDir(), "b")
	testsupport.NewPackage(t, a, testsupport.WithReels(2))
	testsupport.NewPackage(t, b, testsupport.WithReels(2))

	for _, extra := range [][]string{nil, {"-b"}, {"--bitwise", "--keep-going"}} {
		out, err := runCLI(t, append(extra, a, b)...)
		if err != nil {
			t.Fatalf("dcpdiff %v: %v", extra, err)
		}
		if out != "DCPs identical\n" {
			t.Fatalf("dcpdiff %v output %q", extra, out)
		}
	}
}

func TestDifferingPackages(t *testing.T) {
	a := filepath.Join(t.TempDir(), "a")
	b := filepath.Join(t.TempDir(), "b")
	testsupport.NewPackage(t, a, testsupport.WithPicture("picture.mxf", []byte("one")))
	testsupport.NewPackage(t, b, testsupport.WithPicture("picture.mxf", []byte("two")))

	out, err := runCLI(t, a, b)
	requireExitCode(t, err, 1)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 1 || lines[0] != "  Reel picture: hashes differ" {
		t.Fatalf("unexpected output %q", out)
	}

	out, err = runCLI(t, "--ignore-reel-hashes", "--bitwise", a, b)
	requireExitCode(t, err, 1)
	if !strings.Contains(out, "content differs") {
		t.Fatalf("expected bitwise note, got %q", out)
	}
}

func TestKeepGoingFromConfig(t *testing.T) {
	a := filepath.Join(t.TempDir(), "a")
	b := filepath.Join(t.TempDir(), "b")
	testsupport.NewPackage(t, a, testsupport.WithTitle("Feature One"))
	testsupport.NewPackage(t, b, testsupport.WithTitle("Feature Two"))

	out, err := runCLI(t, a, b)
	requireExitCode(t, err, 1)
	if out != "  CPL: annotation texts differ: Feature One vs Feature Two\n" {
		t.Fatalf("unexpected output %q", out)
	}

	out, err = runCLIWithConfig(t, testsupport.NewConfig(t, testsupport.WithKeepGoing()), a, b)
	requireExitCode(t, err, 1)
	want := "  CPL: annotation texts differ: Feature One vs Feature Two\n" +
		"  CPL: content title texts differ: Feature One vs Feature Two\n"
	if out != want {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestToleratedDifferencesExitZero(t *testing.T) {
	font := []byte("font")
	a := filepath.Join(t.TempDir(), "a")
	b := filepath.Join(t.TempDir(), "b")
	testsupport.NewPackage(t, a, testsupport.WithSubtitles("font.ttf", font))
	testsupport.NewPackage(t, b, testsupport.WithSubtitles("font.ttf", font))

	_, err := runCLI(t, a, b)
	requireExitCode(t, err, 1)

	out, err := runCLI(t, "--ignore-reel-hashes", "--keep-going", a, b)
	if err != nil {
		t.Fatalf("tolerated run: %v", err)
	}
	if !strings.HasPrefix(out, "  Reel subtitle: hashes differ\n") || !strings.HasSuffix(out, "DCPs identical\n") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestExportDifferingSubtitles(t *testing.T) {
	font := []byte("font")
	events := testsupport.SampleEvents()
	changed := append([]subtitles.Event(nil), events...)
	changed[1].Text = "Different line"

	a := filepath.Join(t.TempDir(), "a")
	b := filepath.Join(t.TempDir(), "b")
	testsupport.NewPackage(t, a, testsupport.WithSubtitles("font.ttf", font, events...))
	testsupport.NewPackage(t, b, testsupport.WithSubtitles("font.ttf", font, changed...))
	exportDir := filepath.Join(t.TempDir(), "export")

	out, err := runCLI(t, "--ignore-reel-hashes", "--export-subtitles", exportDir, a, b)
	requireExitCode(t, err, 1)
	if !strings.Contains(out, "Subtitle events differ") {
		t.Fatalf("expected subtitle note, got %q", out)
	}
	entries, err := os.ReadDir(exportDir)
	if err != nil || len(entries) != 2 {
		t.Fatalf("expected two exported documents: %v, %v", entries, err)
	}
}

func TestVersionFlag(t *testing.T) {
	for _, flag := range []string{"-v", "--version"} {
		out, err := runCLI(t, flag)
		if err != nil {
			t.Fatalf("%s: %v", flag, err)
		}
		if !strings.HasPrefix(out, "dcpdiff version ") {
			t.Fatalf("%s output %q", flag, out)
		}
	}
}

func TestUsageErrors(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pkg")
	testsupport.NewPackage(t, dir)

	if _, err := runCLI(t, dir); err == nil {
		t.Fatal("expected error with one argument")
	}
	_, err := runCLI(t, dir, filepath.Join(t.TempDir(), "missing"))
	if err == nil || !strings.Contains(err.Error(), "could not read DCP") {
		t.Fatalf("expected read error, got %v", err)
	}
	var exit *cli.ExitError
	if errors.As(err, &exit) {
		t.Fatal("read errors must be printed, not silenced")
	}
}
