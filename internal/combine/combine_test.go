package combine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/gofrs/flock"
	"github.com/google/go-cmp/cmp"

	"dcpkit/internal/dcp"
	"dcpkit/internal/fileutil"
	"dcpkit/internal/signing"
	"dcpkit/internal/testsupport"
)

func defaultOptions() Options {
	return Options{
		Issuer:         "combine test",
		Creator:        "combine test",
		IssueDate:      testsupport.FixedIssueDate,
		AnnotationText: "Combined",
		LockOutput:     true,
	}
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func entryContent(t *testing.T, cpl *dcp.CPL, kind dcp.EntryKind) []byte {
	t.Helper()
	e := cpl.Reels[0].Entry(kind)
	if e == nil {
		t.Fatalf("CPL %s has no %s entry", cpl.ID(), kind)
	}
	a, err := e.Ref().Asset()
	if err != nil {
		t.Fatalf("CPL %s %s: %v", cpl.ID(), kind, err)
	}
	return testsupport.ReadFile(t, a.File())
}

func TestCombineRejectsMixedStandards(t *testing.T) {
	root := t.TempDir()
	interop := filepath.Join(root, "interop")
	smpte := filepath.Join(root, "smpte")
	testsupport.NewPackage(t, interop)
	testsupport.NewPackage(t, smpte, testsupport.WithStandard(dcp.SMPTE))
	output := filepath.Join(root, "out")

	_, err := Combine(context.Background(), []string{interop, smpte}, output, defaultOptions())
	if !errors.Is(err, dcp.ErrStandardMismatch) {
		t.Fatalf("expected standard mismatch, got %v", err)
	}
	var mismatch *StandardMismatchError
	if !errors.As(err, &mismatch) || mismatch.Want != dcp.Interop || mismatch.Got != dcp.SMPTE {
		t.Fatalf("unexpected error detail %#v", err)
	}
	if diff := cmp.Diff([]string{"interop", "smpte"}, dirNames(t, root)); diff != "" {
		t.Fatalf("combine left files behind (-want +got):\n%s", diff)
	}
}

func TestCombineDeduplicatesFileNames(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "first")
	second := filepath.Join(root, "second")
	a := testsupport.NewPackage(t, first, testsupport.WithPicture("picture.mxf", []byte("first picture")))
	b := testsupport.NewPackage(t, second, testsupport.WithPicture("picture.mxf", []byte("second picture!")))
	output := filepath.Join(root, "out")

	result, err := Combine(context.Background(), []string{first, second}, output, defaultOptions())
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if result.Linked != 4 || result.Copied != 0 || result.Rewritten != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Package.Dir() != output {
		t.Fatalf("result package dir = %s", result.Package.Dir())
	}

	names := dirNames(t, root)
	if diff := cmp.Diff([]string{"first", "out", "second"}, names); diff != "" {
		t.Fatalf("unexpected siblings (-want +got):\n%s", diff)
	}
	for _, name := range []string{"picture.mxf", "picture0.mxf", "sound.mxf", "sound0.mxf", "ASSETMAP", "VOLINDEX"} {
		if _, err := os.Stat(filepath.Join(output, name)); err != nil {
			t.Fatalf("expected %s in output: %v", name, err)
		}
	}

	combined := testsupport.OpenPackage(t, output)
	if len(combined.CPLs()) != 2 {
		t.Fatalf("expected 2 CPLs, got %d", len(combined.CPLs()))
	}
	want := map[string][]byte{
		a.CPLs()[0].ID(): []byte("first picture"),
		b.CPLs()[0].ID(): []byte("second picture!"),
	}
	for _, cpl := range combined.CPLs() {
		expected, ok := want[cpl.ID()]
		if !ok {
			t.Fatalf("unexpected CPL %s", cpl.ID())
		}
		if len(cpl.UnresolvedRefs()) != 0 {
			t.Fatalf("CPL %s has unresolved refs", cpl.ID())
		}
		if got := entryContent(t, cpl, dcp.MainPicture); !bytes.Equal(got, expected) {
			t.Fatalf("CPL %s picture = %q, want %q", cpl.ID(), got, expected)
		}
	}
	notes, err := combined.VerifyHashes()
	if err != nil || len(notes) != 0 {
		t.Fatalf("combined hashes: %v, %v", notes, err)
	}

	// Sources are untouched.
	if got := testsupport.ReadFile(t, filepath.Join(second, "picture.mxf")); string(got) != "second picture!" {
		t.Fatalf("source modified: %q", got)
	}
	if notes, err := testsupport.OpenPackage(t, second).VerifyHashes(); err != nil || len(notes) != 0 {
		t.Fatalf("source package damaged: %v, %v", notes, err)
	}
}

func TestCombineRemapsSubtitleFonts(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "first")
	second := filepath.Join(root, "second")
	testsupport.NewPackage(t, first, testsupport.WithSubtitles("font.ttf", []byte("first font")))
	testsupport.NewPackage(t, second, testsupport.WithSubtitles("font.ttf", []byte("second font")))
	output := filepath.Join(root, "out")

	result, err := Combine(context.Background(), []string{first, second}, output, defaultOptions())
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if result.Rewritten != 2 {
		t.Fatalf("rewritten = %d, want 2", result.Rewritten)
	}

	combined := testsupport.OpenPackage(t, output)
	fonts := map[string]bool{}
	for _, cpl := range combined.CPLs() {
		e := cpl.Reels[0].Entry(dcp.MainSubtitle)
		sub, err := e.Ref().Asset()
		if err != nil {
			t.Fatalf("subtitle ref: %v", err)
		}
		linked := sub.Fonts()
		if len(linked) != 1 {
			t.Fatalf("subtitle %s has %d linked fonts", sub.ID(), len(linked))
		}
		uri, _ := sub.Subtitle().FontURI("theFont")
		if uri != filepath.Base(linked[0].Asset.File()) {
			t.Fatalf("LoadFont URI %q does not name linked font %s", uri, linked[0].Asset.File())
		}
		fonts[string(testsupport.ReadFile(t, linked[0].Asset.File()))] = true
		if len(sub.Subtitle().Events) != 2 {
			t.Fatalf("subtitle events lost: %d", len(sub.Subtitle().Events))
		}
	}
	if diff := cmp.Diff(map[string]bool{"first font": true, "second font": true}, fonts); diff != "" {
		t.Fatalf("fonts not kept distinct (-want +got):\n%s", diff)
	}
	if notes, err := combined.VerifyHashes(); err != nil || len(notes) != 0 {
		t.Fatalf("combined hashes: %v, %v", notes, err)
	}
	if notes, err := testsupport.OpenPackage(t, second).VerifyHashes(); err != nil || len(notes) != 0 {
		t.Fatalf("source package damaged: %v, %v", notes, err)
	}
}

func TestCombineRejectsNonEmptyOutput(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "in")
	testsupport.NewPackage(t, input)
	output := filepath.Join(root, "out")
	testsupport.WriteBytes(t, filepath.Join(output, "keep.txt"), []byte("keep"))

	if _, err := Combine(context.Background(), []string{input}, output, defaultOptions()); err == nil {
		t.Fatal("expected error for non-empty output")
	}
	if diff := cmp.Diff([]string{"keep.txt"}, dirNames(t, output)); diff != "" {
		t.Fatalf("output modified (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"in", "out"}, dirNames(t, root)); diff != "" {
		t.Fatalf("staging left behind (-want +got):\n%s", diff)
	}
}

func TestCombineIntoEmptyOutputDirectory(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "in")
	testsupport.NewPackage(t, input)
	output := filepath.Join(root, "out")
	if err := os.Mkdir(output, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Combine(context.Background(), []string{input}, output, defaultOptions()); err != nil {
		t.Fatalf("Combine: %v", err)
	}
	testsupport.OpenPackage(t, output)
}

func TestCombineSkipsRepeatedAssets(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "in")
	testsupport.NewPackage(t, input)
	output := filepath.Join(root, "out")

	result, err := Combine(context.Background(), []string{input, input}, output, defaultOptions())
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if result.Skipped != 3 {
		t.Fatalf("skipped = %d, want 3", result.Skipped)
	}
	if got := len(testsupport.OpenPackage(t, output).CPLs()); got != 1 {
		t.Fatalf("expected 1 CPL, got %d", got)
	}
}

func TestCombineUniqueNameBound(t *testing.T) {
	root := t.TempDir()
	var inputs []string
	for _, name := range []string{"a", "b", "c"} {
		dir := filepath.Join(root, name)
		testsupport.NewPackage(t, dir, testsupport.WithPicture("picture.mxf", []byte(name)))
		inputs = append(inputs, dir)
	}
	opts := defaultOptions()
	opts.UniqueNameAttempts = 1

	_, err := Combine(context.Background(), inputs, filepath.Join(root, "out"), opts)
	if !errors.Is(err, fileutil.ErrUniqueNameExhausted) {
		t.Fatalf("expected exhausted unique names, got %v", err)
	}
	var exhausted *UniqueNameExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Attempts != 1 {
		t.Fatalf("unexpected error detail %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, dirNames(t, root)); diff != "" {
		t.Fatalf("partial output left behind (-want +got):\n%s", diff)
	}
}

func TestCombineSigned(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "in")
	testsupport.NewPackage(t, input, testsupport.WithStandard(dcp.SMPTE))
	cred, err := signing.Generate("Combiner", nil)
	if err != nil {
		t.Fatal(err)
	}
	opts := defaultOptions()
	opts.Signer = cred

	result, err := Combine(context.Background(), []string{input}, filepath.Join(root, "out"), opts)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	info, err := signing.VerifyFile(result.Package.CPLs()[0].File())
	if err != nil || info.Name != "Combiner" {
		t.Fatalf("verify combined CPL: %+v, %v", info, err)
	}
}

func TestCombineRespectsOutputLock(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "in")
	testsupport.NewPackage(t, input)
	output := filepath.Join(root, "out")

	held := flock.New(output + ".lock")
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("take lock: %v %v", ok, err)
	}
	defer held.Unlock()

	_, err = Combine(context.Background(), []string{input}, output, defaultOptions())
	if !errors.Is(err, ErrOutputLocked) {
		t.Fatalf("expected locked output, got %v", err)
	}
	if _, err := os.Stat(output); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("output created despite lock: %v", err)
	}
}

func TestCombineRequiresInputs(t *testing.T) {
	if _, err := Combine(context.Background(), nil, t.TempDir(), defaultOptions()); err == nil {
		t.Fatal("expected error without inputs")
	}
}

func TestCombineHonoursCancellation(t *testing.T) {
	root := t.TempDir()
	input := filepath.Join(root, "in")
	testsupport.NewPackage(t, input)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Combine(ctx, []string{input}, filepath.Join(root, "out"), defaultOptions())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
