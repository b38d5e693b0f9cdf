package dcp_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"dcpkit/internal/dcp"
	"dcpkit/internal/signing"
	"dcpkit/internal/testsupport"
)

func TestOpenRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		std       dcp.Standard
		assetMap  string
		subtitles bool
	}{
		{name: "interop", std: dcp.Interop, assetMap: "ASSETMAP", subtitles: true},
		{name: "smpte", std: dcp.SMPTE, assetMap: "ASSETMAP.xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			opts := []testsupport.PackageOption{testsupport.WithStandard(tt.std), testsupport.WithReels(2)}
			if tt.subtitles {
				opts = append(opts, testsupport.WithSubtitles("font.ttf", []byte("font data"), testsupport.SampleEvents()...))
			}
			built := testsupport.NewPackage(t, dir, opts...)

			if _, err := os.Stat(filepath.Join(dir, tt.assetMap)); err != nil {
				t.Fatalf("asset map not written: %v", err)
			}
			opened := testsupport.OpenPackage(t, dir)
			if opened.Standard() != tt.std {
				t.Fatalf("standard = %s, want %s", opened.Standard(), tt.std)
			}
			if got, want := len(opened.Assets()), len(built.Assets()); got != want {
				t.Fatalf("opened %d assets, built %d", got, want)
			}

			cpls := opened.CPLs()
			if len(cpls) != 1 {
				t.Fatalf("expected one CPL, got %d", len(cpls))
			}
			cpl := cpls[0]
			want := built.CPLs()[0]
			if cpl.ID() != want.ID() || cpl.ContentTitleText != "Test Feature" || cpl.Issuer != "testsupport" {
				t.Fatalf("unexpected CPL header: %s %q %q", cpl.ID(), cpl.ContentTitleText, cpl.Issuer)
			}
			if !cpl.IssueDate.Equal(testsupport.FixedIssueDate) {
				t.Fatalf("issue date = %s", cpl.IssueDate)
			}
			if len(cpl.UnresolvedRefs()) != 0 {
				t.Fatalf("unresolved refs after open: %v", cpl.UnresolvedRefs())
			}
			if cpl.Duration() != 96 {
				t.Fatalf("duration = %d, want 96", cpl.Duration())
			}
			if got := cpl.Reels[0].Entry(dcp.MainPicture).ScreenAspectRatio; got != "1.85" {
				t.Fatalf("screen aspect ratio = %q", got)
			}

			notes, err := built.Equal(opened, dcp.EqualityOptions{Mode: dcp.ModeStructural | dcp.ModeBitwise, KeepGoing: true})
			if err != nil {
				t.Fatalf("Equal: %v", err)
			}
			if len(notes) != 0 {
				t.Fatalf("opened package differs from built package: %v", notes)
			}

			if tt.subtitles {
				sub := cpl.Reels[1].Entry(dcp.MainSubtitle)
				asset, err := sub.Ref().Asset()
				if err != nil {
					t.Fatalf("subtitle ref: %v", err)
				}
				if asset.Kind() != dcp.KindInteropSubtitle || asset.Subtitle().ReelNumber != 2 {
					t.Fatalf("unexpected subtitle asset %s", asset.Kind())
				}
				fonts := asset.Fonts()
				if len(fonts) != 1 || fonts[0].LoadID != "theFont" || fonts[0].Asset.Kind() != dcp.KindFont {
					t.Fatalf("font not linked: %+v", fonts)
				}
				if sub.Language != "en" {
					t.Fatalf("subtitle language = %q", sub.Language)
				}
			}
		})
	}
}

func TestOpenMissingAssetLeavesRefUnresolved(t *testing.T) {
	dir := t.TempDir()
	testsupport.NewPackage(t, dir, testsupport.WithPicture("pic.mxf", []byte("abc")))
	if err := os.Remove(filepath.Join(dir, "pic.mxf")); err != nil {
		t.Fatal(err)
	}

	pkg := testsupport.OpenPackage(t, dir)
	cpl := pkg.CPLs()[0]
	unresolved := cpl.UnresolvedRefs()
	if len(unresolved) != 1 || unresolved[0] != cpl.Reels[0].Entry(dcp.MainPicture).Ref() {
		t.Fatalf("expected picture ref unresolved, got %v", unresolved)
	}

	cred, err := signing.Generate("tester", nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = cpl.Marshal(cred)
	if !errors.Is(err, dcp.ErrUnresolvedReference) {
		t.Fatalf("signing with unresolved refs: %v", err)
	}
	if _, err := cpl.Marshal(nil); err != nil {
		t.Fatalf("unsigned marshal with unresolved refs: %v", err)
	}
}

func TestOpenRejectsNonPackage(t *testing.T) {
	_, err := dcp.Open(t.TempDir(), dcp.ReadOptions{})
	if !errors.Is(err, dcp.ErrMissingFile) {
		t.Fatalf("expected missing asset map error, got %v", err)
	}
	_, err = dcp.Open(filepath.Join(t.TempDir(), "absent"), dcp.ReadOptions{})
	if !errors.Is(err, dcp.ErrMissingFile) {
		t.Fatalf("expected missing directory error, got %v", err)
	}
}

func TestVerifyHashesDetectsTampering(t *testing.T) {
	dir := t.TempDir()
	testsupport.NewPackage(t, dir, testsupport.WithPicture("pic.mxf", []byte("original")))

	pkg := testsupport.OpenPackage(t, dir)
	notes, err := pkg.VerifyHashes()
	if err != nil || len(notes) != 0 {
		t.Fatalf("fresh package: %v, %v", notes, err)
	}

	testsupport.WriteBytes(t, filepath.Join(dir, "pic.mxf"), []byte("tampered"))
	pkg = testsupport.OpenPackage(t, dir)
	notes, err = pkg.VerifyHashes()
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 {
		t.Fatalf("expected packing list and playlist notes, got %v", notes)
	}
	if !strings.Contains(notes[0].Text, "packing list hash") || !strings.Contains(notes[1].Text, "differs from file hash") {
		t.Fatalf("unexpected notes %v", notes)
	}
}

func TestSignedPackage(t *testing.T) {
	dir := t.TempDir()
	cred, err := signing.Generate("Test Issuer", nil)
	if err != nil {
		t.Fatal(err)
	}
	testsupport.NewPackage(t, dir, testsupport.WithSigner(cred))

	pkg := testsupport.OpenPackage(t, dir)
	info, err := signing.VerifyFile(pkg.CPLs()[0].File())
	if err != nil {
		t.Fatalf("verify CPL: %v", err)
	}
	if info.Name != "Test Issuer" || !bytes.Equal(info.PublicKey, cred.PublicKey()) {
		t.Fatalf("unexpected signer %+v", info)
	}

	pkls, err := filepath.Glob(filepath.Join(dir, "PKL_*.xml"))
	if err != nil || len(pkls) != 1 {
		t.Fatalf("expected one packing list, got %v, %v", pkls, err)
	}
	if _, err := signing.VerifyFile(pkls[0]); err != nil {
		t.Fatalf("verify PKL: %v", err)
	}
	notes, err := pkg.VerifyHashes()
	if err != nil || len(notes) != 0 {
		t.Fatalf("signed package hashes: %v, %v", notes, err)
	}
}

func TestIdenticalFixturesCompareEqual(t *testing.T) {
	a := testsupport.NewPackage(t, t.TempDir(), testsupport.WithReels(2))
	b := testsupport.NewPackage(t, t.TempDir(), testsupport.WithReels(2))
	for _, mode := range []dcp.Mode{dcp.ModeStructural, dcp.ModeBitwise} {
		notes, err := a.Equal(b, dcp.EqualityOptions{Mode: mode, KeepGoing: true})
		if err != nil {
			t.Fatalf("mode %d: %v", mode, err)
		}
		if len(notes) != 0 {
			t.Fatalf("mode %d: %v", mode, notes)
		}
	}
}

func TestSubtitleFixturesDifferOnlyInHashes(t *testing.T) {
	font := []byte("font data")
	a := testsupport.NewPackage(t, t.TempDir(), testsupport.WithSubtitles("font.ttf", font))
	b := testsupport.NewPackage(t, t.TempDir(), testsupport.WithSubtitles("font.ttf", font))

	notes, err := a.Equal(b, dcp.EqualityOptions{KeepGoing: true})
	if err != nil {
		t.Fatal(err)
	}
	if !dcp.HasErrors(notes) {
		t.Fatalf("subtitle documents with distinct ids should hash differently")
	}

	notes, err = a.Equal(b, dcp.EqualityOptions{KeepGoing: true, ReelHashesCanDiffer: true})
	if err != nil {
		t.Fatal(err)
	}
	if dcp.HasErrors(notes) {
		t.Fatalf("tolerated hashes still produced errors: %v", notes)
	}
	if len(notes) != 1 || notes[0].Type != dcp.NoteInfo {
		t.Fatalf("expected one informational note, got %v", notes)
	}
}

func TestCompositionMetadataRoundTrip(t *testing.T) {
	pkg := testsupport.NewPackage(t, t.TempDir(), testsupport.WithStandard(dcp.SMPTE))
	cpl := pkg.CPLs()[0]

	md := &cpl.Metadata
	md.FullContentTitleText = "Test Feature Full"
	md.VersionNumber = 3
	md.Status = "final"
	md.Facility = "Lab"
	md.MainSoundConfiguration = "51/L,R,C,LFE,Ls,Rs"
	md.MainSoundSampleRate = 48000
	if err := md.SetFullContentTitleLanguage("French"); err != nil {
		t.Fatal(err)
	}
	if err := md.SetReleaseTerritory("gb"); err != nil {
		t.Fatal(err)
	}
	if err := md.AddAdditionalSubtitleLanguage("de-DE"); err != nil {
		t.Fatal(err)
	}

	data, err := cpl.Marshal(nil)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := dcp.ParseCPL(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ParseCPL: %v", err)
	}
	if parsed.Standard != dcp.SMPTE {
		t.Fatalf("standard = %s", parsed.Standard)
	}
	got := parsed.Metadata
	got.AssetID = ""
	want := cpl.Metadata
	want.AssetID = ""
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("metadata mismatch (-want +got):\n%s", diff)
	}
	if want.FullContentTitleLanguage != "fr" || want.ReleaseTerritory != "GB" {
		t.Fatalf("metadata not canonicalized: %+v", want)
	}
}

func TestCompositionMetadataValidation(t *testing.T) {
	var md dcp.CompositionMetadata
	if err := md.SetFullContentTitleLanguage("notalanguage"); err == nil {
		t.Fatal("expected invalid language error")
	}
	if err := md.SetReleaseTerritory("ZZZZ"); err == nil {
		t.Fatal("expected invalid territory error")
	}
	if err := md.AddAdditionalSubtitleLanguage(""); err == nil {
		t.Fatal("expected empty language error")
	}
	if md.FullContentTitleLanguage != "" || md.ReleaseTerritory != "" || len(md.AdditionalSubtitleLanguages) != 0 {
		t.Fatalf("invalid values stored: %+v", md)
	}
}

func TestWriteRejectsAssetsOutsidePackage(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(t.TempDir(), "stray.mxf")
	testsupport.WriteBytes(t, outside, []byte("stray"))

	pkg := dcp.New(dir, dcp.Interop, nil)
	if err := pkg.AddAsset(dcp.NewAsset("", dcp.KindEssence, outside)); err != nil {
		t.Fatal(err)
	}
	err := pkg.WriteXML(dcp.WriteOptions{Issuer: "x", Creator: "x", IssueDate: testsupport.FixedIssueDate})
	if err == nil || !strings.Contains(err.Error(), "outside package directory") {
		t.Fatalf("expected outside-directory error, got %v", err)
	}
}

func TestRebaseKeepsDigests(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "one")
	pkg := testsupport.NewPackage(t, dir)
	digests := make(map[string]string)
	for _, a := range pkg.Assets() {
		d, err := a.Digest()
		if err != nil {
			t.Fatal(err)
		}
		digests[a.ID()] = d
	}

	moved := filepath.Join(parent, "two")
	if err := os.Rename(dir, moved); err != nil {
		t.Fatal(err)
	}
	pkg.Rebase(moved)
	if pkg.Dir() != moved {
		t.Fatalf("dir = %s", pkg.Dir())
	}
	for _, a := range pkg.Assets() {
		if !strings.HasPrefix(a.File(), moved+string(filepath.Separator)) {
			t.Fatalf("asset %s not rebased: %s", a.ID(), a.File())
		}
		d, err := a.Digest()
		if err != nil || d != digests[a.ID()] {
			t.Fatalf("digest changed for %s: %s, %v", a.ID(), d, err)
		}
	}
}
