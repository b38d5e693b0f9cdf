package testsupport

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"dcpkit/internal/dcp"
	"dcpkit/internal/subtitles"
)

// FixedIssueDate is stamped into every fixture so fixtures built in
// different tests compare equal.
var FixedIssueDate = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// PackageOption customizes NewPackage.
type PackageOption func(*packageBuilder)

type packageBuilder struct {
	standard    dcp.Standard
	title       string
	reels       int
	pictureName string
	picture     []byte
	soundSize   int64
	subtitles   bool
	fontName    string
	font        []byte
	events      []subtitles.Event
	signer      dcp.Signer
}

// WithStandard selects the packaging standard (Interop by default).
func WithStandard(std dcp.Standard) PackageOption {
	return func(b *packageBuilder) { b.standard = std }
}

// WithTitle sets the playlist content title and annotation.
func WithTitle(title string) PackageOption {
	return func(b *packageBuilder) { b.title = title }
}

// WithReels sets the number of reels.
func WithReels(n int) PackageOption {
	return func(b *packageBuilder) { b.reels = n }
}

// WithPicture sets the picture file name and contents. With several reels
// the reel index is appended to the stem and to the contents.
func WithPicture(name string, content []byte) PackageOption {
	return func(b *packageBuilder) {
		b.pictureName = name
		b.picture = content
	}
}

// WithSubtitles adds an Interop subtitle document to each reel, loading a
// font file stored as fontName.
func WithSubtitles(fontName string, font []byte, events ...subtitles.Event) PackageOption {
	return func(b *packageBuilder) {
		b.subtitles = true
		b.fontName = fontName
		b.font = font
		b.events = events
	}
}

// WithSigner signs the written playlists and packing list.
func WithSigner(s dcp.Signer) PackageOption {
	return func(b *packageBuilder) { b.signer = s }
}

// SampleEvents returns two subtitle events in one style.
func SampleEvents() []subtitles.Event {
	style := subtitles.DefaultStyle()
	style.Font = "theFont"
	timing := func(from, to int) subtitles.Timing {
		return subtitles.Timing{
			In:       subtitles.NewTime(0, 0, from, 0),
			Out:      subtitles.NewTime(0, 0, to, 0),
			FadeUp:   subtitles.DefaultFade,
			FadeDown: subtitles.DefaultFade,
		}
	}
	return []subtitles.Event{
		{Style: style, Timing: timing(1, 2), Placement: subtitles.Placement{VAlign: subtitles.VAlignBottom, VPosition: 10}, Text: "First line"},
		{Style: style, Timing: timing(3, 4), Placement: subtitles.Placement{VAlign: subtitles.VAlignBottom, VPosition: 10}, Text: "Second line"},
	}
}

// NewPackage writes a synthetic package into dir and returns it as built in
// memory. Essence files are opaque byte patterns.
func NewPackage(t testing.TB, dir string, opts ...PackageOption) *dcp.Package {
	t.Helper()

	b := &packageBuilder{
		standard:    dcp.Interop,
		title:       "Test Feature",
		reels:       1,
		pictureName: "picture.mxf",
		soundSize:   2048,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.subtitles && b.standard != dcp.Interop {
		t.Fatalf("testsupport: subtitle fixtures require the Interop standard")
	}
	if b.picture == nil {
		b.picture = []byte("picture essence")
	}
	if b.events == nil {
		b.events = SampleEvents()
	}

	pkg := dcp.New(dir, b.standard, nil)
	cpl := dcp.NewCPL(b.title, dcp.ContentFeature, b.standard)
	cpl.IssueDate = FixedIssueDate
	cpl.Issuer = "testsupport"
	cpl.Creator = "testsupport"
	editRate := dcp.Fraction{Num: 24, Den: 1}

	var font *dcp.Asset
	if b.subtitles {
		fontPath := filepath.Join(dir, b.fontName)
		WriteBytes(t, fontPath, b.font)
		font = dcp.NewAsset("", dcp.KindFont, fontPath)
		mustAdd(t, pkg, font)
	}

	for i := 0; i < b.reels; i++ {
		pictureName := b.pictureName
		picture := b.picture
		soundName := "sound.mxf"
		if b.reels > 1 {
			ext := filepath.Ext(pictureName)
			pictureName = fmt.Sprintf("%s_%d%s", pictureName[:len(pictureName)-len(ext)], i, ext)
			picture = append(append([]byte(nil), picture...), byte(i))
			soundName = fmt.Sprintf("sound_%d.mxf", i)
		}

		pictureAsset := essence(t, pkg, filepath.Join(dir, pictureName), picture)
		soundPath := filepath.Join(dir, soundName)
		WriteFile(t, soundPath, b.soundSize, byte(i))
		soundAsset := dcp.NewAsset("", dcp.KindEssence, soundPath)
		mustAdd(t, pkg, soundAsset)

		reel := dcp.NewReel(
			entry(t, dcp.MainPicture, pictureAsset, editRate),
			entry(t, dcp.MainSound, soundAsset, editRate),
		)
		reel.Entries[0].ScreenAspectRatio = "1.85"

		if b.subtitles {
			doc := &subtitles.Document{
				MovieTitle: b.title,
				ReelNumber: i + 1,
				Language:   "English",
				LoadFonts:  []subtitles.LoadFont{{ID: "theFont", URI: b.fontName}},
				Events:     b.events,
			}
			sub := dcp.NewSubtitleAsset(doc, "")
			if err := sub.WriteSubtitle(filepath.Join(dir, fmt.Sprintf("subs_%d.xml", i))); err != nil {
				t.Fatalf("write subtitle fixture: %v", err)
			}
			sub.LinkFont("theFont", font)
			mustAdd(t, pkg, sub)
			subEntry := entry(t, dcp.MainSubtitle, sub, editRate)
			subEntry.Language = "en"
			reel.Entries = append(reel.Entries, subEntry)
		}
		cpl.AddReel(reel)
	}

	if err := pkg.AddCPL(cpl); err != nil {
		t.Fatalf("add CPL: %v", err)
	}
	err := pkg.WriteXML(dcp.WriteOptions{
		Issuer:         "testsupport",
		Creator:        "testsupport",
		IssueDate:      FixedIssueDate,
		AnnotationText: b.title,
		Signer:         b.signer,
	})
	if err != nil {
		t.Fatalf("write package fixture: %v", err)
	}
	return pkg
}

// OpenPackage reads a package from disk or fails the test.
func OpenPackage(t testing.TB, dir string) *dcp.Package {
	t.Helper()

	pkg, err := dcp.Open(dir, dcp.ReadOptions{})
	if err != nil {
		t.Fatalf("open package %s: %v", dir, err)
	}
	return pkg
}

func essence(t testing.TB, pkg *dcp.Package, path string, content []byte) *dcp.Asset {
	t.Helper()
	WriteBytes(t, path, content)
	a := dcp.NewAsset("", dcp.KindEssence, path)
	mustAdd(t, pkg, a)
	return a
}

func entry(t testing.TB, kind dcp.EntryKind, a *dcp.Asset, rate dcp.Fraction) *dcp.ReelEntry {
	t.Helper()
	e, err := dcp.NewReelEntry(kind, a, rate, 48, 0)
	if err != nil {
		t.Fatalf("reel entry for %s: %v", a.ID(), err)
	}
	return e
}

func mustAdd(t testing.TB, pkg *dcp.Package, a *dcp.Asset) {
	t.Helper()
	if err := pkg.AddAsset(a); err != nil {
		t.Fatalf("add asset: %v", err)
	}
}
