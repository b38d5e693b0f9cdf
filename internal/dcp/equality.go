package dcp

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"dcpkit/internal/language"
	"dcpkit/internal/subtitles"
)

// Mode selects which comparisons run. Modes combine as bit flags.
type Mode uint

const (
	// ModeStructural compares metadata field by field and file-carrying
	// assets by digest.
	ModeStructural Mode = 1 << iota
	// ModeBitwise compares the bytes of file-carrying assets.
	ModeBitwise
)

// NoteType grades a discrepancy.
type NoteType int

const (
	NoteError NoteType = iota
	NoteInfo
)

func (t NoteType) String() string {
	if t == NoteInfo {
		return "note"
	}
	return "error"
}

// Note is one discrepancy found by a comparison.
type Note struct {
	Type NoteType
	Text string
}

func (n Note) String() string { return n.Text }

// HasErrors reports whether any note is an error.
func HasErrors(notes []Note) bool {
	return slices.ContainsFunc(notes, func(n Note) bool { return n.Type == NoteError })
}

// EssenceComparator inspects the decoded contents of two essence assets,
// applying the pixel and audio tolerances in EqualityOptions.
type EssenceComparator interface {
	CompareEssence(a, b *Asset, opts EqualityOptions) ([]Note, error)
}

// EqualityOptions holds every comparison tolerance.
type EqualityOptions struct {
	Mode                         Mode
	MaxMeanPixelError            float64
	MaxStdDevPixelError          float64
	MaxAudioSampleError          int
	CPLAnnotationTextsCanDiffer  bool
	ReelAnnotationTextsCanDiffer bool
	ReelHashesCanDiffer          bool
	IssueDatesCanDiffer          bool
	LoadFontNodesCanDiffer       bool
	// KeepGoing collects every discrepancy; otherwise comparison stops at
	// the first error note.
	KeepGoing                bool
	ExportDifferingSubtitles bool
	ExportDir                string
	Essence                  EssenceComparator
}

func (o EqualityOptions) structural() bool {
	return o.Mode&ModeStructural != 0 || o.Mode == 0
}

func (o EqualityOptions) bitwise() bool { return o.Mode&ModeBitwise != 0 }

// comparison accumulates notes for one top-level Equal call.
type comparison struct {
	opts    EqualityOptions
	notes   []Note
	stopped bool
}

func (c *comparison) add(t NoteType, format string, args ...any) {
	c.notes = append(c.notes, Note{Type: t, Text: fmt.Sprintf(format, args...)})
	if t == NoteError && !c.opts.KeepGoing {
		c.stopped = true
	}
}

// differ records a discrepancy in a field that may be tolerated.
func (c *comparison) differ(tolerated bool, format string, args ...any) {
	if tolerated {
		return
	}
	c.add(NoteError, format, args...)
}

func run(opts EqualityOptions, f func(*comparison) error) ([]Note, error) {
	c := &comparison{opts: opts}
	err := f(c)
	return c.notes, err
}

// Equal compares two packages playlist by playlist, in order.
func (p *Package) Equal(other *Package, opts EqualityOptions) ([]Note, error) {
	return run(opts, func(c *comparison) error { return c.packages(p, other) })
}

// Equal compares two playlists and everything reachable from their reels.
func (cpl *CPL) Equal(other *CPL, opts EqualityOptions) ([]Note, error) {
	return run(opts, func(c *comparison) error { return c.cpls(cpl, other) })
}

// Equal compares two reel entries and, when both are resolved, their assets.
func (e *ReelEntry) Equal(other *ReelEntry, opts EqualityOptions) ([]Note, error) {
	return run(opts, func(c *comparison) error { return c.entries(e, other) })
}

// Equal compares the targets of two references. Unresolved references can
// only be compared by recorded digest, and not at all in bitwise mode.
func (r *Ref) Equal(other *Ref, opts EqualityOptions) ([]Note, error) {
	return run(opts, func(c *comparison) error { return c.refs(r, other) })
}

// Equal compares two assets.
func (a *Asset) Equal(other *Asset, opts EqualityOptions) ([]Note, error) {
	return run(opts, func(c *comparison) error { return c.assets(a, other) })
}

// CompareFiles compares two files byte for byte. It yields at most one note:
// sizes differ, or content differs.
func CompareFiles(a, b string) ([]Note, error) {
	return run(EqualityOptions{Mode: ModeBitwise}, func(c *comparison) error { return c.files(a, b) })
}

func (c *comparison) packages(a, b *Package) error {
	if a.standard != b.standard {
		c.add(NoteError, "packages use different standards: %s and %s", a.standard, b.standard)
		if c.stopped {
			return nil
		}
	}
	ca, cb := a.CPLs(), b.CPLs()
	if len(ca) != len(cb) {
		c.add(NoteError, "CPL counts differ: %d and %d", len(ca), len(cb))
		return nil
	}
	for i := range ca {
		if err := c.cpls(ca[i], cb[i]); err != nil || c.stopped {
			return err
		}
	}
	return nil
}

func (c *comparison) cpls(a, b *CPL) error {
	if a.AnnotationText != b.AnnotationText {
		c.differ(c.opts.CPLAnnotationTextsCanDiffer, "CPL: annotation texts differ: %s vs %s", a.AnnotationText, b.AnnotationText)
	}
	if !c.stopped && !a.IssueDate.Equal(b.IssueDate) {
		c.differ(c.opts.IssueDatesCanDiffer, "CPL: issue dates differ: %s vs %s",
			a.IssueDate.Format(issueDateLayout), b.IssueDate.Format(issueDateLayout))
	}
	if !c.stopped && a.ContentTitleText != b.ContentTitleText {
		c.add(NoteError, "CPL: content title texts differ: %s vs %s", a.ContentTitleText, b.ContentTitleText)
	}
	if !c.stopped && a.ContentKind != b.ContentKind {
		c.add(NoteError, "CPL: content kinds differ: %s vs %s", a.ContentKind, b.ContentKind)
	}
	c.cplMetadata(a, b)
	if c.stopped {
		return nil
	}
	if len(a.Reels) != len(b.Reels) {
		c.add(NoteError, "CPL: reel counts differ: %d vs %d", len(a.Reels), len(b.Reels))
		return nil
	}
	for i := range a.Reels {
		if err := c.reels(i, a.Reels[i], b.Reels[i]); err != nil || c.stopped {
			return err
		}
	}
	return nil
}

// cplMetadata compares the descriptive fields of two playlists. Content
// version ids are generated per playlist and are not compared.
func (c *comparison) cplMetadata(a, b *CPL) {
	ma, mb := &a.Metadata, &b.Metadata
	fields := []struct {
		name string
		a, b string
	}{
		{"issuers", a.Issuer, b.Issuer},
		{"creators", a.Creator, b.Creator},
		{"full content title texts", ma.FullContentTitleText, mb.FullContentTitleText},
		{"release territories", ma.ReleaseTerritory, mb.ReleaseTerritory},
		{"version numbers", strconv.Itoa(ma.VersionNumber), strconv.Itoa(mb.VersionNumber)},
		{"statuses", ma.Status, mb.Status},
		{"chains", ma.Chain, mb.Chain},
		{"distributors", ma.Distributor, mb.Distributor},
		{"facilities", ma.Facility, mb.Facility},
		{"main sound configurations", ma.MainSoundConfiguration, mb.MainSoundConfiguration},
		{"main sound sample rates", strconv.Itoa(ma.MainSoundSampleRate), strconv.Itoa(mb.MainSoundSampleRate)},
	}
	for _, f := range fields {
		if c.stopped {
			return
		}
		if f.a != f.b {
			c.add(NoteError, "CPL: %s differ: %s vs %s", f.name, f.a, f.b)
		}
	}
	if !c.stopped && !language.Same(ma.FullContentTitleLanguage, mb.FullContentTitleLanguage) {
		c.add(NoteError, "CPL: full content title languages differ: %s vs %s", ma.FullContentTitleLanguage, mb.FullContentTitleLanguage)
	}
	if !c.stopped && !slices.EqualFunc(ma.AdditionalSubtitleLanguages, mb.AdditionalSubtitleLanguages, language.Same) {
		c.add(NoteError, "CPL: additional subtitle languages differ: %s vs %s",
			strings.Join(ma.AdditionalSubtitleLanguages, " "), strings.Join(mb.AdditionalSubtitleLanguages, " "))
	}
	if !c.stopped && !slices.Equal(a.Ratings, b.Ratings) {
		c.add(NoteError, "CPL: ratings differ: %v vs %v", a.Ratings, b.Ratings)
	}
}

func (c *comparison) reels(index int, a, b *Reel) error {
	for _, kind := range entryKindOrder {
		ea, eb := entriesOfKind(a, kind), entriesOfKind(b, kind)
		if len(ea) != len(eb) {
			c.add(NoteError, "Reel %d: %s entry counts differ: %d vs %d", index+1, kind, len(ea), len(eb))
			if c.stopped {
				return nil
			}
			continue
		}
		for i := range ea {
			if err := c.entries(ea[i], eb[i]); err != nil || c.stopped {
				return err
			}
		}
	}
	return nil
}

func entriesOfKind(r *Reel, kind EntryKind) []*ReelEntry {
	var out []*ReelEntry
	for _, e := range r.Entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (c *comparison) entries(a, b *ReelEntry) error {
	label := "Reel " + a.Kind.String()
	if a.Kind != b.Kind {
		c.add(NoteError, "%s: entry kinds differ: %s vs %s", label, a.Kind, b.Kind)
		return nil
	}
	checks := []struct {
		differs   bool
		tolerated bool
		what      string
	}{
		{a.AnnotationText != b.AnnotationText, c.opts.ReelAnnotationTextsCanDiffer, "annotation texts"},
		{a.EditRate != b.EditRate, false, "edit rates"},
		{a.IntrinsicDuration != b.IntrinsicDuration, false, "intrinsic durations"},
		{a.EntryPoint != b.EntryPoint, false, "entry points"},
		{a.ActualDuration() != b.ActualDuration(), false, "durations"},
		{!slices.Equal(a.Markers, b.Markers), false, "markers"},
	}
	for _, chk := range checks {
		if chk.differs {
			c.differ(chk.tolerated, "%s: %s differ", label, chk.what)
			if c.stopped {
				return nil
			}
		}
	}
	if !a.Kind.FileBacked() {
		return nil
	}

	if a.hash != b.hash {
		if c.opts.ReelHashesCanDiffer {
			c.add(NoteInfo, "%s: hashes differ", label)
		} else {
			c.add(NoteError, "%s: hashes differ", label)
			return nil
		}
	}
	bothResolved := a.ref.Resolved() && b.ref.Resolved()
	if bothResolved || c.opts.bitwise() {
		return c.refs(a.ref, b.ref)
	}
	return nil
}

func (c *comparison) refs(a, b *Ref) error {
	if a.Resolved() && b.Resolved() {
		return c.assets(a.asset, b.asset)
	}
	if c.opts.bitwise() {
		id := a.ID()
		if a.Resolved() {
			id = b.ID()
		}
		return &UnresolvedReferenceError{ID: id, Op: "bitwise compare"}
	}
	if a.digest != b.digest {
		c.differ(c.opts.ReelHashesCanDiffer, "%s and %s: recorded digests differ", a.ID(), b.ID())
	}
	return nil
}

func (c *comparison) assets(a, b *Asset) error {
	if a.kind != b.kind {
		c.add(NoteError, "%s and %s: asset kinds differ: %s vs %s", a.ID(), b.ID(), a.kind, b.kind)
		return nil
	}
	switch a.kind {
	case KindCPL:
		return c.cpls(a.cpl, b.cpl)
	case KindInteropSubtitle:
		return c.subtitleAssets(a, b)
	case KindFont, KindEssence:
		if c.opts.structural() {
			if a.kind == KindEssence && c.opts.Essence != nil {
				notes, err := c.opts.Essence.CompareEssence(a, b, c.opts)
				if err != nil {
					return fmt.Errorf("compare essence %s and %s: %w", a.ID(), b.ID(), err)
				}
				for _, n := range notes {
					c.add(n.Type, "%s", n.Text)
					if c.stopped {
						return nil
					}
				}
			} else if !c.opts.bitwise() {
				da, err := a.Digest()
				if err != nil {
					return err
				}
				db, err := b.Digest()
				if err != nil {
					return err
				}
				if da != db {
					c.add(NoteError, "%s and %s digests differ", a.File(), b.File())
					return nil
				}
			}
		}
		if c.opts.bitwise() {
			if !a.HasFile() {
				return &MissingFileError{AssetID: a.ID()}
			}
			if !b.HasFile() {
				return &MissingFileError{AssetID: b.ID()}
			}
			return c.files(a.File(), b.File())
		}
		return nil
	default:
		panic(fmt.Sprintf("dcp: unknown asset kind %v", a.kind))
	}
}

func (c *comparison) subtitleAssets(a, b *Asset) error {
	da, db := a.subtitle, b.subtitle
	before := len(c.notes)
	if da.MovieTitle != db.MovieTitle {
		c.add(NoteError, "Subtitle movie titles differ: %s vs %s", da.MovieTitle, db.MovieTitle)
	}
	if !c.stopped && !language.Same(da.Language, db.Language) {
		c.add(NoteError, "Subtitle languages differ: %s vs %s", da.Language, db.Language)
	}
	if !c.stopped && da.ReelNumber != db.ReelNumber {
		c.add(NoteError, "Subtitle reel numbers differ: %d vs %d", da.ReelNumber, db.ReelNumber)
	}
	if !c.stopped && !loadFontsEqual(da.LoadFonts, db.LoadFonts) {
		c.differ(c.opts.LoadFontNodesCanDiffer, "Subtitle load font nodes differ")
	}
	if !c.stopped && !subtitles.EventsEqual(da.Events, db.Events) {
		c.add(NoteError, "Subtitle events differ: %d vs %d events", len(da.Events), len(db.Events))
	}
	if HasErrors(c.notes[before:]) && c.opts.ExportDifferingSubtitles {
		if err := c.exportSubtitles(a, b); err != nil {
			return err
		}
	}
	if c.stopped {
		return nil
	}

	for _, fa := range a.fonts {
		for _, fb := range b.fonts {
			if fa.LoadID != fb.LoadID {
				continue
			}
			if err := c.assets(fa.Asset, fb.Asset); err != nil || c.stopped {
				return err
			}
		}
	}
	return nil
}

func loadFontsEqual(a, b []subtitles.LoadFont) bool {
	sortFonts := func(fonts []subtitles.LoadFont) []subtitles.LoadFont {
		out := slices.Clone(fonts)
		slices.SortFunc(out, func(x, y subtitles.LoadFont) int {
			return strings.Compare(x.ID+"\x00"+x.URI, y.ID+"\x00"+y.URI)
		})
		return out
	}
	return slices.Equal(sortFonts(a), sortFonts(b))
}

func (c *comparison) exportSubtitles(a, b *Asset) error {
	dir := c.opts.ExportDir
	if dir == "" {
		return fmt.Errorf("export of differing subtitles requested without an export directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create subtitle export directory: %w", err)
	}
	pa := filepath.Join(dir, "a-"+a.ID()+".xml")
	pb := filepath.Join(dir, "b-"+b.ID()+".xml")
	if err := a.subtitle.WriteFile(pa); err != nil {
		return fmt.Errorf("export subtitle %s: %w", a.ID(), err)
	}
	if err := b.subtitle.WriteFile(pb); err != nil {
		return fmt.Errorf("export subtitle %s: %w", b.ID(), err)
	}
	c.notes = append(c.notes, Note{Type: NoteInfo, Text: fmt.Sprintf("Exported differing subtitles to %s and %s", pa, pb)})
	return nil
}

const compareChunkSize = 64 * 1024

func (c *comparison) files(pathA, pathB string) error {
	infoA, err := os.Stat(pathA)
	if err != nil {
		return err
	}
	infoB, err := os.Stat(pathB)
	if err != nil {
		return err
	}
	if infoA.Size() != infoB.Size() {
		c.add(NoteError, "%s and %s sizes differ", pathA, pathB)
		return nil
	}

	fa, err := os.Open(pathA)
	if err != nil {
		return err
	}
	defer fa.Close()
	fb, err := os.Open(pathB)
	if err != nil {
		return err
	}
	defer fb.Close()

	bufA := make([]byte, compareChunkSize)
	bufB := make([]byte, compareChunkSize)
	for remaining := infoA.Size(); remaining > 0; {
		n := int(min(remaining, compareChunkSize))
		if _, err := io.ReadFull(fa, bufA[:n]); err != nil {
			return fmt.Errorf("read %s: %w", pathA, err)
		}
		if _, err := io.ReadFull(fb, bufB[:n]); err != nil {
			return fmt.Errorf("read %s: %w", pathB, err)
		}
		if !bytes.Equal(bufA[:n], bufB[:n]) {
			c.add(NoteError, "%s and %s content differs", pathA, pathB)
			return nil
		}
		remaining -= int64(n)
	}
	return nil
}
