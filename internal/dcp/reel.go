package dcp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// EntryKind is the role of a reel entry.
type EntryKind int

const (
	MainPicture EntryKind = iota
	MainStereoscopicPicture
	MainSound
	MainSubtitle
	MainClosedCaption
	MainMarkers
)

// qname is an element name with the prefix and namespace it is written
// under. An empty prefix means the document's default namespace.
type qname struct {
	prefix string
	local  string
	ns     string
}

func (q qname) String() string {
	if q.prefix == "" {
		return q.local
	}
	return q.prefix + ":" + q.local
}

type entryKindInfo struct {
	label   string
	interop qname
	smpte   qname
	// fileBacked entries reference a package asset and carry a hash.
	fileBacked bool
	picture    bool
	language   bool
}

var entryKinds = map[EntryKind]entryKindInfo{
	MainPicture: {
		label:      "picture",
		interop:    qname{local: "MainPicture"},
		smpte:      qname{local: "MainPicture"},
		fileBacked: true,
		picture:    true,
	},
	MainStereoscopicPicture: {
		label:      "stereoscopic picture",
		interop:    qname{prefix: "msp-cpl", local: "MainStereoscopicPicture", ns: stereoNS},
		smpte:      qname{prefix: "msp-cpl", local: "MainStereoscopicPicture", ns: stereoNS},
		fileBacked: true,
		picture:    true,
	},
	MainSound: {
		label:      "sound",
		interop:    qname{local: "MainSound"},
		smpte:      qname{local: "MainSound"},
		fileBacked: true,
	},
	MainSubtitle: {
		label:      "subtitle",
		interop:    qname{local: "MainSubtitle"},
		smpte:      qname{local: "MainSubtitle"},
		fileBacked: true,
		language:   true,
	},
	MainClosedCaption: {
		label:      "closed caption",
		interop:    qname{prefix: "cc-cpl", local: "MainClosedCaption", ns: interopCCNS},
		smpte:      qname{prefix: "tt", local: "ClosedCaption", ns: smpteCCNS},
		fileBacked: true,
		language:   true,
	},
	MainMarkers: {
		label:   "markers",
		interop: qname{local: "MainMarkers"},
		smpte:   qname{local: "MainMarkers"},
	},
}

var entryKindOrder = []EntryKind{
	MainPicture, MainStereoscopicPicture, MainSound, MainSubtitle, MainClosedCaption, MainMarkers,
}

func (k EntryKind) info() entryKindInfo {
	info, ok := entryKinds[k]
	if !ok {
		panic(fmt.Sprintf("dcp: unknown reel entry kind %d", int(k)))
	}
	return info
}

func (k EntryKind) String() string { return k.info().label }

func (k EntryKind) element(std Standard) qname {
	if std == SMPTE {
		return k.info().smpte
	}
	return k.info().interop
}

// FileBacked reports whether entries of this kind reference a package asset.
func (k EntryKind) FileBacked() bool { return k.info().fileBacked }

func entryKindForElement(local string) (EntryKind, bool) {
	for _, k := range entryKindOrder {
		info := entryKinds[k]
		if info.interop.local == local || info.smpte.local == local {
			return k, true
		}
	}
	return 0, false
}

// Fraction is a rational rate such as an edit rate.
type Fraction struct {
	Num int
	Den int
}

func (f Fraction) String() string { return fmt.Sprintf("%d %d", f.Num, f.Den) }

// Float returns the fraction's value, or 0 for a zero denominator.
func (f Fraction) Float() float64 {
	if f.Den == 0 {
		return 0
	}
	return float64(f.Num) / float64(f.Den)
}

// ParseFraction reads the "NUM DEN" form used in playlists.
func ParseFraction(value string) (Fraction, error) {
	fields := strings.Fields(value)
	if len(fields) != 2 {
		return Fraction{}, fmt.Errorf("invalid fraction %q", value)
	}
	num, errNum := strconv.Atoi(fields[0])
	den, errDen := strconv.Atoi(fields[1])
	if errNum != nil || errDen != nil {
		return Fraction{}, fmt.Errorf("invalid fraction %q", value)
	}
	return Fraction{Num: num, Den: den}, nil
}

// Marker is a named position in a MainMarkers entry.
type Marker struct {
	Label  string
	Offset int64
}

// ReelEntry is one asset slot in a reel: a reference plus timing.
type ReelEntry struct {
	Kind EntryKind
	// ID identifies the entry; for file-backed kinds it is the referenced
	// asset's id.
	ID                string
	AnnotationText    string
	EditRate          Fraction
	IntrinsicDuration int64
	EntryPoint        int64
	// Duration is the playable length; zero means IntrinsicDuration minus
	// EntryPoint.
	Duration          int64
	KeyID             string
	FrameRate         Fraction
	ScreenAspectRatio string
	Language          string
	Markers           []Marker

	ref  *Ref
	hash string
}

// NewReelEntry builds an entry referencing asset. The asset's digest is
// captured now; later changes to the asset do not alter it.
func NewReelEntry(kind EntryKind, asset *Asset, editRate Fraction, intrinsicDuration, entryPoint int64) (*ReelEntry, error) {
	if !kind.FileBacked() {
		panic(fmt.Sprintf("dcp: %s entries do not reference assets", kind))
	}
	ref, err := RefTo(asset)
	if err != nil {
		return nil, err
	}
	return &ReelEntry{
		Kind:              kind,
		ID:                asset.ID(),
		EditRate:          editRate,
		IntrinsicDuration: intrinsicDuration,
		EntryPoint:        entryPoint,
		ref:               ref,
		hash:              ref.RecordedDigest(),
	}, nil
}

// NewMarkersEntry builds a MainMarkers entry.
func NewMarkersEntry(editRate Fraction, intrinsicDuration int64, markers []Marker) *ReelEntry {
	return &ReelEntry{
		Kind:              MainMarkers,
		ID:                uuid.NewString(),
		EditRate:          editRate,
		IntrinsicDuration: intrinsicDuration,
		Markers:           markers,
	}
}

// Ref returns the asset reference, or nil for kinds that have none.
func (e *ReelEntry) Ref() *Ref { return e.ref }

// Hash is the digest captured when the entry was built or read.
func (e *ReelEntry) Hash() string { return e.hash }

// Encrypted reports whether the entry names a content key.
func (e *ReelEntry) Encrypted() bool { return e.KeyID != "" }

// ActualDuration is the number of edit units the entry plays for.
func (e *ReelEntry) ActualDuration() int64 {
	if e.Duration > 0 {
		return e.Duration
	}
	return e.IntrinsicDuration - e.EntryPoint
}

// Reel is one segment of a playlist.
type Reel struct {
	ID      string
	Entries []*ReelEntry
}

// NewReel returns a reel with a fresh id.
func NewReel(entries ...*ReelEntry) *Reel {
	return &Reel{ID: uuid.NewString(), Entries: entries}
}

// Entry returns the first entry of kind, or nil.
func (r *Reel) Entry(kind EntryKind) *ReelEntry {
	for _, e := range r.Entries {
		if e.Kind == kind {
			return e
		}
	}
	return nil
}

// Duration is the shortest playable duration of the reel's file-backed
// entries, or zero for a reel with none.
func (r *Reel) Duration() int64 {
	var d int64 = -1
	for _, e := range r.Entries {
		if !e.Kind.FileBacked() {
			continue
		}
		if ad := e.ActualDuration(); d < 0 || ad < d {
			d = ad
		}
	}
	if d < 0 {
		return 0
	}
	return d
}

// ResolveRefs resolves every entry reference against pool.
func (r *Reel) ResolveRefs(pool map[string]*Asset) {
	for _, e := range r.Entries {
		if e.ref != nil {
			e.ref.Resolve(pool)
		}
	}
}
