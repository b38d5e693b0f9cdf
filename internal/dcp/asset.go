package dcp

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"dcpkit/internal/subtitles"
)

// Kind tags what an Asset holds. Code that branches on it must handle every
// value.
type Kind int

const (
	KindEssence Kind = iota
	KindCPL
	KindInteropSubtitle
	KindFont
)

func (k Kind) String() string {
	switch k {
	case KindEssence:
		return "essence"
	case KindCPL:
		return "cpl"
	case KindInteropSubtitle:
		return "interop-subtitle"
	case KindFont:
		return "font"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// DigestCache remembers file digests across runs. Entries are keyed by path,
// size and modification time so any rewrite invalidates them.
type DigestCache interface {
	Lookup(path string, size int64, modTime time.Time) (string, bool, error)
	Store(path string, size int64, modTime time.Time, digest string) error
}

// LinkedFont ties a subtitle LoadFont id to the font asset it names.
type LinkedFont struct {
	LoadID string
	Asset  *Asset
}

// Asset is one member of a package: a playlist, subtitle document, font or
// essence file.
type Asset struct {
	id     string
	kind   Kind
	file   string
	digest string
	cache  DigestCache

	// Values recorded in the packing list this asset was read from.
	pklHash        string
	pklType        string
	annotationText string

	cpl      *CPL
	subtitle *subtitles.Document
	fonts    []LinkedFont
}

// NewAsset creates an asset backed by file (which may be empty for assets
// not yet written). An empty id gets a fresh UUID.
func NewAsset(id string, kind Kind, file string) *Asset {
	if id == "" {
		id = uuid.NewString()
	}
	return &Asset{id: id, kind: kind, file: file}
}

// NewSubtitleAsset wraps an Interop subtitle document.
func NewSubtitleAsset(doc *subtitles.Document, file string) *Asset {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	a := NewAsset(doc.ID, KindInteropSubtitle, file)
	a.subtitle = doc
	return a
}

func (a *Asset) ID() string   { return a.id }
func (a *Asset) Kind() Kind   { return a.kind }
func (a *Asset) File() string { return a.file }

// HasFile reports whether the asset has a backing file location.
func (a *Asset) HasFile() bool { return a.file != "" }

// SetFile moves the asset's recorded location. The cached digest is dropped
// because the new file may hold different bytes.
func (a *Asset) SetFile(path string) {
	a.file = path
	a.digest = ""
}

// Relocate records a new location for the same bytes, such as a hard link or
// a copy. The cached digest is kept.
func (a *Asset) Relocate(path string) {
	a.file = path
}

// SetDigestCache attaches a persistent digest cache.
func (a *Asset) SetDigestCache(cache DigestCache) { a.cache = cache }

// AnnotationText is the packing list annotation recorded for the asset.
func (a *Asset) AnnotationText() string { return a.annotationText }

// SetAnnotationText sets the packing list annotation written for the asset.
func (a *Asset) SetAnnotationText(text string) { a.annotationText = text }

// CPL returns the playlist held by a KindCPL asset.
func (a *Asset) CPL() *CPL { return a.cpl }

// Subtitle returns the document held by a KindInteropSubtitle asset.
func (a *Asset) Subtitle() *subtitles.Document { return a.subtitle }

// Fonts returns the fonts a subtitle asset loads.
func (a *Asset) Fonts() []LinkedFont { return a.fonts }

// LinkFont records that the subtitle loads font under loadID.
func (a *Asset) LinkFont(loadID string, font *Asset) {
	if a.kind != KindInteropSubtitle || font.kind != KindFont {
		panic(fmt.Sprintf("dcp: cannot link %s asset %s as font of %s asset %s", font.kind, font.id, a.kind, a.id))
	}
	a.fonts = append(a.fonts, LinkedFont{LoadID: loadID, Asset: font})
}

// WriteSubtitle serializes the subtitle document to path and points the
// asset at it.
func (a *Asset) WriteSubtitle(path string) error {
	if a.kind != KindInteropSubtitle {
		panic(fmt.Sprintf("dcp: WriteSubtitle on %s asset %s", a.kind, a.id))
	}
	if err := a.subtitle.WriteFile(path); err != nil {
		return fmt.Errorf("write subtitle %s: %w", a.id, err)
	}
	a.SetFile(path)
	return nil
}

// Digest returns base64(SHA-1) of the backing file, computing it on first use.
func (a *Asset) Digest() (string, error) {
	if a.digest != "" {
		return a.digest, nil
	}
	if a.file == "" {
		return "", &MissingFileError{AssetID: a.id}
	}
	info, err := os.Stat(a.file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &MissingFileError{AssetID: a.id, Path: a.file}
		}
		return "", err
	}
	if a.cache != nil {
		if cached, ok, err := a.cache.Lookup(a.file, info.Size(), info.ModTime()); err == nil && ok {
			a.digest = cached
			return cached, nil
		}
	}
	digest, err := FileDigest(a.file)
	if err != nil {
		return "", err
	}
	if a.cache != nil {
		// Cache failures only cost a rehash next time.
		_ = a.cache.Store(a.file, info.Size(), info.ModTime(), digest)
	}
	a.digest = digest
	return digest, nil
}

// Size returns the backing file's size in bytes.
func (a *Asset) Size() (int64, error) {
	if a.file == "" {
		return 0, &MissingFileError{AssetID: a.id}
	}
	info, err := os.Stat(a.file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, &MissingFileError{AssetID: a.id, Path: a.file}
		}
		return 0, err
	}
	return info.Size(), nil
}

// pklTypeFor returns the packing list Type value for the asset.
func (a *Asset) pklTypeFor(std Standard) string {
	switch a.kind {
	case KindCPL:
		if std == SMPTE {
			return "text/xml"
		}
		return "text/xml;asdcpKind=CPL"
	case KindInteropSubtitle:
		return "text/xml;asdcpKind=Subtitle"
	case KindFont:
		if std == SMPTE {
			return "application/x-font-opentype"
		}
		return "application/ttf"
	case KindEssence:
		if a.pklType != "" {
			return a.pklType
		}
		return "application/mxf"
	default:
		panic(fmt.Sprintf("dcp: unknown asset kind %v", a.kind))
	}
}

// FileDigest hashes a file the way packing lists record it.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

func isFontFile(path, pklType string) bool {
	t := strings.ToLower(pklType)
	if strings.Contains(t, "ttf") || strings.Contains(t, "font") {
		return true
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ttf", ".otf":
		return true
	}
	return false
}
