package dcp

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"dcpkit/internal/logging"
	"dcpkit/internal/subtitles"
)

// Package is a DCP directory and the assets it holds.
type Package struct {
	dir      string
	standard Standard
	assets   []*Asset
	byID     map[string]*Asset
	cache    DigestCache
	logger   *slog.Logger
}

// ReadOptions configures Open.
type ReadOptions struct {
	Logger      *slog.Logger
	DigestCache DigestCache
}

// New returns an empty package rooted at dir.
func New(dir string, std Standard, logger *slog.Logger) *Package {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Package{
		dir:      dir,
		standard: std,
		byID:     make(map[string]*Asset),
		logger:   logging.NewComponentLogger(logger, "dcp"),
	}
}

func (p *Package) Dir() string          { return p.dir }
func (p *Package) Standard() Standard   { return p.standard }
func (p *Package) Logger() *slog.Logger { return p.logger }

// Assets returns every asset except packing lists, in load order.
func (p *Package) Assets() []*Asset {
	return append([]*Asset(nil), p.assets...)
}

// Asset looks an asset up by identifier.
func (p *Package) Asset(id string) (*Asset, bool) {
	a, ok := p.byID[id]
	return a, ok
}

// CPLs returns the package's playlists in load order.
func (p *Package) CPLs() []*CPL {
	var out []*CPL
	for _, a := range p.assets {
		if a.kind == KindCPL {
			out = append(out, a.cpl)
		}
	}
	return out
}

// AddAsset adds a to the package. Identifiers must be unique.
func (p *Package) AddAsset(a *Asset) error {
	if _, exists := p.byID[a.ID()]; exists {
		return fmt.Errorf("asset %s already present in package %s", a.ID(), p.dir)
	}
	if p.cache != nil && a.cache == nil {
		a.SetDigestCache(p.cache)
	}
	p.assets = append(p.assets, a)
	p.byID[a.ID()] = a
	return nil
}

// AddCPL adds a playlist to the package.
func (p *Package) AddCPL(c *CPL) error {
	return p.AddAsset(c.Asset())
}

// ResolveRefs resolves every playlist reference against the package's
// assets. Unmatched references stay unresolved and are logged.
func (p *Package) ResolveRefs() {
	for _, c := range p.CPLs() {
		c.ResolveRefs(p.assets)
		for _, ref := range c.UnresolvedRefs() {
			p.logger.Debug("reference unresolved",
				logging.String(logging.FieldCPLID, c.ID()),
				logging.String(logging.FieldAssetID, ref.ID()),
			)
		}
	}
}

// Open reads the package in dir: its asset map, packing lists, playlists,
// subtitle documents and fonts. Files listed but absent are skipped.
func Open(dir string, opts ReadOptions) (*Package, error) {
	amPath, err := findAssetMap(dir)
	if err != nil {
		return nil, err
	}
	var am assetMapXML
	if err := decodeFile(amPath, &am); err != nil {
		return nil, err
	}
	std := standardFromNamespace(am.XMLName.Space)
	if std == StandardUnknown {
		return nil, fmt.Errorf("%s: unknown asset map namespace %q", amPath, am.XMLName.Space)
	}

	p := New(dir, std, opts.Logger)
	p.cache = opts.DigestCache

	pkl := make(map[string]pklAssetXML)
	for _, entry := range am.Assets {
		if !entry.isPackingList() {
			continue
		}
		path, ok := assetPath(dir, entry)
		if !ok {
			return nil, fmt.Errorf("packing list %s has no path", stripURN(entry.ID))
		}
		var doc pklXML
		if err := decodeFile(path, &doc); err != nil {
			return nil, err
		}
		for _, a := range doc.Assets {
			pkl[stripURN(a.ID)] = a
		}
	}

	for _, entry := range am.Assets {
		if entry.isPackingList() {
			continue
		}
		id := stripURN(entry.ID)
		path, ok := assetPath(dir, entry)
		if !ok {
			p.logger.Warn("asset map entry without path", logging.String(logging.FieldAssetID, id))
			continue
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logging.WarnWithContext(p.logger, "asset file missing; skipping", "asset_missing",
					logging.String(logging.FieldAssetID, id),
					logging.String(logging.FieldPath, path),
					logging.String(logging.FieldImpact, "references to this asset stay unresolved"),
				)
				continue
			}
			return nil, err
		}
		a, err := loadAsset(id, path, pkl[id])
		if err != nil {
			return nil, err
		}
		if err := p.AddAsset(a); err != nil {
			return nil, err
		}
		p.logger.Debug("asset loaded",
			logging.String(logging.FieldAssetID, a.ID()),
			logging.String("kind", a.kind.String()),
			logging.String(logging.FieldPath, path),
		)
	}

	p.linkFonts()
	p.ResolveRefs()
	p.logger.Info("package opened",
		logging.String(logging.FieldPath, dir),
		logging.String(logging.FieldStandard, std.String()),
		logging.Int("assets", len(p.assets)),
		logging.Int("cpls", len(p.CPLs())),
	)
	return p, nil
}

func findAssetMap(dir string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &MissingFileError{Path: dir}
		}
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", dir)
	}
	for _, std := range []Standard{SMPTE, Interop} {
		path := filepath.Join(dir, std.AssetMapName())
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", &MissingFileError{Path: filepath.Join(dir, SMPTE.AssetMapName())}
}

func assetPath(dir string, entry assetMapEntryXML) (string, bool) {
	if len(entry.Paths) == 0 {
		return "", false
	}
	rel := strings.TrimPrefix(strings.TrimSpace(entry.Paths[0]), "file://")
	return filepath.Join(dir, filepath.FromSlash(rel)), true
}

func loadAsset(id, path string, info pklAssetXML) (*Asset, error) {
	var a *Asset
	root := ""
	if strings.EqualFold(filepath.Ext(path), ".xml") || strings.HasPrefix(info.Type, "text/xml") {
		var err error
		if root, err = rootElement(path); err != nil {
			return nil, err
		}
	}
	switch {
	case root == "CompositionPlaylist":
		c, err := ReadCPL(path)
		if err != nil {
			return nil, err
		}
		a = c.Asset()
	case root == "DCSubtitle":
		doc, err := subtitles.ReadFile(path)
		if err != nil {
			return nil, err
		}
		a = NewAsset(id, KindInteropSubtitle, path)
		a.subtitle = doc
	case isFontFile(path, info.Type):
		a = NewAsset(id, KindFont, path)
	default:
		a = NewAsset(id, KindEssence, path)
		a.pklType = strings.TrimSpace(info.Type)
	}
	a.pklHash = strings.TrimSpace(info.Hash)
	a.annotationText = strings.TrimSpace(info.AnnotationText)
	return a, nil
}

// linkFonts connects each subtitle's LoadFont entries to the font assets at
// the paths they name.
func (p *Package) linkFonts() {
	byPath := make(map[string]*Asset)
	for _, a := range p.assets {
		if a.kind == KindFont {
			byPath[filepath.Clean(a.file)] = a
		}
	}
	for _, a := range p.assets {
		if a.kind != KindInteropSubtitle {
			continue
		}
		for _, lf := range a.subtitle.LoadFonts {
			path := filepath.Clean(filepath.Join(filepath.Dir(a.file), filepath.FromSlash(lf.URI)))
			font, ok := byPath[path]
			if !ok {
				p.logger.Warn("subtitle font not found in package",
					logging.String(logging.FieldAssetID, a.ID()),
					logging.String("font_id", lf.ID),
					logging.String(logging.FieldPath, path),
				)
				continue
			}
			a.LinkFont(lf.ID, font)
		}
	}
}

// VerifyHashes recomputes asset digests and reports any that disagree with
// the packing list or with the hashes recorded in playlists.
func (p *Package) VerifyHashes() ([]Note, error) {
	var notes []Note
	for _, a := range p.assets {
		if a.pklHash == "" {
			continue
		}
		digest, err := a.Digest()
		if err != nil {
			return notes, err
		}
		if digest != a.pklHash {
			logging.WarnWithContext(p.logger, "packing list hash mismatch", "pkl_hash_mismatch",
				logging.String(logging.FieldAssetID, a.ID()),
				logging.String(logging.FieldErrorHint, "the file changed after the packing list was written"),
				logging.String(logging.FieldImpact, "players will reject the package"),
			)
			notes = append(notes, Note{Type: NoteError, Text: fmt.Sprintf("%s: hash %s differs from packing list hash %s", a.File(), digest, a.pklHash)})
		}
	}
	for _, c := range p.CPLs() {
		for _, e := range c.Entries() {
			if e.ref == nil || !e.ref.Resolved() || e.hash == "" {
				continue
			}
			digest, err := e.ref.asset.Digest()
			if err != nil {
				return notes, err
			}
			if digest != e.hash {
				notes = append(notes, Note{Type: NoteError, Text: fmt.Sprintf("CPL %s: %s %s hash %s differs from file hash %s", c.ID(), e.Kind, e.ID, e.hash, digest)})
			}
		}
	}
	return notes, nil
}

func cplFileName(c *CPL) string { return "CPL_" + c.ID() + ".xml" }

// WriteXML writes every playlist, a packing list, the asset map and the
// volume index into the package directory. Every asset must already live
// inside that directory.
func (p *Package) WriteXML(opts WriteOptions) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("create package directory: %w", err)
	}
	for _, c := range p.CPLs() {
		if opts.Signer == nil {
			for _, ref := range c.UnresolvedRefs() {
				logging.WarnWithContext(p.logger, "writing CPL with unresolved reference", "unresolved_reference",
					logging.String(logging.FieldCPLID, c.ID()),
					logging.String(logging.FieldAssetID, ref.ID()),
					logging.String(logging.FieldErrorHint, "add the referenced asset to the package"),
					logging.String(logging.FieldImpact, "the written package is incomplete"),
				)
			}
		}
		if c.Standard != p.standard {
			return fmt.Errorf("CPL %s is %s but package is %s: %w", c.ID(), c.Standard, p.standard, ErrStandardMismatch)
		}
		if err := c.WriteFile(filepath.Join(p.dir, cplFileName(c)), opts.Signer); err != nil {
			return err
		}
	}

	var pklEntries []pklEntry
	var mapEntries []assetMapEntry
	for _, a := range p.assets {
		rel, err := p.relativePath(a)
		if err != nil {
			return err
		}
		digest, err := a.Digest()
		if err != nil {
			return err
		}
		size, err := a.Size()
		if err != nil {
			return err
		}
		pklEntries = append(pklEntries, pklEntry{asset: a, hash: digest, size: size})
		mapEntries = append(mapEntries, assetMapEntry{id: a.ID(), path: rel, length: size})
	}

	pklID := uuid.NewString()
	pklData, err := p.marshalPKL(pklID, pklEntries, opts)
	if err != nil {
		return err
	}
	pklName := "PKL_" + pklID + ".xml"
	if err := os.WriteFile(filepath.Join(p.dir, pklName), pklData, 0o644); err != nil {
		return fmt.Errorf("write packing list: %w", err)
	}
	mapEntries = append(mapEntries, assetMapEntry{id: pklID, path: pklName, length: int64(len(pklData)), packingList: true})

	amData, err := p.marshalAssetMap(mapEntries, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(p.dir, p.standard.AssetMapName()), amData, 0o644); err != nil {
		return fmt.Errorf("write asset map: %w", err)
	}
	viData, err := p.marshalVolIndex()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(p.dir, p.standard.VolIndexName()), viData, 0o644); err != nil {
		return fmt.Errorf("write volume index: %w", err)
	}

	p.logger.Info("package written",
		logging.String(logging.FieldPath, p.dir),
		logging.String(logging.FieldStandard, p.standard.String()),
		logging.Int("assets", len(p.assets)),
		logging.Bool("signed", opts.Signer != nil),
	)
	return nil
}

func (p *Package) relativePath(a *Asset) (string, error) {
	if !a.HasFile() {
		return "", &MissingFileError{AssetID: a.ID()}
	}
	rel, err := filepath.Rel(p.dir, a.File())
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("asset %s at %s lies outside package directory %s", a.ID(), a.File(), p.dir)
	}
	return filepath.ToSlash(rel), nil
}

// Rebase records that the package directory moved to dir. Asset locations
// under the old directory follow it; cached digests are kept.
func (p *Package) Rebase(dir string) {
	for _, a := range p.assets {
		if !a.HasFile() {
			continue
		}
		rel, err := filepath.Rel(p.dir, a.file)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		a.Relocate(filepath.Join(dir, rel))
	}
	p.dir = dir
}
