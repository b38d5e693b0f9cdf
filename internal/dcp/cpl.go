package dcp

import (
	"fmt"
	"time"

	"dcpkit/internal/language"
)

// ContentKind classifies a composition.
type ContentKind string

const (
	ContentFeature       ContentKind = "feature"
	ContentShort         ContentKind = "short"
	ContentTrailer       ContentKind = "trailer"
	ContentTest          ContentKind = "test"
	ContentTransitional  ContentKind = "transitional"
	ContentRating        ContentKind = "rating"
	ContentTeaser        ContentKind = "teaser"
	ContentPolicy        ContentKind = "policy"
	ContentAdvertisement ContentKind = "advertisement"
	ContentPSA           ContentKind = "psa"
)

// ContentVersion identifies one version of the composition's content.
type ContentVersion struct {
	ID        string
	LabelText string
}

// Rating is one entry of the rating list.
type Rating struct {
	Agency string
	Label  string
}

// CompositionMetadata holds the extended metadata SMPTE playlists carry in a
// CompositionMetadataAsset.
type CompositionMetadata struct {
	AssetID                     string
	FullContentTitleText        string
	FullContentTitleLanguage    string
	ReleaseTerritory            string
	VersionNumber               int
	Status                      string
	Chain                       string
	Distributor                 string
	Facility                    string
	MainSoundConfiguration      string
	MainSoundSampleRate         int
	AdditionalSubtitleLanguages []string
}

// SetFullContentTitleLanguage validates and sets the title language.
func (m *CompositionMetadata) SetFullContentTitleLanguage(tag string) error {
	canonical, err := canonicalLanguage(tag)
	if err != nil {
		return err
	}
	m.FullContentTitleLanguage = canonical
	return nil
}

// SetReleaseTerritory validates and sets an ISO 3166 or UN M.49 region.
func (m *CompositionMetadata) SetReleaseTerritory(region string) error {
	territory, err := language.Territory(region)
	if err != nil {
		return fmt.Errorf("release territory: %w", err)
	}
	m.ReleaseTerritory = territory
	return nil
}

// AddAdditionalSubtitleLanguage validates and appends a language tag.
func (m *CompositionMetadata) AddAdditionalSubtitleLanguage(tag string) error {
	canonical, err := canonicalLanguage(tag)
	if err != nil {
		return err
	}
	m.AdditionalSubtitleLanguages = append(m.AdditionalSubtitleLanguages, canonical)
	return nil
}

func canonicalLanguage(value string) (string, error) {
	tag, err := language.Normalize(value)
	if err != nil {
		return "", fmt.Errorf("composition metadata: %w", err)
	}
	return tag, nil
}

// CPL is a composition playlist. It is itself a package asset.
type CPL struct {
	asset *Asset

	Standard         Standard
	AnnotationText   string
	Issuer           string
	Creator          string
	IssueDate        time.Time
	ContentTitleText string
	ContentKind      ContentKind
	ContentVersions  []ContentVersion
	Ratings          []Rating
	Metadata         CompositionMetadata
	Reels            []*Reel
}

// NewCPL returns an empty playlist with a fresh id.
func NewCPL(title string, kind ContentKind, std Standard) *CPL {
	c := &CPL{
		Standard:         std,
		ContentTitleText: title,
		AnnotationText:   title,
		ContentKind:      kind,
		IssueDate:        time.Now().UTC().Truncate(time.Second),
	}
	c.asset = NewAsset("", KindCPL, "")
	c.asset.cpl = c
	c.ContentVersions = []ContentVersion{{ID: "urn:uuid:" + c.ID(), LabelText: c.ID()}}
	return c
}

// Asset returns the playlist's own package asset.
func (c *CPL) Asset() *Asset { return c.asset }

func (c *CPL) ID() string { return c.asset.ID() }

// File is where the playlist was last read from or written to.
func (c *CPL) File() string { return c.asset.File() }

// AddReel appends a reel.
func (c *CPL) AddReel(r *Reel) { c.Reels = append(c.Reels, r) }

// ResolveRefs resolves every reel's references against assets. Identifiers
// with no match stay unresolved.
func (c *CPL) ResolveRefs(assets []*Asset) {
	pool := AssetPool(assets)
	for _, r := range c.Reels {
		r.ResolveRefs(pool)
	}
}

// Duration is the sum of reel durations in edit units.
func (c *CPL) Duration() int64 {
	var total int64
	for _, r := range c.Reels {
		total += r.Duration()
	}
	return total
}

// UnresolvedRefs lists references that have not been resolved.
func (c *CPL) UnresolvedRefs() []*Ref {
	var out []*Ref
	for _, r := range c.Reels {
		for _, e := range r.Entries {
			if e.ref != nil && !e.ref.Resolved() {
				out = append(out, e.ref)
			}
		}
	}
	return out
}

// Entries returns every reel entry in reel order.
func (c *CPL) Entries() []*ReelEntry {
	var out []*ReelEntry
	for _, r := range c.Reels {
		out = append(out, r.Entries...)
	}
	return out
}
