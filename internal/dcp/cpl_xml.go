package dcp

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Signer signs a serialized CPL or PKL document and returns the signed bytes.
type Signer interface {
	SignDocument(doc []byte) ([]byte, error)
}

type cplXML struct {
	XMLName          xml.Name
	ID               string              `xml:"Id"`
	AnnotationText   string              `xml:"AnnotationText"`
	IssueDate        string              `xml:"IssueDate"`
	Issuer           string              `xml:"Issuer"`
	Creator          string              `xml:"Creator"`
	ContentTitleText string              `xml:"ContentTitleText"`
	ContentKind      string              `xml:"ContentKind"`
	ContentVersions  []contentVersionXML `xml:"ContentVersion"`
	Ratings          []ratingXML         `xml:"RatingList>Rating"`
	Reels            []reelXML           `xml:"ReelList>Reel"`
}

type contentVersionXML struct {
	ID        string `xml:"Id"`
	LabelText string `xml:"LabelText"`
}

type ratingXML struct {
	Agency string `xml:"Agency"`
	Label  string `xml:"Label"`
}

type reelXML struct {
	ID     string       `xml:"Id"`
	Assets assetListXML `xml:"AssetList"`
}

type entryXML struct {
	kind              EntryKind
	ID                string      `xml:"Id"`
	AnnotationText    string      `xml:"AnnotationText"`
	EditRate          string      `xml:"EditRate"`
	IntrinsicDuration int64       `xml:"IntrinsicDuration"`
	EntryPoint        *int64      `xml:"EntryPoint"`
	Duration          *int64      `xml:"Duration"`
	KeyID             string      `xml:"KeyId"`
	Hash              string      `xml:"Hash"`
	FrameRate         string      `xml:"FrameRate"`
	ScreenAspectRatio string      `xml:"ScreenAspectRatio"`
	Language          string      `xml:"Language"`
	Markers           []markerXML `xml:"MarkerList>Marker"`
}

type markerXML struct {
	Label  string `xml:"Label"`
	Offset int64  `xml:"Offset"`
}

type textWithLanguage struct {
	Text     string `xml:",chardata"`
	Language string `xml:"language,attr"`
}

type versionNumberXML struct {
	Value  string `xml:",chardata"`
	Status string `xml:"status,attr"`
}

type compositionMetadataXML struct {
	ID                       string           `xml:"Id"`
	FullContentTitleText     textWithLanguage `xml:"FullContentTitleText"`
	ReleaseTerritory         string           `xml:"ReleaseTerritory"`
	VersionNumber            versionNumberXML `xml:"VersionNumber"`
	Chain                    string           `xml:"Chain"`
	Distributor              string           `xml:"Distributor"`
	Facility                 string           `xml:"Facility"`
	MainSoundConfiguration   string           `xml:"MainSoundConfiguration"`
	MainSoundSampleRate      string           `xml:"MainSoundSampleRate"`
	MainSubtitleLanguageList string           `xml:"MainSubtitleLanguageList"`
}

// assetListXML holds a reel's entries in document order. Element names are
// looked up in the entry kind table; unknown elements are skipped.
type assetListXML struct {
	entries  []entryXML
	metadata *compositionMetadataXML
}

func (l *assetListXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "CompositionMetadataAsset" {
				var m compositionMetadataXML
				if err := d.DecodeElement(&m, &t); err != nil {
					return err
				}
				l.metadata = &m
				continue
			}
			kind, ok := entryKindForElement(t.Name.Local)
			if !ok {
				if err := d.Skip(); err != nil {
					return err
				}
				continue
			}
			var e entryXML
			if err := d.DecodeElement(&e, &t); err != nil {
				return fmt.Errorf("%s: %w", t.Name.Local, err)
			}
			e.kind = kind
			l.entries = append(l.entries, e)
		case xml.EndElement:
			return nil
		}
	}
}

func stripURN(id string) string {
	id = strings.TrimSpace(id)
	return strings.TrimPrefix(id, "urn:uuid:")
}

func parseIssueDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{issueDateLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid issue date %q", value)
}

// ReadCPL parses the playlist at path. References are left unresolved.
func ReadCPL(path string) (*CPL, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := ParseCPL(f)
	if err != nil {
		return nil, fmt.Errorf("parse CPL %s: %w", path, err)
	}
	c.asset.file = path
	return c, nil
}

// ParseCPL decodes a playlist document.
func ParseCPL(r io.Reader) (*CPL, error) {
	var doc cplXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}
	if doc.XMLName.Local != "CompositionPlaylist" {
		return nil, fmt.Errorf("unexpected root element %q", doc.XMLName.Local)
	}
	std := standardFromNamespace(doc.XMLName.Space)
	if std == StandardUnknown {
		return nil, fmt.Errorf("unknown CPL namespace %q", doc.XMLName.Space)
	}
	issued, err := parseIssueDate(doc.IssueDate)
	if err != nil {
		return nil, err
	}

	c := &CPL{
		Standard:         std,
		AnnotationText:   strings.TrimSpace(doc.AnnotationText),
		Issuer:           strings.TrimSpace(doc.Issuer),
		Creator:          strings.TrimSpace(doc.Creator),
		IssueDate:        issued,
		ContentTitleText: strings.TrimSpace(doc.ContentTitleText),
		ContentKind:      ContentKind(strings.TrimSpace(doc.ContentKind)),
	}
	c.asset = NewAsset(stripURN(doc.ID), KindCPL, "")
	c.asset.cpl = c
	for _, cv := range doc.ContentVersions {
		c.ContentVersions = append(c.ContentVersions, ContentVersion{ID: strings.TrimSpace(cv.ID), LabelText: cv.LabelText})
	}
	for _, r := range doc.Ratings {
		c.Ratings = append(c.Ratings, Rating{Agency: strings.TrimSpace(r.Agency), Label: strings.TrimSpace(r.Label)})
	}
	for _, rx := range doc.Reels {
		reel := &Reel{ID: stripURN(rx.ID)}
		for _, ex := range rx.Assets.entries {
			entry, err := ex.entry()
			if err != nil {
				return nil, fmt.Errorf("reel %s: %w", reel.ID, err)
			}
			reel.Entries = append(reel.Entries, entry)
		}
		if m := rx.Assets.metadata; m != nil {
			if err := c.Metadata.fromXML(m); err != nil {
				return nil, err
			}
		}
		c.Reels = append(c.Reels, reel)
	}
	return c, nil
}

func (ex entryXML) entry() (*ReelEntry, error) {
	e := &ReelEntry{
		Kind:              ex.kind,
		ID:                stripURN(ex.ID),
		AnnotationText:    ex.AnnotationText,
		IntrinsicDuration: ex.IntrinsicDuration,
		KeyID:             stripURN(ex.KeyID),
		ScreenAspectRatio: strings.TrimSpace(ex.ScreenAspectRatio),
		Language:          strings.TrimSpace(ex.Language),
		hash:              strings.TrimSpace(ex.Hash),
	}
	var err error
	if e.EditRate, err = ParseFraction(ex.EditRate); err != nil {
		return nil, fmt.Errorf("%s %s: %w", ex.kind, e.ID, err)
	}
	if ex.FrameRate != "" {
		if e.FrameRate, err = ParseFraction(ex.FrameRate); err != nil {
			return nil, fmt.Errorf("%s %s: %w", ex.kind, e.ID, err)
		}
	}
	if ex.EntryPoint != nil {
		e.EntryPoint = *ex.EntryPoint
	}
	if ex.Duration != nil {
		e.Duration = *ex.Duration
	}
	for _, m := range ex.Markers {
		e.Markers = append(e.Markers, Marker{Label: strings.TrimSpace(m.Label), Offset: m.Offset})
	}
	if ex.kind.FileBacked() {
		e.ref = NewRef(e.ID, e.hash)
	}
	return e, nil
}

func (m *CompositionMetadata) fromXML(x *compositionMetadataXML) error {
	m.AssetID = stripURN(x.ID)
	m.FullContentTitleText = strings.TrimSpace(x.FullContentTitleText.Text)
	m.FullContentTitleLanguage = strings.TrimSpace(x.FullContentTitleText.Language)
	m.ReleaseTerritory = strings.TrimSpace(x.ReleaseTerritory)
	m.Status = strings.TrimSpace(x.VersionNumber.Status)
	if v := strings.TrimSpace(x.VersionNumber.Value); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid VersionNumber %q", v)
		}
		m.VersionNumber = n
	}
	m.Chain = strings.TrimSpace(x.Chain)
	m.Distributor = strings.TrimSpace(x.Distributor)
	m.Facility = strings.TrimSpace(x.Facility)
	m.MainSoundConfiguration = strings.TrimSpace(x.MainSoundConfiguration)
	if v := strings.TrimSpace(x.MainSoundSampleRate); v != "" {
		rate, err := ParseFraction(v)
		if err != nil {
			return fmt.Errorf("invalid MainSoundSampleRate: %w", err)
		}
		m.MainSoundSampleRate = rate.Num
	}
	m.AdditionalSubtitleLanguages = strings.Fields(x.MainSubtitleLanguageList)
	return nil
}

// Marshal renders the playlist. Hashes of resolved references are taken
// from the target asset's current digest. With a signer every reference must
// be resolved.
func (c *CPL) Marshal(signer Signer) ([]byte, error) {
	if signer != nil {
		if unresolved := c.UnresolvedRefs(); len(unresolved) > 0 {
			return nil, &UnresolvedReferenceError{ID: unresolved[0].ID(), Op: "sign CPL " + c.ID()}
		}
	}

	w := newXMLWriter()
	attrs := []xml.Attr{xmlAttr("xmlns", c.Standard.cplNS())}
	attrs = append(attrs, xmlAttr("xmlns:msp-cpl", stereoNS))
	if c.Standard == SMPTE {
		attrs = append(attrs, xmlAttr("xmlns:tt", smpteCCNS), xmlAttr("xmlns:meta", smpteMetadataNS))
	} else {
		attrs = append(attrs, xmlAttr("xmlns:cc-cpl", interopCCNS))
	}
	w.start("CompositionPlaylist", attrs...)
	w.text("Id", "urn:uuid:"+c.ID())
	w.optional("AnnotationText", c.AnnotationText)
	w.text("IssueDate", c.IssueDate.Format(issueDateLayout))
	w.optional("Issuer", c.Issuer)
	w.optional("Creator", c.Creator)
	w.text("ContentTitleText", c.ContentTitleText)
	w.text("ContentKind", string(c.ContentKind))
	for _, cv := range c.ContentVersions {
		w.start("ContentVersion")
		w.text("Id", cv.ID)
		w.text("LabelText", cv.LabelText)
		w.end()
	}
	w.start("RatingList")
	for _, r := range c.Ratings {
		w.start("Rating")
		w.text("Agency", r.Agency)
		w.text("Label", r.Label)
		w.end()
	}
	w.end()

	w.start("ReelList")
	for i, reel := range c.Reels {
		w.start("Reel")
		w.text("Id", "urn:uuid:"+reel.ID)
		w.start("AssetList")
		for _, e := range reel.Entries {
			if err := c.writeEntry(w, e); err != nil {
				return nil, err
			}
		}
		if i == 0 && c.Standard == SMPTE {
			c.writeCompositionMetadata(w, reel)
		}
		w.end()
		w.end()
	}
	w.end()
	w.end()

	data, err := w.bytes()
	if err != nil {
		return nil, err
	}
	if signer == nil {
		return data, nil
	}
	return signer.SignDocument(data)
}

func (c *CPL) writeEntry(w *xmlWriter, e *ReelEntry) error {
	info := e.Kind.info()
	w.start(e.Kind.element(c.Standard).String())
	w.text("Id", "urn:uuid:"+e.ID)
	w.optional("AnnotationText", e.AnnotationText)
	w.text("EditRate", e.EditRate.String())
	w.int("IntrinsicDuration", e.IntrinsicDuration)
	w.int("EntryPoint", e.EntryPoint)
	w.int("Duration", e.ActualDuration())
	if e.KeyID != "" {
		w.text("KeyId", "urn:uuid:"+e.KeyID)
	}
	if info.fileBacked {
		hash := e.hash
		if e.ref.Resolved() {
			digest, err := e.ref.asset.Digest()
			if err != nil {
				return err
			}
			hash = digest
		}
		w.optional("Hash", hash)
	}
	if info.picture {
		rate := e.FrameRate
		if rate.Den == 0 {
			rate = e.EditRate
		}
		w.text("FrameRate", rate.String())
		w.optional("ScreenAspectRatio", e.ScreenAspectRatio)
	}
	if info.language {
		w.optional("Language", e.Language)
	}
	if e.Kind == MainMarkers {
		w.start("MarkerList")
		for _, m := range e.Markers {
			w.start("Marker")
			w.text("Label", m.Label)
			w.int("Offset", m.Offset)
			w.end()
		}
		w.end()
	}
	w.end()
	return nil
}

func (c *CPL) writeCompositionMetadata(w *xmlWriter, first *Reel) {
	m := &c.Metadata
	if m.AssetID == "" {
		m.AssetID = uuid.NewString()
	}
	var editRate Fraction
	var duration int64
	for _, kind := range []EntryKind{MainPicture, MainStereoscopicPicture} {
		if e := first.Entry(kind); e != nil {
			editRate = e.EditRate
			duration = e.IntrinsicDuration
			break
		}
	}
	if editRate.Den == 0 {
		editRate = Fraction{Num: 24, Den: 1}
	}

	w.start("meta:CompositionMetadataAsset")
	w.text("Id", "urn:uuid:"+m.AssetID)
	w.text("EditRate", editRate.String())
	w.int("IntrinsicDuration", duration)
	if m.FullContentTitleText != "" {
		var attrs []xml.Attr
		if m.FullContentTitleLanguage != "" {
			attrs = append(attrs, xmlAttr("language", m.FullContentTitleLanguage))
		}
		w.text("meta:FullContentTitleText", m.FullContentTitleText, attrs...)
	}
	w.optional("meta:ReleaseTerritory", m.ReleaseTerritory)
	if m.VersionNumber > 0 {
		var attrs []xml.Attr
		if m.Status != "" {
			attrs = append(attrs, xmlAttr("status", m.Status))
		}
		w.text("meta:VersionNumber", strconv.Itoa(m.VersionNumber), attrs...)
	}
	w.optional("meta:Chain", m.Chain)
	w.optional("meta:Distributor", m.Distributor)
	w.optional("meta:Facility", m.Facility)
	w.optional("meta:MainSoundConfiguration", m.MainSoundConfiguration)
	if m.MainSoundSampleRate > 0 {
		w.text("meta:MainSoundSampleRate", Fraction{Num: m.MainSoundSampleRate, Den: 1}.String())
	}
	if len(m.AdditionalSubtitleLanguages) > 0 {
		w.text("meta:MainSubtitleLanguageList", strings.Join(m.AdditionalSubtitleLanguages, " "))
	}
	w.end()
}

// WriteFile writes the playlist to path and records path as its location.
func (c *CPL) WriteFile(path string, signer Signer) error {
	data, err := c.Marshal(signer)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write CPL %s: %w", c.ID(), err)
	}
	c.asset.SetFile(path)
	return nil
}
