package subtitles

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LoadFont declares a font file referenced by Font Id attributes.
type LoadFont struct {
	ID  string
	URI string
}

// Document is an Interop DCSubtitle file.
type Document struct {
	ID         string
	MovieTitle string
	ReelNumber int
	Language   string
	LoadFonts  []LoadFont
	Events     []Event
}

// ReadFile parses the DCSubtitle document at path.
func ReadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// Parse reads a DCSubtitle document and flattens its markup into events.
func Parse(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	root, err := nextStart(dec)
	if err != nil {
		return nil, err
	}
	if root.Name.Local != "DCSubtitle" {
		return nil, fmt.Errorf("unexpected root element %q", root.Name.Local)
	}

	doc := &Document{}
	var markup []*Node
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("unterminated DCSubtitle element")
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "SubtitleID":
				doc.ID, err = readText(dec, t)
				doc.ID = strings.TrimPrefix(doc.ID, "urn:uuid:")
			case "MovieTitle":
				doc.MovieTitle, err = readText(dec, t)
			case "ReelNumber":
				var s string
				if s, err = readText(dec, t); err == nil {
					doc.ReelNumber, err = strconv.Atoi(s)
				}
			case "Language":
				doc.Language, err = readText(dec, t)
			case "LoadFont":
				doc.LoadFonts = append(doc.LoadFonts, LoadFont{ID: attr(t, "Id"), URI: attr(t, "URI")})
				err = dec.Skip()
			case "Font", "Subtitle", "Text":
				var n *Node
				if n, err = parseNode(dec, t); err == nil {
					markup = append(markup, n)
				}
			default:
				err = dec.Skip()
			}
			if err != nil {
				return nil, fmt.Errorf("%s: %w", t.Name.Local, err)
			}
		case xml.EndElement:
			doc.Events = Flatten(markup)
			return doc, nil
		}
	}
}

func nextStart(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

func readText(dec *xml.Decoder, start xml.StartElement) (string, error) {
	var s string
	if err := dec.DecodeElement(&s, &start); err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func lookupAttr(se xml.StartElement, name string) (string, bool) {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func parseNode(dec *xml.Decoder, start xml.StartElement) (*Node, error) {
	n := &Node{}
	var err error
	switch start.Name.Local {
	case "Font":
		n.Kind = FontNode
		n.Style, err = parseStyleAttrs(start)
	case "Subtitle":
		n.Kind = SubtitleNode
		n.Timing, err = parseTimingAttrs(start)
		if v, ok := lookupAttr(start, "SpotNumber"); ok && err == nil {
			n.SpotNumber, err = strconv.Atoi(strings.TrimSpace(v))
		}
	case "Text":
		n.Kind = TextNode
		n.Placement, err = parsePlacementAttrs(start)
	}
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.CharData:
			text.Write(t)
		case xml.StartElement:
			switch t.Name.Local {
			case "Font", "Subtitle", "Text":
				child, err := parseNode(dec, t)
				if err != nil {
					return nil, err
				}
				n.Children = append(n.Children, child)
			default:
				if err := dec.Skip(); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			n.Text = text.String()
			return n, nil
		}
	}
}

func parseStyleAttrs(se xml.StartElement) (StyleAttrs, error) {
	var a StyleAttrs
	if v, ok := lookupAttr(se, "Id"); ok {
		a.Font = ptr(v)
	}
	if v, ok := lookupAttr(se, "Italic"); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "true", "1":
			a.Italic = ptr(true)
		case "no", "false", "0":
			a.Italic = ptr(false)
		default:
			return a, fmt.Errorf("invalid Italic value %q", v)
		}
	}
	if v, ok := lookupAttr(se, "Color"); ok {
		c, err := ParseColour(v)
		if err != nil {
			return a, err
		}
		a.Colour = &c
	}
	if v, ok := lookupAttr(se, "Size"); ok {
		size, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return a, fmt.Errorf("invalid Size value %q", v)
		}
		a.Size = &size
	}
	if v, ok := lookupAttr(se, "Effect"); ok {
		e, err := ParseEffect(v)
		if err != nil {
			return a, err
		}
		a.Effect = &e
	}
	if v, ok := lookupAttr(se, "EffectColor"); ok {
		c, err := ParseColour(v)
		if err != nil {
			return a, err
		}
		a.EffectColour = &c
	}
	return a, nil
}

func parseTimingAttrs(se xml.StartElement) (TimingAttrs, error) {
	var a TimingAttrs
	fields := []struct {
		name  string
		dst   **Time
		parse func(string) (Time, error)
	}{
		{"TimeIn", &a.In, ParseTime},
		{"TimeOut", &a.Out, ParseTime},
		{"FadeUpTime", &a.FadeUp, parseTicksOrTime},
		{"FadeDownTime", &a.FadeDown, parseTicksOrTime},
	}
	for _, f := range fields {
		v, ok := lookupAttr(se, f.name)
		if !ok {
			continue
		}
		t, err := f.parse(v)
		if err != nil {
			return a, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = &t
	}
	return a, nil
}

func parsePlacementAttrs(se xml.StartElement) (PlacementAttrs, error) {
	var a PlacementAttrs
	if v, ok := lookupAttr(se, "VAlign"); ok {
		va, err := ParseVAlign(v)
		if err != nil {
			return a, err
		}
		a.VAlign = &va
	}
	if v, ok := lookupAttr(se, "VPosition"); ok {
		pos, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return a, fmt.Errorf("invalid VPosition value %q", v)
		}
		a.VPosition = &pos
	}
	return a, nil
}

// Markup returns the canonical markup for the document's events.
func (d *Document) Markup() []*Node {
	return Reassemble(d.Events)
}

// EventsAt returns the events visible at t, in display order.
func (d *Document) EventsAt(t Time) []Event {
	var out []Event
	for _, ev := range d.Events {
		if ev.In <= t && t < ev.Out {
			out = append(out, ev)
		}
	}
	SortEvents(out)
	return out
}

// FontURI returns the URI declared for a font id.
func (d *Document) FontURI(id string) (string, bool) {
	for _, lf := range d.LoadFonts {
		if lf.ID == id {
			return lf.URI, true
		}
	}
	return "", false
}

// SetFontURI repoints a declared font. It reports whether id was declared.
func (d *Document) SetFontURI(id, uri string) bool {
	for i := range d.LoadFonts {
		if d.LoadFonts[i].ID == id {
			d.LoadFonts[i].URI = uri
			return true
		}
	}
	return false
}

// Marshal renders the document as DCSubtitle XML with canonical markup.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: "DCSubtitle"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "Version"}, Value: "1.0"}},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}
	simple := []struct{ name, value string }{
		{"SubtitleID", d.ID},
		{"MovieTitle", d.MovieTitle},
		{"ReelNumber", strconv.Itoa(d.ReelNumber)},
		{"Language", d.Language},
	}
	for _, s := range simple {
		if err := enc.EncodeElement(s.value, xml.StartElement{Name: xml.Name{Local: s.name}}); err != nil {
			return nil, err
		}
	}
	for _, lf := range d.LoadFonts {
		se := xml.StartElement{
			Name: xml.Name{Local: "LoadFont"},
			Attr: []xml.Attr{
				{Name: xml.Name{Local: "Id"}, Value: lf.ID},
				{Name: xml.Name{Local: "URI"}, Value: lf.URI},
			},
		}
		if err := enc.EncodeToken(se); err != nil {
			return nil, err
		}
		if err := enc.EncodeToken(se.End()); err != nil {
			return nil, err
		}
	}

	spot := 1
	for _, n := range d.Markup() {
		if err := encodeNode(enc, n, &spot); err != nil {
			return nil, err
		}
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// WriteFile writes the document to path.
func (d *Document) WriteFile(path string) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func encodeNode(enc *xml.Encoder, n *Node, spot *int) error {
	se := xml.StartElement{Name: xml.Name{Local: n.Kind.String()}}
	addAttr := func(name, value string) {
		se.Attr = append(se.Attr, xml.Attr{Name: xml.Name{Local: name}, Value: value})
	}
	switch n.Kind {
	case FontNode:
		s := n.Style.apply(DefaultStyle())
		if n.Style.Font != nil {
			addAttr("Id", s.Font)
		}
		addAttr("Italic", yesNo(s.Italic))
		addAttr("Color", s.Colour.ARGB())
		addAttr("Size", strconv.Itoa(s.Size))
		addAttr("Effect", s.Effect.String())
		addAttr("EffectColor", s.EffectColour.ARGB())
		addAttr("Script", "normal")
		addAttr("Underlined", "no")
		addAttr("Weight", "normal")
	case SubtitleNode:
		t := n.Timing.apply(defaultTiming())
		addAttr("SpotNumber", strconv.Itoa(*spot))
		*spot++
		addAttr("TimeIn", t.In.String())
		addAttr("TimeOut", t.Out.String())
		addAttr("FadeUpTime", strconv.FormatInt(t.FadeUp.Ticks(), 10))
		addAttr("FadeDownTime", strconv.FormatInt(t.FadeDown.Ticks(), 10))
	case TextNode:
		p := n.Placement.apply(defaultPlacement())
		addAttr("VAlign", p.VAlign.String())
		addAttr("VPosition", strconv.FormatFloat(p.VPosition, 'f', -1, 64))
	}
	if err := enc.EncodeToken(se); err != nil {
		return err
	}
	if n.Text != "" {
		if err := enc.EncodeToken(xml.CharData(n.Text)); err != nil {
			return err
		}
	}
	for _, child := range n.Children {
		if err := encodeNode(enc, child, spot); err != nil {
			return err
		}
	}
	return enc.EncodeToken(se.End())
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
