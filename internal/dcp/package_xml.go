package dcp

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type assetMapXML struct {
	XMLName xml.Name
	ID      string             `xml:"Id"`
	Assets  []assetMapEntryXML `xml:"AssetList>Asset"`
}

type assetMapEntryXML struct {
	ID          string   `xml:"Id"`
	PackingList string   `xml:"PackingList"`
	Paths       []string `xml:"ChunkList>Chunk>Path"`
}

func (e assetMapEntryXML) isPackingList() bool {
	v := strings.ToLower(strings.TrimSpace(e.PackingList))
	return v == "true" || v == "1"
}

type pklXML struct {
	XMLName        xml.Name
	ID             string        `xml:"Id"`
	AnnotationText string        `xml:"AnnotationText"`
	IssueDate      string        `xml:"IssueDate"`
	Issuer         string        `xml:"Issuer"`
	Creator        string        `xml:"Creator"`
	Assets         []pklAssetXML `xml:"AssetList>Asset"`
}

type pklAssetXML struct {
	ID             string `xml:"Id"`
	AnnotationText string `xml:"AnnotationText"`
	Hash           string `xml:"Hash"`
	Size           int64  `xml:"Size"`
	Type           string `xml:"Type"`
}

func decodeFile(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := xml.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// rootElement returns the local name of the document element of an XML file.
func rootElement(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	dec := xml.NewDecoder(f)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", fmt.Errorf("%s: no document element", path)
		}
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", path, err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}

// WriteOptions carries the descriptive values stamped into written
// packing lists and asset maps.
type WriteOptions struct {
	Issuer         string
	Creator        string
	IssueDate      time.Time
	AnnotationText string
	// Signer, when set, signs every CPL and the packing list.
	Signer Signer
}

func (o WriteOptions) issueDate() string {
	t := o.IssueDate
	if t.IsZero() {
		t = time.Now().UTC().Truncate(time.Second)
	}
	return t.Format(issueDateLayout)
}

type pklEntry struct {
	asset *Asset
	hash  string
	size  int64
}

func (p *Package) marshalPKL(id string, entries []pklEntry, opts WriteOptions) ([]byte, error) {
	w := newXMLWriter()
	w.start("PackingList", xmlAttr("xmlns", p.standard.pklNS()))
	w.text("Id", "urn:uuid:"+id)
	w.optional("AnnotationText", opts.AnnotationText)
	w.text("IssueDate", opts.issueDate())
	w.text("Issuer", opts.Issuer)
	w.text("Creator", opts.Creator)
	w.start("AssetList")
	for _, e := range entries {
		w.start("Asset")
		w.text("Id", "urn:uuid:"+e.asset.ID())
		annotation := e.asset.annotationText
		if annotation == "" {
			annotation = filepath.Base(e.asset.File())
		}
		w.text("AnnotationText", annotation)
		w.text("Hash", e.hash)
		w.int("Size", e.size)
		w.text("Type", e.asset.pklTypeFor(p.standard))
		if p.standard == SMPTE {
			w.text("OriginalFileName", filepath.Base(e.asset.File()))
		}
		w.end()
	}
	w.end()
	w.end()
	data, err := w.bytes()
	if err != nil {
		return nil, err
	}
	if opts.Signer == nil {
		return data, nil
	}
	return opts.Signer.SignDocument(data)
}

type assetMapEntry struct {
	id          string
	path        string
	length      int64
	packingList bool
}

func (p *Package) marshalAssetMap(entries []assetMapEntry, opts WriteOptions) ([]byte, error) {
	w := newXMLWriter()
	w.start("AssetMap", xmlAttr("xmlns", p.standard.assetMapNS()))
	w.text("Id", "urn:uuid:"+uuid.NewString())
	if p.standard == SMPTE {
		w.optional("AnnotationText", opts.AnnotationText)
	}
	w.text("Creator", opts.Creator)
	w.text("VolumeCount", "1")
	w.text("IssueDate", opts.issueDate())
	w.text("Issuer", opts.Issuer)
	w.start("AssetList")
	for _, e := range entries {
		w.start("Asset")
		w.text("Id", "urn:uuid:"+e.id)
		if e.packingList {
			w.text("PackingList", "true")
		}
		w.start("ChunkList")
		w.start("Chunk")
		w.text("Path", e.path)
		w.text("VolumeIndex", "1")
		w.text("Offset", "0")
		w.int("Length", e.length)
		w.end()
		w.end()
		w.end()
	}
	w.end()
	w.end()
	return w.bytes()
}

func (p *Package) marshalVolIndex() ([]byte, error) {
	w := newXMLWriter()
	w.start("VolumeIndex", xmlAttr("xmlns", p.standard.assetMapNS()))
	w.text("Index", "1")
	w.end()
	return w.bytes()
}
