package dcp

import (
	"bytes"
	"encoding/xml"
	"strconv"
)

const issueDateLayout = "2006-01-02T15:04:05-07:00"

// xmlWriter emits indented XML token by token. The first error sticks and is
// returned by bytes.
type xmlWriter struct {
	buf   bytes.Buffer
	enc   *xml.Encoder
	stack []xml.StartElement
	err   error
}

func newXMLWriter() *xmlWriter {
	w := &xmlWriter{}
	w.buf.WriteString(xml.Header)
	w.enc = xml.NewEncoder(&w.buf)
	w.enc.Indent("", "  ")
	return w
}

func xmlAttr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func (w *xmlWriter) start(name string, attrs ...xml.Attr) {
	if w.err != nil {
		return
	}
	se := xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
	w.err = w.enc.EncodeToken(se)
	w.stack = append(w.stack, se)
}

func (w *xmlWriter) end() {
	if w.err != nil {
		return
	}
	se := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
	w.err = w.enc.EncodeToken(se.End())
}

func (w *xmlWriter) text(name, value string, attrs ...xml.Attr) {
	if w.err != nil {
		return
	}
	w.err = w.enc.EncodeElement(value, xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs})
}

// optional writes the element only when value is non-empty.
func (w *xmlWriter) optional(name, value string) {
	if value != "" {
		w.text(name, value)
	}
}

func (w *xmlWriter) int(name string, value int64) {
	w.text(name, strconv.FormatInt(value, 10))
}

func (w *xmlWriter) bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	if len(w.stack) != 0 {
		panic("dcp: unbalanced xml writer")
	}
	if err := w.enc.Flush(); err != nil {
		return nil, err
	}
	w.buf.WriteByte('\n')
	return w.buf.Bytes(), nil
}
