// Package signing holds the ed25519 credential used to sign playlists and
// packing lists.
//
// A signed document carries a Signer element (name and public key) and a
// Signature element just before its closing root tag. The signature covers
// sha256 of the document as it was before those two elements were inserted.
package signing

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNotSigned    = errors.New("document is not signed")
	ErrBadSignature = errors.New("signature does not verify")
)

const pemType = "PRIVATE KEY"

// Credential is a named ed25519 signing key.
type Credential struct {
	Name string
	key  ed25519.PrivateKey
}

// Generate creates a credential from entropy read from r, or crypto/rand
// when r is nil.
func Generate(name string, r io.Reader) (*Credential, error) {
	if r == nil {
		r = rand.Reader
	}
	_, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return &Credential{Name: name, key: priv}, nil
}

// Load reads a PKCS#8 PEM ed25519 key.
func Load(path, name string) (*Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemType {
		return nil, fmt.Errorf("%s: no %s PEM block", path, pemType)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s: key is %T, want ed25519", path, parsed)
	}
	return &Credential{Name: name, key: priv}, nil
}

// Save writes the key as PKCS#8 PEM readable only by the owner.
func (c *Credential) Save(path string) error {
	der, err := x509.MarshalPKCS8PrivateKey(c.key)
	if err != nil {
		return fmt.Errorf("encode signing key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	data := pem.EncodeToMemory(&pem.Block{Type: pemType, Bytes: der})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write signing key: %w", err)
	}
	return nil
}

// PublicKey returns the verifying half of the credential.
func (c *Credential) PublicKey() ed25519.PublicKey {
	return c.key.Public().(ed25519.PublicKey)
}

// SignDocument inserts Signer and Signature elements before the closing
// root tag of doc.
func (c *Credential) SignDocument(doc []byte) ([]byte, error) {
	at := bytes.LastIndex(doc, []byte("</"))
	if at < 0 {
		return nil, errors.New("sign: document has no closing root tag")
	}
	digest := sha256.Sum256(doc)
	sig := ed25519.Sign(c.key, digest[:])

	var block bytes.Buffer
	block.WriteString("  <Signer>\n")
	block.WriteString("    <Name>")
	if err := xml.EscapeText(&block, []byte(c.Name)); err != nil {
		return nil, err
	}
	block.WriteString("</Name>\n")
	fmt.Fprintf(&block, "    <PublicKey>%s</PublicKey>\n", base64.StdEncoding.EncodeToString(c.PublicKey()))
	block.WriteString("  </Signer>\n")
	fmt.Fprintf(&block, "  <Signature>%s</Signature>\n", base64.StdEncoding.EncodeToString(sig))

	out := make([]byte, 0, len(doc)+block.Len())
	out = append(out, doc[:at]...)
	out = append(out, block.Bytes()...)
	out = append(out, doc[at:]...)
	return out, nil
}

// Info describes who signed a document.
type Info struct {
	Name      string
	PublicKey ed25519.PublicKey
}

type signerXML struct {
	Name      string `xml:"Name"`
	PublicKey string `xml:"PublicKey"`
}

// VerifyDocument checks a document produced by SignDocument and returns the
// signer it names.
func VerifyDocument(doc []byte) (Info, error) {
	const open, closing = "  <Signer>\n", "</Signature>\n"
	start := bytes.LastIndex(doc, []byte(open))
	if start < 0 {
		return Info{}, ErrNotSigned
	}
	rel := bytes.Index(doc[start:], []byte(closing))
	if rel < 0 {
		return Info{}, ErrNotSigned
	}
	end := start + rel + len(closing)

	dec := xml.NewDecoder(bytes.NewReader(doc[start:end]))
	var signer signerXML
	var signature string
	if err := dec.Decode(&signer); err != nil {
		return Info{}, fmt.Errorf("parse Signer: %w", err)
	}
	if err := dec.Decode(&signature); err != nil {
		return Info{}, fmt.Errorf("parse Signature: %w", err)
	}
	pub, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signer.PublicKey))
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return Info{}, fmt.Errorf("invalid signer public key")
	}
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return Info{}, fmt.Errorf("invalid signature encoding: %w", err)
	}

	unsigned := make([]byte, 0, len(doc)-(end-start))
	unsigned = append(unsigned, doc[:start]...)
	unsigned = append(unsigned, doc[end:]...)
	digest := sha256.Sum256(unsigned)
	info := Info{Name: signer.Name, PublicKey: ed25519.PublicKey(pub)}
	if !ed25519.Verify(info.PublicKey, digest[:], sig) {
		return info, ErrBadSignature
	}
	return info, nil
}

// VerifyFile reads and verifies a signed document on disk.
func VerifyFile(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, err
	}
	return VerifyDocument(data)
}
