package dcp

import "fmt"

type refState int

const (
	refUnresolved refState = iota
	refResolved
)

// Ref is a reference from a reel entry to an asset by identifier. It carries
// the digest recorded where the reference was written so it can be compared
// before, or without, resolution.
type Ref struct {
	id     string
	digest string
	state  refState
	asset  *Asset
}

// NewRef returns an unresolved reference.
func NewRef(id, recordedDigest string) *Ref {
	return &Ref{id: id, digest: recordedDigest}
}

// RefTo returns a reference already resolved to a, recording a's current
// digest.
func RefTo(a *Asset) (*Ref, error) {
	digest, err := a.Digest()
	if err != nil {
		return nil, err
	}
	return &Ref{id: a.ID(), digest: digest, state: refResolved, asset: a}, nil
}

func (r *Ref) ID() string { return r.id }

// RecordedDigest is the digest noted alongside the reference.
func (r *Ref) RecordedDigest() string { return r.digest }

func (r *Ref) Resolved() bool { return r.state == refResolved }

// Asset returns the target, or an *UnresolvedReferenceError.
func (r *Ref) Asset() (*Asset, error) {
	if r.state != refResolved {
		return nil, &UnresolvedReferenceError{ID: r.id}
	}
	return r.asset, nil
}

// Resolve looks the reference up in pool. Already-resolved references and
// unknown identifiers are left alone.
func (r *Ref) Resolve(pool map[string]*Asset) {
	if r.state == refResolved {
		return
	}
	a, ok := pool[r.id]
	if !ok {
		return
	}
	r.asset = a
	r.state = refResolved
}

func (r *Ref) String() string {
	if r.state == refResolved {
		return fmt.Sprintf("%s (resolved: %s)", r.id, r.asset.File())
	}
	return fmt.Sprintf("%s (unresolved)", r.id)
}

// AssetPool indexes assets by identifier for Resolve.
func AssetPool(assets []*Asset) map[string]*Asset {
	pool := make(map[string]*Asset, len(assets))
	for _, a := range assets {
		pool[a.ID()] = a
	}
	return pool
}
