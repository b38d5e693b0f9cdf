package dcp

import (
	"errors"
	"fmt"
)

var (
	// ErrStandardMismatch marks an operation given packages that follow
	// different standards.
	ErrStandardMismatch = errors.New("packages use different standards")
	// ErrUnresolvedReference marks an operation that needed a resolved Ref.
	ErrUnresolvedReference = errors.New("unresolved asset reference")
	// ErrMissingFile marks an asset without a backing file.
	ErrMissingFile = errors.New("asset has no backing file")
)

// UnresolvedReferenceError names the reference an operation could not follow.
type UnresolvedReferenceError struct {
	ID string
	Op string
}

func (e *UnresolvedReferenceError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("asset %s: %v", e.ID, ErrUnresolvedReference)
	}
	return fmt.Sprintf("%s: asset %s: %v", e.Op, e.ID, ErrUnresolvedReference)
}

func (e *UnresolvedReferenceError) Is(target error) bool {
	return target == ErrUnresolvedReference
}

// MissingFileError reports an asset, or a package file, that should exist on
// disk but does not.
type MissingFileError struct {
	AssetID string
	Path    string
}

func (e *MissingFileError) Error() string {
	switch {
	case e.AssetID != "" && e.Path != "":
		return fmt.Sprintf("asset %s: file %s not found", e.AssetID, e.Path)
	case e.AssetID != "":
		return fmt.Sprintf("asset %s: %v", e.AssetID, ErrMissingFile)
	default:
		return fmt.Sprintf("file %s not found", e.Path)
	}
}

func (e *MissingFileError) Is(target error) bool {
	return target == ErrMissingFile
}
