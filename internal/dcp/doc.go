// Package dcp reads, writes and compares Digital Cinema Packages.
//
// A package is loaded in two phases. Open first parses every asset listed in
// the asset map into an identifier-keyed pool (CPLs, Interop subtitle
// documents, fonts and opaque essence files), then ResolveRefs points each
// reel entry's Ref at the matching pool member. References whose target is
// absent stay unresolved; that is not an error until an operation needs the
// target (bitwise comparison, signing).
//
// Equality is reported as a list of Notes rather than a boolean so callers
// can print every discrepancy, subject to the tolerances in EqualityOptions.
package dcp
