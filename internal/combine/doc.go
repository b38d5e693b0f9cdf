// Package combine merges several packages of one standard into a new
// package.
//
// Playlists are carried over unchanged. Every other asset is placed in the
// output directory under a collision-free name: essence and fonts by hard
// link (or copy across devices), Interop subtitle documents by rewriting
// them with their font references pointed at the placed fonts. The output
// is assembled in a hidden sibling directory and renamed into place only
// once every file and manifest has been written.
package combine
