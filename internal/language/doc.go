// Package language normalizes the language and territory values found in
// packages.
//
// Interop subtitle documents name languages in words ("French"), playlists
// use ISO 639 codes or BCP 47 tags. Normalize maps all of these to a
// canonical BCP 47 tag so values from either standard can be compared and
// written to SMPTE metadata.
package language
