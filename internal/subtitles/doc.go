// Package subtitles models Interop cinema subtitle documents (DCSubtitle).
//
// Subtitle markup nests two kinds of scope: Font elements carry style
// attributes and Subtitle elements carry timing. Either may nest inside the
// other to any depth, and a child overrides only the attributes it sets.
// Text elements hold placement and the literal text.
//
// Flatten turns such a tree into a flat list of Events, each carrying its
// fully inherited style, timing and placement. Reassemble goes the other
// way: it sorts events by (start time, vertical position) and groups
// adjacent runs that share a style under one Font and, inside it, adjacent
// runs that share timing under one Subtitle. The grouping is deliberately
// local; two events with equal style separated by a differently styled event
// get separate Font elements.
package subtitles
