package subtitles

import "slices"

// Reassemble rebuilds canonical markup from flat events. Events are sorted by
// (In, VPosition); a new Font node starts whenever the style differs from the
// previous event's, and a new Subtitle node starts whenever the Font node is
// new or the timing differs. The input slice is not modified.
func Reassemble(events []Event) []*Node {
	sorted := slices.Clone(events)
	SortEvents(sorted)

	var (
		roots      []*Node
		font       *Node
		subtitle   *Node
		lastStyle  Style
		lastTiming Timing
	)
	for _, ev := range sorted {
		newFont := font == nil || ev.Style != lastStyle
		if newFont {
			font = NewFontNode(ev.Style)
			roots = append(roots, font)
			lastStyle = ev.Style
		}
		if newFont || ev.Timing != lastTiming {
			subtitle = NewSubtitleNode(ev.Timing)
			font.Children = append(font.Children, subtitle)
			lastTiming = ev.Timing
		}
		subtitle.Children = append(subtitle.Children, NewTextNode(ev.Placement, ev.Text))
	}
	return roots
}
