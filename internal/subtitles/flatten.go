package subtitles

import (
	"fmt"
	"strings"
)

// scope is the attribute state visible at a point in the tree. It is passed
// by value so a child's overrides never leak to its siblings.
type scope struct {
	style     Style
	timing    Timing
	placement Placement
	inTiming  bool
	inText    bool
}

func rootScope() scope {
	return scope{
		style:     DefaultStyle(),
		timing:    defaultTiming(),
		placement: defaultPlacement(),
	}
}

// Flatten walks the markup forest and returns one Event per non-whitespace
// run of text that sits inside both a Subtitle scope and a Text element.
func Flatten(nodes []*Node) []Event {
	return flatten(nodes, rootScope(), nil)
}

func flatten(nodes []*Node, parent scope, out []Event) []Event {
	for _, n := range nodes {
		current := parent
		switch n.Kind {
		case FontNode:
			current.style = n.Style.apply(parent.style)
		case SubtitleNode:
			current.timing = n.Timing.apply(parent.timing)
			current.inTiming = true
		case TextNode:
			current.placement = n.Placement.apply(parent.placement)
			current.inText = true
		default:
			panic(fmt.Sprintf("subtitles: unknown node kind %v", n.Kind))
		}
		if current.inTiming && current.inText && strings.TrimSpace(n.Text) != "" {
			out = append(out, Event{
				Style:     current.style,
				Timing:    current.timing,
				Placement: current.placement,
				Text:      n.Text,
			})
		}
		out = flatten(n.Children, current, out)
	}
	return out
}
