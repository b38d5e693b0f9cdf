package subtitles

import (
	"cmp"
	"slices"
)

// Default values in effect at the root of a subtitle document.
const (
	DefaultSize = 42
	DefaultFade = Time(20)
)

// Style is the set of attributes a Font scope controls.
type Style struct {
	Font         string
	Italic       bool
	Colour       Colour
	Size         int
	Effect       Effect
	EffectColour Colour
}

// Timing is the set of attributes a Subtitle scope controls.
type Timing struct {
	In       Time
	Out      Time
	FadeUp   Time
	FadeDown Time
}

// Placement is the set of attributes a Text element controls.
type Placement struct {
	VAlign    VAlign
	VPosition float64
}

// Event is one piece of displayed text with every inherited attribute
// resolved.
type Event struct {
	Style
	Timing
	Placement
	Text string
}

// DefaultStyle returns the style in effect before any Font scope opens.
func DefaultStyle() Style {
	return Style{
		Colour:       White,
		Size:         DefaultSize,
		Effect:       EffectNone,
		EffectColour: Black,
	}
}

func defaultTiming() Timing {
	return Timing{FadeUp: DefaultFade, FadeDown: DefaultFade}
}

func defaultPlacement() Placement {
	return Placement{VAlign: VAlignCenter}
}

// SortEvents orders events by start time, then vertical position. The sort is
// stable so equal keys keep their input order.
func SortEvents(events []Event) {
	slices.SortStableFunc(events, compareEvents)
}

func compareEvents(a, b Event) int {
	if c := cmp.Compare(a.In, b.In); c != 0 {
		return c
	}
	return cmp.Compare(a.VPosition, b.VPosition)
}

// EventsEqual reports whether two event lists hold the same events with the
// same multiplicity, ignoring order.
func EventsEqual(a, b []Event) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[Event]int, len(a))
	for _, e := range a {
		counts[e]++
	}
	for _, e := range b {
		if counts[e] == 0 {
			return false
		}
		counts[e]--
	}
	return true
}
