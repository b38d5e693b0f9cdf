package subtitles

import (
	"fmt"
	"strconv"
	"strings"
)

// Colour is an opaque RGB colour.
type Colour struct {
	R, G, B uint8
}

var (
	White = Colour{R: 255, G: 255, B: 255}
	Black = Colour{}
)

// ParseColour reads an ARGB ("FFRRGGBB") or RGB ("RRGGBB") hex string. The
// alpha byte is accepted and discarded.
func ParseColour(value string) (Colour, error) {
	value = strings.TrimSpace(value)
	switch len(value) {
	case 8:
		value = value[2:]
	case 6:
	default:
		return Colour{}, fmt.Errorf("invalid colour %q", value)
	}
	n, err := strconv.ParseUint(value, 16, 32)
	if err != nil {
		return Colour{}, fmt.Errorf("invalid colour %q", value)
	}
	return Colour{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}, nil
}

// ColourFromComponents builds a colour from exactly three 0-255 components.
// Any other component count is a programming error.
func ColourFromComponents(components []int) Colour {
	if len(components) != 3 {
		panic(fmt.Sprintf("subtitles: colour needs 3 components, got %d", len(components)))
	}
	return Colour{R: uint8(components[0]), G: uint8(components[1]), B: uint8(components[2])}
}

// ARGB formats the colour as fully opaque "FFRRGGBB".
func (c Colour) ARGB() string {
	return fmt.Sprintf("FF%02X%02X%02X", c.R, c.G, c.B)
}

func (c Colour) String() string { return c.ARGB() }

// Effect is the outline treatment applied to subtitle glyphs.
type Effect int

const (
	EffectNone Effect = iota
	EffectBorder
	EffectShadow
)

func (e Effect) String() string {
	switch e {
	case EffectBorder:
		return "border"
	case EffectShadow:
		return "shadow"
	default:
		return "none"
	}
}

// ParseEffect maps an Effect attribute value, case-insensitively.
func ParseEffect(value string) (Effect, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "none", "":
		return EffectNone, nil
	case "border":
		return EffectBorder, nil
	case "shadow":
		return EffectShadow, nil
	default:
		return EffectNone, fmt.Errorf("unknown subtitle effect %q", value)
	}
}

// VAlign is the reference edge for a vertical position.
type VAlign int

const (
	VAlignTop VAlign = iota
	VAlignCenter
	VAlignBottom
)

func (v VAlign) String() string {
	switch v {
	case VAlignTop:
		return "top"
	case VAlignBottom:
		return "bottom"
	default:
		return "center"
	}
}

// ParseVAlign maps a VAlign attribute value, case-insensitively.
func ParseVAlign(value string) (VAlign, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "top":
		return VAlignTop, nil
	case "center", "centre":
		return VAlignCenter, nil
	case "bottom":
		return VAlignBottom, nil
	default:
		return VAlignCenter, fmt.Errorf("unknown vertical alignment %q", value)
	}
}
