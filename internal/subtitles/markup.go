package subtitles

import "fmt"

// NodeKind identifies the role of a markup node.
type NodeKind int

const (
	FontNode NodeKind = iota
	SubtitleNode
	TextNode
)

func (k NodeKind) String() string {
	switch k {
	case FontNode:
		return "Font"
	case SubtitleNode:
		return "Subtitle"
	case TextNode:
		return "Text"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// StyleAttrs holds the style attributes a Font node sets. Nil fields are
// inherited from the enclosing scope.
type StyleAttrs struct {
	Font         *string
	Italic       *bool
	Colour       *Colour
	Size         *int
	Effect       *Effect
	EffectColour *Colour
}

func (a StyleAttrs) apply(s Style) Style {
	if a.Font != nil {
		s.Font = *a.Font
	}
	if a.Italic != nil {
		s.Italic = *a.Italic
	}
	if a.Colour != nil {
		s.Colour = *a.Colour
	}
	if a.Size != nil {
		s.Size = *a.Size
	}
	if a.Effect != nil {
		s.Effect = *a.Effect
	}
	if a.EffectColour != nil {
		s.EffectColour = *a.EffectColour
	}
	return s
}

// TimingAttrs holds the timing attributes a Subtitle node sets.
type TimingAttrs struct {
	In       *Time
	Out      *Time
	FadeUp   *Time
	FadeDown *Time
}

func (a TimingAttrs) apply(t Timing) Timing {
	if a.In != nil {
		t.In = *a.In
	}
	if a.Out != nil {
		t.Out = *a.Out
	}
	if a.FadeUp != nil {
		t.FadeUp = *a.FadeUp
	}
	if a.FadeDown != nil {
		t.FadeDown = *a.FadeDown
	}
	return t
}

// PlacementAttrs holds the placement attributes a Text node sets.
type PlacementAttrs struct {
	VAlign    *VAlign
	VPosition *float64
}

func (a PlacementAttrs) apply(p Placement) Placement {
	if a.VAlign != nil {
		p.VAlign = *a.VAlign
	}
	if a.VPosition != nil {
		p.VPosition = *a.VPosition
	}
	return p
}

// Node is one element of subtitle markup. Only the attribute group matching
// Kind is consulted. Text is the node's own character data, excluding that
// of its children.
type Node struct {
	Kind      NodeKind
	Style     StyleAttrs
	Timing    TimingAttrs
	Placement PlacementAttrs
	// SpotNumber is carried through for Subtitle nodes; it does not affect
	// flattening.
	SpotNumber int
	Text       string
	Children   []*Node
}

// NewFontNode returns a Font node that sets every style attribute.
func NewFontNode(s Style) *Node {
	n := &Node{Kind: FontNode}
	n.Style = StyleAttrs{
		Italic:       ptr(s.Italic),
		Colour:       ptr(s.Colour),
		Size:         ptr(s.Size),
		Effect:       ptr(s.Effect),
		EffectColour: ptr(s.EffectColour),
	}
	if s.Font != "" {
		n.Style.Font = ptr(s.Font)
	}
	return n
}

// NewSubtitleNode returns a Subtitle node that sets every timing attribute.
func NewSubtitleNode(t Timing) *Node {
	return &Node{
		Kind: SubtitleNode,
		Timing: TimingAttrs{
			In:       ptr(t.In),
			Out:      ptr(t.Out),
			FadeUp:   ptr(t.FadeUp),
			FadeDown: ptr(t.FadeDown),
		},
	}
}

// NewTextNode returns a Text node holding text at the given placement.
func NewTextNode(p Placement, text string) *Node {
	return &Node{
		Kind:      TextNode,
		Placement: PlacementAttrs{VAlign: ptr(p.VAlign), VPosition: ptr(p.VPosition)},
		Text:      text,
	}
}

func ptr[T any](v T) *T { return &v }
