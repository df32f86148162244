// internal/models/card.go
package models

import "fmt"

// Color is a card's suit color. ColorWild is only ever printed on wild faces.
type Color string

const (
	ColorRed    Color = "red"
	ColorGreen  Color = "green"
	ColorBlue   Color = "blue"
	ColorYellow Color = "yellow"
	ColorWild   Color = "wild"
)

// Colors lists the four concrete colors in catalogue order.
var Colors = []Color{ColorRed, ColorGreen, ColorBlue, ColorYellow}

// IsConcrete reports whether c is one of the four playable colors.
func (c Color) IsConcrete() bool {
	switch c {
	case ColorRed, ColorGreen, ColorBlue, ColorYellow:
		return true
	}
	return false
}

// Face is the printed value of a card: "0".."9", or one of the action/wild faces.
type Face string

const (
	FaceSkip    Face = "skip"
	FaceReverse Face = "reverse"
	FaceDraw2   Face = "draw2"
	FaceWild    Face = "wild"
	FaceWild4   Face = "wild4"
)

// NumberFace returns the face for a digit 0-9.
func NumberFace(n int) Face {
	return Face(fmt.Sprintf("%d", n))
}

// Number returns the numeric value of a digit face and false for any other face.
func (f Face) Number() (int, bool) {
	if len(f) != 1 || f[0] < '0' || f[0] > '9' {
		return 0, false
	}
	return int(f[0] - '0'), true
}

// IsWild reports whether the face is wild or wild4.
func (f Face) IsWild() bool {
	return f == FaceWild || f == FaceWild4
}

// IsPenalty reports whether the face adds to the pending draw stack.
func (f Face) IsPenalty() bool {
	return f == FaceDraw2 || f == FaceWild4
}

// CardKind classifies a card into one of its three variants.
type CardKind int

const (
	KindNumbered CardKind = iota
	KindAction
	KindWild
)

func (k CardKind) String() string {
	switch k {
	case KindNumbered:
		return "numbered"
	case KindAction:
		return "action"
	case KindWild:
		return "wild"
	}
	return "unknown"
}

// Card is one physical card of the 108-card deck.
// Color is the printed color and never changes. Chosen is only meaningful for
// wild faces and is set through BindColor once the card has been played.
type Card struct {
	ID     int   `json:"id"`
	Color  Color `json:"color"`
	Face   Face  `json:"face"`
	Points int   `json:"points"`
	Chosen Color `json:"chosen_color,omitempty"`
}

// Kind derives the variant from the face, never from the color.
func (c Card) Kind() CardKind {
	switch {
	case c.Face.IsWild():
		return KindWild
	case c.Face == FaceSkip || c.Face == FaceReverse || c.Face == FaceDraw2:
		return KindAction
	default:
		return KindNumbered
	}
}

// IsWild reports whether the card is a wild variant.
func (c Card) IsWild() bool {
	return c.Kind() == KindWild
}

// SuitColor is the color the card currently counts as: the chosen color for a
// bound wild, the printed color otherwise.
func (c Card) SuitColor() Color {
	if c.IsWild() && c.Chosen != "" {
		return c.Chosen
	}
	return c.Color
}

// BindColor records the color chosen when a wild card is played.
func (c *Card) BindColor(color Color) error {
	if !c.IsWild() {
		return fmt.Errorf("card %d (%s %s) is not wild, its color is fixed", c.ID, c.Color, c.Face)
	}
	if !color.IsConcrete() {
		return fmt.Errorf("cannot bind wild card %d to color %q", c.ID, color)
	}
	c.Chosen = color
	return nil
}

func (c Card) String() string {
	if c.IsWild() {
		if c.Chosen != "" {
			return fmt.Sprintf("[%s] (set to %s)", c.Face, c.Chosen)
		}
		return fmt.Sprintf("[%s]", c.Face)
	}
	return fmt.Sprintf("%s %s", c.Color, c.Face)
}
