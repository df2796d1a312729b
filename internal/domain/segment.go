package domain

import (
	"fmt"
	"math"
)

// Point is a canvas coordinate in pixels.
type Point struct {
	X float64
	Y float64
}

// Segment is one straight piece of a stroke, from the previous pointer
// position to the current one.
type Segment struct {
	PrevX float64
	PrevY float64
	X     float64
	Y     float64
	Color Color
}

// NewSegment builds the segment from prev to cur.
func NewSegment(prev, cur Point, c Color) Segment {
	return Segment{PrevX: prev.X, PrevY: prev.Y, X: cur.X, Y: cur.Y, Color: c}
}

// From returns the start point.
func (s Segment) From() Point { return Point{X: s.PrevX, Y: s.PrevY} }

// To returns the end point.
func (s Segment) To() Point { return Point{X: s.X, Y: s.Y} }

// Validate checks that every coordinate is finite and the color parses.
func (s Segment) Validate() error {
	for _, v := range []float64{s.PrevX, s.PrevY, s.X, s.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite coordinate", ErrMalformedEvent)
		}
	}
	if !s.Color.Valid() {
		return fmt.Errorf("%w: %w", ErrMalformedEvent, ErrInvalidColor)
	}
	return nil
}
