package canvas

import (
	"errors"
	"fmt"
	"sync"

	"github.com/weiawesome/live-canvas/internal/domain"
	"github.com/weiawesome/live-canvas/pkg/log"
)

// State is the pointer capture state.
type State int

const (
	Idle State = iota
	Drawing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Drawing:
		return "drawing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// EventKind is a pointer input kind.
type EventKind int

const (
	PointerDown EventKind = iota
	PointerMove
	PointerUp
)

// PointerEvent is one pointer input at a canvas position.
type PointerEvent struct {
	Kind  EventKind
	Point domain.Point
}

// PointerState is the capture state plus the last recorded point of the
// current stroke.
type PointerState struct {
	State   State
	Prev    domain.Point
	HasPrev bool
}

// Effect is a segment the capture produced; it is painted locally and sent
// to the relay.
type Effect struct {
	Segment domain.Segment
}

// Transition is the capture state machine. Pointer down starts a new stroke
// and records no point, even when the previous up was never seen; the first
// move after it only seeds the stroke. Every later move yields one
// segment from the previous point. Moves and ups while idle are ignored.
func Transition(s PointerState, ev PointerEvent, c domain.Color) (PointerState, []Effect) {
	switch ev.Kind {
	case PointerDown:
		return PointerState{State: Drawing}, nil

	case PointerMove:
		if s.State != Drawing {
			return s, nil
		}
		next := PointerState{State: Drawing, Prev: ev.Point, HasPrev: true}
		if !s.HasPrev {
			return next, nil
		}
		return next, []Effect{{Segment: domain.NewSegment(s.Prev, ev.Point, c)}}

	case PointerUp:
		if s.State != Drawing {
			return s, nil
		}
		return PointerState{State: Idle}, nil
	}
	return s, nil
}

// Painter draws on the local surface.
type Painter interface {
	DrawSegment(seg domain.Segment) error
	Clear() error
}

// Emitter sends locally produced events to the relay.
type Emitter interface {
	EmitSegment(seg domain.Segment) error
	EmitClear() error
}

// Capture turns pointer input into painted and emitted segments.
type Capture struct {
	mu      sync.Mutex
	state   PointerState
	color   domain.Color
	painter Painter
	emitter Emitter
}

// NewCapture starts idle with the default color.
func NewCapture(p Painter, e Emitter) *Capture {
	return &Capture{
		color:   domain.DefaultColor,
		painter: p,
		emitter: e,
	}
}

// SetColor selects the color used by segments emitted from now on.
func (c *Capture) SetColor(text string) error {
	col, err := domain.ParseColor(text)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.color = col
	c.mu.Unlock()
	return nil
}

// Color returns the selected color.
func (c *Capture) Color() domain.Color {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.color
}

// State returns the current pointer state.
func (c *Capture) State() PointerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Capture) PointerDown(x, y float64) error {
	return c.Handle(PointerEvent{Kind: PointerDown, Point: domain.Point{X: x, Y: y}})
}

func (c *Capture) PointerMove(x, y float64) error {
	return c.Handle(PointerEvent{Kind: PointerMove, Point: domain.Point{X: x, Y: y}})
}

func (c *Capture) PointerUp(x, y float64) error {
	return c.Handle(PointerEvent{Kind: PointerUp, Point: domain.Point{X: x, Y: y}})
}

// Handle advances the state machine and applies its effects: each segment is
// painted locally, then emitted.
func (c *Capture) Handle(ev PointerEvent) error {
	c.mu.Lock()
	next, effects := Transition(c.state, ev, c.color)
	c.state = next
	c.mu.Unlock()

	var errs []error
	for _, eff := range effects {
		if err := c.paint(eff.Segment); err != nil {
			errs = append(errs, err)
		}
		if err := c.emitter.EmitSegment(eff.Segment); err != nil {
			errs = append(errs, fmt.Errorf("emit segment: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Clear wipes the local surface and tells the relay. The pointer state is
// left as is.
func (c *Capture) Clear() error {
	var errs []error
	if err := c.painter.Clear(); err != nil {
		if !errors.Is(err, ErrSurfaceUnavailable) {
			errs = append(errs, fmt.Errorf("clear surface: %w", err))
		}
	}
	if err := c.emitter.EmitClear(); err != nil {
		errs = append(errs, fmt.Errorf("emit clear: %w", err))
	}
	return errors.Join(errs...)
}

// paint draws seg locally; a closed surface drops the segment.
func (c *Capture) paint(seg domain.Segment) error {
	err := c.painter.DrawSegment(seg)
	if errors.Is(err, ErrSurfaceUnavailable) {
		l := log.L()
		l.Debug().Msg("surface unavailable, local segment dropped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("paint segment: %w", err)
	}
	return nil
}
