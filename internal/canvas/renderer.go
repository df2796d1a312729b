package canvas

import (
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/gogpu/gg"

	"github.com/weiawesome/live-canvas/internal/domain"
)

// ErrSurfaceUnavailable is returned once the renderer has been closed.
var ErrSurfaceUnavailable = errors.New("render surface unavailable")

// Defaults match the shared board every participant draws on.
const (
	DefaultWidth      = 800
	DefaultHeight     = 600
	DefaultLineWidth  = 5.0
	DefaultBackground = domain.Color("white")
)

type Options struct {
	Width      int
	Height     int
	LineWidth  float64
	Background domain.Color
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.LineWidth <= 0 {
		o.LineWidth = DefaultLineWidth
	}
	if o.Background == "" {
		o.Background = DefaultBackground
	}
	return o
}

// Renderer paints segments onto a raster surface. Calls are serialized;
// remote events and local input may arrive on different goroutines.
type Renderer struct {
	mu         sync.Mutex
	dc         *gg.Context
	background gg.RGBA
	lineWidth  float64
	closed     bool
}

// NewRenderer creates a surface filled with the background color.
func NewRenderer(opts Options) (*Renderer, error) {
	opts = opts.withDefaults()

	bg, err := domain.ParseColor(string(opts.Background))
	if err != nil {
		return nil, fmt.Errorf("background: %w", err)
	}

	r := &Renderer{
		dc:         gg.NewContext(opts.Width, opts.Height),
		background: gg.FromColor(bg.RGBA()),
		lineWidth:  opts.LineWidth,
	}
	r.dc.SetLineCap(gg.LineCapRound)
	r.dc.SetLineJoin(gg.LineJoinRound)
	r.dc.SetLineWidth(r.lineWidth)
	r.dc.ClearWithColor(r.background)
	return r, nil
}

// DrawSegment strokes a solid line from (PrevX, PrevY) to (X, Y) in the
// segment's color with round caps and joins.
func (r *Renderer) DrawSegment(seg domain.Segment) error {
	if err := seg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrSurfaceUnavailable
	}

	r.dc.SetColor(seg.Color.RGBA())
	r.dc.SetLineWidth(r.lineWidth)
	r.dc.DrawLine(seg.PrevX, seg.PrevY, seg.X, seg.Y)
	if err := r.dc.Stroke(); err != nil {
		return fmt.Errorf("stroke segment: %w", err)
	}
	return nil
}

// Clear resets the whole surface to the background color.
func (r *Renderer) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrSurfaceUnavailable
	}
	r.dc.ClearPath()
	r.dc.ClearWithColor(r.background)
	return nil
}

// Image returns a copy of the surface.
func (r *Renderer) Image() (*image.RGBA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrSurfaceUnavailable
	}
	_ = r.dc.FlushGPU()
	img, ok := r.dc.Image().(*image.RGBA)
	if !ok {
		return nil, errors.New("unexpected surface image type")
	}
	return img, nil
}

// EncodePNG writes the surface as PNG.
func (r *Renderer) EncodePNG(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrSurfaceUnavailable
	}
	_ = r.dc.FlushGPU()
	return r.dc.EncodePNG(w)
}

// Size returns the surface dimensions.
func (r *Renderer) Size() (width, height int) {
	return r.dc.Width(), r.dc.Height()
}

// Close releases the surface. Later calls fail with ErrSurfaceUnavailable.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.dc.Close()
}
