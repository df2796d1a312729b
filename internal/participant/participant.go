package participant

import (
	"context"

	"github.com/weiawesome/live-canvas/internal/canvas"
)

// Participant bundles a relay connection, the local surface and the input
// capture feeding both.
type Participant struct {
	Conn     *Conn
	Renderer *canvas.Renderer
	Capture  *canvas.Capture
}

// Join dials the relay and prepares a blank surface.
func Join(ctx context.Context, url string, opts canvas.Options) (*Participant, error) {
	r, err := canvas.NewRenderer(opts)
	if err != nil {
		return nil, err
	}

	conn, err := Dial(ctx, url)
	if err != nil {
		r.Close()
		return nil, err
	}

	return &Participant{
		Conn:     conn,
		Renderer: r,
		Capture:  canvas.NewCapture(r, conn),
	}, nil
}

// Run applies relayed events to the local surface until ctx is done or the
// connection drops.
func (p *Participant) Run(ctx context.Context) error {
	return p.Conn.Run(ctx, p.Renderer)
}

// Close disconnects and releases the surface.
func (p *Participant) Close() error {
	err := p.Conn.Close()
	p.Renderer.Close()
	return err
}
