package participant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weiawesome/live-canvas/internal/canvas"
	"github.com/weiawesome/live-canvas/internal/domain"
	"github.com/weiawesome/live-canvas/pkg/log"
)

// ErrClosed is returned by emits after Close.
var ErrClosed = errors.New("participant connection closed")

const defaultWriteWait = 10 * time.Second

// Conn is the participant side of a relay session. It implements
// canvas.Emitter; writes are serialized because gorilla connections allow a
// single concurrent writer.
type Conn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	writeWait time.Duration
	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to a relay websocket endpoint such as ws://host:4000/ws.
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", url, err)
	}
	return &Conn{
		ws:        ws,
		writeWait: defaultWriteWait,
		closed:    make(chan struct{}),
	}, nil
}

func (c *Conn) write(data []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// EmitSegment sends a draw frame.
func (c *Conn) EmitSegment(seg domain.Segment) error {
	data, err := domain.EncodeDraw(seg)
	if err != nil {
		return err
	}
	return c.write(data)
}

// EmitClear sends a clear frame.
func (c *Conn) EmitClear() error {
	return c.write(domain.EncodeType(domain.MsgTypeClear))
}

// Ping sends an application keepalive; the relay answers with pong.
func (c *Conn) Ping() error {
	return c.write(domain.EncodeType(domain.MsgTypePing))
}

// Run applies relayed events to p until the connection closes or ctx is
// done. Malformed frames are skipped; a closed surface drops the event.
func (c *Conn) Run(ctx context.Context, p canvas.Painter) error {
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	l := log.Ctx(ctx)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			select {
			case <-c.closed:
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read relay: %w", err)
		}

		frame, err := domain.DecodeFrame(data)
		if err != nil {
			l.Debug().Err(err).Msg("dropping malformed relay frame")
			continue
		}

		switch frame.Type {
		case domain.MsgTypeReceive:
			err = p.DrawSegment(frame.Segment)
		case domain.MsgTypeClear:
			err = p.Clear()
		case domain.MsgTypePong:
		default:
			l.Debug().Str(log.FieldEventType, frame.Type).Msg("ignoring relay frame")
		}
		if errors.Is(err, canvas.ErrSurfaceUnavailable) {
			l.Debug().Str(log.FieldEventType, frame.Type).Msg("surface unavailable, event dropped")
		} else if err != nil {
			l.Warn().Err(err).Str(log.FieldEventType, frame.Type).Msg("failed to apply relay frame")
		}
	}
}

// Close sends a close frame and shuts the connection.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}
