package bus

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/live-canvas/pkg/log"
	"github.com/weiawesome/live-canvas/pkg/pubsub"
)

// Handler receives events published by relay instances.
type Handler interface {
	OnRemoteEvent(ctx context.Context, event *pubsub.Event) error
}

// errStreamClosed is returned when the driver closes the event stream.
var errStreamClosed = errors.New("bus stream closed")

// Subscriber feeds board events from the bus into the local relay.
type Subscriber struct {
	sub            pubsub.Subscriber
	pattern        string
	handler        Handler
	reconnectDelay time.Duration
	doneCh         chan struct{}
}

// NewSubscriber creates a subscriber for every board channel.
func NewSubscriber(sub pubsub.Subscriber, handler Handler) *Subscriber {
	return &Subscriber{
		sub:            sub,
		pattern:        pubsub.PatternBoardEvents,
		handler:        handler,
		reconnectDelay: 2 * time.Second,
		doneCh:         make(chan struct{}),
	}
}

// Done returns a channel that is closed when Run() exits.
func (s *Subscriber) Done() <-chan struct{} { return s.doneCh }

// Run subscribes and dispatches events until ctx is done. Resubscribes when
// the stream fails.
func (s *Subscriber) Run(ctx context.Context) {
	defer close(s.doneCh)
	l := log.L()

	for {
		err := s.runSubscription(ctx)
		if ctx.Err() != nil {
			return
		}
		l.Warn().Err(err).Dur("retry_in", s.reconnectDelay).Msg("bus subscription error, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *Subscriber) runSubscription(ctx context.Context) error {
	events, err := s.sub.SubscribePattern(ctx, s.pattern)
	if err != nil {
		return err
	}
	defer s.sub.Unsubscribe(context.Background(), s.pattern)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return errStreamClosed
			}
			s.handleEvent(ctx, event)
		}
	}
}

func (s *Subscriber) handleEvent(ctx context.Context, event *pubsub.Event) {
	if err := s.handler.OnRemoteEvent(ctx, event); err != nil {
		l := log.L()
		l.Debug().Err(err).Str(log.FieldBoard, event.Board).Str(log.FieldInstanceID, event.Origin).Msg("bus: dropped event")
	}
}
