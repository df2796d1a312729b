package service

import (
	"context"
	"fmt"

	"github.com/weiawesome/live-canvas/internal/audit"
	"github.com/weiawesome/live-canvas/internal/domain"
	"github.com/weiawesome/live-canvas/internal/hub"
	"github.com/weiawesome/live-canvas/pkg/log"
	"github.com/weiawesome/live-canvas/pkg/pubsub"
)

type relayService struct {
	hub        *hub.Hub
	publisher  pubsub.Publisher // nil for a single-process relay
	board      string
	instanceID string
}

// NewRelayService wires the hub to an optional cluster bus. publisher may be nil.
func NewRelayService(h *hub.Hub, publisher pubsub.Publisher, board, instanceID string) RelayService {
	return &relayService{
		hub:        h,
		publisher:  publisher,
		board:      board,
		instanceID: instanceID,
	}
}

func (s *relayService) InstanceID() string { return s.instanceID }

func (s *relayService) SessionCount() int { return s.hub.SessionCount() }

func (s *relayService) OnSessionOpen(ctx context.Context, sess hub.Session) error {
	if err := s.hub.Register(sess); err != nil {
		return fmt.Errorf("register session: %w", err)
	}
	audit.Log(ctx, audit.ActionSessionOpen, sess.ID(), "session opened")
	return nil
}

func (s *relayService) OnSessionClose(ctx context.Context, sess hub.Session) {
	s.hub.Unregister(sess)
	audit.Log(ctx, audit.ActionSessionClose, sess.ID(), "session closed")
}

// OnSegment relays seg as a receive frame to every session, the sender included.
func (s *relayService) OnSegment(ctx context.Context, sess hub.Session, seg domain.Segment) error {
	data, err := domain.EncodeReceive(seg)
	if err != nil {
		return err
	}
	if err := s.hub.Broadcast(data); err != nil {
		return fmt.Errorf("broadcast segment: %w", err)
	}

	s.publish(ctx, pubsub.EventSegment, data)
	return nil
}

// OnClear relays a clear frame to every session, the sender included.
func (s *relayService) OnClear(ctx context.Context, sess hub.Session) error {
	data := domain.EncodeType(domain.MsgTypeClear)
	if err := s.hub.Broadcast(data); err != nil {
		return fmt.Errorf("broadcast clear: %w", err)
	}

	audit.LogWithDetail(ctx, audit.ActionClear, sess.ID(), s.board, "board cleared")
	s.publish(ctx, pubsub.EventClear, data)
	return nil
}

func (s *relayService) OnRemoteEvent(ctx context.Context, event *pubsub.Event) error {
	if event.Origin == s.instanceID || event.Board != s.board {
		return nil
	}

	frame, err := domain.DecodeFrame(event.Payload)
	if err != nil {
		return err
	}
	if frame.Type != domain.MsgTypeReceive && frame.Type != domain.MsgTypeClear {
		return fmt.Errorf("%w: %q is not relayable", domain.ErrMalformedEvent, frame.Type)
	}

	return s.hub.Broadcast([]byte(event.Payload))
}

// publish forwards a locally relayed frame to the other instances. Bus
// failures never affect local fan-out.
func (s *relayService) publish(ctx context.Context, eventType string, data []byte) {
	if s.publisher == nil {
		return
	}

	event := pubsub.NewEvent(eventType, s.board, s.instanceID, data)
	if err := s.publisher.Publish(ctx, pubsub.BoardChannel(s.board), event); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldBoard, s.board).Str(log.FieldEventType, eventType).Msg("bus publish failed")
	}
}
