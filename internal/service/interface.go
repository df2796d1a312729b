package service

import (
	"context"

	"github.com/weiawesome/live-canvas/internal/domain"
	"github.com/weiawesome/live-canvas/internal/hub"
	"github.com/weiawesome/live-canvas/pkg/pubsub"
)

// RelayService is the relay's reaction to session lifecycle and inbound events.
type RelayService interface {
	OnSessionOpen(ctx context.Context, s hub.Session) error
	OnSessionClose(ctx context.Context, s hub.Session)
	OnSegment(ctx context.Context, s hub.Session, seg domain.Segment) error
	OnClear(ctx context.Context, s hub.Session) error

	// OnRemoteEvent fans out an event published by another relay instance.
	OnRemoteEvent(ctx context.Context, event *pubsub.Event) error

	InstanceID() string
	SessionCount() int
}
