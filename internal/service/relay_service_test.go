package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/live-canvas/internal/domain"
	"github.com/weiawesome/live-canvas/internal/hub"
	"github.com/weiawesome/live-canvas/pkg/pubsub"
)

type recordingSession struct {
	id   string
	mu   sync.Mutex
	msgs [][]byte
}

func (r *recordingSession) ID() string { return r.id }

func (r *recordingSession) Send(message []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, message)
	return nil
}

func (r *recordingSession) Close() {}

func (r *recordingSession) frames() []domain.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Frame, 0, len(r.msgs))
	for _, m := range r.msgs {
		f, err := domain.DecodeFrame(m)
		if err == nil {
			out = append(out, f)
		}
	}
	return out
}

type fakePublisher struct {
	mu      sync.Mutex
	events  []*pubsub.Event
	channel string
	err     error
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, event *pubsub.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channel = channel
	p.events = append(p.events, event)
	return p.err
}

func (p *fakePublisher) published() []*pubsub.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*pubsub.Event(nil), p.events...)
}

func newTestService(t *testing.T, pub pubsub.Publisher) (RelayService, *hub.Hub) {
	t.Helper()
	h := hub.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})
	return NewRelayService(h, pub, "default", "instance-a"), h
}

func openSessions(t *testing.T, svc RelayService, ids ...string) []*recordingSession {
	t.Helper()
	out := make([]*recordingSession, len(ids))
	for i, id := range ids {
		out[i] = &recordingSession{id: id}
		require.NoError(t, svc.OnSessionOpen(context.Background(), out[i]))
	}
	require.Eventually(t, func() bool { return svc.SessionCount() == len(ids) }, time.Second, 5*time.Millisecond)
	return out
}

func TestSegmentScenario(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	sessions := openSessions(t, svc, "A", "B", "C")
	a, b, c := sessions[0], sessions[1], sessions[2]

	seg := domain.Segment{PrevX: 10, PrevY: 10, X: 20, Y: 20, Color: "#ff0000"}
	require.NoError(t, svc.OnSegment(ctx, a, seg))

	for _, s := range sessions {
		s := s
		require.Eventually(t, func() bool { return len(s.frames()) == 1 }, time.Second, 5*time.Millisecond)
		f := s.frames()[0]
		assert.Equal(t, domain.MsgTypeReceive, f.Type)
		assert.Equal(t, seg, f.Segment)
	}

	require.NoError(t, svc.OnClear(ctx, b))
	for _, s := range sessions {
		s := s
		require.Eventually(t, func() bool { return len(s.frames()) == 2 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, domain.MsgTypeClear, s.frames()[1].Type)
	}

	svc.OnSessionClose(ctx, c)
	require.Eventually(t, func() bool { return svc.SessionCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, svc.OnSegment(ctx, a, domain.Segment{X: 1, Y: 1, Color: "blue"}))
	for _, s := range []*recordingSession{a, b} {
		s := s
		require.Eventually(t, func() bool { return len(s.frames()) == 3 }, time.Second, 5*time.Millisecond)
	}
	assert.Len(t, c.frames(), 2)
}

func TestOnSegmentPublishesToBus(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newTestService(t, pub)
	sessions := openSessions(t, svc, "A")

	seg := domain.Segment{PrevX: 1, PrevY: 2, X: 3, Y: 4, Color: "green"}
	require.NoError(t, svc.OnSegment(context.Background(), sessions[0], seg))
	require.NoError(t, svc.OnClear(context.Background(), sessions[0]))

	events := pub.published()
	require.Len(t, events, 2)
	assert.Equal(t, pubsub.BoardChannel("default"), pub.channel)
	assert.Equal(t, pubsub.EventSegment, events[0].Type)
	assert.Equal(t, "instance-a", events[0].Origin)
	assert.Equal(t, pubsub.EventClear, events[1].Type)

	f, err := domain.DecodeFrame(events[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, seg, f.Segment)
}

func TestBusFailureDoesNotAffectLocalFanOut(t *testing.T) {
	pub := &fakePublisher{err: errors.New("redis down")}
	svc, _ := newTestService(t, pub)
	sessions := openSessions(t, svc, "A", "B")

	require.NoError(t, svc.OnClear(context.Background(), sessions[0]))
	for _, s := range sessions {
		s := s
		require.Eventually(t, func() bool { return len(s.frames()) == 1 }, time.Second, 5*time.Millisecond)
	}
}

func TestOnRemoteEvent(t *testing.T) {
	svc, _ := newTestService(t, nil)
	sessions := openSessions(t, svc, "A")
	ctx := context.Background()

	payload, err := domain.EncodeReceive(domain.Segment{PrevX: 5, PrevY: 5, X: 6, Y: 6, Color: "red"})
	require.NoError(t, err)

	// Own events were already fanned out locally.
	require.NoError(t, svc.OnRemoteEvent(ctx, pubsub.NewEvent(pubsub.EventSegment, "default", "instance-a", payload)))
	// Other boards are not ours.
	require.NoError(t, svc.OnRemoteEvent(ctx, pubsub.NewEvent(pubsub.EventSegment, "other", "instance-b", payload)))
	// Garbage is rejected.
	err = svc.OnRemoteEvent(ctx, pubsub.NewEvent(pubsub.EventSegment, "default", "instance-b", []byte(`{"type":"draw"}`)))
	assert.ErrorIs(t, err, domain.ErrMalformedEvent)

	require.NoError(t, svc.OnRemoteEvent(ctx, pubsub.NewEvent(pubsub.EventSegment, "default", "instance-b", payload)))

	require.Eventually(t, func() bool { return len(sessions[0].frames()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.MsgTypeReceive, sessions[0].frames()[0].Type)

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, sessions[0].frames(), 1)
}
