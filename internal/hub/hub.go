package hub

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/weiawesome/live-canvas/pkg/log"
)

// ErrHubStopped is returned when the run loop has exited.
var ErrHubStopped = errors.New("hub stopped")

// Session is one connected participant as seen by the hub.
type Session interface {
	ID() string
	// Send enqueues an encoded frame. It must not block.
	Send(message []byte) error
	// Close releases the session's outbound side. Called once by the hub
	// when the session leaves the active set.
	Close()
}

// Hub owns the active session set and fans every broadcast out to all of
// it. A single Run goroutine performs membership changes and fan-out, so the
// delivery loop of one event never interleaves with another.
type Hub struct {
	sessions   map[string]Session
	register   chan Session
	unregister chan Session
	broadcast  chan []byte
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		sessions:   make(map[string]Session),
		register:   make(chan Session),
		unregister: make(chan Session),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is done. On exit
// every remaining session is closed.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for id, s := range h.sessions {
			delete(h.sessions, id)
			s.Close()
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case s := <-h.register:
			h.mu.Lock()
			if old, ok := h.sessions[s.ID()]; ok && old != s {
				old.Close()
			}
			h.sessions[s.ID()] = s
			n := len(h.sessions)
			h.mu.Unlock()
			l := log.L()
			l.Debug().Str(log.FieldSessionID, s.ID()).Int(log.FieldSessions, n).Msg("session registered")

		case s := <-h.unregister:
			h.remove(s)

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

// fanOut delivers msg to every session. A failing session is reaped after
// the loop and never stops delivery to the others.
func (h *Hub) fanOut(msg []byte) {
	var failed []Session

	h.mu.RLock()
	for _, s := range h.sessions {
		if err := s.Send(msg); err != nil {
			l := log.L()
			l.Warn().Err(err).Str(log.FieldSessionID, s.ID()).Msg("send failed, dropping session")
			failed = append(failed, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range failed {
		h.remove(s)
	}
}

func (h *Hub) remove(s Session) {
	h.mu.Lock()
	current, ok := h.sessions[s.ID()]
	if ok && current == s {
		delete(h.sessions, s.ID())
	}
	n := len(h.sessions)
	h.mu.Unlock()

	if ok && current == s {
		s.Close()
		l := log.L()
		l.Debug().Str(log.FieldSessionID, s.ID()).Int(log.FieldSessions, n).Msg("session unregistered")
	}
}

// Register adds a session to the active set.
func (h *Hub) Register(s Session) error {
	select {
	case h.register <- s:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// Unregister removes a session. Unknown or already removed sessions are ignored.
func (h *Hub) Unregister(s Session) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// Broadcast queues msg for delivery to every session, the sender included.
// The bytes are delivered unchanged; callers must not modify msg afterwards.
func (h *Hub) Broadcast(msg []byte) error {
	select {
	case h.broadcast <- msg:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// Done is closed when Run has returned.
func (h *Hub) Done() <-chan struct{} { return h.done }

// SessionCount returns the number of active sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// SessionIDs returns the active session ids in sorted order.
func (h *Hub) SessionIDs() []string {
	h.mu.RLock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	sort.Strings(ids)
	return ids
}
