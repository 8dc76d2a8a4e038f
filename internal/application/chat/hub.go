package chat

import (
	"sync"

	"github.com/google/uuid"

	"github.com/nutrisnap/v2/internal/domain/chat"
)

// Sink receives messages for one attached client connection.
type Sink interface {
	Deliver(message chat.Message) error
}

type hubKey struct {
	userID   uuid.UUID
	threadID uuid.UUID
}

type threadConns struct {
	// deliverMu serializes broadcasts per (user, thread) so a second
	// device always observes messages in finalization order.
	deliverMu sync.Mutex
	sinks     map[Sink]struct{}
}

// ConnectionHub tracks the live connections each user holds on each
// thread and fans finished assistant messages out to them.
type ConnectionHub struct {
	mu    sync.RWMutex
	conns map[hubKey]*threadConns
}

// NewConnectionHub creates an empty hub.
func NewConnectionHub() *ConnectionHub {
	return &ConnectionHub{conns: make(map[hubKey]*threadConns)}
}

// Register attaches a sink to a (user, thread) pair.
func (h *ConnectionHub) Register(userID, threadID uuid.UUID, sink Sink) {
	key := hubKey{userID: userID, threadID: threadID}
	h.mu.Lock()
	defer h.mu.Unlock()
	tc, ok := h.conns[key]
	if !ok {
		tc = &threadConns{sinks: make(map[Sink]struct{})}
		h.conns[key] = tc
	}
	tc.sinks[sink] = struct{}{}
}

// Unregister detaches a sink; the last sink removes the entry.
func (h *ConnectionHub) Unregister(userID, threadID uuid.UUID, sink Sink) {
	key := hubKey{userID: userID, threadID: threadID}
	h.mu.Lock()
	defer h.mu.Unlock()
	tc, ok := h.conns[key]
	if !ok {
		return
	}
	delete(tc.sinks, sink)
	if len(tc.sinks) == 0 {
		delete(h.conns, key)
	}
}

// Broadcast delivers a message to every sink on the thread except the
// originating one. Delivery errors are the sink owner's problem; a
// broken connection unregisters itself.
func (h *ConnectionHub) Broadcast(userID, threadID uuid.UUID, message chat.Message, except Sink) {
	key := hubKey{userID: userID, threadID: threadID}
	h.mu.RLock()
	tc, ok := h.conns[key]
	h.mu.RUnlock()
	if !ok {
		return
	}

	tc.deliverMu.Lock()
	defer tc.deliverMu.Unlock()
	h.mu.RLock()
	sinks := make([]Sink, 0, len(tc.sinks))
	for sink := range tc.sinks {
		if sink != except {
			sinks = append(sinks, sink)
		}
	}
	h.mu.RUnlock()
	for _, sink := range sinks {
		_ = sink.Deliver(message)
	}
}
