package realtime

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kiko-poker/backend/internal/models"
)

// DefaultSubscriberBuffer is how many events a subscriber may fall behind before it is dropped.
const DefaultSubscriberBuffer = 64

// Mirror receives a copy of every published event. It must not block.
type Mirror interface {
	Mirror(ev models.Event)
}

// Subscription is one registered output channel for a session.
type Subscription struct {
	ID        string
	SessionID models.SessionID

	ch  chan models.Event
	err error // written before ch is closed
}

// C delivers the session's events in publish order. It is closed when the
// subscription ends.
func (s *Subscription) C() <-chan models.Event { return s.ch }

// Err explains why C was closed: nil after Unsubscribe, ErrResourceExhausted when
// the subscriber fell behind, ErrNotFound when the session was purged.
// Only meaningful once C is closed.
func (s *Subscription) Err() error { return s.err }

// Hub maintains session_id -> set of subscriptions and fans events out to them.
// The hub lock only guards the topic map; each topic has its own lock.
type Hub struct {
	mu     sync.RWMutex
	topics map[models.SessionID]*topic

	buffer int
	mirror Mirror
	logger *zap.Logger
	active atomic.Int64
}

type topic struct {
	mu   sync.Mutex
	subs map[string]*Subscription
}

// NewHub creates a hub whose subscribers buffer up to buffer events. mirror may be nil.
func NewHub(buffer int, mirror Mirror, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		topics: make(map[models.SessionID]*topic),
		buffer: buffer,
		mirror: mirror,
		logger: logger,
	}
}

// Subscribe registers a new output channel for sessionID. The session does not
// have to exist yet; nothing is delivered until something is published for it.
func (h *Hub) Subscribe(sessionID models.SessionID) *Subscription {
	sub := &Subscription{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		ch:        make(chan models.Event, h.buffer),
	}
	h.mu.Lock()
	t, ok := h.topics[sessionID]
	if !ok {
		t = &topic{subs: make(map[string]*Subscription)}
		h.topics[sessionID] = t
	}
	t.mu.Lock()
	t.subs[sub.ID] = sub
	t.mu.Unlock()
	h.mu.Unlock()

	h.active.Add(1)
	h.logger.Debug("subscribed",
		zap.String("session_id", sessionID.String()),
		zap.String("subscription_id", sub.ID),
	)
	return sub
}

// Unsubscribe removes sub and closes its channel. Calling it again is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[sub.SessionID]
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	h.removeLocked(t, sub, nil)
	if len(t.subs) == 0 {
		delete(h.topics, sub.SessionID)
	}
}

// Publish delivers ev to every subscriber of ev.SessionID without blocking. A
// subscriber whose buffer is full is dropped so it cannot stall the others.
func (h *Hub) Publish(ev models.Event) {
	h.mu.RLock()
	t, ok := h.topics[ev.SessionID]
	if ok {
		t.mu.Lock()
	}
	h.mu.RUnlock()

	if ok {
		for _, sub := range t.subs {
			select {
			case sub.ch <- ev:
			default:
				h.removeLocked(t, sub, fmt.Errorf("subscriber %s fell behind: %w", sub.ID, models.ErrResourceExhausted))
				h.logger.Warn("dropped slow subscriber",
					zap.String("session_id", ev.SessionID.String()),
					zap.String("subscription_id", sub.ID),
				)
			}
		}
		t.mu.Unlock()
	}

	if h.mirror != nil {
		h.mirror.Mirror(ev)
	}
}

// Close drops every subscriber of a session that no longer exists.
func (h *Hub) Close(sessionID models.SessionID) {
	h.mu.Lock()
	t, ok := h.topics[sessionID]
	delete(h.topics, sessionID)
	h.mu.Unlock()
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sub := range t.subs {
		h.removeLocked(t, sub, fmt.Errorf("session %s: %w", sessionID, models.ErrNotFound))
	}
}

// SubscriberCount returns the number of subscribers of one session.
func (h *Hub) SubscriberCount(sessionID models.SessionID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.topics[sessionID]
	if !ok {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// ConnectionCount returns the number of live subscriptions across all sessions.
func (h *Hub) ConnectionCount() int {
	return int(h.active.Load())
}

// removeLocked must be called with t.mu held.
func (h *Hub) removeLocked(t *topic, sub *Subscription, reason error) bool {
	if _, ok := t.subs[sub.ID]; !ok {
		return false
	}
	delete(t.subs, sub.ID)
	sub.err = reason
	close(sub.ch)
	h.active.Add(-1)
	return true
}
