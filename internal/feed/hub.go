// Package feed fans out full capsule snapshots to an owner's subscribers.
//
// Each delivery is a complete snapshot that replaces whatever the subscriber
// held before. A slow subscriber never blocks a publisher: an undelivered
// snapshot is overwritten by the next one.
package feed

import (
	"sync"

	"github.com/atinyakov/chronos/internal/models"
)

// Hub routes snapshots by owner.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscription receives snapshots for one owner on C.
type Subscription struct {
	hub     *Hub
	ownerID string
	ch      chan []models.Capsule
	once    sync.Once
	// C is closed by Unsubscribe.
	C <-chan []models.Capsule
}

// Subscribe registers a new subscriber for ownerID.
func (h *Hub) Subscribe(ownerID string) *Subscription {
	ch := make(chan []models.Capsule, 1)
	s := &Subscription{hub: h, ownerID: ownerID, ch: ch, C: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[ownerID] == nil {
		h.subs[ownerID] = make(map[*Subscription]struct{})
	}
	h.subs[ownerID][s] = struct{}{}
	return s
}

// Publish delivers snapshot to every subscriber of ownerID, replacing any
// snapshot they have not consumed yet.
func (h *Hub) Publish(ownerID string, snapshot []models.Capsule) {
	snapshot = normalize(snapshot)

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[ownerID] {
		s.offer(snapshot)
	}
}

// Subscribers returns the number of live subscriptions for ownerID.
func (h *Hub) Subscribers(ownerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[ownerID])
}

// Unsubscribe stops delivery and closes C. Safe to call repeatedly and on a
// nil subscription.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		defer h.mu.Unlock()
		if set := h.subs[s.ownerID]; set != nil {
			delete(set, s)
			if len(set) == 0 {
				delete(h.subs, s.ownerID)
			}
		}
		close(s.ch)
	})
}

// offer must be called with the hub lock held.
func (s *Subscription) offer(snapshot []models.Capsule) {
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snapshot
}

// Offer delivers snapshot to this subscription only.
func (s *Subscription) Offer(snapshot []models.Capsule) {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, live := h.subs[s.ownerID][s]; live {
		s.offer(normalize(snapshot))
	}
}

func normalize(snapshot []models.Capsule) []models.Capsule {
	out := make([]models.Capsule, len(snapshot))
	for i, c := range snapshot {
		c.Attachments = models.NormalizeAttachments(c.Attachments)
		out[i] = c
	}
	return out
}
