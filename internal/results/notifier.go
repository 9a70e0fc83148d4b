package results

import (
	"context"
	"sync"
)

// Notifier fans out "document changed" signals per user.
type Notifier interface {
	Publish(ctx context.Context, userID string) error
	// Subscribe returns a channel that receives a signal after each change for userID.
	// Signals coalesce: a slow reader sees at least one pending signal, not one per change.
	// The returned func releases the subscription.
	Subscribe(userID string) (<-chan struct{}, func())
}

// Hub is the in-process Notifier.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan struct{}]struct{})}
}

// Publish signals every subscriber of userID without blocking.
func (h *Hub) Publish(_ context.Context, userID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[userID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (h *Hub) Subscribe(userID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[chan struct{}]struct{})
		h.subs[userID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[userID], ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
		})
	}
}

// Subscribers returns the number of open subscriptions for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

var _ Notifier = (*Hub)(nil)
