package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DefaultListenBuffer is the delivery buffer used by Listen when the caller
// passes a non-positive size.
const DefaultListenBuffer = 8

// Sender delivers a message to whatever is listening in a tab. Delivery is
// best-effort: there is no acknowledgement, retry or queueing.
type Sender interface {
	SendToTab(ctx context.Context, tab TabID, msg Message)
}

// subscriber is a single delivery channel registered for a tab.
type subscriber struct {
	id           string
	deliveryChan chan<- Message
}

// Hub fans push messages out to the listeners of each tab.
//
// Sends never block. A message to a tab without listeners is dropped, and a
// listener whose buffer is full misses it.
type Hub struct {
	mu   sync.RWMutex
	tabs map[TabID][]subscriber
	log  *slog.Logger
}

var _ Sender = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}

	return &Hub{
		tabs: make(map[TabID][]subscriber),
		log:  log.With("component", "notify"),
	}
}

// Subscribe registers ch under id for tab. Subscribing the same id twice is
// a no-op.
func (h *Hub) Subscribe(tab TabID, id string, ch chan<- Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.tabs[tab]
	for _, s := range subs {
		if s.id == id {
			return
		}
	}

	h.tabs[tab] = append(subs, subscriber{id: id, deliveryChan: ch})
}

// Unsubscribe removes the subscriber id from tab. It reports whether the
// subscriber was registered.
func (h *Hub) Unsubscribe(tab TabID, id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.removeLocked(tab, id)
}

func (h *Hub) removeLocked(tab TabID, id string) bool {
	subs := h.tabs[tab]
	for i, s := range subs {
		if s.id != id {
			continue
		}

		subs = append(subs[:i:i], subs[i+1:]...)
		if len(subs) == 0 {
			delete(h.tabs, tab)
		} else {
			h.tabs[tab] = subs
		}

		return true
	}

	return false
}

// Listen subscribes a fresh buffered channel to tab. The returned function
// unsubscribes and closes the channel; it is safe to call more than once.
func (h *Hub) Listen(tab TabID, buffer int) (<-chan Message, func()) {
	if buffer <= 0 {
		buffer = DefaultListenBuffer
	}

	id := uuid.NewString()
	ch := make(chan Message, buffer)
	h.Subscribe(tab, id, ch)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()

			h.removeLocked(tab, id)
			close(ch)
		})
	}

	return ch, cancel
}

// Notify offers msg to every listener of tab without blocking and returns
// how many accepted it.
func (h *Hub) Notify(tab TabID, msg Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, s := range h.tabs[tab] {
		select {
		case s.deliveryChan <- msg:
			delivered++
		default:
		}
	}

	return delivered
}

// SendToTab implements Sender.
func (h *Hub) SendToTab(ctx context.Context, tab TabID, msg Message) {
	delivered := h.Notify(tab, msg)

	h.log.DebugContext(ctx, "Push message sent", "tab", int64(tab),
		"type", msg.Type, "delivered", delivered)
}

// SubscriberCount returns the number of listeners attached to tab.
func (h *Hub) SubscriberCount(tab TabID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.tabs[tab])
}

// TotalSubscribers returns the number of listeners across all tabs.
func (h *Hub) TotalSubscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, subs := range h.tabs {
		total += len(subs)
	}

	return total
}
