package notification

import (
	"context"
	"sync"
)

const defaultSubscriptionBuffer = 8

// Subscription is one open live-update connection.
type Subscription struct {
	id        uint64
	accountID string
	ch        chan Message
}

// C yields messages for the subscribed account. It is closed when the subscription
// is closed or the hub shuts down.
func (s *Subscription) C() <-chan Message { return s.ch }

// Hub is the in-process registry of open live-update connections keyed by account.
// An account may hold several connections at once.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[uint64]*Subscription
	nextID uint64
	buffer int
	closed bool
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriptionBuffer
	}
	return &Hub{subs: make(map[string]map[uint64]*Subscription), buffer: buffer}
}

// Subscribe registers a new connection for accountID. After Shutdown the returned
// subscription is already closed.
func (h *Hub) Subscribe(accountID string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{id: h.nextID, accountID: accountID, ch: make(chan Message, h.buffer)}
	if h.closed {
		close(sub.ch)
		return sub
	}
	if h.subs[accountID] == nil {
		h.subs[accountID] = make(map[uint64]*Subscription)
	}
	h.subs[accountID][sub.id] = sub
	return sub
}

// Close removes the subscription. Calling it more than once is harmless.
func (h *Hub) Close(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.subs[sub.accountID]
	if !ok {
		return
	}
	if _, ok := conns[sub.id]; !ok {
		return
	}
	delete(conns, sub.id)
	close(sub.ch)
	if len(conns) == 0 {
		delete(h.subs, sub.accountID)
	}
}

// Send delivers message to every connection of message.Destination without blocking.
// Connections whose buffer is full miss this message.
func (h *Hub) Send(_ context.Context, message Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs[message.Destination] {
		select {
		case sub.ch <- message:
		default:
		}
	}
	return nil
}

// Connections reports how many connections accountID has open.
func (h *Hub) Connections(accountID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[accountID])
}

// Shutdown closes every subscription so stream writers return.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for accountID, conns := range h.subs {
		for _, sub := range conns {
			close(sub.ch)
		}
		delete(h.subs, accountID)
	}
}
