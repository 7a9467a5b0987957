package signing

import (
	"fmt"
	"sync"
	"time"

	"github.com/ruteri/waas-signing-service/interfaces"
)

type ticketEntry struct {
	owner      interfaces.UserID
	updatedAt  time.Time
	event      *interfaces.SignEvent
	subscriber chan interfaces.SignEvent
}

// Hub routes the terminal event of each ticket to at most one subscriber.
//
// An event published before anyone subscribed is parked and handed to the
// first subscriber that arrives. Once an event has been delivered the ticket is
// forgotten. With a positive ttl, parked events and abandoned tickets older than
// ttl are dropped by Expire.
type Hub struct {
	mu      sync.Mutex
	tickets map[string]*ticketEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewHub creates an empty hub.
func NewHub(ttl time.Duration) *Hub {
	return &Hub{
		tickets: make(map[string]*ticketEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Open registers ticket so that its owner can subscribe before the event exists.
func (h *Hub) Open(ticket interfaces.Ticket) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.tickets[ticket.ID]; ok {
		return
	}
	h.tickets[ticket.ID] = &ticketEntry{owner: ticket.UserID, updatedAt: h.now()}
}

// Publish hands event to the waiting subscriber, or parks it until one arrives.
func (h *Hub) Publish(event interfaces.SignEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.tickets[event.Ticket]
	if !ok {
		entry = &ticketEntry{owner: event.UserID}
		h.tickets[event.Ticket] = entry
	}

	if entry.subscriber != nil {
		entry.subscriber <- event
		close(entry.subscriber)
		delete(h.tickets, event.Ticket)
		return
	}

	entry.event = &event
	entry.updatedAt = h.now()
}

// Subscribe waits for the event of ticketID, which must belong to userID.
//
// The returned channel yields exactly one event and is then closed. Calling
// cancel before that detaches the subscriber; a later event is parked again.
// A ticket admits one subscriber at a time.
func (h *Hub) Subscribe(userID interfaces.UserID, ticketID string) (<-chan interfaces.SignEvent, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.tickets[ticketID]
	if !ok || entry.owner != userID {
		return nil, nil, fmt.Errorf("ticket %q: %w", ticketID, interfaces.ErrTicketNotFound)
	}
	if entry.subscriber != nil {
		return nil, nil, fmt.Errorf("ticket %q: %w", ticketID, interfaces.ErrAlreadySubscribed)
	}

	ch := make(chan interfaces.SignEvent, 1)
	if entry.event != nil {
		ch <- *entry.event
		close(ch)
		delete(h.tickets, ticketID)
		return ch, func() {}, nil
	}

	entry.subscriber = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if current, ok := h.tickets[ticketID]; ok && current.subscriber == ch {
			current.subscriber = nil
			current.updatedAt = h.now()
		}
	}
	return ch, cancel, nil
}

// Expire drops tickets untouched for longer than the ttl that nobody is
// currently waiting on.
func (h *Hub) Expire(now time.Time) int {
	if h.ttl <= 0 {
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for id, entry := range h.tickets {
		if entry.subscriber == nil && now.Sub(entry.updatedAt) >= h.ttl {
			delete(h.tickets, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked tickets.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.tickets)
}
