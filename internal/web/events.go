package web

import (
	"sync"
	"time"
)

// Event is one entry on the change feed. Rows in ai_actions and
// execution_receipts are announced here so the console can refresh
// without polling.
type Event struct {
	Event          string    `json:"event"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Data           any       `json:"data"`
	TS             time.Time `json:"ts"`
}

// EventHub fans events out to SSE subscribers. Subscribing with an
// empty conversation id receives everything.
type EventHub struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan Event
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[string]map[int]chan Event)}
}

func (h *EventHub) Subscribe(conversationID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[string]map[int]chan Event)
	}
	if h.subs[conversationID] == nil {
		h.subs[conversationID] = make(map[int]chan Event)
	}
	id := h.nextID
	h.nextID++
	ch := make(chan Event, 8)
	h.subs[conversationID][id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.subs == nil {
			return
		}
		if subs, ok := h.subs[conversationID]; ok {
			if sub, ok := subs[id]; ok {
				delete(subs, id)
				close(sub)
			}
			if len(subs) == 0 {
				delete(h.subs, conversationID)
			}
		}
	}
	return ch, cancel
}

func (h *EventHub) Publish(ev Event, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		return
	}
	if subs, ok := h.subs[conversationID]; ok {
		for _, ch := range subs {
			select {
			case ch <- ev:
			default:
			}
		}
	}
	if conversationID != "" {
		if subs, ok := h.subs[""]; ok {
			for _, ch := range subs {
				select {
				case ch <- ev:
				default:
				}
			}
		}
	}
}
