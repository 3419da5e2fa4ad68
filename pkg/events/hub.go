package events

import (
	"encoding/json"
	"sync"
)

const subscriberBuffer = 16

// EventHub fans out events to subscribers. A slow subscriber drops events
// instead of blocking the publisher.
type EventHub struct {
	mu   sync.RWMutex
	subs map[chan Event]map[string]struct{}
}

func NewEventHub() *EventHub { return &EventHub{subs: make(map[chan Event]map[string]struct{})} }

// Subscribe returns a channel that receives every event.
func (h *EventHub) Subscribe() chan Event {
	return h.subscribe(nil)
}

// SubscribeTo returns a channel that only receives the named events, so
// unrelated traffic cannot fill its buffer.
func (h *EventHub) SubscribeTo(names ...string) chan Event {
	filter := make(map[string]struct{}, len(names))
	for _, n := range names {
		filter[n] = struct{}{}
	}
	return h.subscribe(filter)
}

func (h *EventHub) subscribe(filter map[string]struct{}) chan Event {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = filter
	h.mu.Unlock()
	return ch
}

func (h *EventHub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Subscribers returns the number of active subscriptions.
func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *EventHub) Publish(name string, payload any) {
	if h == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := Event{Name: name, Data: b}
	h.mu.RLock()
	for ch, filter := range h.subs {
		if filter != nil {
			if _, ok := filter[name]; !ok {
				continue
			}
		}
		select {
		case ch <- msg:
		default:
		}
	}
	h.mu.RUnlock()
}
