package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	subscriberBuffer = 16
	sseHeartbeat     = 30 * time.Second
)

// Event is a message pushed to the subscribers of a schematic.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// subscriber is a single SSE or WebSocket connection.
type subscriber struct {
	ch          chan Event
	schematicID string
}

// Broadcaster fans events out to subscribers grouped by schematic.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[*subscriber]struct{}),
	}
}

// Subscribe adds a subscriber for a schematic and returns it.
func (b *Broadcaster) Subscribe(schematicID string) *subscriber {
	sub := &subscriber{
		ch:          make(chan Event, subscriberBuffer),
		schematicID: schematicID,
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. It is safe to call twice.
func (b *Broadcaster) Unsubscribe(sub *subscriber) {
	b.mu.Lock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
	b.mu.Unlock()
}

// Publish sends evt to every subscriber of a schematic. Subscribers whose
// buffer is full miss the event.
func (b *Broadcaster) Publish(schematicID string, evt Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for sub := range b.subs {
		if sub.schematicID != schematicID {
			continue
		}
		select {
		case sub.ch <- evt:
			delivered++
		default:
		}
	}
	return delivered
}

// subscriberCount returns the number of subscribers of a schematic.
func (b *Broadcaster) subscriberCount(schematicID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for sub := range b.subs {
		if sub.schematicID == schematicID {
			n++
		}
	}
	return n
}

// ServeSSE streams the events of a schematic until the client goes away.
// initial, when non-nil, is sent first.
func (b *Broadcaster) ServeSSE(w http.ResponseWriter, r *http.Request, schematicID string, initial *Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := b.Subscribe(schematicID)
	defer b.Unsubscribe(sub)

	if initial != nil {
		writeSSE(w, *initial)
		flusher.Flush()
	}

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-sub.ch:
			if !ok {
				return
			}
			writeSSE(w, evt)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
}
