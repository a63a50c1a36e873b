// Package events provides the desktop-facing event bus.
//
// The companion service does not render anything itself; it republishes
// normalized notifications (mobile connected, control events, auto-import
// progress, data changes) for the desktop layer to consume. Subscribers
// receive events on buffered channels; slow subscribers have events dropped
// rather than blocking publishers.
package events

import (
	"log"
	"sync"
)

// subscriberBufferSize is the per-subscriber channel buffer. It absorbs
// bursts (a phone mashing the controls) without blocking the gateway's
// read loop. If a subscriber falls further behind, events are dropped.
const subscriberBufferSize = 256

// Event is implemented by every notification published on the bus.
type Event interface {
	// EventName returns the stable name consumers switch on
	// (e.g., "mobile-connected", "mobile-control").
	EventName() string
}

// MobileConnected is published when a phone completes a handshake,
// either over the WebSocket or via the legacy POST /api/connect route.
type MobileConnected struct {
	SessionID string `json:"sessionId"`
	ImageID   string `json:"imageId"`
}

// EventName implements Event.
func (MobileConnected) EventName() string { return "mobile-connected" }

// MobileControl is a normalized control event from a phone.
// Exactly one of Direction, ActionType, EmoteType is set, matching Type.
type MobileControl struct {
	Type       string `json:"type"` // "move", "action" or "emote"
	Direction  string `json:"direction,omitempty"`
	ActionType string `json:"actionType,omitempty"`
	EmoteType  string `json:"emoteType,omitempty"`
	ImageID    string `json:"imageId,omitempty"`
}

// EventName implements Event.
func (MobileControl) EventName() string { return "mobile-control" }

// AutoImportStarted is published when the folder watcher picks up a new file.
type AutoImportStarted struct {
	ImageID      string `json:"imageId"`
	OriginalPath string `json:"originalPath"`
}

// EventName implements Event.
func (AutoImportStarted) EventName() string { return "auto-import-started" }

// AutoImportComplete is published when an auto-imported file has been
// stored in the workspace and registered in the metadata store.
type AutoImportComplete struct {
	ImageID       string `json:"imageId"`
	OriginalPath  string `json:"originalPath"`
	ProcessedPath string `json:"processedPath"`
}

// EventName implements Event.
func (AutoImportComplete) EventName() string { return "auto-import-complete" }

// AutoImportError is published when an auto-import attempt fails.
type AutoImportError struct {
	ImageID string `json:"imageId"`
	Error   string `json:"error"`
}

// EventName implements Event.
func (AutoImportError) EventName() string { return "auto-import-error" }

// DataChanged is published when workspace metadata changes
// (image added/removed), so gallery views can refresh.
type DataChanged struct {
	Kind    string `json:"kind"` // "image-added", "image-deleted"
	ImageID string `json:"imageId"`
}

// EventName implements Event.
func (DataChanged) EventName() string { return "data-changed" }

// Bus fans events out to all current subscribers.
// The zero value is not usable; call NewBus.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber and returns its receive channel
// together with a cancel function. Cancel is idempotent and closes the
// channel, so consumers can range over it.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBufferSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Publish delivers ev to every subscriber without blocking.
// Slow subscribers have the event dropped with a warning, matching how
// the gateway treats slow WebSocket clients.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("events: subscriber buffer full, dropping %s", ev.EventName())
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
// Publish after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
