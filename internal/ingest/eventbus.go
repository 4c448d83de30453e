package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/snarg/lectern/internal/metrics"
)

// Event is one server-sent event: a per-transcript sync outcome or a batch
// report. ID is monotonic within a process and doubles as the SSE event id,
// so a reconnecting client can resume with Last-Event-ID.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Outcome   string          `json:"outcome,omitempty"`
	Filename  string          `json:"filename,omitempty"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// EventFilter restricts a subscription. The zero value matches everything.
// Types accepts plain event types ("transcript", "sync") or compound
// "type:outcome" entries ("transcript:updated"). Files matches filename
// stems; events without a filename pass through a file filter.
type EventFilter struct {
	Types []string
	Files []string
}

// EventBus provides pub-sub event distribution for SSE subscribers.
// It maintains a ring buffer for replay on reconnect.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[uint64]subscriber
	nextID      uint64
	seq         atomic.Uint64

	ring     []Event
	ringSize int
	ringHead int
	ringMu   sync.RWMutex
}

type subscriber struct {
	ch     chan Event
	filter EventFilter
}

// NewEventBus creates an event bus with the given ring buffer size.
func NewEventBus(ringSize int) *EventBus {
	return &EventBus{
		subscribers: make(map[uint64]subscriber),
		ring:        make([]Event, ringSize),
		ringSize:    ringSize,
	}
}

// Subscribe registers a new subscriber and returns a channel and cancel function.
func (eb *EventBus) Subscribe(filter EventFilter) (<-chan Event, func()) {
	eb.mu.Lock()
	id := eb.nextID
	eb.nextID++
	ch := make(chan Event, 64)
	eb.subscribers[id] = subscriber{ch: ch, filter: filter}
	eb.mu.Unlock()

	cancel := func() {
		eb.mu.Lock()
		delete(eb.subscribers, id)
		eb.mu.Unlock()
	}
	return ch, cancel
}

// Subscribers returns the number of live subscriptions.
func (eb *EventBus) Subscribers() int {
	if eb == nil {
		return 0
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

// ReplaySince returns buffered events since the given event ID. An empty or
// unknown lastEventID replays everything still in the ring, so a client that
// fell behind the buffer doesn't silently miss the rest.
func (eb *EventBus) ReplaySince(lastEventID string, filter EventFilter) []Event {
	eb.ringMu.RLock()
	defer eb.ringMu.RUnlock()

	var events []Event
	found := lastEventID == ""

	for i := 0; i < eb.ringSize; i++ {
		idx := (eb.ringHead + i) % eb.ringSize
		e := eb.ring[idx]
		if e.ID == "" {
			continue
		}
		if !found {
			if e.ID == lastEventID {
				found = true
			}
			continue
		}
		if matchesFilter(e, filter) {
			events = append(events, e)
		}
	}
	if !found && lastEventID != "" {
		return eb.replayAllLocked(filter)
	}
	return events
}

func (eb *EventBus) replayAllLocked(filter EventFilter) []Event {
	var events []Event
	for i := 0; i < eb.ringSize; i++ {
		idx := (eb.ringHead + i) % eb.ringSize
		e := eb.ring[idx]
		if e.ID != "" && matchesFilter(e, filter) {
			events = append(events, e)
		}
	}
	return events
}

// EventData holds the fields needed to publish an event.
type EventData struct {
	Type     string
	Outcome  string
	Filename string
	Payload  any
}

// Publish sends an event to all matching subscribers and adds it to the
// ring buffer. Publishing on a nil bus is a no-op, so callers without
// listeners don't need a guard.
func (eb *EventBus) Publish(e EventData) {
	if eb == nil {
		return
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return
	}

	seq := eb.seq.Add(1)
	event := Event{
		ID:        fmt.Sprintf("%d-%d", time.Now().UnixMilli(), seq),
		Type:      e.Type,
		Outcome:   e.Outcome,
		Filename:  e.Filename,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}

	eb.ringMu.Lock()
	eb.ring[eb.ringHead] = event
	eb.ringHead = (eb.ringHead + 1) % eb.ringSize
	eb.ringMu.Unlock()

	metrics.SSEEventsPublishedTotal.Inc()

	eb.mu.RLock()
	for _, sub := range eb.subscribers {
		if matchesFilter(event, sub.filter) {
			select {
			case sub.ch <- event:
			default:
				// Drop if subscriber is slow
			}
		}
	}
	eb.mu.RUnlock()
}

func matchesFilter(e Event, f EventFilter) bool {
	if len(f.Types) > 0 {
		match := false
		for _, t := range f.Types {
			t = strings.TrimSpace(t)
			if base, outcome, ok := strings.Cut(t, ":"); ok {
				// Compound filter: "transcript:updated" matches type + outcome
				if base == e.Type && outcome == e.Outcome {
					match = true
					break
				}
			} else {
				if t == e.Type {
					match = true
					break
				}
			}
		}
		if !match {
			return false
		}
	}
	if len(f.Files) > 0 && e.Filename != "" {
		match := false
		for _, name := range f.Files {
			if name == e.Filename {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}
