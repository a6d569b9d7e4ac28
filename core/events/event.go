package events

import (
	"sync"

	"creditguild/core/types"
)

// Event represents a structured state change emitted by the protocol.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (HTTP feed, logs).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer holds the events of an operation that has not committed yet. Engines
// emit into a Buffer and the caller flushes it only after the state
// transaction committed, so rejected operations never leak events.
type Buffer struct {
	pending []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.pending = append(b.pending, evt)
}

// Len reports the number of buffered events.
func (b *Buffer) Len() int { return len(b.pending) }

// Events returns the buffered events in emission order.
func (b *Buffer) Events() []Event {
	out := make([]Event, len(b.pending))
	copy(out, b.pending)
	return out
}

// Flush forwards every buffered event to dst and clears the buffer.
func (b *Buffer) Flush(dst Emitter) {
	if dst != nil {
		for _, evt := range b.pending {
			dst.Emit(evt)
		}
	}
	b.pending = nil
}

// Reset drops every buffered event.
func (b *Buffer) Reset() { b.pending = nil }

// Ring keeps the most recent flattened events in memory for polling clients.
type Ring struct {
	mu    sync.Mutex
	limit int
	seq   uint64
	items []Record
}

// Record is a flattened event tagged with its position in the feed.
type Record struct {
	Sequence uint64       `json:"sequence"`
	Event    *types.Event `json:"event"`
}

// NewRing creates a ring retaining at most limit events.
func NewRing(limit int) *Ring {
	if limit <= 0 {
		limit = 1024
	}
	return &Ring{limit: limit}
}

// Emit implements the Emitter interface.
func (r *Ring) Emit(evt Event) {
	if evt == nil {
		return
	}
	flat := evt.Event()
	if flat == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.items = append(r.items, Record{Sequence: r.seq, Event: flat})
	if over := len(r.items) - r.limit; over > 0 {
		r.items = append([]Record(nil), r.items[over:]...)
	}
}

// Since returns the retained records with a sequence strictly greater than
// after, oldest first.
func (r *Ring) Since(after uint64) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0, len(r.items))
	for _, rec := range r.items {
		if rec.Sequence > after {
			out = append(out, rec)
		}
	}
	return out
}

// Multi fans events out to several emitters.
type Multi []Emitter

// Emit implements the Emitter interface.
func (m Multi) Emit(evt Event) {
	for _, dst := range m {
		if dst != nil {
			dst.Emit(evt)
		}
	}
}
