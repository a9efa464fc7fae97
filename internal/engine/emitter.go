package engine

import (
	"log"
	"sync/atomic"
	"time"
)

// EventEmitter provides a simple, thread-safe way to emit engine
// events to a subscriber. It never blocks the coordination loop: a
// full channel drops the event after a short grace period.
type EventEmitter struct {
	events       chan EngineEvent
	droppedCount atomic.Uint64
}

// NewEventEmitter creates an EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events: make(chan EngineEvent, bufferSize),
	}
}

// Emit sends an event to the events channel. If the channel is full it
// tries briefly before dropping the event.
func (e *EventEmitter) Emit(event EngineEvent) {
	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
		return
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			log.Printf("[engine] WARNING: event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of dropped events.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events for subscribers.
func (e *EventEmitter) Events() <-chan EngineEvent {
	return e.events
}

// Close closes the events channel. Call only after the engine stopped.
func (e *EventEmitter) Close() {
	close(e.events)
}
