// Package messaging publishes the tracker's domain events.
// Key components:
//   - NopPublisher: discards events (no broker configured)
//   - RecordingPublisher: keeps events in memory for tests and local inspection
//   - RedisPublisher / RedisSubscriber: JSON envelopes over Redis pub/sub
package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alem-hub/student-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrPublisherClosed is returned when publishing on a closed publisher.
	ErrPublisherClosed = errors.New("messaging: publisher is closed")

	// ErrNilEvent is returned when a nil event is published.
	ErrNilEvent = errors.New("messaging: event cannot be nil")
)

// ══════════════════════════════════════════════════════════════════════════════
// NOP PUBLISHER
// ══════════════════════════════════════════════════════════════════════════════

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements shared.EventPublisher.
func (NopPublisher) Publish(context.Context, shared.Event) error { return nil }

// ══════════════════════════════════════════════════════════════════════════════
// RECORDING PUBLISHER
// ══════════════════════════════════════════════════════════════════════════════

// RecordingPublisher stores published events in order.
// Err, when set, is returned from Publish after the event is recorded.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
	Err    error
}

// NewRecordingPublisher creates an empty RecordingPublisher.
func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

// Publish implements shared.EventPublisher.
func (p *RecordingPublisher) Publish(_ context.Context, event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.Err
}

// Events returns a copy of everything published so far.
func (p *RecordingPublisher) Events() []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.Event, len(p.events))
	copy(out, p.events)
	return out
}

// Types returns the types of the published events, in order.
func (p *RecordingPublisher) Types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

// Reset forgets all recorded events.
func (p *RecordingPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// Metrics counts publish attempts per event type.
type Metrics struct {
	mu        sync.RWMutex
	published map[shared.EventType]int64
	failed    map[shared.EventType]int64
	lastError time.Time
}

// NewMetrics creates an empty metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{
		published: make(map[shared.EventType]int64),
		failed:    make(map[shared.EventType]int64),
	}
}

// RecordPublish records the outcome of a publish attempt.
func (m *Metrics) RecordPublish(eventType shared.EventType, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if success {
		m.published[eventType]++
		return
	}
	m.failed[eventType]++
	m.lastError = time.Now()
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Published   int64     `json:"published"`
	Failed      int64     `json:"failed"`
	LastFailure time.Time `json:"last_failure,omitempty"`
}

// Snapshot returns the totals across all event types.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		Published:   sumCounts(m.published),
		Failed:      sumCounts(m.failed),
		LastFailure: m.lastError,
	}
}

// Published returns the successful publish count for one event type.
func (m *Metrics) Published(eventType shared.EventType) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.published[eventType]
}

func sumCounts(mp map[shared.EventType]int64) int64 {
	var sum int64
	for _, v := range mp {
		sum += v
	}
	return sum
}
