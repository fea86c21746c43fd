// Package events defines the structured observability records emitted
// by the deduplication engine during a run. Events are advisory: sinks
// may drop or fail without affecting the run's outcome.
package events

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event that occurred during a run.
type EventType string

const (
	// EventTypeRunStarted indicates a deduplication run began
	EventTypeRunStarted EventType = "run_started"
	// EventTypePhaseCompleted indicates a driver phase finished
	EventTypePhaseCompleted EventType = "phase_completed"
	// EventTypeBucketOverflow indicates bucket-cap exclusions occurred
	EventTypeBucketOverflow EventType = "bucket_overflow"
	// EventTypeRunCompleted indicates a run finished and its output was committed
	EventTypeRunCompleted EventType = "run_completed"
	// EventTypeConfigRejected indicates a run was aborted before ingestion
	EventTypeConfigRejected EventType = "config_rejected"
)

// EventSeverity indicates the importance of an event
type EventSeverity string

const (
	SeverityInfo    EventSeverity = "info"
	SeverityWarning EventSeverity = "warning"
	SeverityError   EventSeverity = "error"
)

// Event is one observability record tied to a run.
type Event struct {
	// ID is the unique identifier for this event
	ID string `json:"id"`
	// RunID is the run this event belongs to
	RunID string `json:"run_id"`
	// Type is the type of event
	Type EventType `json:"type"`
	// Severity is the severity level of this event
	Severity EventSeverity `json:"severity"`
	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`
	// Message is a human-readable description of the event
	Message string `json:"message"`
	// Data contains structured, type-specific data (must be JSON-serializable)
	Data map[string]interface{} `json:"data,omitempty"`
}

// New creates an Event with a fresh id and the current time.
func New(runID string, eventType EventType, severity EventSeverity, message string, data map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		RunID:     runID,
		Type:      eventType,
		Severity:  severity,
		Timestamp: time.Now(),
		Message:   message,
		Data:      data,
	}
}

// Sink receives events as they are emitted.
type Sink interface {
	Record(ctx context.Context, event *Event) error
}

// LogSink writes events to the standard logger.
type LogSink struct{}

// Record logs the event. Never fails.
func (LogSink) Record(_ context.Context, event *Event) error {
	log.Printf("[%s] %s: %s", event.Severity, event.Type, event.Message)
	return nil
}

// MemorySink collects events in memory, primarily for tests.
type MemorySink struct {
	mu     sync.Mutex
	events []*Event
}

// Record appends the event.
func (s *MemorySink) Record(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a snapshot of recorded events.
func (s *MemorySink) Events() []*Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByType returns recorded events of one type.
func (s *MemorySink) ByType(eventType EventType) []*Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Event
	for _, e := range s.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
