// Package notify defines the event sink the engine announces trigger
// activity to. A Begin event is emitted when a trigger starts being
// handled, a Trigger event carries the environment handed to the
// handler process, and an End event closes the cycle after the device
// has settled. The transport behind a sink (D-Bus, socket, message
// bus) is out of scope here; this package provides the interface plus
// a logging sink and a buffering sink for tests.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/buttond/buttond/pkg/telemetry"
)

// Kind is the event type.
type Kind string

// Event kinds emitted by the engine.
const (
	KindBegin   Kind = "begin"
	KindEnd     Kind = "end"
	KindTrigger Kind = "trigger"
)

// Event is one notification announced to other processes.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Kind is the event type.
	Kind Kind `json:"kind"`

	// Device is the name of the device the event concerns.
	Device string `json:"device"`

	// Env is the handler environment, present on Trigger events only.
	Env []string `json:"env,omitempty"`
}

// New builds an event with a fresh ID and timestamp.
func New(kind Kind, device string) Event {
	return Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Kind:      kind,
		Device:    device,
	}
}

// Sink receives engine events. Emit must be safe for concurrent use;
// workers call it from their own goroutines.
type Sink interface {
	Emit(event Event)
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(Event) {}

// LogSink writes events to the structured log.
type LogSink struct {
	logger *telemetry.Logger
}

// NewLogSink creates a sink logging through the given logger.
func NewLogSink(logger *telemetry.Logger) *LogSink {
	return &LogSink{logger: logger.NewComponentLogger("notify")}
}

// Emit logs the event.
func (s *LogSink) Emit(event Event) {
	log := s.logger.WithDevice(event.Device).WithField("event_id", event.ID)
	switch event.Kind {
	case KindTrigger:
		log.WithField("env_entries", len(event.Env)).Info("trigger")
	default:
		log.Info(string(event.Kind))
	}
}

// Buffer collects events in memory. It is the test-suite sink.
type Buffer struct {
	mu     sync.Mutex
	events []Event
}

// NewBuffer creates an empty buffering sink.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Emit appends the event.
func (b *Buffer) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

// Events returns a snapshot of everything emitted so far.
func (b *Buffer) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// ByKind returns the emitted events of one kind, in emission order.
func (b *Buffer) ByKind(kind Kind) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, e := range b.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Reset discards all collected events.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

// Multi fans events out to several sinks in order.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

type multiSink []Sink

func (m multiSink) Emit(event Event) {
	for _, s := range m {
		s.Emit(event)
	}
}
