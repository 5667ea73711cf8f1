package services

import (
	"sync"
	"time"

	"av-sentinel/backend/system"

	"github.com/google/uuid"
)

// Diagnostic describes a failed background operation, carrying enough
// context to replay it by hand: the collection path, the operation kind
// and the payload that was attempted.
type Diagnostic struct {
	ID        string      `json:"id"`
	At        time.Time   `json:"at"`
	Path      string      `json:"path"`
	Operation string      `json:"operation"`
	Message   string      `json:"message"`
	Payload   interface{} `json:"payload,omitempty"`
}

const diagnosticsRetention = 100

// DiagnosticsBus is a one-way in-process queue for out-of-band failure
// reporting. Producers enqueue and move on; a single consumer drains the
// queue, logs each entry and retains a bounded ring for the API.
// Publishing never blocks a detection path.
type DiagnosticsBus struct {
	ch   chan Diagnostic
	done chan struct{}

	mu     sync.RWMutex
	recent []Diagnostic
}

// NewDiagnosticsBus creates the bus and starts its consumer.
func NewDiagnosticsBus() *DiagnosticsBus {
	b := &DiagnosticsBus{
		ch:   make(chan Diagnostic, 64),
		done: make(chan struct{}),
	}
	go b.consume()
	return b
}

// Publish enqueues a diagnostic. If the queue is full the entry is
// dropped with a log line rather than blocking the producer.
func (b *DiagnosticsBus) Publish(d Diagnostic) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.At.IsZero() {
		d.At = time.Now()
	}

	select {
	case b.ch <- d:
	default:
		system.Warn("diagnostics queue full, dropping entry for %s %s", d.Operation, d.Path)
	}
}

func (b *DiagnosticsBus) consume() {
	for {
		select {
		case d := <-b.ch:
			system.Error("background %s on %s failed: %s", d.Operation, d.Path, d.Message)

			b.mu.Lock()
			b.recent = append([]Diagnostic{d}, b.recent...)
			if len(b.recent) > diagnosticsRetention {
				b.recent = b.recent[:diagnosticsRetention]
			}
			b.mu.Unlock()
		case <-b.done:
			return
		}
	}
}

// Recent returns a copy of the retained diagnostics, newest first.
func (b *DiagnosticsBus) Recent() []Diagnostic {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Diagnostic, len(b.recent))
	copy(out, b.recent)
	return out
}

// Close stops the consumer.
func (b *DiagnosticsBus) Close() {
	close(b.done)
}
