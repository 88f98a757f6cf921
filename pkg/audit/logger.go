// Package audit mirrors committed engine events to an external sink as
// structured JSON lines. The event log remains the canonical trail; this
// logger exists for operators tailing a process or shipping lines to a log
// collector.
package audit

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/covenantlabs/covenant/pkg/contracts"
	"github.com/covenantlabs/covenant/pkg/eventlog"
)

// Record is one emitted audit line.
type Record struct {
	RecordID  string          `json:"record_id"`
	EmittedAt time.Time       `json:"emitted_at"`
	Event     contracts.Event `json:"event"`
}

// Logger writes audit records to a configurable writer.
type Logger struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewLogger creates a Logger writing to os.Stdout.
func NewLogger() *Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter creates a Logger writing to the given writer.
// This allows injection for testing and custom sinks.
func NewLoggerWithWriter(w io.Writer) *Logger {
	if w == nil {
		w = os.Stdout
	}
	return &Logger{writer: w}
}

// Record emits one audit line for the event.
func (l *Logger) Record(ev contracts.Event) error {
	rec := Record{
		RecordID:  uuid.New().String(),
		EmittedAt: time.Now().UTC(),
		Event:     ev,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	// Prefix with AUDIT: for easy filtering
	_, err = l.writer.Write(append([]byte("AUDIT: "), append(raw, '\n')...))
	return err
}

// Attach subscribes the logger to every event the log commits.
func (l *Logger) Attach(log *eventlog.Log) {
	log.AddHandler(func(ev contracts.Event) {
		_ = l.Record(ev)
	})
}
