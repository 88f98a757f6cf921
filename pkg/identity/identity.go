// Package identity supplies the acting principal and logical timestamp for
// each engine operation. Identity is always an explicit parameter threaded
// through the call, never an ambient global, so tests can supply arbitrary
// callers deterministically.
package identity

import (
	"sync/atomic"

	"github.com/covenantlabs/covenant/pkg/contracts"
)

// Operation carries the immutable inputs of a single engine operation: who
// is acting and at what logical instant. Both are fixed when the operation
// enters the engine and must not be re-read mid-operation.
type Operation struct {
	Caller contracts.Principal
	Now    contracts.LogicalTime
}

// Source produces the Operation context for the next engine call.
type Source interface {
	Current() Operation
}

// LogicalClock is a process-wide monotonic logical time source. Each Tick
// returns a value strictly greater than every previous one.
type LogicalClock struct {
	last atomic.Uint64
}

// NewLogicalClock returns a clock starting at 0.
func NewLogicalClock() *LogicalClock {
	return &LogicalClock{}
}

// Tick advances the clock and returns the new logical time.
func (c *LogicalClock) Tick() contracts.LogicalTime {
	return contracts.LogicalTime(c.last.Add(1))
}

// Now returns the current logical time without advancing it.
func (c *LogicalClock) Now() contracts.LogicalTime {
	return contracts.LogicalTime(c.last.Load())
}

// ClockSource binds a principal to a LogicalClock, yielding a fresh
// timestamp per operation. Useful for collaborators that own their clock.
type ClockSource struct {
	Caller contracts.Principal
	Clock  *LogicalClock
}

// Current implements Source.
func (s ClockSource) Current() Operation {
	return Operation{Caller: s.Caller, Now: s.Clock.Tick()}
}
