// Package store provides durable sinks for the audit event log. The engine
// is authoritative in memory; a Journal receives every committed event and
// can replay them for export or inspection. A failed journal append aborts
// the enclosing engine operation.
package store

import (
	"context"

	"github.com/covenantlabs/covenant/pkg/contracts"
)

// Journal is an append-only durable sink for audit events.
type Journal interface {
	// Append persists one event. The engine calls this exactly once per
	// committed mutation; an error causes the whole operation to be
	// discarded.
	Append(ctx context.Context, ev contracts.Event) error

	// Replay returns all persisted events in append order.
	Replay(ctx context.Context) ([]contracts.Event, error)
}
