package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/covenantlabs/covenant/pkg/contracts"

	_ "github.com/lib/pq"
)

// PostgresJournal persists events to Postgres.
type PostgresJournal struct {
	db *sql.DB
}

// NewPostgresJournal wraps an open database handle.
func NewPostgresJournal(db *sql.DB) *PostgresJournal {
	return &PostgresJournal{db: db}
}

// OpenPostgresJournal connects to Postgres and ensures the schema.
func OpenPostgresJournal(dsn string) (*PostgresJournal, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	j := NewPostgresJournal(db)
	if err := j.Init(context.Background()); err != nil {
		return nil, err
	}
	return j, nil
}

const pgEventsSchema = `
CREATE TABLE IF NOT EXISTS events (
	event_id BIGINT PRIMARY KEY,
	contract_id BIGINT NOT NULL,
	event_type TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	created_by TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '',
	related_principal TEXT,
	related_value BIGINT,
	entry_hash TEXT NOT NULL,
	prev_hash TEXT NOT NULL
);
`

// Init creates the events table if missing.
func (j *PostgresJournal) Init(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, pgEventsSchema)
	return err
}

// Append implements Journal.
func (j *PostgresJournal) Append(ctx context.Context, ev contracts.Event) error {
	query := `
		INSERT INTO events (event_id, contract_id, event_type, created_at,
			created_by, metadata, related_principal, related_value,
			entry_hash, prev_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	var relPrincipal sql.NullString
	if ev.RelatedPrincipal != nil {
		relPrincipal = sql.NullString{String: string(*ev.RelatedPrincipal), Valid: true}
	}
	var relValue sql.NullInt64
	if ev.RelatedValue != nil {
		relValue = sql.NullInt64{Int64: int64(*ev.RelatedValue), Valid: true}
	}

	_, err := j.db.ExecContext(ctx, query,
		ev.ID, uint64(ev.ContractID), string(ev.Type), uint64(ev.CreatedAt),
		string(ev.CreatedBy), ev.Metadata, relPrincipal, relValue,
		ev.EntryHash, ev.PrevHash,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Replay implements Journal.
func (j *PostgresJournal) Replay(ctx context.Context) ([]contracts.Event, error) {
	query := `SELECT event_id, contract_id, event_type, created_at, created_by,
		metadata, related_principal, related_value, entry_hash, prev_hash
	FROM events ORDER BY event_id ASC`

	rows, err := j.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanEvents(rows)
}

// Close closes the underlying database handle.
func (j *PostgresJournal) Close() error {
	return j.db.Close()
}
