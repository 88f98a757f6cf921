package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/covenantlabs/covenant/pkg/contracts"

	_ "modernc.org/sqlite"
)

// SQLiteJournal persists events to a SQLite database.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal wraps db and ensures the events table exists.
func NewSQLiteJournal(db *sql.DB) (*SQLiteJournal, error) {
	j := &SQLiteJournal{db: db}
	if err := j.migrate(); err != nil {
		return nil, err
	}
	return j, nil
}

// OpenSQLiteJournal opens (or creates) a SQLite database at path.
func OpenSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return NewSQLiteJournal(db)
}

func (j *SQLiteJournal) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS events (
		event_id INTEGER PRIMARY KEY,
		contract_id INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		created_by TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '',
		related_principal TEXT,
		related_value INTEGER,
		entry_hash TEXT NOT NULL,
		prev_hash TEXT NOT NULL
	);`
	_, err := j.db.ExecContext(context.Background(), query)
	return err
}

// Append implements Journal.
func (j *SQLiteJournal) Append(ctx context.Context, ev contracts.Event) error {
	query := `INSERT INTO events (
		event_id, contract_id, event_type, created_at, created_by,
		metadata, related_principal, related_value, entry_hash, prev_hash
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

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
func (j *SQLiteJournal) Replay(ctx context.Context) ([]contracts.Event, error) {
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
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func scanEvents(rows *sql.Rows) ([]contracts.Event, error) {
	events := make([]contracts.Event, 0)
	for rows.Next() {
		var (
			ev           contracts.Event
			contractID   uint64
			eventType    string
			createdAt    uint64
			createdBy    string
			relPrincipal sql.NullString
			relValue     sql.NullInt64
		)
		if err := rows.Scan(&ev.ID, &contractID, &eventType, &createdAt,
			&createdBy, &ev.Metadata, &relPrincipal, &relValue,
			&ev.EntryHash, &ev.PrevHash); err != nil {
			return nil, err
		}
		ev.ContractID = contracts.ContractID(contractID)
		ev.Type = contracts.EventType(eventType)
		ev.CreatedAt = contracts.LogicalTime(createdAt)
		ev.CreatedBy = contracts.Principal(createdBy)
		if relPrincipal.Valid {
			p := contracts.Principal(relPrincipal.String)
			ev.RelatedPrincipal = &p
		}
		if relValue.Valid {
			v := uint64(relValue.Int64)
			ev.RelatedValue = &v
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
