// Package sqlite is a journal.Journal backed by a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/ontoreason/pkg/ontoreason/internalerr"
	"github.com/cognicore/ontoreason/pkg/ontoreason/journal"
)

// DefaultRetention is the number of entries kept when no limit is given.
const DefaultRetention = 10000

// sqliteJournal implements journal.Journal using SQLite.
type sqliteJournal struct {
	db        *sql.DB
	retention int
}

// OpenSQLite opens (or creates) a journal database with WAL mode enabled.
// An optional retention limit bounds the number of kept entries.
func OpenSQLite(ctx context.Context, path string, retention ...int) (journal.Journal, error) {
	keep := DefaultRetention
	if len(retention) > 0 && retention[0] > 0 {
		keep = retention[0]
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w: %w", path, internalerr.ErrStoreUnavailable, err)
	}

	// one writer at a time; WAL lets readers proceed alongside it
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal %s: %w: %w", path, internalerr.ErrStoreUnavailable, err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteJournal{db: db, retention: keep}, nil
}

// Close closes the database connection
func (s *sqliteJournal) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS enrichments (
	id TEXT PRIMARY KEY,
	uri TEXT NOT NULL,
	text TEXT,
	asserted_type TEXT,
	confidence REAL NOT NULL DEFAULT 0,
	types TEXT NOT NULL DEFAULT '[]',
	triples TEXT NOT NULL DEFAULT '[]',
	violations INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_enrichments_uri ON enrichments(uri);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Record inserts or replaces an entry, then trims the oldest entries past
// the retention limit.
func (s *sqliteJournal) Record(ctx context.Context, r journal.Record) error {
	if r.ID == "" {
		return fmt.Errorf("sqlite journal: record without id: %w", internalerr.ErrInvalidInput)
	}
	types, err := json.Marshal(r.Types)
	if err != nil {
		return err
	}
	triples, err := json.Marshal(r.Triples)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO enrichments (id, uri, text, asserted_type, confidence, types, triples, violations, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	uri = excluded.uri,
	text = excluded.text,
	asserted_type = excluded.asserted_type,
	confidence = excluded.confidence,
	types = excluded.types,
	triples = excluded.triples,
	violations = excluded.violations,
	created_at = excluded.created_at`,
		r.ID, r.URI, r.Text, r.AssertedType, r.Confidence,
		string(types), string(triples), r.Violations,
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
DELETE FROM enrichments WHERE id NOT IN (
	SELECT id FROM enrichments ORDER BY id DESC LIMIT ?
)`, s.retention)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Recent returns up to n entries, newest first.
func (s *sqliteJournal) Recent(ctx context.Context, n int) ([]journal.Record, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, uri, text, asserted_type, confidence, types, triples, violations, created_at
FROM enrichments ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []journal.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns the entry with id.
func (s *sqliteJournal) Get(ctx context.Context, id string) (journal.Record, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, uri, text, asserted_type, confidence, types, triples, violations, created_at
FROM enrichments WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return journal.Record{}, fmt.Errorf("sqlite journal: %s: %w", id, internalerr.ErrNotFound)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (journal.Record, error) {
	var (
		r                     journal.Record
		text, assertedType    sql.NullString
		types, triples, stamp string
	)
	if err := sc.Scan(&r.ID, &r.URI, &text, &assertedType, &r.Confidence, &types, &triples, &r.Violations, &stamp); err != nil {
		return journal.Record{}, err
	}
	r.Text = text.String
	r.AssertedType = assertedType.String
	if err := json.Unmarshal([]byte(types), &r.Types); err != nil {
		return journal.Record{}, fmt.Errorf("decode types of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(triples), &r.Triples); err != nil {
		return journal.Record{}, fmt.Errorf("decode triples of %s: %w", r.ID, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return journal.Record{}, fmt.Errorf("decode created_at of %s: %w", r.ID, err)
	}
	r.CreatedAt = ts
	return r, nil
}
