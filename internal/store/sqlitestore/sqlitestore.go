// Package sqlitestore keeps documents as JSON rows in SQLite and enforces the
// registration and payment uniqueness rules with partial unique indexes.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"club-events/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (collection, id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_participation_active
	ON documents (json_extract(data, '$.eventId'), json_extract(data, '$.userId'))
	WHERE collection = 'participations' AND json_extract(data, '$.status') <> 'cancelled';

CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_participation
	ON documents (json_extract(data, '$.participationId'))
	WHERE collection = 'payments';
`

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Store struct {
	db *sql.DB
}

var _ store.DocumentStore = (*Store)(nil)

// Open opens (or creates) the database at dsn and applies the schema.
// A single connection is used so ":memory:" databases behave as one store.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	s, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection and applies the schema.
// PRE: db is a valid SQLite connection
// POST: documents table and uniqueness indexes exist
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Get(ctx context.Context, collection, id string) (store.Doc, error) {
	return getDoc(ctx, s.db, collection, id)
}

// List returns matching documents ordered by id.
func (s *Store) List(ctx context.Context, collection string, filters ...store.Filter) ([]store.Doc, error) {
	query := "SELECT data FROM documents WHERE collection = ?"
	args := []any{collection}
	for _, f := range filters {
		if !fieldName.MatchString(f.Field) {
			return nil, fmt.Errorf("invalid filter field %q", f.Field)
		}
		query += " AND json_extract(data, '$." + f.Field + "') = ?"
		args = append(args, sqlValue(f.Value))
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []store.Doc{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var d store.Doc
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, fmt.Errorf("corrupt document in %s: %w", collection, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) Set(ctx context.Context, collection, id string, data store.Doc, merge bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	doc := data
	if merge {
		existing, err := getDoc(ctx, tx, collection, id)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		doc = store.Merge(existing, data)
	}
	if err := putDoc(ctx, tx, collection, id, doc); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Update(ctx context.Context, collection, id string, patch store.Doc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	existing, err := getDoc(ctx, tx, collection, id)
	if err != nil {
		return err
	}
	if err := putDoc(ctx, tx, collection, id, store.Merge(existing, patch)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE collection = ? AND id = ?", collection, id)
	return err
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getDoc(ctx context.Context, q queryer, collection, id string) (store.Doc, error) {
	var raw string
	err := q.QueryRowContext(ctx, "SELECT data FROM documents WHERE collection = ? AND id = ?", collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var d store.Doc
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("corrupt document %s/%s: %w", collection, id, err)
	}
	return d, nil
}

func putDoc(ctx context.Context, q queryer, collection, id string, d store.Doc) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", collection, id, err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, id, string(raw), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrConflict)
	}
	return err
}

// sqlValue maps a filter value onto what json_extract yields for it.
func sqlValue(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return v
	}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
