package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists entries to SQLite.
// It is suitable for single-process use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (creating if needed) a journal database.
// path is a file path or ":memory:".
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS dispatch_journal (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			dispatch_id TEXT NOT NULL,
			event TEXT NOT NULL,
			outcome TEXT NOT NULL,
			subscribers INTEGER NOT NULL,
			rewrites INTEGER NOT NULL,
			payload_len INTEGER NOT NULL,
			depth INTEGER NOT NULL,
			error TEXT NOT NULL,
			duration_ns INTEGER NOT NULL,
			ts_unix_ns INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_dispatch_journal_event
		ON dispatch_journal(event, ts_unix_ns)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, entry *Entry) error {
	if err := validate(entry); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO dispatch_journal (
			id, dispatch_id, event, outcome, subscribers, rewrites,
			payload_len, depth, error, duration_ns, ts_unix_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, entry.ID, entry.DispatchID, entry.Event, string(entry.Outcome),
		entry.Subscribers, entry.Rewrites, entry.PayloadLen, entry.Depth,
		entry.Error, int64(entry.Duration), entry.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	if n == 0 {
		return ErrDuplicateEntry
	}
	return nil
}

const selectColumns = `id, dispatch_id, event, outcome, subscribers, rewrites,
	payload_len, depth, error, duration_ns, ts_unix_ns`

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM dispatch_journal WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var (
		where []string
		args  []any
	)
	if filter.Event != "" {
		where = append(where, "event = ?")
		args = append(args, filter.Event)
	}
	if filter.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}
	if !filter.Since.IsZero() {
		where = append(where, "ts_unix_ns >= ?")
		args = append(args, filter.Since.UnixNano())
	}

	query := `SELECT seq, ` + selectColumns + ` FROM dispatch_journal`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	// Newest-first keeps LIMIT on the most recent rows; flip back to append order.
	query = `SELECT ` + selectColumns + ` FROM (` + query + `) ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dispatch_journal`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// Purge implements Store.
func (s *SQLiteStore) Purge(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM dispatch_journal WHERE ts_unix_ns < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("purge entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge entries: %w", err)
	}
	return int(n), nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e        Entry
		outcome  string
		duration int64
		ts       int64
	)
	if err := row.Scan(&e.ID, &e.DispatchID, &e.Event, &outcome, &e.Subscribers,
		&e.Rewrites, &e.PayloadLen, &e.Depth, &e.Error, &duration, &ts); err != nil {
		return nil, err
	}
	e.Outcome = Outcome(outcome)
	e.Duration = time.Duration(duration)
	e.Timestamp = time.Unix(0, ts).UTC()
	return &e, nil
}
