/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists the engine's key-value state and the reminder log in a single
  SQLite file. The default backend for single-node deployments and local
  development.

INTERFACES IMPLEMENTED:
  generic.KVStore:     Serialized settings and cycle collections
  generic.ReminderLog: Reminders emitted by the due check

KEY TABLES:
  kv:        key -> value, one row per key, replaced on Set
  reminders: append-only; never updated, never deleted

ATOMICITY:
  Set is a single upsert statement, so a cycle collection is replaced as a
  whole or not at all.

WAL MODE:
  Opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/timesheets.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  registry := timesheet.NewRegistry(store, opts)

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
  - store/postgres: Same interfaces on PostgreSQL
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/timesheet-engine/generic"
)

// stampLayout is fixed-width so created_at sorts as text.
const stampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements generic.KVStore and generic.ReminderLog using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ generic.KVStore     = (*Store)(nil)
	_ generic.ReminderLog = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Reminders (append-only)
	CREATE TABLE IF NOT EXISTS reminders (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		cycle_id TEXT NOT NULL,
		reminder_date TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reminders_owner_date
		ON reminders(owner_id, reminder_date);
	CREATE INDEX IF NOT EXISTS idx_reminders_created
		ON reminders(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// KV STORE (generic.KVStore interface)
// =============================================================================

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: reading %s: %v", generic.ErrStoreUnavailable, key, err)
	}
	return value, true, nil
}

// Set replaces the value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("%w: writing %s: %v", generic.ErrStoreUnavailable, key, err)
	}
	return nil
}

// =============================================================================
// REMINDER LOG (generic.ReminderLog interface)
// =============================================================================

// AppendReminders inserts records atomically. Records without an ID get one.
func (s *Store) AppendReminders(ctx context.Context, records []generic.ReminderRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning reminder append: %v", generic.ErrStoreUnavailable, err)
	}
	defer sqlTx.Rollback()

	query := `
		INSERT INTO reminders (id, owner_id, kind, cycle_id, reminder_date, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for _, r := range records {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now()
		}
		_, err := sqlTx.ExecContext(ctx, query,
			r.ID,
			string(r.OwnerID),
			r.Kind,
			r.CycleID,
			r.Date.String(),
			r.Message,
			r.CreatedAt.UTC().Format(stampLayout),
		)
		if err != nil {
			return fmt.Errorf("%w: appending reminder: %v", generic.ErrStoreUnavailable, err)
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: committing reminders: %v", generic.ErrStoreUnavailable, err)
	}
	return nil
}

// ListReminders returns matching reminders, newest first.
func (s *Store) ListReminders(ctx context.Context, filter generic.ReminderFilter) ([]generic.ReminderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if filter.OwnerID != nil {
		where = append(where, "owner_id = ?")
		args = append(args, string(*filter.OwnerID))
	}
	if filter.From != nil {
		where = append(where, "reminder_date >= ?")
		args = append(args, filter.From.String())
	}
	if filter.To != nil {
		where = append(where, "reminder_date <= ?")
		args = append(args, filter.To.String())
	}

	query := `SELECT id, owner_id, kind, cycle_id, reminder_date, message, created_at FROM reminders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying reminders: %v", generic.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var result []generic.ReminderRecord
	for rows.Next() {
		var (
			r                 generic.ReminderRecord
			owner, day, stamp string
		)
		if err := rows.Scan(&r.ID, &owner, &r.Kind, &r.CycleID, &day, &r.Message, &stamp); err != nil {
			return nil, fmt.Errorf("%w: scanning reminder: %v", generic.ErrStoreUnavailable, err)
		}
		r.OwnerID = generic.OwnerID(owner)
		if r.Date, err = generic.ParseDate(day); err != nil {
			return nil, fmt.Errorf("reminder %s: %w", r.ID, err)
		}
		if r.CreatedAt, err = time.Parse(stampLayout, stamp); err != nil {
			return nil, fmt.Errorf("reminder %s: %w", r.ID, err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading reminders: %v", generic.ErrStoreUnavailable, err)
	}
	return result, nil
}
