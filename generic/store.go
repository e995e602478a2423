/*
store.go - Persistence interfaces

PURPOSE:
  Defines the boundary between the engine and the database. The engine only
  needs a string key-value store (the serialized cycle collection and the
  timesheet settings live under one key each) plus an append-only log of
  emitted reminders.

KEY INTERFACES:
  KVStore:     Get/Set of opaque string values
  ReminderLog: Append-only record of reminders produced by the due check

ATOMICITY:
  A whole cycle collection is written with a single Set. Implementations
  must make Set atomic per key; a reader never observes half a collection.

IMPLEMENTATIONS:
  - generic/store/memory.go: In-memory for testing
  - store/sqlite/sqlite.go: SQLite
  - store/postgres/postgres.go: PostgreSQL
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// KV STORE - Serialized state persistence
// =============================================================================

// KVStore persists string values by key.
type KVStore interface {
	// Get returns the value stored under key. found is false when the key
	// has never been written.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set replaces the value under key.
	Set(ctx context.Context, key, value string) error
}

// =============================================================================
// REMINDER LOG - Append-only, no dedup
// =============================================================================

// ReminderRecord is a persisted reminder.
type ReminderRecord struct {
	ID        string
	OwnerID   OwnerID
	Kind      string
	CycleID   string
	Date      TimePoint // the day the reminder is about
	Message   string
	CreatedAt time.Time
}

// ReminderFilter narrows ListReminders. Zero values match everything.
type ReminderFilter struct {
	OwnerID *OwnerID
	From    *TimePoint
	To      *TimePoint
	Limit   int
}

// Matches applies the filter to a single record.
func (f ReminderFilter) Matches(r ReminderRecord) bool {
	if f.OwnerID != nil && r.OwnerID != *f.OwnerID {
		return false
	}
	if f.From != nil && r.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && r.Date.After(*f.To) {
		return false
	}
	return true
}

// ReminderLog stores reminders. Append-only.
type ReminderLog interface {
	AppendReminders(ctx context.Context, records []ReminderRecord) error
	ListReminders(ctx context.Context, filter ReminderFilter) ([]ReminderRecord, error)
}
