// Package store provides in-memory store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/timesheet-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	values    map[string]string
	reminders []generic.ReminderRecord

	// failing makes every operation return ErrStoreUnavailable.
	failing bool
	writes  int
}

func NewMemory() *Memory {
	return &Memory{
		values: make(map[string]string),
	}
}

// SetFailing toggles failure injection.
func (m *Memory) SetFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = failing
}

// Writes counts successful Set calls.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failing {
		return "", false, fmt.Errorf("get %s: %w", key, generic.ErrStoreUnavailable)
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return fmt.Errorf("set %s: %w", key, generic.ErrStoreUnavailable)
	}
	m.values[key] = value
	m.writes++
	return nil
}

// AppendReminders appends all records or none.
func (m *Memory) AppendReminders(_ context.Context, records []generic.ReminderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return fmt.Errorf("append reminders: %w", generic.ErrStoreUnavailable)
	}
	m.reminders = append(m.reminders, records...)
	return nil
}

// ListReminders returns matching reminders, newest first.
func (m *Memory) ListReminders(_ context.Context, filter generic.ReminderFilter) ([]generic.ReminderRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failing {
		return nil, fmt.Errorf("list reminders: %w", generic.ErrStoreUnavailable)
	}

	var result []generic.ReminderRecord
	for _, r := range m.reminders {
		if filter.Matches(r) {
			result = append(result, r)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

var (
	_ generic.KVStore     = (*Memory)(nil)
	_ generic.ReminderLog = (*Memory)(nil)
)
