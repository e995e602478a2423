/*
manager.go - Cycle lifecycle manager

PURPOSE:
  Owns one owner's cycle collection. Every read and write used by the API
  and the due-date scheduler goes through the Manager; nothing else touches
  the stored collection.

STATE MACHINE (per cycle):
  Editable --Submit (evidence present, dispatch ok, persisted)--> Locked
  Locked is terminal.

MUTATION RULES:
  - Only Editable cycles accept hours and evidence changes.
  - Each mutation works on a copy of the whole collection, persists the copy
    with a single KVStore.Set and swaps it in only after the write succeeded.
    A failed write leaves the in-memory state untouched.
  - Submit dispatches first and locks only after the dispatcher returned nil.

STORAGE KEYS:
  timesheet/<owner>/settings   {startDate, frequency}
  timesheet/<owner>/cycles     active cycles (newest first) followed by orphans
*/
package timesheet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/timesheet-engine/generic"
)

// Options carries the Manager's collaborators. Zero values get defaults.
type Options struct {
	Dispatcher Dispatcher
	Encoder    EvidenceEncoder
	Clock      generic.Clock
	Logger     *logrus.Entry
}

func (o Options) withDefaults() Options {
	if o.Encoder == nil {
		o.Encoder = PassthroughEncoder{}
	}
	if o.Clock == nil {
		o.Clock = generic.SystemClock{}
	}
	if o.Logger == nil {
		o.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return o
}

// Manager mediates all cycle reads and writes for one owner.
type Manager struct {
	owner      generic.OwnerID
	kv         generic.KVStore
	dispatcher Dispatcher
	encoder    EvidenceEncoder
	clock      generic.Clock
	log        *logrus.Entry
	now        func() time.Time

	mu       sync.Mutex
	settings *Settings
	asOf     generic.TimePoint
	cycles   []Cycle // newest first
	orphans  []Cycle
}

// NewManager creates a Manager. Call Load before use.
func NewManager(owner generic.OwnerID, kv generic.KVStore, opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		owner:      owner,
		kv:         kv,
		dispatcher: opts.Dispatcher,
		encoder:    opts.Encoder,
		clock:      opts.Clock,
		log:        opts.Logger.WithField("owner", string(owner)),
		now:        time.Now,
	}
}

func SettingsKey(owner generic.OwnerID) string { return "timesheet/" + string(owner) + "/settings" }
func CyclesKey(owner generic.OwnerID) string   { return "timesheet/" + string(owner) + "/cycles" }

func (m *Manager) Owner() generic.OwnerID { return m.owner }

// =============================================================================
// LOAD / REGENERATE
// =============================================================================

// Load reads settings and the persisted collection and regenerates cycles
// for today. An owner without settings loads as unconfigured.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rawSettings, found, err := m.kv.Get(ctx, SettingsKey(m.owner))
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	var settings *Settings
	if found {
		s, err := DecodeSettings(SettingsKey(m.owner), rawSettings)
		if err != nil {
			return err
		}
		settings = &s
	}

	persisted, err := m.loadPersisted(ctx)
	if err != nil {
		return err
	}

	m.settings = settings
	m.cycles = nil
	m.orphans = persisted
	if settings != nil {
		m.regenerateLocked(settings.StartDate, settings.Frequency)
	}
	return nil
}

func (m *Manager) loadPersisted(ctx context.Context) ([]Cycle, error) {
	key := CyclesKey(m.owner)
	raw, found, err := m.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("loading cycles: %w", err)
	}
	if !found {
		return nil, nil
	}
	cycles, rejected, err := DecodeCycles(key, raw)
	if err != nil {
		return nil, err
	}
	for _, r := range rejected {
		m.log.WithError(r).Warn("Dropping malformed cycle record")
	}
	return cycles, nil
}

// Regenerate sets the start date and frequency, persists them and rebuilds
// the cycle list through today. Saved cycles whose ID still appears keep
// their data; the rest stay stored as orphans.
func (m *Manager) Regenerate(ctx context.Context, start generic.TimePoint, freq generic.Recurrence) error {
	if !freq.Valid() {
		return fmt.Errorf("%w: %q", generic.ErrInvalidFrequency, freq)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := Settings{StartDate: start, Frequency: freq}
	raw, err := EncodeSettings(s)
	if err != nil {
		return err
	}
	if err := m.kv.Set(ctx, SettingsKey(m.owner), raw); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}

	m.settings = &s
	m.regenerateLocked(start, freq)
	m.log.WithFields(logrus.Fields{
		"start":     start.String(),
		"frequency": string(freq),
		"cycles":    len(m.cycles),
		"orphans":   len(m.orphans),
	}).Info("Regenerated timesheet cycles")
	return nil
}

// regenerateLocked rebuilds the active list. Blank cycles are not carried
// over: the generator recreates them when they match, and an unmatched blank
// cycle holds nothing worth keeping as an orphan.
func (m *Manager) regenerateLocked(start generic.TimePoint, freq generic.Recurrence) {
	today := m.clock.Today()
	var carried []Cycle
	for _, c := range append(append([]Cycle{}, m.cycles...), m.orphans...) {
		if !c.IsBlank() {
			carried = append(carried, c)
		}
	}
	m.cycles, m.orphans = MergeWithOrphans(Generate(start, freq, today), carried)
	m.asOf = today
}

// refreshLocked extends the cycle list when the date moved since the last
// generation.
func (m *Manager) refreshLocked() error {
	if m.settings == nil {
		return generic.ErrNotConfigured
	}
	if !m.clock.Today().Equal(m.asOf) {
		m.regenerateLocked(m.settings.StartDate, m.settings.Frequency)
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

// Settings returns the configured layout, if any.
func (m *Manager) Settings() (Settings, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return Settings{}, false
	}
	return *m.settings, true
}

// Cycles returns the active cycles, newest first.
func (m *Manager) Cycles() ([]Cycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.refreshLocked(); err != nil {
		return nil, err
	}
	return cloneCycles(m.cycles), nil
}

// Orphans returns stored cycles that no longer match the current layout.
func (m *Manager) Orphans() []Cycle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneCycles(m.orphans)
}

// Current returns the cycle containing today.
func (m *Manager) Current() (Cycle, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.refreshLocked(); err != nil {
		return Cycle{}, false, err
	}
	c, ok := FindCurrent(m.cycles, m.clock.Today())
	if !ok {
		return Cycle{}, false, nil
	}
	return c.Clone(), true, nil
}

// Cycle returns one active cycle.
func (m *Manager) Cycle(cycleID string) (Cycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.refreshLocked(); err != nil {
		return Cycle{}, err
	}
	i := m.indexLocked(cycleID)
	if i < 0 {
		return Cycle{}, &generic.CycleError{CycleID: cycleID, Op: "get", Err: generic.ErrCycleNotFound}
	}
	return m.cycles[i].Clone(), nil
}

func (m *Manager) indexLocked(cycleID string) int {
	for i, c := range m.cycles {
		if c.ID == cycleID {
			return i
		}
	}
	return -1
}

// =============================================================================
// MUTATIONS
// =============================================================================

// RecordHours sets the hours for one day of an editable cycle. Zero removes
// the entry.
func (m *Manager) RecordHours(ctx context.Context, cycleID string, date generic.TimePoint, hours generic.Amount) (Cycle, error) {
	return m.mutate(ctx, "record_hours", cycleID, func(c *Cycle) error {
		if !hours.ValidDailyHours() {
			return fmt.Errorf("%w: got %s", generic.ErrInvalidHours, hours)
		}
		if !c.Period().Contains(date) {
			return fmt.Errorf("%w: %s not in %s", generic.ErrDateOutsideCycle, date, c.Period())
		}
		if hours.IsZero() {
			delete(c.Hours, date.String())
		} else {
			c.Hours[date.String()] = hours
		}
		m.log.WithFields(logrus.Fields{
			"cycle": cycleID,
			"date":  date.String(),
			"hours": hours.String(),
			"total": c.TotalHours().String(),
		}).Debug("Recorded hours")
		return nil
	})
}

// AttachEvidence appends an attachment to an editable cycle.
func (m *Manager) AttachEvidence(ctx context.Context, cycleID string, e Evidence) (Cycle, error) {
	if e.Filename == "" || len(e.Data) == 0 {
		return Cycle{}, &generic.CycleError{CycleID: cycleID, Op: "attach_evidence", Err: generic.ErrInvalidEvidence}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.AttachedAt.IsZero() {
		e.AttachedAt = m.now().UTC()
	}
	return m.mutate(ctx, "attach_evidence", cycleID, func(c *Cycle) error {
		c.Evidence = append(c.Evidence, e)
		m.log.WithFields(logrus.Fields{
			"cycle":    cycleID,
			"filename": e.Filename,
			"bytes":    len(e.Data),
		}).Debug("Attached evidence")
		return nil
	})
}

// RemoveEvidence deletes the attachment at index from an editable cycle.
func (m *Manager) RemoveEvidence(ctx context.Context, cycleID string, index int) (Cycle, error) {
	return m.mutate(ctx, "remove_evidence", cycleID, func(c *Cycle) error {
		if index < 0 || index >= len(c.Evidence) {
			return fmt.Errorf("%w: %d of %d", generic.ErrEvidenceIndex, index, len(c.Evidence))
		}
		c.Evidence = append(c.Evidence[:index:index], c.Evidence[index+1:]...)
		return nil
	})
}

func (m *Manager) mutate(ctx context.Context, op, cycleID string, fn func(*Cycle) error) (Cycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.refreshLocked(); err != nil {
		return Cycle{}, err
	}
	i := m.indexLocked(cycleID)
	if i < 0 {
		return Cycle{}, &generic.CycleError{CycleID: cycleID, Op: op, Err: generic.ErrCycleNotFound}
	}
	if m.cycles[i].Submitted {
		m.log.WithFields(logrus.Fields{"cycle": cycleID, "op": op}).Warn("Rejected edit of locked cycle")
		return Cycle{}, &generic.CycleError{CycleID: cycleID, Op: op, Err: generic.ErrCycleLocked}
	}

	next := cloneCycles(m.cycles)
	if err := fn(&next[i]); err != nil {
		m.log.WithFields(logrus.Fields{"cycle": cycleID, "op": op}).WithError(err).Warn("Rejected cycle edit")
		return Cycle{}, &generic.CycleError{CycleID: cycleID, Op: op, Err: err}
	}
	if err := m.persistLocked(ctx, next); err != nil {
		return Cycle{}, err
	}
	m.cycles = next
	return next[i].Clone(), nil
}

func (m *Manager) persistLocked(ctx context.Context, active []Cycle) error {
	raw, err := EncodeCycles(append(append([]Cycle{}, active...), m.orphans...))
	if err != nil {
		return err
	}
	if err := m.kv.Set(ctx, CyclesKey(m.owner), raw); err != nil {
		m.log.WithError(err).Error("Failed to persist cycles")
		return fmt.Errorf("saving cycles: %w", err)
	}
	return nil
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit dispatches the cycle summary and locks the cycle. The cycle stays
// editable unless the dispatch succeeded and the locked state was persisted.
func (m *Manager) Submit(ctx context.Context, cycleID string) (Cycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.refreshLocked(); err != nil {
		return Cycle{}, err
	}
	i := m.indexLocked(cycleID)
	if i < 0 {
		return Cycle{}, &generic.CycleError{CycleID: cycleID, Op: "submit", Err: generic.ErrCycleNotFound}
	}
	c := m.cycles[i]
	if c.Submitted {
		return Cycle{}, &generic.CycleError{CycleID: cycleID, Op: "submit", Err: generic.ErrCycleLocked}
	}
	if len(c.Evidence) == 0 {
		m.log.WithField("cycle", cycleID).Warn("Rejected submission without evidence")
		return Cycle{}, &generic.CycleError{CycleID: cycleID, Op: "submit", Err: generic.ErrEvidenceRequired}
	}
	if m.dispatcher == nil {
		return Cycle{}, &generic.CycleError{CycleID: cycleID, Op: "submit",
			Err: fmt.Errorf("%w: no dispatcher configured", generic.ErrDispatchFailed)}
	}

	payload, err := BuildPayload(ctx, m.owner, m.settings.Frequency, c, m.encoder)
	if err != nil {
		return Cycle{}, &generic.CycleError{CycleID: cycleID, Op: "submit", Err: fmt.Errorf("%w: %v", generic.ErrDispatchFailed, err)}
	}
	if err := m.dispatcher.Dispatch(ctx, payload); err != nil {
		m.log.WithField("cycle", cycleID).WithError(err).Error("Submission dispatch failed")
		return Cycle{}, &generic.CycleError{CycleID: cycleID, Op: "submit", Err: fmt.Errorf("%w: %w", generic.ErrDispatchFailed, err)}
	}

	next := cloneCycles(m.cycles)
	at := m.now().UTC()
	next[i].Submitted = true
	next[i].SubmittedAt = &at
	if err := m.persistLocked(ctx, next); err != nil {
		return Cycle{}, err
	}
	m.cycles = next

	m.log.WithFields(logrus.Fields{
		"cycle":    cycleID,
		"total":    payload.TotalHours.String(),
		"evidence": len(payload.Evidence),
	}).Info("Submitted timesheet cycle")
	return next[i].Clone(), nil
}

// =============================================================================
// DUE CHECK
// =============================================================================

// CheckDueNotifications evaluates reminders for today. Unconfigured owners
// have none. The host decides when to call this; the Manager owns no timer.
func (m *Manager) CheckDueNotifications(_ context.Context) ([]Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.refreshLocked(); err != nil {
		if errors.Is(err, generic.ErrNotConfigured) {
			return nil, nil
		}
		return nil, err
	}
	return DueReminders(m.cycles, m.clock.Today()), nil
}

// RemindersOn evaluates reminders for an arbitrary date without logging or
// sending them. A date past today sees the cycles generated through that
// date; stored cycles keep their data. Unconfigured owners have none.
func (m *Manager) RemindersOn(date generic.TimePoint) ([]Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.refreshLocked(); err != nil {
		if errors.Is(err, generic.ErrNotConfigured) {
			return nil, nil
		}
		return nil, err
	}
	cycles := m.cycles
	if date.After(m.asOf) {
		cycles = Merge(Generate(m.settings.StartDate, m.settings.Frequency, date), m.cycles)
	}
	return DueReminders(cycles, date), nil
}
