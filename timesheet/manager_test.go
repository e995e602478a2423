package timesheet_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timesheet-engine/generic"
	"github.com/warp/timesheet-engine/generic/store"
	"github.com/warp/timesheet-engine/timesheet"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// movableClock lets a test advance "today".
type movableClock struct{ d generic.TimePoint }

func (c *movableClock) Today() generic.TimePoint { return c.d }

type recordingDispatcher struct {
	payloads []timesheet.SubmissionPayload
	err      error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, p timesheet.SubmissionPayload) error {
	if d.err != nil {
		return d.err
	}
	d.payloads = append(d.payloads, p)
	return nil
}

type fixture struct {
	kv         *store.Memory
	clock      *movableClock
	dispatcher *recordingDispatcher
	manager    *timesheet.Manager
	logs       *test.Hook
}

// newFixture configures owner "alice" with weekly cycles from Monday
// 2024-03-04; today is Wednesday 2024-03-06.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	f := &fixture{
		kv:         store.NewMemory(),
		clock:      &movableClock{d: date("2024-03-06")},
		dispatcher: &recordingDispatcher{},
		logs:       hook,
	}
	f.manager = f.newManager(logger)
	require.NoError(t, f.manager.Load(context.Background()))
	require.NoError(t, f.manager.Regenerate(context.Background(), date("2024-03-04"), generic.RecurrenceWeekly))
	return f
}

func (f *fixture) newManager(logger *logrus.Logger) *timesheet.Manager {
	return timesheet.NewManager("alice", f.kv, timesheet.Options{
		Dispatcher: f.dispatcher,
		Clock:      f.clock,
		Logger:     logrus.NewEntry(logger),
	})
}

// reload reads the owner's state back from the store with a fresh Manager.
func (f *fixture) reload(t *testing.T) *timesheet.Manager {
	t.Helper()
	logger, _ := test.NewNullLogger()
	m := f.newManager(logger)
	require.NoError(t, m.Load(context.Background()))
	return m
}

func screenshot(name string) timesheet.Evidence {
	return timesheet.Evidence{Filename: name, ContentType: "image/png", Data: []byte("png-bytes-" + name)}
}

const week = "2024-03-04"

// =============================================================================
// LOAD / REGENERATE
// =============================================================================

func TestManager_UnconfiguredOwner(t *testing.T) {
	m := timesheet.NewManager("bob", store.NewMemory(), timesheet.Options{Clock: generic.FixedClock{Date: date("2024-03-06")}})
	require.NoError(t, m.Load(context.Background()))

	_, err := m.Cycles()
	assert.ErrorIs(t, err, generic.ErrNotConfigured)

	reminders, err := m.CheckDueNotifications(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, reminders)
}

func TestManager_RegenerateRejectsUnknownFrequency(t *testing.T) {
	f := newFixture(t)
	err := f.manager.Regenerate(context.Background(), date("2024-03-04"), generic.Recurrence("daily"))
	assert.ErrorIs(t, err, generic.ErrInvalidFrequency)
}

func TestManager_CurrentCycle(t *testing.T) {
	f := newFixture(t)

	cur, ok, err := f.manager.Current()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, week, cur.ID)
	assert.Equal(t, date("2024-03-10"), cur.EndDate)
}

func TestManager_StartInFuture_NoCycles(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.Regenerate(context.Background(), date("2024-04-01"), generic.RecurrenceWeekly))

	cycles, err := f.manager.Cycles()
	require.NoError(t, err)
	assert.Empty(t, cycles)

	_, ok, err := f.manager.Current()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_CyclesExtendWhenDayAdvances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.manager.RecordHours(ctx, week, date("2024-03-05"), generic.Hours(8))
	require.NoError(t, err)

	// WHEN: Two weeks pass
	f.clock.d = date("2024-03-20")

	// THEN: New cycles appear newest first and old data is intact
	cycles, err := f.manager.Cycles()
	require.NoError(t, err)
	require.Len(t, cycles, 3)
	assert.Equal(t, "2024-03-18", cycles[0].ID)
	assert.Equal(t, week, cycles[2].ID)
	assert.True(t, cycles[2].TotalHours().Equal(generic.Hours(8)))
}

func TestManager_StateSurvivesReload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.manager.RecordHours(ctx, week, date("2024-03-05"), generic.Hours(6))
	require.NoError(t, err)
	_, err = f.manager.AttachEvidence(ctx, week, screenshot("a.png"))
	require.NoError(t, err)

	got, err := f.reload(t).Cycle(week)
	require.NoError(t, err)
	assert.True(t, got.TotalHours().Equal(generic.Hours(6)))
	require.Len(t, got.Evidence, 1)
	assert.NotEmpty(t, got.Evidence[0].ID)
	assert.False(t, got.Evidence[0].AttachedAt.IsZero())
}

func TestManager_MalformedStoredRecordsDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.kv.Set(ctx, timesheet.CyclesKey("alice"), `[
		{"id":"2024-03-04","startDate":"2024-03-04T00:00:00Z","endDate":"2024-03-10T23:59:59.999Z","hours":{"2024-03-05":4},"evidence":[],"submitted":false},
		{"id":"2024-03-11","startDate":"2024-03-11T00:00:00Z","endDate":"2024-03-17T23:59:59.999Z","hours":{"2024-03-12":99},"evidence":[],"submitted":false}
	]`))

	logger, hook := test.NewNullLogger()
	m := f.newManager(logger)
	require.NoError(t, m.Load(ctx))

	got, err := m.Cycle(week)
	require.NoError(t, err)
	assert.True(t, got.TotalHours().Equal(generic.Hours(4)))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestManager_UnreadableStoreFailsLoad(t *testing.T) {
	kv := store.NewMemory()
	kv.SetFailing(true)
	m := timesheet.NewManager("alice", kv, timesheet.Options{})

	err := m.Load(context.Background())
	assert.ErrorIs(t, err, generic.ErrStoreUnavailable)
}

// =============================================================================
// HOURS
// =============================================================================

func TestManager_TotalHoursRecomputedOnEveryEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.RecordHours(ctx, week, date("2024-03-05"), generic.Hours(6))
	require.NoError(t, err)
	c, err := f.manager.RecordHours(ctx, week, date("2024-03-06"), generic.Hours(4))
	require.NoError(t, err)
	assert.True(t, c.TotalHours().Equal(generic.Hours(10)))

	// Overwrite
	c, err = f.manager.RecordHours(ctx, week, date("2024-03-05"), generic.Hours(3))
	require.NoError(t, err)
	assert.True(t, c.TotalHours().Equal(generic.Hours(7)))
}

func TestManager_ZeroHoursRemovesEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.RecordHours(ctx, week, date("2024-03-05"), generic.Hours(6))
	require.NoError(t, err)
	c, err := f.manager.RecordHours(ctx, week, date("2024-03-05"), generic.Hours(0))
	require.NoError(t, err)
	assert.Empty(t, c.Hours)
}

func TestManager_RecordHoursRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		cycleID string
		date    string
		hours   float64
		want    error
	}{
		{"before interval", week, "2024-03-03", 8, generic.ErrDateOutsideCycle},
		{"after interval", week, "2024-03-11", 8, generic.ErrDateOutsideCycle},
		{"negative", week, "2024-03-05", -1, generic.ErrInvalidHours},
		{"over 24", week, "2024-03-05", 24.5, generic.ErrInvalidHours},
		{"unknown cycle", "2024-03-05", "2024-03-05", 8, generic.ErrCycleNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.RecordHours(ctx, tt.cycleID, date(tt.date), generic.Hours(tt.hours))
			assert.ErrorIs(t, err, tt.want)

			var cycleErr *generic.CycleError
			require.ErrorAs(t, err, &cycleErr)
			assert.Equal(t, "record_hours", cycleErr.Op)
		})
	}

	// Boundary values are accepted.
	_, err := f.manager.RecordHours(ctx, week, date("2024-03-10"), generic.Hours(24))
	assert.NoError(t, err)

	c, err := f.manager.Cycle(week)
	require.NoError(t, err)
	assert.Len(t, c.Hours, 1)
}

func TestManager_StoreFailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.manager.RecordHours(ctx, week, date("2024-03-05"), generic.Hours(6))
	require.NoError(t, err)

	// WHEN: The store goes away mid-session
	f.kv.SetFailing(true)
	_, err = f.manager.RecordHours(ctx, week, date("2024-03-06"), generic.Hours(4))
	_, attachErr := f.manager.AttachEvidence(ctx, week, screenshot("a.png"))

	// THEN: Both writes fail and nothing is applied in memory
	assert.ErrorIs(t, err, generic.ErrStoreUnavailable)
	assert.ErrorIs(t, attachErr, generic.ErrStoreUnavailable)
	assert.True(t, generic.IsCollaboratorFailure(err))

	c, err := f.manager.Cycle(week)
	require.NoError(t, err)
	assert.True(t, c.TotalHours().Equal(generic.Hours(6)))
	assert.Empty(t, c.Evidence)
}

func TestManager_EveryEditPersistedImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	before := f.kv.Writes()

	_, err := f.manager.RecordHours(ctx, week, date("2024-03-05"), generic.Hours(6))
	require.NoError(t, err)
	_, err = f.manager.RecordHours(ctx, week, date("2024-03-06"), generic.Hours(6))
	require.NoError(t, err)
	_, err = f.manager.AttachEvidence(ctx, week, screenshot("a.png"))
	require.NoError(t, err)

	assert.Equal(t, before+3, f.kv.Writes())
}

// =============================================================================
// EVIDENCE
// =============================================================================

func TestManager_AttachAndRemoveEvidence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"a.png", "b.png", "c.png"} {
		_, err := f.manager.AttachEvidence(ctx, week, screenshot(name))
		require.NoError(t, err)
	}

	c, err := f.manager.RemoveEvidence(ctx, week, 1)
	require.NoError(t, err)
	require.Len(t, c.Evidence, 2)
	assert.Equal(t, "a.png", c.Evidence[0].Filename)
	assert.Equal(t, "c.png", c.Evidence[1].Filename)

	_, err = f.manager.RemoveEvidence(ctx, week, 2)
	assert.ErrorIs(t, err, generic.ErrEvidenceIndex)
	_, err = f.manager.RemoveEvidence(ctx, week, -1)
	assert.ErrorIs(t, err, generic.ErrEvidenceIndex)
}

func TestManager_AttachEvidenceRequiresContent(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.AttachEvidence(context.Background(), week, timesheet.Evidence{Filename: "empty.png"})
	assert.ErrorIs(t, err, generic.ErrInvalidEvidence)
	assert.True(t, generic.IsValidation(err))
}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestManager_SubmitWithoutEvidenceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.manager.RecordHours(ctx, week, date("2024-03-05"), generic.Hours(8))
	require.NoError(t, err)

	_, err = f.manager.Submit(ctx, week)
	assert.ErrorIs(t, err, generic.ErrEvidenceRequired)
	assert.Equal(t, "at least one evidence attachment required", generic.ErrEvidenceRequired.Error())
	assert.Empty(t, f.dispatcher.payloads)

	c, err := f.manager.Cycle(week)
	require.NoError(t, err)
	assert.False(t, c.Submitted)
}

func TestManager_SubmitDispatchFailureKeepsCycleEditable(t *testing.T) {
	// GIVEN: One attachment and a dispatcher that fails
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.manager.AttachEvidence(ctx, week, screenshot("a.png"))
	require.NoError(t, err)
	f.dispatcher.err = errors.New("smtp: connection refused")

	// WHEN
	_, err = f.manager.Submit(ctx, week)

	// THEN: The error surfaces and the cycle is still editable, in memory and in storage
	assert.ErrorIs(t, err, generic.ErrDispatchFailed)
	assert.Contains(t, err.Error(), "connection refused")

	c, err := f.manager.Cycle(week)
	require.NoError(t, err)
	assert.False(t, c.Submitted)
	assert.True(t, c.IsEditable())

	stored, err := f.reload(t).Cycle(week)
	require.NoError(t, err)
	assert.False(t, stored.Submitted)

	// And it can still be edited
	_, err = f.manager.RecordHours(ctx, week, date("2024-03-05"), generic.Hours(8))
	assert.NoError(t, err)
}

func TestManager_SubmitPersistFailureKeepsCycleEditable(t *testing.T) {
	// GIVEN: One attachment, a working dispatcher and a store that rejects writes
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.manager.AttachEvidence(ctx, week, screenshot("a.png"))
	require.NoError(t, err)
	f.kv.SetFailing(true)

	// WHEN
	_, err = f.manager.Submit(ctx, week)

	// THEN: The store error surfaces after the dispatch went out, and the cycle is not locked
	assert.ErrorIs(t, err, generic.ErrStoreUnavailable)
	assert.Len(t, f.dispatcher.payloads, 1)

	c, err := f.manager.Cycle(week)
	require.NoError(t, err)
	assert.False(t, c.Submitted)
	assert.Nil(t, c.SubmittedAt)

	f.kv.SetFailing(false)
	stored, err := f.reload(t).Cycle(week)
	require.NoError(t, err)
	assert.False(t, stored.Submitted)

	// And submitting again once the store is back locks it
	c, err = f.manager.Submit(ctx, week)
	require.NoError(t, err)
	assert.True(t, c.Submitted)
	assert.Len(t, f.dispatcher.payloads, 2)
}

func TestManager_SubmitWithoutDispatcherFails(t *testing.T) {
	kv := store.NewMemory()
	m := timesheet.NewManager("alice", kv, timesheet.Options{Clock: generic.FixedClock{Date: date("2024-03-06")}})
	ctx := context.Background()
	require.NoError(t, m.Load(ctx))
	require.NoError(t, m.Regenerate(ctx, date("2024-03-04"), generic.RecurrenceWeekly))
	_, err := m.AttachEvidence(ctx, week, screenshot("a.png"))
	require.NoError(t, err)

	_, err = m.Submit(ctx, week)
	assert.ErrorIs(t, err, generic.ErrDispatchFailed)
}

func TestManager_SubmitLocksCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.manager.RecordHours(ctx, week, date("2024-03-05"), generic.Hours(8))
	require.NoError(t, err)
	_, err = f.manager.AttachEvidence(ctx, week, screenshot("a.png"))
	require.NoError(t, err)

	c, err := f.manager.Submit(ctx, week)
	require.NoError(t, err)
	assert.True(t, c.Submitted)
	assert.False(t, c.IsEditable())
	require.NotNil(t, c.SubmittedAt)

	// Locked: every edit is rejected
	_, err = f.manager.RecordHours(ctx, week, date("2024-03-06"), generic.Hours(2))
	assert.ErrorIs(t, err, generic.ErrCycleLocked)
	_, err = f.manager.AttachEvidence(ctx, week, screenshot("b.png"))
	assert.ErrorIs(t, err, generic.ErrCycleLocked)
	_, err = f.manager.RemoveEvidence(ctx, week, 0)
	assert.ErrorIs(t, err, generic.ErrCycleLocked)
	_, err = f.manager.Submit(ctx, week)
	assert.ErrorIs(t, err, generic.ErrCycleLocked)

	// Stored state matches the submission
	stored, err := f.reload(t).Cycle(week)
	require.NoError(t, err)
	assert.True(t, stored.Submitted)
	assert.True(t, stored.TotalHours().Equal(generic.Hours(8)))
	assert.Len(t, stored.Evidence, 1)
	assert.Len(t, f.dispatcher.payloads, 1)
}

func TestManager_SubmitPayload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.manager.RecordHours(ctx, week, date("2024-03-04"), generic.Hours(8))
	require.NoError(t, err)
	_, err = f.manager.RecordHours(ctx, week, date("2024-03-05"), generic.Hours(7.5))
	require.NoError(t, err)
	for _, name := range []string{"a.png", "b.png", "c.png", "d.png"} {
		_, err := f.manager.AttachEvidence(ctx, week, screenshot(name))
		require.NoError(t, err)
	}

	_, err = f.manager.Submit(ctx, week)
	require.NoError(t, err)

	require.Len(t, f.dispatcher.payloads, 1)
	p := f.dispatcher.payloads[0]
	assert.Equal(t, generic.OwnerID("alice"), p.OwnerID)
	assert.Equal(t, date("2024-03-04"), p.PeriodStart)
	assert.Equal(t, date("2024-03-10"), p.PeriodEnd)
	assert.Equal(t, generic.RecurrenceWeekly, p.Frequency)
	assert.Equal(t, "15.5", p.TotalHours.String())
	assert.Len(t, p.PerDay, 7)
	assert.True(t, p.PerDay[1].Hours.Equal(generic.Hours(7.5)))
	assert.Len(t, p.Evidence, timesheet.MaxDispatchedEvidence)
	assert.Equal(t, 4, p.AttachedCount)
	assert.Equal(t, "a.png", p.Evidence[0].Filename)
}

// =============================================================================
// FREQUENCY CHANGE
// =============================================================================

func TestManager_FrequencyChangeOrphansCycles(t *testing.T) {
	// GIVEN: Weekly cycles from 2024-01-01 with hours in both weeks, today 2024-01-10
	kv := store.NewMemory()
	clock := &movableClock{d: date("2024-01-10")}
	m := timesheet.NewManager("alice", kv, timesheet.Options{Clock: clock})
	ctx := context.Background()
	require.NoError(t, m.Load(ctx))
	require.NoError(t, m.Regenerate(ctx, date("2024-01-01"), generic.RecurrenceWeekly))
	_, err := m.RecordHours(ctx, "2024-01-01", date("2024-01-02"), generic.Hours(5))
	require.NoError(t, err)
	_, err = m.RecordHours(ctx, "2024-01-08", date("2024-01-09"), generic.Hours(8))
	require.NoError(t, err)

	// WHEN: Switching to monthly
	require.NoError(t, m.Regenerate(ctx, date("2024-01-01"), generic.RecurrenceMonthly))

	// THEN: The cycle sharing the start ID keeps its hours; the second week is orphaned, not migrated
	cycles, err := m.Cycles()
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Equal(t, date("2024-01-31"), cycles[0].EndDate)
	assert.True(t, cycles[0].TotalHours().Equal(generic.Hours(5)))
	_, hasSecondWeek := cycles[0].Hours["2024-01-09"]
	assert.False(t, hasSecondWeek)

	orphans := m.Orphans()
	require.Len(t, orphans, 1)
	assert.Equal(t, "2024-01-08", orphans[0].ID)

	// Orphans are still stored after the next write
	_, err = m.RecordHours(ctx, "2024-01-01", date("2024-01-15"), generic.Hours(1))
	require.NoError(t, err)
	reloaded := timesheet.NewManager("alice", kv, timesheet.Options{Clock: clock})
	require.NoError(t, reloaded.Load(ctx))
	assert.Len(t, reloaded.Orphans(), 1)

	// Switching back re-attaches the orphaned week
	require.NoError(t, reloaded.Regenerate(ctx, date("2024-01-01"), generic.RecurrenceWeekly))
	second, err := reloaded.Cycle("2024-01-08")
	require.NoError(t, err)
	assert.True(t, second.TotalHours().Equal(generic.Hours(8)))
	assert.Empty(t, reloaded.Orphans())
}

func TestManager_FrequencyChangeDropsBlankCycles(t *testing.T) {
	// GIVEN: Four weekly cycles, only the second one has hours
	kv := store.NewMemory()
	clock := &movableClock{d: date("2024-01-24")}
	m := timesheet.NewManager("alice", kv, timesheet.Options{Clock: clock})
	ctx := context.Background()
	require.NoError(t, m.Load(ctx))
	require.NoError(t, m.Regenerate(ctx, date("2024-01-01"), generic.RecurrenceWeekly))
	_, err := m.RecordHours(ctx, "2024-01-08", date("2024-01-09"), generic.Hours(8))
	require.NoError(t, err)

	// WHEN: Switching to monthly and editing the new cycle
	require.NoError(t, m.Regenerate(ctx, date("2024-01-01"), generic.RecurrenceMonthly))
	_, err = m.RecordHours(ctx, "2024-01-01", date("2024-01-02"), generic.Hours(1))
	require.NoError(t, err)

	// THEN: Only the edited week is kept as an orphan, in memory and in storage
	orphans := m.Orphans()
	require.Len(t, orphans, 1)
	assert.Equal(t, "2024-01-08", orphans[0].ID)

	raw, found, err := kv.Get(ctx, timesheet.CyclesKey("alice"))
	require.NoError(t, err)
	require.True(t, found)
	stored, rejected, err := timesheet.DecodeCycles(timesheet.CyclesKey("alice"), raw)
	require.NoError(t, err)
	assert.Empty(t, rejected)
	assert.Len(t, stored, 2, "the monthly cycle and the edited week")
}

// =============================================================================
// DUE CHECK
// =============================================================================

func TestManager_CheckDueNotificationsUsesClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Friday of the first week, no hours
	f.clock.d = date("2024-03-08")
	reminders, err := f.manager.CheckDueNotifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"due_today:2024-03-04"}, kinds(reminders))

	// Monday of the next week
	f.clock.d = date("2024-03-11")
	reminders, err = f.manager.CheckDueNotifications(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cycle_started:2024-03-11", "overdue:2024-03-04"}, kinds(reminders))
}

func TestManager_RemindersOnFutureDate(t *testing.T) {
	f := newFixture(t)

	reminders, err := f.manager.RemindersOn(date("2024-03-11"))
	require.NoError(t, err)
	require.Len(t, reminders, 2)
	assert.Equal(t, timesheet.ReminderCycleStarted, reminders[0].Kind)
	assert.Equal(t, "2024-03-11", reminders[0].CycleID)
	assert.Equal(t, timesheet.ReminderOverdue, reminders[1].Kind)

	cycles, err := f.manager.Cycles()
	require.NoError(t, err)
	assert.Len(t, cycles, 1, "previewing does not extend the stored list")
}
