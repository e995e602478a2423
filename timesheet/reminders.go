package timesheet

import (
	"fmt"

	"github.com/warp/timesheet-engine/generic"
)

// =============================================================================
// DUE-DATE REMINDERS
// =============================================================================

type ReminderKind string

const (
	// ReminderDueToday: today is the cycle's last workday and nothing is logged yet.
	ReminderDueToday ReminderKind = "due_today"
	// ReminderCycleStarted: today is the first workday of a new cycle.
	ReminderCycleStarted ReminderKind = "cycle_started"
	// ReminderOverdue: a new cycle started while its predecessor is still unsubmitted.
	ReminderOverdue ReminderKind = "overdue"
)

// Reminder is a notification produced by the due check.
type Reminder struct {
	Kind    ReminderKind
	CycleID string
	Period  generic.Period
	Date    generic.TimePoint
	Message string
}

// DueReminders evaluates the calendar rules for today against cycles (any
// order). Submitted cycles never produce reminders. The function keeps no
// state: calling it twice for the same day returns the same reminders again.
func DueReminders(cycles []Cycle, today generic.TimePoint) []Reminder {
	chron := Chronological(cycles)

	var reminders []Reminder
	for _, c := range chron {
		if c.Submitted {
			continue
		}
		if generic.LastWorkdayOnOrBefore(c.EndDate).Equal(today) && len(c.Hours) == 0 {
			reminders = append(reminders, Reminder{
				Kind:    ReminderDueToday,
				CycleID: c.ID,
				Period:  c.Period(),
				Date:    today,
				Message: fmt.Sprintf("Timesheet for %s to %s is due today and has no hours logged.", c.StartDate, c.EndDate),
			})
		}
	}

	for i := 0; i+1 < len(chron); i++ {
		prev, next := chron[i], chron[i+1]
		if next.Submitted || !generic.FirstWorkdayOnOrAfter(next.StartDate).Equal(today) {
			continue
		}
		reminders = append(reminders, Reminder{
			Kind:    ReminderCycleStarted,
			CycleID: next.ID,
			Period:  next.Period(),
			Date:    today,
			Message: fmt.Sprintf("A new timesheet cycle started: %s to %s.", next.StartDate, next.EndDate),
		})
		if prev.IsEditable() {
			reminders = append(reminders, Reminder{
				Kind:    ReminderOverdue,
				CycleID: prev.ID,
				Period:  prev.Period(),
				Date:    today,
				Message: fmt.Sprintf("Timesheet for %s to %s was not submitted.", prev.StartDate, prev.EndDate),
			})
		}
	}
	return reminders
}
