// Package notify delivers timesheet submissions and due-date reminders to
// people: a Telegram chat in production, the log in development.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/warp/timesheet-engine/generic"
	"github.com/warp/timesheet-engine/timesheet"
)

// Notifier forwards reminders produced by the due check.
type Notifier interface {
	NotifyReminders(ctx context.Context, owner generic.OwnerID, reminders []timesheet.Reminder) error
}

// =============================================================================
// MESSAGE FORMATTING
// =============================================================================

// FormatSubmission renders the plain-text summary sent with a submission.
func FormatSubmission(p timesheet.SubmissionPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Timesheet submitted by %s\n", p.OwnerID)
	fmt.Fprintf(&b, "Period: %s to %s (%s)\n", p.PeriodStart, p.PeriodEnd, p.Frequency)
	fmt.Fprintf(&b, "Total hours: %s\n\n", p.TotalHours)
	for _, d := range p.PerDay {
		if d.Hours.IsZero() && !d.Workday {
			continue
		}
		fmt.Fprintf(&b, "%s %s: %s\n", d.Date.Weekday().String()[:3], d.Date, d.Hours)
	}
	if p.AttachedCount > len(p.Evidence) {
		fmt.Fprintf(&b, "\nEvidence: %d of %d attachments included\n", len(p.Evidence), p.AttachedCount)
	} else {
		fmt.Fprintf(&b, "\nEvidence: %d attachment(s)\n", len(p.Evidence))
	}
	return b.String()
}

// FormatReminders renders reminders for one owner as a single message.
func FormatReminders(owner generic.OwnerID, reminders []timesheet.Reminder) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Timesheet reminders for %s\n", owner)
	for _, r := range reminders {
		fmt.Fprintf(&b, "- %s\n", r.Message)
	}
	return b.String()
}

// =============================================================================
// LOG SINK - development default
// =============================================================================

// Log writes submissions and reminders to the logger and always succeeds.
type Log struct {
	log *logrus.Entry
}

func NewLog(log *logrus.Entry) *Log {
	return &Log{log: log.WithField("component", "notify")}
}

var (
	_ timesheet.Dispatcher = (*Log)(nil)
	_ Notifier             = (*Log)(nil)
)

func (l *Log) Dispatch(_ context.Context, p timesheet.SubmissionPayload) error {
	l.log.WithFields(logrus.Fields{
		"owner":    string(p.OwnerID),
		"cycle":    p.CycleID,
		"total":    p.TotalHours.String(),
		"evidence": len(p.Evidence),
	}).Info(FormatSubmission(p))
	return nil
}

func (l *Log) NotifyReminders(_ context.Context, owner generic.OwnerID, reminders []timesheet.Reminder) error {
	for _, r := range reminders {
		l.log.WithFields(logrus.Fields{
			"owner": string(owner),
			"kind":  string(r.Kind),
			"cycle": r.CycleID,
		}).Info(r.Message)
	}
	return nil
}
