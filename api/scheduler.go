/*
scheduler.go - Automated due-date check

PURPOSE:
  Periodically evaluates the reminder rules for every configured owner,
  appends the reminders to the reminder log and forwards them to the
  notifier (Telegram or log).

DESIGN:
  - robfig/cron drives the schedule (default "0 */12 * * *", every 12h)
  - A run iterates Registry.Owners; one failing owner does not stop the others
  - Runs never overlap; a tick that arrives mid-run waits for it
  - No dedup: the same reminder is logged and sent again on every run of the
    same day. Receivers tolerate repeats

CONFIGURATION:
  - Spec:    Standard 5-field cron expression
  - Enabled: Whether Start schedules anything

USAGE:
  scheduler := NewDueCheckScheduler(registry, store, notifier, "0 */12 * * *", log)
  scheduler.Start()
  // ... later
  scheduler.Stop(ctx)

SEE ALSO:
  - handlers.go: RunDueCheck endpoint (manual trigger)
  - timesheet/reminders.go: The rules
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/warp/timesheet-engine/generic"
	"github.com/warp/timesheet-engine/notify"
	"github.com/warp/timesheet-engine/timesheet"
)

// DueCheckResult summarizes one run.
type DueCheckResult struct {
	RanAt     time.Time
	Owners    int
	Reminders []generic.ReminderRecord
	Failures  map[generic.OwnerID]error
}

// DueCheckScheduler runs the due-date check on a cron schedule.
type DueCheckScheduler struct {
	Registry *timesheet.Registry
	Log      generic.ReminderLog
	Notifier notify.Notifier
	Spec     string
	Enabled  bool

	logger *logrus.Entry
	now    func() time.Time
	cron   *cron.Cron
	runMu  sync.Mutex
	mu     sync.Mutex
}

// NewDueCheckScheduler creates a scheduler. Notifier may be nil.
func NewDueCheckScheduler(registry *timesheet.Registry, log generic.ReminderLog, notifier notify.Notifier, spec string, logger *logrus.Entry) *DueCheckScheduler {
	return &DueCheckScheduler{
		Registry: registry,
		Log:      log,
		Notifier: notifier,
		Spec:     spec,
		Enabled:  true,
		logger:   logger.WithField("component", "due-check"),
		now:      time.Now,
	}
}

// Start schedules the check. It does not run one immediately.
func (s *DueCheckScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.logger.Info("Due check disabled, not starting")
		return nil
	}
	if s.cron != nil {
		return nil
	}

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(s.Spec, func() {
		if _, err := s.RunNow(context.Background()); err != nil {
			s.logger.WithError(err).Error("Scheduled due check failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid due check schedule %q: %w", s.Spec, err)
	}
	c.Start()
	s.cron = c

	s.logger.WithField("spec", s.Spec).Info("Due check scheduled")
	return nil
}

// Stop removes the schedule and waits for a running check, or for ctx.
func (s *DueCheckScheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
		s.logger.Info("Due check stopped")
	case <-ctx.Done():
		s.logger.Warn("Due check did not finish before shutdown")
	}
}

// RunNow performs one check across all owners. The error is non-nil only
// when the owner list cannot be read.
func (s *DueCheckScheduler) RunNow(ctx context.Context) (DueCheckResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	result := DueCheckResult{RanAt: s.now().UTC(), Failures: map[generic.OwnerID]error{}}

	owners, err := s.Registry.Owners(ctx)
	if err != nil {
		return result, err
	}
	result.Owners = len(owners)

	for _, owner := range owners {
		records, err := s.checkOwner(ctx, owner, result.RanAt)
		if err != nil {
			s.logger.WithField("owner", string(owner)).WithError(err).Error("Due check failed for owner")
			result.Failures[owner] = err
			continue
		}
		result.Reminders = append(result.Reminders, records...)
	}

	s.logger.WithFields(logrus.Fields{
		"owners":    result.Owners,
		"reminders": len(result.Reminders),
		"failures":  len(result.Failures),
	}).Info("Due check complete")
	return result, nil
}

func (s *DueCheckScheduler) checkOwner(ctx context.Context, owner generic.OwnerID, at time.Time) ([]generic.ReminderRecord, error) {
	m, err := s.Registry.Manager(ctx, owner)
	if err != nil {
		return nil, err
	}
	reminders, err := m.CheckDueNotifications(ctx)
	if err != nil {
		return nil, err
	}
	if len(reminders) == 0 {
		return nil, nil
	}

	records := make([]generic.ReminderRecord, len(reminders))
	for i, r := range reminders {
		records[i] = generic.ReminderRecord{
			ID:        uuid.NewString(),
			OwnerID:   owner,
			Kind:      string(r.Kind),
			CycleID:   r.CycleID,
			Date:      r.Date,
			Message:   r.Message,
			CreatedAt: at,
		}
	}
	if s.Log != nil {
		if err := s.Log.AppendReminders(ctx, records); err != nil {
			return nil, fmt.Errorf("logging reminders: %w", err)
		}
	}
	if s.Notifier != nil {
		if err := s.Notifier.NotifyReminders(ctx, owner, reminders); err != nil {
			// logged reminders stay logged; delivery is retried on the next run
			s.logger.WithField("owner", string(owner)).WithError(err).Warn("Reminder delivery failed")
		}
	}
	return records, nil
}
