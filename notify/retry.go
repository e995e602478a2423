package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/sirupsen/logrus"
	"github.com/warp/timesheet-engine/timesheet"
)

// Retrying retries a dispatcher with jittered exponential backoff. The cycle
// is locked only if one of the attempts succeeds.
type Retrying struct {
	Next     timesheet.Dispatcher
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration

	log *logrus.Entry
}

var _ timesheet.Dispatcher = (*Retrying)(nil)

func NewRetrying(next timesheet.Dispatcher, attempts uint, log *logrus.Entry) *Retrying {
	return &Retrying{
		Next:     next,
		Attempts: max(attempts, 1),
		Delay:    time.Second,
		MaxDelay: 30 * time.Second,
		log:      log.WithField("component", "dispatch"),
	}
}

func (r *Retrying) Dispatch(ctx context.Context, p timesheet.SubmissionPayload) error {
	err := retry.Do(
		func() error {
			return r.Next.Dispatch(ctx, p)
		},
		retry.Context(ctx),
		retry.Attempts(r.Attempts),
		retry.Delay(r.Delay),
		retry.MaxDelay(r.MaxDelay),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.OnRetry(func(n uint, err error) {
			r.log.WithFields(logrus.Fields{
				"attempt": n + 1,
				"cycle":   p.CycleID,
			}).WithError(err).Warn("Retrying submission dispatch")
		}),
	)
	if err != nil {
		return fmt.Errorf("dispatch after %d attempts: %w", r.Attempts, err)
	}
	return nil
}
