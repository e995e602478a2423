// Package timesheet implements the timesheet cycle engine: recurring billing
// cycles generated from a start date, merged with saved hours and evidence,
// and locked once submitted.
package timesheet

import (
	"sort"
	"time"

	"github.com/warp/timesheet-engine/generic"
)

// =============================================================================
// SKELETON - Freshly generated cycle bounds, no user data
// =============================================================================

// Skeleton is a generated cycle interval.
type Skeleton struct {
	ID        string
	StartDate generic.TimePoint
	EndDate   generic.TimePoint
}

func (s Skeleton) Period() generic.Period {
	return generic.Period{Start: s.StartDate, End: s.EndDate}
}

// CycleID derives the stable identifier of the cycle starting on start.
// Regenerating the same interval always yields the same ID.
func CycleID(start generic.TimePoint) string {
	return start.String()
}

// =============================================================================
// CYCLE - Interval plus accumulated work data
// =============================================================================

// Cycle is one billing period with the hours and evidence recorded against it.
// Hours is sparse: only days with a non-zero entry are present.
type Cycle struct {
	ID          string
	StartDate   generic.TimePoint
	EndDate     generic.TimePoint
	Hours       map[string]generic.Amount // keyed by "2006-01-02"
	Evidence    []Evidence
	Submitted   bool
	SubmittedAt *time.Time
}

// Evidence is an attached proof of approved hours (usually a screenshot).
type Evidence struct {
	ID          string
	Filename    string
	ContentType string
	Data        []byte
	AttachedAt  time.Time
}

// NewCycle returns a blank cycle for the skeleton.
func NewCycle(s Skeleton) Cycle {
	return Cycle{
		ID:        s.ID,
		StartDate: s.StartDate,
		EndDate:   s.EndDate,
		Hours:     make(map[string]generic.Amount),
		Evidence:  []Evidence{},
	}
}

func (c Cycle) Period() generic.Period {
	return generic.Period{Start: c.StartDate, End: c.EndDate}
}

// IsEditable is true until the cycle has been submitted.
func (c Cycle) IsEditable() bool { return !c.Submitted }

// IsBlank is true for a cycle nobody has touched: no hours, no evidence,
// not submitted.
func (c Cycle) IsBlank() bool {
	return !c.Submitted && len(c.Hours) == 0 && len(c.Evidence) == 0
}

// TotalHours sums every entry. It is always derived, never stored.
func (c Cycle) TotalHours() generic.Amount {
	total := generic.ZeroHours()
	for _, h := range c.Hours {
		total = total.Add(h)
	}
	return total
}

// HoursOn returns the hours entered for date, zero when absent.
func (c Cycle) HoursOn(date generic.TimePoint) generic.Amount {
	if h, ok := c.Hours[date.String()]; ok {
		return h
	}
	return generic.ZeroHours()
}

// DayHours is one row of the per-day breakdown.
type DayHours struct {
	Date    generic.TimePoint
	Hours   generic.Amount
	Workday bool
}

// Days lists every day of the interval with its hours, oldest first.
func (c Cycle) Days() []DayHours {
	days := c.Period().Days()
	out := make([]DayHours, 0, len(days))
	for _, d := range days {
		out = append(out, DayHours{Date: d, Hours: c.HoursOn(d), Workday: d.IsWorkday()})
	}
	return out
}

// Clone deep-copies the hours map and evidence slice. Evidence bytes are
// shared; they are never mutated in place.
func (c Cycle) Clone() Cycle {
	out := c
	out.Hours = make(map[string]generic.Amount, len(c.Hours))
	for k, v := range c.Hours {
		out.Hours[k] = v
	}
	out.Evidence = append([]Evidence{}, c.Evidence...)
	if c.SubmittedAt != nil {
		at := *c.SubmittedAt
		out.SubmittedAt = &at
	}
	return out
}

func cloneCycles(cycles []Cycle) []Cycle {
	out := make([]Cycle, len(cycles))
	for i, c := range cycles {
		out[i] = c.Clone()
	}
	return out
}

// =============================================================================
// ORDERING
// =============================================================================

// SortNewestFirst orders cycles by descending start date (display order).
func SortNewestFirst(cycles []Cycle) {
	sort.SliceStable(cycles, func(i, j int) bool {
		return cycles[i].StartDate.After(cycles[j].StartDate)
	})
}

// Chronological returns a copy of cycles ordered oldest first.
func Chronological(cycles []Cycle) []Cycle {
	out := append([]Cycle{}, cycles...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out
}
