package generic

import (
	"fmt"
	"strings"
)

// =============================================================================
// PERIOD - A closed range of calendar days
// =============================================================================

// Period is the inclusive date range [Start, End].
//
// Examples:
//   - Weekly cycle: Mon 2024-01-01 - Sun 2024-01-07
//   - Monthly cycle: 2024-02-01 - 2024-02-29
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// Len is the number of days in the period.
func (p Period) Len() int {
	return DaysBetween(p.Start, p.End) + 1
}

// Validate rejects periods whose end precedes their start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	return nil
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// RECURRENCE - How consecutive periods are laid out
// =============================================================================

// Recurrence defines the length of a billing cycle.
type Recurrence string

const (
	RecurrenceWeekly   Recurrence = "weekly"   // 7 days from the cycle start
	RecurrenceBiweekly Recurrence = "biweekly" // 14 days from the cycle start
	RecurrenceMonthly  Recurrence = "monthly"  // cycle start through end of that calendar month
)

// ParseRecurrence accepts the lowercase names above (surrounding space and
// case are ignored).
func ParseRecurrence(s string) (Recurrence, error) {
	r := Recurrence(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
	}
	return r, nil
}

func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly:
		return true
	}
	return false
}

// PeriodStarting returns the period that begins on start.
// Monthly periods end on the last day of start's month, so their length
// varies between 1 and 31 days.
func (r Recurrence) PeriodStarting(start TimePoint) Period {
	switch r {
	case RecurrenceWeekly:
		return Period{Start: start, End: start.AddDays(6)}
	case RecurrenceBiweekly:
		return Period{Start: start, End: start.AddDays(13)}
	default:
		return Period{Start: start, End: EndOfMonth(start.Year(), start.Month())}
	}
}

// NextPeriod returns the period following p, starting the day after p.End.
func (r Recurrence) NextPeriod(p Period) Period {
	return r.PeriodStarting(p.End.AddDays(1))
}
