package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// TIME POINT - Calendar date abstraction (cycles are measured in whole days)
// =============================================================================

// DateLayout is the canonical calendar date format used for cycle IDs,
// hour keys and API paths.
const DateLayout = "2006-01-02"

// TimePoint is a calendar date. All comparisons and arithmetic happen at day
// granularity in UTC so that a date never shifts across a timezone boundary.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a "2006-01-02" date string.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for tests and constants. Panics on bad input.
func MustParseDate(s string) TimePoint {
	tp, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return tp
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return TimePoint{Time: tp.normalize().AddDate(0, 0, n)} }
func (tp TimePoint) AddMonths(n int) TimePoint { return TimePoint{Time: tp.normalize().AddDate(0, n, 0)} }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsWeekend() bool       { wd := tp.Weekday(); return wd == time.Saturday || wd == time.Sunday }
func (tp TimePoint) IsWorkday() bool       { return !tp.IsWeekend() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

// StartOfDay returns midnight of the date.
func (tp TimePoint) StartOfDay() time.Time { return tp.normalize() }

// EndOfDay returns the last representable millisecond of the date (23:59:59.999).
func (tp TimePoint) EndOfDay() time.Time {
	return tp.normalize().Add(24*time.Hour - time.Millisecond)
}

func (tp TimePoint) String() string {
	return tp.Time.Format(DateLayout)
}

// =============================================================================
// WORKDAY HELPERS
// =============================================================================

// LastWorkdayOnOrBefore walks back from tp to the closest weekday.
func LastWorkdayOnOrBefore(tp TimePoint) TimePoint {
	for tp.IsWeekend() {
		tp = tp.AddDays(-1)
	}
	return tp
}

// FirstWorkdayOnOrAfter walks forward from tp to the closest weekday.
func FirstWorkdayOnOrAfter(tp TimePoint) TimePoint {
	for tp.IsWeekend() {
		tp = tp.AddDays(1)
	}
	return tp
}

// =============================================================================
// CLOCK - Injectable "today"
// =============================================================================

// Clock supplies the current date. Everything that reasons about "today"
// takes a Clock so tests can pin the calendar.
type Clock interface {
	Today() TimePoint
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

func (SystemClock) Today() TimePoint { return DateOf(time.Now()) }

// FixedClock always reports the same date.
type FixedClock struct {
	Date TimePoint
}

func (c FixedClock) Today() TimePoint { return c.Date }

// =============================================================================
// TIME UTILITIES
// =============================================================================

func DaysBetween(from, to TimePoint) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }

func EndOfMonth(year int, month time.Month) TimePoint {
	return TimePoint{Time: time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)}
}
