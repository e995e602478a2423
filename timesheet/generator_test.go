package timesheet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timesheet-engine/generic"
	"github.com/warp/timesheet-engine/timesheet"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(s string) generic.TimePoint { return generic.MustParseDate(s) }

func intervals(skeletons []timesheet.Skeleton) []string {
	out := make([]string, len(skeletons))
	for i, s := range skeletons {
		out[i] = s.Period().String()
	}
	return out
}

// =============================================================================
// GENERATOR SCENARIOS
// =============================================================================

func TestGenerate_Weekly_CurrentCycleIncluded(t *testing.T) {
	// GIVEN: Weekly cycles starting Monday 2024-01-01
	// WHEN: Generating as of Wednesday 2024-01-10
	got := timesheet.Generate(date("2024-01-01"), generic.RecurrenceWeekly, date("2024-01-10"))

	// THEN: Two cycles, the second containing asOf
	assert.Equal(t, []string{
		"[2024-01-01, 2024-01-07]",
		"[2024-01-08, 2024-01-14]",
	}, intervals(got))

	current, ok := timesheet.FindCurrent(timesheet.Merge(got, nil), date("2024-01-10"))
	require.True(t, ok)
	assert.Equal(t, "2024-01-08", current.ID)
}

func TestGenerate_Biweekly(t *testing.T) {
	got := timesheet.Generate(date("2024-01-01"), generic.RecurrenceBiweekly, date("2024-01-15"))

	assert.Equal(t, []string{
		"[2024-01-01, 2024-01-14]",
		"[2024-01-15, 2024-01-28]",
	}, intervals(got))
}

func TestGenerate_Monthly_LeapFebruary(t *testing.T) {
	got := timesheet.Generate(date("2024-02-01"), generic.RecurrenceMonthly, date("2024-02-10"))

	require.Len(t, got, 1)
	assert.Equal(t, date("2024-02-29"), got[0].EndDate)
}

func TestGenerate_Monthly_MidMonthStartRunsToMonthEnd(t *testing.T) {
	// GIVEN: A monthly layout that starts on the 15th
	got := timesheet.Generate(date("2024-01-15"), generic.RecurrenceMonthly, date("2024-03-10"))

	// THEN: The first cycle is short, the rest follow calendar months
	assert.Equal(t, []string{
		"[2024-01-15, 2024-01-31]",
		"[2024-02-01, 2024-02-29]",
		"[2024-03-01, 2024-03-31]",
	}, intervals(got))
}

func TestGenerate_AsOfOnBoundaryDays(t *testing.T) {
	// asOf on the first day of a cycle includes that cycle
	got := timesheet.Generate(date("2024-01-01"), generic.RecurrenceWeekly, date("2024-01-08"))
	assert.Len(t, got, 2)

	// asOf on the last day of a cycle does not start the next one
	got = timesheet.Generate(date("2024-01-01"), generic.RecurrenceWeekly, date("2024-01-07"))
	assert.Len(t, got, 1)

	// asOf equal to the start produces exactly one cycle
	got = timesheet.Generate(date("2024-01-01"), generic.RecurrenceMonthly, date("2024-01-01"))
	assert.Len(t, got, 1)
}

func TestGenerate_StartAfterAsOf_Empty(t *testing.T) {
	got := timesheet.Generate(date("2024-05-01"), generic.RecurrenceWeekly, date("2024-04-30"))
	assert.Empty(t, got)
}

func TestGenerate_UnknownRecurrence_Empty(t *testing.T) {
	got := timesheet.Generate(date("2024-01-01"), generic.Recurrence("daily"), date("2024-04-30"))
	assert.Empty(t, got)
}

// =============================================================================
// GENERATOR PROPERTIES
// =============================================================================

func TestGenerate_ContiguityAndCoverage(t *testing.T) {
	starts := []string{"2023-12-31", "2024-01-01", "2024-01-17", "2024-02-29", "2024-11-30"}
	asOfs := []string{"2024-03-01", "2024-12-31", "2025-03-15"}
	freqs := []generic.Recurrence{generic.RecurrenceWeekly, generic.RecurrenceBiweekly, generic.RecurrenceMonthly}

	for _, freq := range freqs {
		for _, s := range starts {
			for _, a := range asOfs {
				start, asOf := date(s), date(a)
				got := timesheet.Generate(start, freq, asOf)
				if start.After(asOf) {
					assert.Empty(t, got)
					continue
				}

				require.NotEmpty(t, got, "%s %s %s", freq, s, a)
				assert.Equal(t, start, got[0].StartDate)

				for i := 0; i+1 < len(got); i++ {
					assert.Equal(t, got[i].EndDate.AddDays(1), got[i+1].StartDate,
						"gap between cycle %d and %d (%s from %s)", i, i+1, freq, s)
				}

				last := got[len(got)-1]
				assert.True(t, last.Period().Contains(asOf), "%s from %s as of %s: last %s", freq, s, a, last.Period())
			}
		}
	}
}

func TestGenerate_IDsStableAcrossAsOf(t *testing.T) {
	short := timesheet.Generate(date("2024-01-03"), generic.RecurrenceBiweekly, date("2024-02-01"))
	long := timesheet.Generate(date("2024-01-03"), generic.RecurrenceBiweekly, date("2024-09-01"))

	require.Less(t, len(short), len(long))
	for i := range short {
		assert.Equal(t, short[i].ID, long[i].ID)
		assert.Equal(t, timesheet.CycleID(long[i].StartDate), long[i].ID)
	}
}
