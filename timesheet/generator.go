package timesheet

import "github.com/warp/timesheet-engine/generic"

// =============================================================================
// CYCLE GENERATOR
// =============================================================================

// Generate partitions [start, asOf] into contiguous cycles of the given
// recurrence, oldest first. The last cycle is the one containing asOf, so its
// end may lie after asOf. Returns nil when start is after asOf or the
// recurrence is unknown.
//
// Example (weekly, start Mon 2024-01-01, asOf 2024-01-10):
//
//	[2024-01-01, 2024-01-07]
//	[2024-01-08, 2024-01-14]  <- contains asOf
func Generate(start generic.TimePoint, freq generic.Recurrence, asOf generic.TimePoint) []Skeleton {
	if start.After(asOf) || !freq.Valid() {
		return nil
	}

	var skeletons []Skeleton
	for p := freq.PeriodStarting(start); p.Start.BeforeOrEqual(asOf); p = freq.NextPeriod(p) {
		skeletons = append(skeletons, Skeleton{
			ID:        CycleID(p.Start),
			StartDate: p.Start,
			EndDate:   p.End,
		})
	}
	return skeletons
}
