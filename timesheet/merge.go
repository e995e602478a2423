package timesheet

import "github.com/warp/timesheet-engine/generic"

// =============================================================================
// CYCLE STORE MERGE
// =============================================================================

// Merge overlays persisted user data onto freshly generated skeletons.
// Matching is by ID only: the skeleton supplies the dates, the persisted
// cycle supplies hours, evidence and the submitted flag. Unmatched skeletons
// become blank cycles. The result is newest first.
func Merge(fresh []Skeleton, persisted []Cycle) []Cycle {
	merged, _ := MergeWithOrphans(fresh, persisted)
	return merged
}

// MergeWithOrphans is Merge that also returns the persisted cycles no
// skeleton matched. Orphans appear after a frequency change moves the cycle
// boundaries; they are kept as-is and never reconciled into the new cycles.
func MergeWithOrphans(fresh []Skeleton, persisted []Cycle) (merged, orphans []Cycle) {
	byID := make(map[string]Cycle, len(persisted))
	for _, c := range persisted {
		byID[c.ID] = c
	}

	matched := make(map[string]bool, len(fresh))
	merged = make([]Cycle, 0, len(fresh))
	for _, s := range fresh {
		saved, ok := byID[s.ID]
		if !ok {
			merged = append(merged, NewCycle(s))
			continue
		}
		c := saved.Clone()
		c.StartDate = s.StartDate
		c.EndDate = s.EndDate
		merged = append(merged, c)
		matched[s.ID] = true
	}

	for _, c := range persisted {
		if !matched[c.ID] {
			orphans = append(orphans, c.Clone())
		}
	}

	SortNewestFirst(merged)
	return merged, orphans
}

// FindCurrent returns the cycle whose interval contains now.
func FindCurrent(cycles []Cycle, now generic.TimePoint) (Cycle, bool) {
	for _, c := range cycles {
		if c.Period().Contains(now) {
			return c, true
		}
	}
	return Cycle{}, false
}
