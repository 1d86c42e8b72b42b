package kpi

import (
	"fmt"
	"time"
)

// Granularity selects the step used to partition a date range.
type Granularity string

const (
	Daily   Granularity = "day"
	Weekly  Granularity = "week"
	Monthly Granularity = "month"
)

// ParseGranularity maps a user-supplied string to a Granularity.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case Daily, Weekly, Monthly:
		return Granularity(s), nil
	}
	return "", fmt.Errorf("unknown granularity %q (want day, week or month)", s)
}

// period is a half-open interval [Start, End).
type period struct {
	Start time.Time
	End   time.Time
}

// periodsBetween partitions the inclusive date range [start, end] into
// contiguous half-open periods stepped from start. Steps are calendar-aware
// (AddDate), so monthly periods follow month boundaries rather than fixed
// 30-day blocks. The final period is clamped so the union of all periods is
// exactly [start, end+1d) at day resolution — no gaps, no overlaps.
func periodsBetween(start, end time.Time, g Granularity) []period {
	start = truncateDay(start)
	end = truncateDay(end)
	if end.Before(start) {
		return nil
	}

	endExclusive := end.AddDate(0, 0, 1)
	var out []period
	for cur := start; cur.Before(endExclusive); {
		next := advance(cur, g)
		if next.After(endExclusive) {
			next = endExclusive
		}
		out = append(out, period{Start: cur, End: next})
		cur = next
	}
	return out
}

func advance(t time.Time, g Granularity) time.Time {
	switch g {
	case Weekly:
		return t.AddDate(0, 0, 7)
	case Monthly:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
