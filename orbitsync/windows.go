package orbitsync

import "time"

// DateRange is one inclusive window of a larger reporting span.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// SplitRange covers [start, end] with contiguous, non-overlapping windows of
// at most maxSpanDays days each; the last window is truncated at end. The
// Orbit reporting endpoints reject spans longer than 60 days, so large
// backfills are walked window by window.
func SplitRange(start, end time.Time, maxSpanDays int) []DateRange {
	start = dateOnly(start)
	end = dateOnly(end)
	if maxSpanDays <= 0 || end.Before(start) {
		return nil
	}

	var out []DateRange
	for s := start; !s.After(end); s = s.AddDate(0, 0, maxSpanDays) {
		e := s.AddDate(0, 0, maxSpanDays-1)
		if e.After(end) {
			e = end
		}
		out = append(out, DateRange{Start: s, End: e})
	}
	return out
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
