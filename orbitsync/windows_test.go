package orbitsync

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSplitRange_CoversFullSpanInWindows(t *testing.T) {
	start := day(2025, time.January, 1)
	end := start.AddDate(0, 0, 179) // 180 days inclusive

	windows := SplitRange(start, end, 60)
	if len(windows) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(windows))
	}

	if !windows[0].Start.Equal(start) {
		t.Fatalf("first window starts %v, expected %v", windows[0].Start, start)
	}
	if !windows[len(windows)-1].End.Equal(end) {
		t.Fatalf("last window ends %v, expected %v", windows[len(windows)-1].End, end)
	}

	for i, w := range windows {
		span := int(w.End.Sub(w.Start).Hours()/24) + 1
		if span > 60 {
			t.Fatalf("window %d spans %d days, over the 60 day cap", i, span)
		}
		if i > 0 {
			expectedStart := windows[i-1].End.AddDate(0, 0, 1)
			if !w.Start.Equal(expectedStart) {
				t.Fatalf("window %d starts %v, expected contiguous %v", i, w.Start, expectedStart)
			}
		}
	}
}

func TestSplitRange_TruncatesLastWindow(t *testing.T) {
	start := day(2025, time.March, 1)
	end := start.AddDate(0, 0, 70) // 71 days inclusive

	windows := SplitRange(start, end, 60)
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}
	lastSpan := int(windows[1].End.Sub(windows[1].Start).Hours()/24) + 1
	if lastSpan != 11 {
		t.Fatalf("last window spans %d days, expected 11", lastSpan)
	}
}

func TestSplitRange_SingleDay(t *testing.T) {
	d := day(2025, time.June, 15)
	windows := SplitRange(d, d, 60)
	if len(windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(windows))
	}
	if !windows[0].Start.Equal(d) || !windows[0].End.Equal(d) {
		t.Fatalf("single day window got [%v, %v]", windows[0].Start, windows[0].End)
	}
}

func TestSplitRange_InvalidInputs(t *testing.T) {
	start := day(2025, time.June, 15)
	if got := SplitRange(start, start.AddDate(0, 0, -1), 60); got != nil {
		t.Fatalf("reversed range expected nil, got %v", got)
	}
	if got := SplitRange(start, start.AddDate(0, 0, 10), 0); got != nil {
		t.Fatalf("zero span expected nil, got %v", got)
	}
}

func TestSplitRange_NormalizesTimeOfDay(t *testing.T) {
	start := time.Date(2025, time.January, 1, 23, 50, 0, 0, time.UTC)
	end := time.Date(2025, time.January, 3, 0, 10, 0, 0, time.UTC)

	windows := SplitRange(start, end, 60)
	if len(windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(windows))
	}
	if windows[0].Start.Hour() != 0 || windows[0].End.Hour() != 0 {
		t.Fatalf("window bounds not date-normalized: [%v, %v]", windows[0].Start, windows[0].End)
	}
}
