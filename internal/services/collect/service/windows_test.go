package service

import (
	"testing"
	"time"

	"ghcollector/internal/services/collect/domain"
)

func day(d int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func TestInitialWindowsPartitions(t *testing.T) {
	ws := initialWindows(day(0), day(90), 30)
	if len(ws) != 3 {
		t.Fatalf("windows = %d, want 3", len(ws))
	}
	if !ws[0].Start.Equal(day(0)) || !ws[0].End.Equal(day(30)) {
		t.Fatalf("first window = %+v", ws[0])
	}
	if !ws[2].End.Equal(day(90)) {
		t.Fatalf("last window end = %v, want %v", ws[2].End, day(90))
	}
}

func TestInitialWindowsClipsLast(t *testing.T) {
	ws := initialWindows(day(0), day(45), 30)
	if len(ws) != 2 {
		t.Fatalf("windows = %d, want 2", len(ws))
	}
	if !ws[1].Start.Equal(day(30)) || !ws[1].End.Equal(day(45)) {
		t.Fatalf("clipped window = %+v", ws[1])
	}
}

func TestSubdivisionCount(t *testing.T) {
	cases := []struct{ total, want int }{
		{1001, 2},
		{2500, 3},
		{3000, 4},
		{9999, 10},
	}
	for _, c := range cases {
		if got := subdivisionCount(c.total); got != c.want {
			t.Errorf("subdivisionCount(%d) = %d, want %d", c.total, got, c.want)
		}
	}
}

func TestPageCount(t *testing.T) {
	cases := []struct{ total, want int }{
		{0, 0},
		{42, 1},
		{100, 1},
		{101, 2},
		{1000, 10},
		{5000, 10}, // reported totals above the cap still stop at ten pages
	}
	for _, c := range cases {
		if got := pageCount(c.total); got != c.want {
			t.Errorf("pageCount(%d) = %d, want %d", c.total, got, c.want)
		}
	}
}

func TestWindowSplitCoversExactly(t *testing.T) {
	w := domain.Window{Start: day(0), End: day(30)}
	subs := w.Split(3)
	if len(subs) != 3 {
		t.Fatalf("subs = %d, want 3", len(subs))
	}
	if !subs[0].Start.Equal(w.Start) || !subs[2].End.Equal(w.End) {
		t.Fatalf("split does not cover the window: %+v", subs)
	}
	for i := 1; i < len(subs); i++ {
		if !subs[i].Start.Equal(subs[i-1].End) {
			t.Fatalf("gap between sub-windows %d and %d", i-1, i)
		}
	}
}

func TestBuildQueryHalfOpenBound(t *testing.T) {
	w := domain.Window{Start: day(0), End: day(30)}
	got := buildQuery(w, domain.StarFilter{Min: 100})
	want := "created:2024-01-01T00:00:00Z..2024-01-30T23:59:59Z stars:>=100"
	if got != want {
		t.Fatalf("query = %q, want %q", got, want)
	}
}

func TestBuildQueryStarRange(t *testing.T) {
	w := domain.Window{Start: day(0), End: day(1)}
	got := buildQuery(w, domain.StarFilter{Min: 50, Max: 200})
	want := "created:2024-01-01T00:00:00Z..2024-01-01T23:59:59Z stars:50..200"
	if got != want {
		t.Fatalf("query = %q, want %q", got, want)
	}
}
