package service

import (
	"time"

	"ghcollector/internal/services/collect/domain"
)

const (
	// maxSearchTotal is the hard retrieval cap on one search query
	maxSearchTotal = 1000

	// maxSearchPages is maxSearchTotal at 100 items per page
	maxSearchPages = 10

	// minWindowWidth stops subdivision; denser windows are irresolvable
	minWindowWidth = time.Second

	// defaultWindowDays is the initial partition width
	defaultWindowDays = 30

	timeFormat = "2006-01-02T15:04:05Z"
)

// initialWindows partitions [start, end) into fixed-width slices, the last
// clipped to end
func initialWindows(start, end time.Time, days int) []domain.Window {
	if days <= 0 {
		days = defaultWindowDays
	}
	step := time.Duration(days) * 24 * time.Hour
	var out []domain.Window
	for cur := start; cur.Before(end); {
		next := cur.Add(step)
		if next.After(end) {
			next = end
		}
		out = append(out, domain.Window{Start: cur, End: next})
		cur = next
	}
	return out
}

// subdivisionCount is the number of equal sub-windows an over-full window
// splits into: floor(total/cap) + 1, so 2500 hits become 3 sub-windows
func subdivisionCount(total int) int {
	return total/maxSearchTotal + 1
}

// pageCount is how many pages a window actually yields
func pageCount(total int) int {
	if total > maxSearchTotal {
		total = maxSearchTotal
	}
	n := (total + 99) / 100
	if n > maxSearchPages {
		n = maxSearchPages
	}
	return n
}

// buildQuery renders the search qualifier for a window. The window is
// half-open but the created: qualifier is inclusive on both ends, so the
// upper bound is pulled back one second
func buildQuery(w domain.Window, stars domain.StarFilter) string {
	upper := w.End.Add(-time.Second)
	return "created:" + w.Start.UTC().Format(timeFormat) +
		".." + upper.UTC().Format(timeFormat) +
		" " + stars.Qualifier()
}
