// Package domain holds the core types and ports for repository collection
package domain

import (
	"fmt"
	"time"

	"ghcollector/internal/adapters/github"
)

// Wire shapes re-exported from the REST adapter; the pipeline consumes them as-is
type (
	// OwnerSummary is the embedded owner on a search item
	OwnerSummary = github.OwnerSummary

	// OwnerProfile is a full user or organization document
	OwnerProfile = github.OwnerProfile

	// RepoSummary is one search item
	RepoSummary = github.RepoSummary

	// SearchResult is one search page envelope
	SearchResult = github.SearchResult

	// RateLimit is the /rate_limit document
	RateLimit = github.RateLimit
)

// StoreStats are row counts for progress reporting
type StoreStats struct {
	Repositories  int
	Users         int
	Organizations int
}

// Window is a half-open [Start, End) interval on repository creation time
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Width returns the window duration
func (w Window) Width() time.Duration { return w.End.Sub(w.Start) }

// Split partitions the window into n equal-duration sub-windows.
// The last sub-window absorbs rounding so the union is exactly [Start, End)
func (w Window) Split(n int) []Window {
	if n <= 1 {
		return []Window{w}
	}
	step := w.Width() / time.Duration(n)
	out := make([]Window, 0, n)
	cur := w.Start
	for i := 0; i < n; i++ {
		end := cur.Add(step)
		if i == n-1 {
			end = w.End
		}
		out = append(out, Window{Start: cur, End: end})
		cur = end
	}
	return out
}

// StarFilter is the star-count qualifier; Max == 0 means open-ended
type StarFilter struct {
	Min int
	Max int
}

// Qualifier renders the search qualifier fragment
func (f StarFilter) Qualifier() string {
	if f.Max > 0 {
		return fmt.Sprintf("stars:%d..%d", f.Min, f.Max)
	}
	return fmt.Sprintf("stars:>=%d", f.Min)
}

// CollectionState is the durable search checkpoint, one JSON document per run
type CollectionState struct {
	RunID                 string    `json:"run_id,omitempty"`
	StartDate             time.Time `json:"start_date"`
	EndDate               time.Time `json:"end_date"`
	TimePeriods           []Window  `json:"time_periods"`
	CurrentPeriodIndex    int       `json:"current_period_index"`
	CurrentPeriodPage     int       `json:"current_period_page"`
	RepositoriesCollected int       `json:"repositories_collected"`
	LastRun               time.Time `json:"last_run"`
}

// Matches reports whether the checkpoint covers the same requested range.
// A differing range means the checkpoint belongs to another run and is replaced
func (s *CollectionState) Matches(start, end time.Time) bool {
	return s != nil && s.StartDate.Equal(start) && s.EndDate.Equal(end)
}

// RunRequest describes one collection run
type RunRequest struct {
	Start  time.Time
	End    time.Time
	Stars  StarFilter
	Limit  int  // 0 = unlimited
	Resume bool // pick up an existing checkpoint covering the same range
}

// RunSummary reports what a run did
type RunSummary struct {
	Repositories   int
	Pages          int
	Windows        int
	OwnersFetched  int
	OwnersKnown    int
	ReposSkipped   int
	DuplicateRepos int
}
