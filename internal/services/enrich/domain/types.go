// Package domain holds the core types and ports for repository enrichment
package domain

import "ghcollector/internal/adapters/githubgql"

// Batch shapes re-exported from the GraphQL adapter
type (
	// RepoKey names one repository inside a batch document
	RepoKey = githubgql.RepoKey

	// RepoStats is one resolved repository answer
	RepoStats = githubgql.RepoStats

	// BatchResult is the outcome of one batch round trip
	BatchResult = githubgql.BatchResult
)

// Target is one repository selected for enrichment
type Target struct {
	ID         int64
	OwnerLogin string
	Name       string
}

// Key returns the batch key for the target
func (t Target) Key() RepoKey { return RepoKey{Owner: t.OwnerLogin, Name: t.Name} }

// Delta is the aggregate update for one repository, keyed on the numeric id.
// Contributors stays nil when the count could not be derived; the column is
// then left untouched
type Delta struct {
	RepoID       int64
	Commits      int
	PullRequests int
	Contributors *int
}

// RunRequest describes one enrichment run
type RunRequest struct {
	BatchSize       int
	DryRun          bool
	Force           bool
	RetryFailedPath string // when set, only the listed ids are attempted
}

// RunSummary reports what a run did
type RunSummary struct {
	Targets  int
	Batches  int
	Enriched int
	Missing  int // repositories GitHub no longer resolves
	Failed   int // repositories in terminally failed batches
}
