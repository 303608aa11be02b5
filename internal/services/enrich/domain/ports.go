package domain

import "context"

// RunnerPort is the public port exposed by the enrich module
type RunnerPort interface {
	Run(ctx context.Context, req RunRequest) (RunSummary, error)
}

// StorageRepo is the storage surface enrichment reads and writes through
type StorageRepo interface {
	// SelectForEnrichment returns repositories with any NULL aggregate,
	// or every repository when force is set, ordered by id
	SelectForEnrichment(ctx context.Context, force bool) ([]Target, error)

	// SelectByIDs returns the targets for the given repository ids
	SelectByIDs(ctx context.Context, ids []int64) ([]Target, error)

	// ApplyDelta writes one repository's aggregates
	ApplyDelta(ctx context.Context, d Delta) error
}

// BatcherPort resolves one batch of repositories via the GraphQL API
type BatcherPort interface {
	FetchBatch(ctx context.Context, keys []RepoKey) (*BatchResult, error)
}

// ContributorsPort derives a contributor count; best-effort, a failure leaves
// the column NULL without failing the batch
type ContributorsPort interface {
	ContributorsCount(ctx context.Context, owner, name string) (int, error)
}
