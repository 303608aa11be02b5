package domain

import "context"

// RunnerPort is the public port exposed by the collect module
type RunnerPort interface {
	Run(ctx context.Context, req RunRequest) (RunSummary, error)
}

// StorageRepo is the storage surface the pipeline writes through.
// Bound to a transaction for page writes and to the pool for reads
type StorageRepo interface {
	// EnsureSchema creates the owner and repository tables when absent
	EnsureSchema(ctx context.Context) error

	// KnownOwnerLogins returns every user and organization login already stored
	KnownOwnerLogins(ctx context.Context) ([]string, error)

	// UpsertUser writes a user profile, latest write wins
	UpsertUser(ctx context.Context, p OwnerProfile) error

	// UpsertOrganization writes an organization profile, latest write wins
	UpsertOrganization(ctx context.Context, p OwnerProfile) error

	// UpsertRepository writes a search item. Updates keep previously written
	// enrichment aggregates. Reports whether a new row was created
	UpsertRepository(ctx context.Context, r RepoSummary) (inserted bool, err error)

	// Stats counts stored rows for progress reporting
	Stats(ctx context.Context) (StoreStats, error)
}

// SearchPort is one page of repository discovery
type SearchPort interface {
	SearchRepositories(ctx context.Context, query string, page int) (*SearchResult, error)
}

// OwnerPort fetches full owner profiles; nil result means the account is gone
type OwnerPort interface {
	UserByLogin(ctx context.Context, login string) (*OwnerProfile, error)
	OrgByLogin(ctx context.Context, login string) (*OwnerProfile, error)
}

// QuotaPort reads the live rate limit document; optional on the driver
type QuotaPort interface {
	RateLimit(ctx context.Context) (*RateLimit, error)
}
