package github

import "time"

// OwnerSummary is the embedded owner shape on search results
type OwnerSummary struct {
	Login     string `json:"login"`
	ID        int64  `json:"id"`
	Type      string `json:"type"` // "User" or "Organization"
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

// RepoSummary is the repository shape returned by /search/repositories
type RepoSummary struct {
	ID              int64        `json:"id"`
	NodeID          string       `json:"node_id"`
	Name            string       `json:"name"`
	FullName        string       `json:"full_name"`
	Owner           OwnerSummary `json:"owner"`
	Private         bool         `json:"private"`
	Fork            bool         `json:"fork"`
	HTMLURL         string       `json:"html_url"`
	Description     *string      `json:"description"`
	Homepage        *string      `json:"homepage"`
	Language        *string      `json:"language"`
	DefaultBranch   string       `json:"default_branch"`
	Size            int          `json:"size"`
	StargazersCount int          `json:"stargazers_count"`
	WatchersCount   int          `json:"watchers_count"`
	ForksCount      int          `json:"forks_count"`
	OpenIssuesCount int          `json:"open_issues_count"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	PushedAt        *time.Time   `json:"pushed_at"`
}

// SearchResult is the envelope returned by /search/repositories
type SearchResult struct {
	TotalCount        int           `json:"total_count"`
	IncompleteResults bool          `json:"incomplete_results"`
	Items             []RepoSummary `json:"items"`
}

// OwnerProfile is the full profile from /users/{login} or /orgs/{login}
// Org-only fields stay nil/zero for users and vice versa
type OwnerProfile struct {
	Login           string     `json:"login"`
	ID              int64      `json:"id"`
	Type            string     `json:"type"`
	Name            *string    `json:"name"`
	Company         *string    `json:"company"`
	Blog            *string    `json:"blog"`
	Location        *string    `json:"location"`
	Email           *string    `json:"email"`
	Bio             *string    `json:"bio"`
	TwitterUsername *string    `json:"twitter_username"`
	AvatarURL       string     `json:"avatar_url"`
	PublicMembers   *int       `json:"public_members"` // organizations only
	PublicRepos     int        `json:"public_repos"`
	PublicGists     int        `json:"public_gists"`
	Followers       int        `json:"followers"`
	Following       int        `json:"following"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at"`
}

// RateBucket is one resource bucket from /rate_limit
type RateBucket struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	Reset     int64 `json:"reset"`
}

// RateLimit is the /rate_limit document (core and search buckets)
type RateLimit struct {
	Resources struct {
		Core    RateBucket `json:"core"`
		Search  RateBucket `json:"search"`
		GraphQL RateBucket `json:"graphql"`
	} `json:"resources"`
}
