package githubgql

import (
	"fmt"
	"strings"
)

// RepoKey names one repository to resolve in a batch
type RepoKey struct {
	Owner string
	Name  string
}

// RepoStats is the per-repository answer extracted from a batch document
type RepoStats struct {
	NodeID       string
	DatabaseID   int64
	PullRequests int
	Commits      int
}

// batchAlias is the alias for the i-th repository subquery
func batchAlias(i int) string { return fmt.Sprintf("repo%d", i) }

// buildBatchDoc assembles a single query document with one aliased
// repository(...) subquery per key plus a trailing rateLimit block.
// Owner and name travel as variables so the document never needs escaping
func buildBatchDoc(keys []RepoKey) (string, map[string]any) {
	var decl, body strings.Builder
	vars := make(map[string]any, len(keys)*2)

	for i, k := range keys {
		if i > 0 {
			decl.WriteString(", ")
		}
		fmt.Fprintf(&decl, "$owner%d: String!, $name%d: String!", i, i)
		fmt.Fprintf(&body, `
  %s: repository(owner: $owner%d, name: $name%d) {
    id
    databaseId
    pullRequests { totalCount }
    defaultBranchRef { target { ... on Commit { history(first: 100) { totalCount } } } }
  }`, batchAlias(i), i, i)
		vars[fmt.Sprintf("owner%d", i)] = k.Owner
		vars[fmt.Sprintf("name%d", i)] = k.Name
	}
	body.WriteString("\n  rateLimit { remaining resetAt }\n}")

	return "query (" + decl.String() + ") {" + body.String(), vars
}

// repoAnswer mirrors one aliased repository block on the wire
type repoAnswer struct {
	ID           string `json:"id"`
	DatabaseID   *int64 `json:"databaseId"`
	PullRequests *struct {
		TotalCount int `json:"totalCount"`
	} `json:"pullRequests"`
	DefaultBranchRef *struct {
		Target *struct {
			History *struct {
				TotalCount int `json:"totalCount"`
			} `json:"history"`
		} `json:"target"`
	} `json:"defaultBranchRef"`
}

// stats flattens a wire answer; ok is false when databaseId is absent,
// which callers must treat as a failed resolution rather than a zero row
func (a *repoAnswer) stats() (RepoStats, bool) {
	if a.DatabaseID == nil {
		return RepoStats{}, false
	}
	s := RepoStats{NodeID: a.ID, DatabaseID: *a.DatabaseID}
	if a.PullRequests != nil {
		s.PullRequests = a.PullRequests.TotalCount
	}
	// empty repositories have no default branch; zero commits is correct there
	if a.DefaultBranchRef != nil && a.DefaultBranchRef.Target != nil && a.DefaultBranchRef.Target.History != nil {
		s.Commits = a.DefaultBranchRef.Target.History.TotalCount
	}
	return s, true
}
