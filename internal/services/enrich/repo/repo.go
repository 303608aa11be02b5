// Package repo provides postgres access for the enrichment engine
package repo

import (
	"context"

	"ghcollector/internal/modkit/repokit"
	perr "ghcollector/internal/platform/errors"
	"ghcollector/internal/services/enrich/domain"
)

type (
	// PG is a Postgres binder for domain.StorageRepo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for domain.StorageRepo
func NewPG() repokit.Binder[domain.StorageRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.StorageRepo { return &queries{q: q} }

const selectBase = `
	SELECT id, split_part(full_name, '/', 1), name
	FROM repositories
`

// SelectForEnrichment returns repositories still carrying a NULL aggregate,
// or everything when force is set
func (r *queries) SelectForEnrichment(ctx context.Context, force bool) ([]domain.Target, error) {
	sql := selectBase + `
		WHERE contributors_count IS NULL
		   OR commits_count IS NULL
		   OR pull_requests_count IS NULL
		ORDER BY id
	`
	if force {
		sql = selectBase + ` ORDER BY id`
	}
	rows, err := r.q.Query(ctx, sql)
	if err != nil {
		return nil, perr.FromPostgres(err, "select enrichment targets failed")
	}
	return scanTargets(rows)
}

// SelectByIDs returns the targets for the given ids, ordered by id
func (r *queries) SelectByIDs(ctx context.Context, ids []int64) ([]domain.Target, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.q.Query(ctx, selectBase+` WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, perr.FromPostgres(err, "select targets by id failed")
	}
	return scanTargets(rows)
}

func scanTargets(rows repokit.Rows) ([]domain.Target, error) {
	defer rows.Close()
	var out []domain.Target
	for rows.Next() {
		var t domain.Target
		if err := rows.Scan(&t.ID, &t.OwnerLogin, &t.Name); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ApplyDelta writes the aggregates for one repository. A nil contributor
// count keeps whatever the column already holds
func (r *queries) ApplyDelta(ctx context.Context, d domain.Delta) error {
	_, err := r.q.Exec(ctx, `
		UPDATE repositories SET
			commits_count = $2,
			pull_requests_count = $3,
			contributors_count = COALESCE($4, contributors_count)
		WHERE id = $1
	`, d.RepoID, d.Commits, d.PullRequests, d.Contributors)
	if err != nil {
		return perr.FromPostgres(err, "apply enrichment delta failed")
	}
	return nil
}
