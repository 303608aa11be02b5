// Package repo provides postgres access for the collection pipeline
package repo

import (
	"context"

	"ghcollector/internal/modkit/repokit"
	perr "ghcollector/internal/platform/errors"
	pstr "ghcollector/internal/platform/strings"
	ptime "ghcollector/internal/platform/time"
	"ghcollector/internal/services/collect/domain"
)

// textOrNil maps absent and blank profile strings to NULL
func textOrNil(p *string) any { return pstr.SQLNullPtr(p) }

type (
	// PG is a Postgres binder for domain.StorageRepo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for domain.StorageRepo
func NewPG() repokit.Binder[domain.StorageRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.StorageRepo { return &queries{q: q} }

// schemaSQL creates the three collection tables. Owners split across two
// tables because users and organizations are distinct identity spaces; the
// owner reference on repositories is therefore (owner_id, owner_type) and the
// variant-table referent is guaranteed by write ordering, not a FK
const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id               BIGINT PRIMARY KEY,
	login            TEXT NOT NULL UNIQUE,
	name             TEXT,
	company          TEXT,
	blog             TEXT,
	location         TEXT,
	email            TEXT,
	bio              TEXT,
	twitter_username TEXT,
	avatar_url       TEXT,
	public_repos     INT NOT NULL DEFAULT 0,
	public_gists     INT NOT NULL DEFAULT 0,
	followers        INT NOT NULL DEFAULT 0,
	following        INT NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ,
	updated_at       TIMESTAMPTZ,
	country_code     CHAR(2),
	region           TEXT
);

CREATE TABLE IF NOT EXISTS organizations (
	id               BIGINT PRIMARY KEY,
	login            TEXT NOT NULL UNIQUE,
	name             TEXT,
	company          TEXT,
	blog             TEXT,
	location         TEXT,
	email            TEXT,
	bio              TEXT,
	twitter_username TEXT,
	avatar_url       TEXT,
	public_members   INT,
	public_repos     INT NOT NULL DEFAULT 0,
	public_gists     INT NOT NULL DEFAULT 0,
	followers        INT NOT NULL DEFAULT 0,
	following        INT NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ,
	updated_at       TIMESTAMPTZ,
	country_code     CHAR(2),
	region           TEXT
);

CREATE TABLE IF NOT EXISTS repositories (
	id                  BIGINT PRIMARY KEY,
	node_id             TEXT,
	name                TEXT NOT NULL,
	full_name           TEXT NOT NULL UNIQUE,
	owner_id            BIGINT NOT NULL,
	owner_type          TEXT NOT NULL,
	organization_id     BIGINT,
	private             BOOLEAN NOT NULL DEFAULT FALSE,
	fork                BOOLEAN NOT NULL DEFAULT FALSE,
	html_url            TEXT,
	description         TEXT,
	homepage            TEXT,
	language            TEXT,
	default_branch      TEXT,
	size                INT NOT NULL DEFAULT 0,
	stargazers_count    INT NOT NULL DEFAULT 0 CHECK (stargazers_count >= 0),
	watchers_count      INT NOT NULL DEFAULT 0,
	forks_count         INT NOT NULL DEFAULT 0,
	open_issues_count   INT NOT NULL DEFAULT 0,
	contributors_count  INT,
	commits_count       INT,
	pull_requests_count INT,
	created_at          TIMESTAMPTZ,
	updated_at          TIMESTAMPTZ,
	pushed_at           TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS ix_repositories_owner ON repositories (owner_id, owner_type);
CREATE INDEX IF NOT EXISTS ix_repositories_stars ON repositories (stargazers_count DESC);
CREATE INDEX IF NOT EXISTS ix_repositories_created ON repositories (created_at);
`

// EnsureSchema creates the collection tables when absent
func (r *queries) EnsureSchema(ctx context.Context) error {
	if _, err := r.q.Exec(ctx, schemaSQL); err != nil {
		return perr.FromPostgres(err, "ensure schema failed")
	}
	return nil
}

// KnownOwnerLogins returns every stored user and organization login
func (r *queries) KnownOwnerLogins(ctx context.Context) ([]string, error) {
	rows, err := r.q.Query(ctx, `
		SELECT login FROM users
		UNION
		SELECT login FROM organizations
	`)
	if err != nil {
		return nil, perr.FromPostgres(err, "known owner logins failed")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var login string
		if err := rows.Scan(&login); err != nil {
			return nil, err
		}
		out = append(out, login)
	}
	return out, rows.Err()
}

// Stats counts stored rows; consumed by progress and summary logging
func (r *queries) Stats(ctx context.Context) (domain.StoreStats, error) {
	var st domain.StoreStats
	row := r.q.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM repositories),
			(SELECT count(*) FROM users),
			(SELECT count(*) FROM organizations)
	`)
	if err := row.Scan(&st.Repositories, &st.Users, &st.Organizations); err != nil {
		return st, perr.FromPostgres(err, "store stats failed")
	}
	return st, nil
}

// UpsertUser writes a user profile, latest write wins on every field
func (r *queries) UpsertUser(ctx context.Context, p domain.OwnerProfile) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO users (
			id, login, name, company, blog, location, email, bio, twitter_username,
			avatar_url, public_repos, public_gists, followers, following,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO UPDATE SET
			login = EXCLUDED.login,
			name = EXCLUDED.name,
			company = EXCLUDED.company,
			blog = EXCLUDED.blog,
			location = EXCLUDED.location,
			email = EXCLUDED.email,
			bio = EXCLUDED.bio,
			twitter_username = EXCLUDED.twitter_username,
			avatar_url = EXCLUDED.avatar_url,
			public_repos = EXCLUDED.public_repos,
			public_gists = EXCLUDED.public_gists,
			followers = EXCLUDED.followers,
			following = EXCLUDED.following,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
	`,
		p.ID, p.Login, textOrNil(p.Name), textOrNil(p.Company), textOrNil(p.Blog),
		textOrNil(p.Location), textOrNil(p.Email), textOrNil(p.Bio), textOrNil(p.TwitterUsername),
		p.AvatarURL, p.PublicRepos, p.PublicGists, p.Followers, p.Following,
		ptime.Ptr(p.CreatedAt), p.UpdatedAt,
	)
	if err != nil {
		return perr.FromPostgres(err, "upsert user failed")
	}
	return nil
}

// UpsertOrganization writes an organization profile, latest write wins
func (r *queries) UpsertOrganization(ctx context.Context, p domain.OwnerProfile) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO organizations (
			id, login, name, company, blog, location, email, bio, twitter_username,
			avatar_url, public_members, public_repos, public_gists, followers, following,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (id) DO UPDATE SET
			login = EXCLUDED.login,
			name = EXCLUDED.name,
			company = EXCLUDED.company,
			blog = EXCLUDED.blog,
			location = EXCLUDED.location,
			email = EXCLUDED.email,
			bio = EXCLUDED.bio,
			twitter_username = EXCLUDED.twitter_username,
			avatar_url = EXCLUDED.avatar_url,
			public_members = EXCLUDED.public_members,
			public_repos = EXCLUDED.public_repos,
			public_gists = EXCLUDED.public_gists,
			followers = EXCLUDED.followers,
			following = EXCLUDED.following,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
	`,
		p.ID, p.Login, textOrNil(p.Name), textOrNil(p.Company), textOrNil(p.Blog),
		textOrNil(p.Location), textOrNil(p.Email), textOrNil(p.Bio), textOrNil(p.TwitterUsername),
		p.AvatarURL, p.PublicMembers, p.PublicRepos, p.PublicGists, p.Followers, p.Following,
		ptime.Ptr(p.CreatedAt), p.UpdatedAt,
	)
	if err != nil {
		return perr.FromPostgres(err, "upsert organization failed")
	}
	return nil
}

// UpsertRepository writes a search item keyed on the numeric id. Conflicting
// rows take the newer summary on every field except the enrichment aggregates,
// which only the enrichment path writes. xmax = 0 distinguishes insert from
// update on the returned row
func (r *queries) UpsertRepository(ctx context.Context, s domain.RepoSummary) (bool, error) {
	var orgID *int64
	if s.Owner.Type == "Organization" {
		orgID = &s.Owner.ID
	}

	row := r.q.QueryRow(ctx, `
		INSERT INTO repositories (
			id, node_id, name, full_name, owner_id, owner_type, organization_id,
			private, fork, html_url, description, homepage, language,
			default_branch, size, stargazers_count, watchers_count, forks_count,
			open_issues_count, created_at, updated_at, pushed_at
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22
		)
		ON CONFLICT (id) DO UPDATE SET
			node_id = EXCLUDED.node_id,
			name = EXCLUDED.name,
			full_name = EXCLUDED.full_name,
			owner_id = EXCLUDED.owner_id,
			owner_type = EXCLUDED.owner_type,
			organization_id = EXCLUDED.organization_id,
			private = EXCLUDED.private,
			fork = EXCLUDED.fork,
			html_url = EXCLUDED.html_url,
			description = EXCLUDED.description,
			homepage = EXCLUDED.homepage,
			language = EXCLUDED.language,
			default_branch = EXCLUDED.default_branch,
			size = EXCLUDED.size,
			stargazers_count = EXCLUDED.stargazers_count,
			watchers_count = EXCLUDED.watchers_count,
			forks_count = EXCLUDED.forks_count,
			open_issues_count = EXCLUDED.open_issues_count,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			pushed_at = EXCLUDED.pushed_at
		RETURNING (xmax = 0)
	`,
		s.ID, s.NodeID, s.Name, s.FullName, s.Owner.ID, s.Owner.Type, orgID,
		s.Private, s.Fork, s.HTMLURL, s.Description, s.Homepage, s.Language,
		s.DefaultBranch, s.Size, s.StargazersCount, s.WatchersCount, s.ForksCount,
		s.OpenIssuesCount, s.CreatedAt, s.UpdatedAt, s.PushedAt,
	)

	var inserted bool
	if err := row.Scan(&inserted); err != nil {
		return false, perr.FromPostgres(err, "upsert repository failed")
	}
	return inserted, nil
}
