package service

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"ghcollector/internal/modkit/repokit"
	"ghcollector/internal/platform/logger"
	"ghcollector/internal/services/collect/domain"
)

// pageStats is what one page contributed
type pageStats struct {
	inserted        int
	duplicates      int
	ownersFetched   int
	ownersKnown     int
	reposSkipped    int
	dupOwnersInPage int
}

// ownerFetch is the resolution of one unknown owner on a page
type ownerFetch struct {
	summary domain.OwnerSummary
	profile *domain.OwnerProfile // nil when the fetch failed or the account is gone
}

// processPage writes one search page: distinct owners first, their
// repositories second, all inside a single transaction so a repository row
// never lands without its owner. Owner profile fetches for unknown logins run
// before the transaction opens, bounded by OwnerWorkers
func (s *Service) processPage(ctx context.Context, items []domain.RepoSummary) (pageStats, error) {
	var st pageStats
	log := logger.C(ctx)

	// distinct owners in page order; repeats within a page are a signal that
	// one owner matched several repositories
	seen := make(map[string]domain.OwnerSummary, len(items))
	var order []string
	for _, it := range items {
		if _, ok := seen[it.Owner.Login]; ok {
			st.dupOwnersInPage++
			continue
		}
		seen[it.Owner.Login] = it.Owner
		order = append(order, it.Owner.Login)
	}

	// split into known and to-fetch
	var unknown []domain.OwnerSummary
	for _, login := range order {
		if _, ok := s.known[login]; ok {
			st.ownersKnown++
			continue
		}
		unknown = append(unknown, seen[login])
	}

	fetched := make(map[string]ownerFetch, len(unknown))
	if len(unknown) > 0 {
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.OwnerWorkers)
		for _, o := range unknown {
			o := o
			g.Go(func() error {
				var (
					p   *domain.OwnerProfile
					err error
				)
				if o.Type == "Organization" {
					p, err = s.owners.OrgByLogin(gctx, o.Login)
				} else {
					p, err = s.owners.UserByLogin(gctx, o.Login)
				}
				if err != nil {
					// the owner's repositories on this page are skipped, the
					// page itself proceeds
					log.Warn().Err(err).Str("login", o.Login).Msg("owner fetch failed, skipping its repositories")
					p = nil
					err = nil
				}
				mu.Lock()
				fetched[o.Login] = ownerFetch{summary: o, profile: p}
				mu.Unlock()
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return st, err
		}
	}

	// one transaction per page: owners in page order, then every repository
	// whose owner resolved
	err := repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
		repo := s.binder.Bind(q)

		for _, login := range order {
			f, ok := fetched[login]
			if !ok {
				continue // already known
			}
			if f.profile == nil {
				continue
			}
			if f.summary.Type == "Organization" {
				if err := repo.UpsertOrganization(ctx, *f.profile); err != nil {
					return err
				}
			} else {
				if err := repo.UpsertUser(ctx, *f.profile); err != nil {
					return err
				}
			}
		}

		for _, it := range items {
			if f, ok := fetched[it.Owner.Login]; ok && f.profile == nil {
				st.reposSkipped++
				continue
			}
			inserted, err := repo.UpsertRepository(ctx, it)
			if err != nil {
				return err
			}
			if inserted {
				st.inserted++
			} else {
				st.duplicates++
			}
		}
		return nil
	})
	if err != nil {
		return pageStats{}, err
	}

	// commit succeeded, the new owners are now known
	for login, f := range fetched {
		if f.profile != nil {
			s.known[login] = struct{}{}
			st.ownersFetched++
		}
	}
	return st, nil
}
