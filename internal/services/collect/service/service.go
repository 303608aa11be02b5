// Package service implements the time-sliced repository collection driver
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ghcollector/internal/modkit/repokit"
	perr "ghcollector/internal/platform/errors"
	"ghcollector/internal/platform/logger"
	"ghcollector/internal/services/collect/domain"
)

// Config holds the collection driver knobs
type Config struct {
	// StatePath is where the search checkpoint lives
	StatePath string

	// WindowDays is the initial partition width; <=0 -> 30
	WindowDays int

	// PagePause is the inter-page sleep; <=0 -> 1s
	PagePause time.Duration

	// OwnerWorkers bounds parallel owner profile fetches; <=0 -> 4
	OwnerWorkers int

	// ProgressEvery logs progress each N collected repositories; <=0 -> 100
	ProgressEvery int
}

// Service drives windows through probe, split, and pagination, feeding pages
// to the pipeline and checkpointing after every page
type Service struct {
	db     repokit.TxRunner
	binder repokit.Binder[domain.StorageRepo]
	search domain.SearchPort
	owners domain.OwnerPort
	quota  domain.QuotaPort
	cfg    Config

	known map[string]struct{}

	log   logger.Logger
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New constructs the collection service
func New(
	db repokit.TxRunner,
	binder repokit.Binder[domain.StorageRepo],
	search domain.SearchPort,
	owners domain.OwnerPort,
	quota domain.QuotaPort,
	cfg Config,
) *Service {
	if db == nil {
		panic("collect.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("collect.Service requires a non nil Repo binder")
	}
	if search == nil || owners == nil {
		panic("collect.Service requires search and owner ports")
	}
	if cfg.StatePath == "" {
		cfg.StatePath = defaultStatePath
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = defaultWindowDays
	}
	if cfg.PagePause <= 0 {
		cfg.PagePause = time.Second
	}
	if cfg.OwnerWorkers <= 0 {
		cfg.OwnerWorkers = 4
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 100
	}
	return &Service{
		db:     db,
		binder: binder,
		search: search,
		owners: owners,
		quota:  quota,
		cfg:    cfg,
		known:  make(map[string]struct{}),
		log:    *logger.Named("collect"),
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Run executes one collection over [req.Start, req.End)
func (s *Service) Run(ctx context.Context, req domain.RunRequest) (domain.RunSummary, error) {
	var sum domain.RunSummary
	if !req.End.After(req.Start) {
		return sum, perr.New(perr.ErrorCodeInvalidArgument, "collect: end must be after start")
	}

	st, err := s.prepareState(req)
	if err != nil {
		return sum, err
	}
	ctx = logger.WithRun(ctx, st.RunID)
	log := logger.C(ctx)

	reads := s.binder.Bind(s.db)
	if err := reads.EnsureSchema(ctx); err != nil {
		return sum, err
	}
	logins, err := reads.KnownOwnerLogins(ctx)
	if err != nil {
		return sum, err
	}
	for _, l := range logins {
		s.known[l] = struct{}{}
	}
	log.Info().
		Int("windows", len(st.TimePeriods)).
		Int("known_owners", len(logins)).
		Time("start", req.Start).
		Time("end", req.End).
		Msg("collection run starting")
	s.logQuota(ctx)

	err = s.drive(ctx, req, st, &sum)

	// flush the checkpoint whatever happened; an interrupt resumes here
	st.LastRun = s.now().UTC()
	if serr := saveState(s.cfg.StatePath, st); serr != nil && err == nil {
		err = serr
	}

	sum.Repositories = st.RepositoriesCollected
	sum.Windows = len(st.TimePeriods)
	log.Info().
		Int("repositories", sum.Repositories).
		Int("pages", sum.Pages).
		Int("windows", sum.Windows).
		Int("owners_fetched", sum.OwnersFetched).
		Int("duplicates", sum.DuplicateRepos).
		Msg("collection run finished")
	if stats, serr := reads.Stats(ctx); serr == nil {
		log.Info().
			Int("repositories", stats.Repositories).
			Int("users", stats.Users).
			Int("organizations", stats.Organizations).
			Msg("store totals")
	}
	return sum, err
}

// lowQuotaFloor is the search-bucket remaining below which a warning fires
const lowQuotaFloor = 100

// logQuota reads /rate_limit when a quota port is wired; monitoring only,
// failures never affect the run
func (s *Service) logQuota(ctx context.Context) {
	if s.quota == nil {
		return
	}
	log := logger.C(ctx)
	rl, err := s.quota.RateLimit(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("rate limit probe failed")
		return
	}
	level := zerolog.InfoLevel
	if rl.Resources.Core.Remaining < lowQuotaFloor || rl.Resources.Search.Remaining < lowQuotaFloor {
		level = zerolog.WarnLevel
	}
	log.WithLevel(level).
		Int("core_remaining", rl.Resources.Core.Remaining).
		Int("search_remaining", rl.Resources.Search.Remaining).
		Int("graphql_remaining", rl.Resources.GraphQL.Remaining).
		Msg("rate limit status")
}

// prepareState loads or creates the checkpoint. A stored state is honored
// only when resume is requested and it covers the same range; its recorded
// subdivisions are then authoritative
func (s *Service) prepareState(req domain.RunRequest) (*domain.CollectionState, error) {
	if req.Resume {
		st, err := loadState(s.cfg.StatePath)
		if err != nil {
			return nil, err
		}
		if st.Matches(req.Start, req.End) {
			if st.RunID == "" {
				st.RunID = uuid.NewString()
			}
			return st, nil
		}
		if st != nil {
			s.log.Warn().
				Time("stored_start", st.StartDate).
				Time("stored_end", st.EndDate).
				Msg("checkpoint covers a different range, starting fresh")
		}
	}
	return &domain.CollectionState{
		RunID:       uuid.NewString(),
		StartDate:   req.Start,
		EndDate:     req.End,
		TimePeriods: initialWindows(req.Start, req.End, s.cfg.WindowDays),
	}, nil
}

// drive is the window state machine: probe each window, split in place while
// over-full, then paginate with a checkpoint after every page
func (s *Service) drive(ctx context.Context, req domain.RunRequest, st *domain.CollectionState, sum *domain.RunSummary) error {
	log := logger.C(ctx)

	for st.CurrentPeriodIndex < len(st.TimePeriods) {
		if req.Limit > 0 && st.RepositoriesCollected >= req.Limit {
			log.Info().Int("limit", req.Limit).Msg("collection limit reached")
			return nil
		}
		w := st.TimePeriods[st.CurrentPeriodIndex]
		query := buildQuery(w, req.Stars)
		page := st.CurrentPeriodPage
		if page < 1 {
			page = 1
		}

		res, err := s.fetchPage(ctx, query, page)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			log.Warn().Err(err).
				Time("window_start", w.Start).
				Time("window_end", w.End).
				Msg("window probe failed after retry, skipping window")
			st.CurrentPeriodIndex++
			st.CurrentPeriodPage = 1
			if err := saveState(s.cfg.StatePath, st); err != nil {
				return err
			}
			continue
		}

		// splitting only happens before any page of the window was consumed
		if page == 1 && res.TotalCount > maxSearchTotal {
			if done, err := s.splitWindow(ctx, st, w, res.TotalCount); err != nil {
				return err
			} else if done {
				continue
			}
			// irresolvable density: the window was skipped, move on
			continue
		}

		pages := pageCount(res.TotalCount)
		for p := page; p <= pages; p++ {
			if p != page {
				if err := s.sleep(ctx, s.cfg.PagePause); err != nil {
					return err
				}
				if res, err = s.fetchPage(ctx, query, p); err != nil {
					if ctx.Err() != nil {
						return err
					}
					log.Warn().Err(err).Int("page", p).Msg("page fetch failed after retry, skipping window remainder")
					break
				}
			}
			ps, err := s.processPage(ctx, res.Items)
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				log.Warn().Err(err).Int("page", p).Msg("page write failed, continuing with next page")
				st.CurrentPeriodPage = p + 1
				st.LastRun = s.now().UTC()
				if err := saveState(s.cfg.StatePath, st); err != nil {
					return err
				}
				continue
			}
			sum.Pages++
			sum.OwnersFetched += ps.ownersFetched
			sum.OwnersKnown += ps.ownersKnown
			sum.ReposSkipped += ps.reposSkipped
			sum.DuplicateRepos += ps.duplicates

			before := st.RepositoriesCollected
			st.RepositoriesCollected += ps.inserted
			st.CurrentPeriodPage = p + 1
			st.LastRun = s.now().UTC()
			if err := saveState(s.cfg.StatePath, st); err != nil {
				return err
			}
			if before/s.cfg.ProgressEvery != st.RepositoriesCollected/s.cfg.ProgressEvery {
				log.Info().
					Int("repositories", st.RepositoriesCollected).
					Int("window", st.CurrentPeriodIndex+1).
					Int("windows", len(st.TimePeriods)).
					Int("page", p).
					Msg("collection progress")
			}
			if req.Limit > 0 && st.RepositoriesCollected >= req.Limit {
				// stop without marking the window done; a resume with a
				// higher limit continues at the saved page
				log.Info().Int("limit", req.Limit).Msg("collection limit reached")
				return nil
			}
		}

		st.CurrentPeriodIndex++
		st.CurrentPeriodPage = 1
		st.LastRun = s.now().UTC()
		if err := saveState(s.cfg.StatePath, st); err != nil {
			return err
		}
	}
	return nil
}

// splitWindow replaces the current window with equal-duration sub-windows.
// Returns done=true when the split happened; false means the window hit the
// one-second floor and was skipped with a warning
func (s *Service) splitWindow(ctx context.Context, st *domain.CollectionState, w domain.Window, total int) (bool, error) {
	log := logger.C(ctx)
	n := subdivisionCount(total)

	if w.Width()/time.Duration(n) < minWindowWidth {
		log.Warn().
			Time("window_start", w.Start).
			Time("window_end", w.End).
			Int("total_count", total).
			Msg("window density irresolvable at one second width, skipping remainder")
		st.CurrentPeriodIndex++
		st.CurrentPeriodPage = 1
		return false, saveState(s.cfg.StatePath, st)
	}

	subs := w.Split(n)
	log.Info().
		Time("window_start", w.Start).
		Time("window_end", w.End).
		Int("total_count", total).
		Int("sub_windows", n).
		Msg("window over the retrieval cap, subdividing")

	replaced := make([]domain.Window, 0, len(st.TimePeriods)+n-1)
	replaced = append(replaced, st.TimePeriods[:st.CurrentPeriodIndex]...)
	replaced = append(replaced, subs...)
	replaced = append(replaced, st.TimePeriods[st.CurrentPeriodIndex+1:]...)
	st.TimePeriods = replaced
	st.CurrentPeriodPage = 1
	return true, saveState(s.cfg.StatePath, st)
}

// fetchPage fetches one search page, retrying a failure once after a pause.
// Context cancellation is returned as-is so the driver can abort
func (s *Service) fetchPage(ctx context.Context, query string, page int) (*domain.SearchResult, error) {
	res, err := s.search.SearchRepositories(ctx, query, page)
	if err == nil || ctx.Err() != nil {
		return res, err
	}
	logger.C(ctx).Warn().Err(err).Int("page", page).Msg("search page failed, retrying once")
	if serr := s.sleep(ctx, s.cfg.PagePause); serr != nil {
		return nil, serr
	}
	return s.search.SearchRepositories(ctx, query, page)
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
