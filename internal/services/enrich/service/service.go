// Package service implements the batched GraphQL enrichment engine
package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"ghcollector/internal/modkit/repokit"
	"ghcollector/internal/platform/logger"
	"ghcollector/internal/services/enrich/domain"
)

// Config holds the enrichment engine knobs
type Config struct {
	// BatchSize is repositories per GraphQL document; <=0 -> 50
	BatchSize int

	// MaxAttempts per batch; <=0 -> 3
	MaxAttempts int

	// RetryBase for the 2^attempt backoff; <=0 -> 1s
	RetryBase time.Duration

	// CheckpointPath is the next-batch-index file
	CheckpointPath string

	// FailedDir is where dated failure files land; "" -> cwd
	FailedDir string

	// RateFloor pauses until quota reset when remaining drops to it; <=0 -> 3
	RateFloor int
}

// Service walks enrichment targets batch by batch, one transaction per batch,
// checkpointing the next batch index after every batch
type Service struct {
	db           repokit.TxRunner
	binder       repokit.Binder[domain.StorageRepo]
	batcher      domain.BatcherPort
	contributors domain.ContributorsPort // optional
	cfg          Config

	log   logger.Logger
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New constructs the enrichment service; contributors may be nil
func New(
	db repokit.TxRunner,
	binder repokit.Binder[domain.StorageRepo],
	batcher domain.BatcherPort,
	contributors domain.ContributorsPort,
	cfg Config,
) *Service {
	if db == nil {
		panic("enrich.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("enrich.Service requires a non nil Repo binder")
	}
	if batcher == nil {
		panic("enrich.Service requires a batcher port")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.CheckpointPath == "" {
		cfg.CheckpointPath = defaultCheckpointPath
	}
	if cfg.RateFloor <= 0 {
		cfg.RateFloor = 3
	}
	return &Service{
		db:           db,
		binder:       binder,
		batcher:      batcher,
		contributors: contributors,
		cfg:          cfg,
		log:          *logger.Named("enrich"),
		now:          time.Now,
		sleep:        sleepCtx,
	}
}

// Run enriches every selected repository in batches
func (s *Service) Run(ctx context.Context, req domain.RunRequest) (domain.RunSummary, error) {
	var sum domain.RunSummary
	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.cfg.BatchSize
	}

	targets, err := s.selectTargets(ctx, req)
	if err != nil {
		return sum, err
	}
	sum.Targets = len(targets)
	if len(targets) == 0 {
		s.log.Info().Msg("no repositories need enrichment")
		return sum, removeCheckpoint(s.cfg.CheckpointPath)
	}

	batches := (len(targets) + batchSize - 1) / batchSize
	sum.Batches = batches

	start := 0
	// a targeted retry run is always complete in itself; only full runs resume
	if req.RetryFailedPath == "" {
		if cp, ok, err := loadCheckpoint(s.cfg.CheckpointPath); err != nil {
			return sum, err
		} else if ok && cp > 0 && cp < batches {
			start = cp
			s.log.Info().Int("batch", start).Int("batches", batches).Msg("resuming from enrichment checkpoint")
		}
	}

	failedPath := filepath.Join(s.cfg.FailedDir,
		fmt.Sprintf("failed_repo_ids_%s.txt", s.now().UTC().Format("20060102")))

	s.log.Info().
		Int("targets", len(targets)).
		Int("batch_size", batchSize).
		Int("batches", batches).
		Bool("dry_run", req.DryRun).
		Msg("enrichment run starting")

	for i := start; i < batches; i++ {
		lo := i * batchSize
		hi := min(lo+batchSize, len(targets))
		batch := targets[lo:hi]

		res, err := s.fetchWithRetry(ctx, batch)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				// interrupted: the checkpoint still points at this batch
				return sum, errors.Join(err, saveCheckpoint(s.cfg.CheckpointPath, i))
			}
			ids := make([]int64, len(batch))
			for j, t := range batch {
				ids[j] = t.ID
			}
			s.log.Error().Err(err).Int("batch", i).Int("size", len(batch)).
				Msg("batch failed terminally, recording ids for retry")
			if ferr := appendFailedIDs(failedPath, ids); ferr != nil {
				return sum, ferr
			}
			sum.Failed += len(batch)
			if cerr := saveCheckpoint(s.cfg.CheckpointPath, i+1); cerr != nil {
				return sum, cerr
			}
			continue
		}

		applied, missing, err := s.applyBatch(ctx, batch, res, req.DryRun)
		if err != nil {
			return sum, errors.Join(err, saveCheckpoint(s.cfg.CheckpointPath, i))
		}
		sum.Enriched += applied
		sum.Missing += missing

		if err := saveCheckpoint(s.cfg.CheckpointPath, i+1); err != nil {
			return sum, err
		}
		s.log.Info().Int("batch", i+1).Int("batches", batches).
			Int("enriched", sum.Enriched).Msg("enrichment progress")

		if i+1 < batches && res.Rate.Remaining <= s.cfg.RateFloor && !res.Rate.ResetAt.IsZero() {
			wait := res.Rate.ResetAt.Sub(s.now()) + 2*time.Second
			if wait > 0 {
				s.log.Warn().Dur("sleeping", wait).Msg("graphql quota low, pausing before next batch")
				if err := s.sleep(ctx, wait); err != nil {
					return sum, errors.Join(err, saveCheckpoint(s.cfg.CheckpointPath, i+1))
				}
			}
		}
	}

	s.log.Info().
		Int("enriched", sum.Enriched).
		Int("missing", sum.Missing).
		Int("failed", sum.Failed).
		Msg("enrichment run finished")
	return sum, removeCheckpoint(s.cfg.CheckpointPath)
}

// selectTargets picks the run's repositories: a failure-file retry when
// requested, NULL-aggregate rows otherwise, everything under force
func (s *Service) selectTargets(ctx context.Context, req domain.RunRequest) ([]domain.Target, error) {
	reads := s.binder.Bind(s.db)
	if req.RetryFailedPath != "" {
		ids, err := loadFailedIDs(req.RetryFailedPath)
		if err != nil {
			return nil, err
		}
		return reads.SelectByIDs(ctx, ids)
	}
	return reads.SelectForEnrichment(ctx, req.Force)
}

// fetchWithRetry runs one batch with bounded attempts; quota waits happen
// inside the batcher and do not consume attempts
func (s *Service) fetchWithRetry(ctx context.Context, batch []domain.Target) (*domain.BatchResult, error) {
	keys := make([]domain.RepoKey, len(batch))
	for i, t := range batch {
		keys[i] = t.Key()
	}
	var last error
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			back := s.cfg.RetryBase << uint(attempt)
			s.log.Warn().Err(last).Int("attempt", attempt).Dur("retry_in", back).
				Msg("batch fetch failed, retrying")
			if err := s.sleep(ctx, back); err != nil {
				return nil, err
			}
		}
		res, err := s.batcher.FetchBatch(ctx, keys)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		last = err
	}
	return nil, last
}

// applyBatch turns resolved stats into deltas and writes them in a single
// transaction. Dry runs log the deltas and write nothing
func (s *Service) applyBatch(ctx context.Context, batch []domain.Target, res *domain.BatchResult, dryRun bool) (applied, missing int, err error) {
	deltas := make([]domain.Delta, 0, len(batch))
	for idx, t := range batch {
		stats, ok := res.Stats[idx]
		if !ok {
			missing++
			s.log.Warn().Int64("repo_id", t.ID).Str("owner", t.OwnerLogin).Str("name", t.Name).
				Msg("repository no longer resolves, leaving aggregates NULL")
			continue
		}
		if stats.DatabaseID != t.ID {
			// renamed or transferred repositories can resolve to another row;
			// trust the numeric id the API returned
			s.log.Warn().Int64("selected_id", t.ID).Int64("database_id", stats.DatabaseID).
				Msg("repository id changed since collection")
		}
		d := domain.Delta{
			RepoID:       stats.DatabaseID,
			Commits:      stats.Commits,
			PullRequests: stats.PullRequests,
		}
		if s.contributors != nil {
			if n, cerr := s.contributors.ContributorsCount(ctx, t.OwnerLogin, t.Name); cerr != nil {
				s.log.Warn().Err(cerr).Str("owner", t.OwnerLogin).Str("name", t.Name).
					Msg("contributor count failed, leaving column NULL")
			} else {
				d.Contributors = &n
			}
		}
		deltas = append(deltas, d)
	}

	if dryRun {
		for _, d := range deltas {
			s.log.Info().Int64("repo_id", d.RepoID).Int("commits", d.Commits).
				Int("pull_requests", d.PullRequests).Msg("dry run delta")
		}
		return len(deltas), missing, nil
	}

	err = repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
		writes := s.binder.Bind(q)
		for _, d := range deltas {
			if err := writes.ApplyDelta(ctx, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, missing, err
	}
	return len(deltas), missing, nil
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
