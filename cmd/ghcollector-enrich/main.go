package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"ghcollector/internal/modkit"
	"ghcollector/internal/modkit/module"
	"ghcollector/internal/platform/config"
	"ghcollector/internal/platform/logger"
	"ghcollector/internal/platform/store"

	enrichdom "ghcollector/internal/services/enrich/domain"
	enrichmod "ghcollector/internal/services/enrich/module"
)

const exitInterrupted = 130

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func main() {
	var (
		fBatchSize   = flag.Int("batch-size", 50, "repositories per GraphQL batch")
		fDryRun      = flag.Bool("dry-run", false, "map and log deltas without writing")
		fForce       = flag.Bool("force", false, "re-enrich repositories that already have aggregates")
		fRetryFailed = flag.String("retry-failed", "", "path to a failed_repo_ids file; only those ids are attempted")
		fDBURL       = flag.String("db-url", "", "postgres URL (defaults to DATABASE_URL)")
	)
	flag.Parse()

	l := logger.Get()
	root := config.New()

	dbURL := *fDBURL
	if dbURL == "" {
		dbURL = root.MustString("DATABASE_URL")
	}
	mustSetEnv("CORE_ENRICH_BATCH_SIZE", strconv.Itoa(*fBatchSize))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{
		AppName: "ghcollector-enrich",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         dbURL,
			MaxConns:    int32(root.Prefix("SERVICE_PGSQL_").MayInt("MAX_CONNS", 4)),
			SlowQueryMs: root.Prefix("SERVICE_PGSQL_").MayInt("SLOW_MS", 500),
			LogSQL:      root.Prefix("SERVICE_PGSQL_").MayBool("LOG_SQL", false),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Fatal().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	deps := modkit.Deps{Cfg: root, PG: st.PG, Log: *l}
	em := enrichmod.New(deps)
	module.Register(em.Name(), em.Ports())

	ports := em.Ports().(enrichmod.Ports)
	sum, err := ports.Runner.Run(ctx, enrichdom.RunRequest{
		BatchSize:       *fBatchSize,
		DryRun:          *fDryRun,
		Force:           *fForce,
		RetryFailedPath: *fRetryFailed,
	})
	if c := em.Client(); c != nil {
		c.Metrics.Log(l)
	}

	switch {
	case err == nil:
		l.Info().
			Int("enriched", sum.Enriched).
			Int("missing", sum.Missing).
			Int("failed", sum.Failed).
			Msg("enrichment complete")
	case errors.Is(err, context.Canceled):
		l.Warn().Int("enriched", sum.Enriched).Msg("interrupted, checkpoint flushed")
		os.Exit(exitInterrupted)
	default:
		l.Fatal().Err(err).Msg("enrichment failed")
	}
}
