package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ghcollector/internal/modkit"
	"ghcollector/internal/modkit/module"
	"ghcollector/internal/platform/config"
	"ghcollector/internal/platform/logger"
	"ghcollector/internal/platform/store"

	collectdom "ghcollector/internal/services/collect/domain"
	collectmod "ghcollector/internal/services/collect/module"
)

// exitInterrupted is the distinguished code for an operator cancellation;
// the checkpoint is flushed before exiting
const exitInterrupted = 130

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func main() {
	var (
		fTimeRange = flag.String("time-range", "month", "collection range: week | month | year | custom")
		fStartDate = flag.String("start-date", "", "custom range start YYYY-MM-DD")
		fEndDate   = flag.String("end-date", "", "custom range end YYYY-MM-DD (inclusive)")
		fMinStars  = flag.Int("min-stars", 100, "minimum stargazer count")
		fStarRange = flag.String("star-range", "", "closed star interval MIN-MAX (excludes -min-stars)")
		fLimit     = flag.Int("limit", 0, "stop after N collected repositories (0 = unlimited)")
		fResume    = flag.Bool("resume", true, "resume from collection_state.json when it covers the same range")
		fState     = flag.String("state", "", "override the checkpoint path")
		fDBURL     = flag.String("db-url", "", "postgres URL (defaults to DATABASE_URL)")
	)
	flag.Parse()

	l := logger.Get()
	root := config.New()

	stars, err := parseStars(*fMinStars, *fStarRange)
	if err != nil {
		l.Fatal().Err(err).Msg("bad star filter")
	}
	start, end, err := parseRange(*fTimeRange, *fStartDate, *fEndDate, time.Now().UTC())
	if err != nil {
		l.Fatal().Err(err).Msg("bad time range")
	}

	dbURL := *fDBURL
	if dbURL == "" {
		dbURL = root.MustString("DATABASE_URL")
	}
	mustSetEnv("CORE_COLLECT_STATE_PATH", *fState)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{
		AppName: "ghcollector-collect",
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
	cm := collectmod.New(deps)
	module.Register(cm.Name(), cm.Ports())

	ports := cm.Ports().(collectmod.Ports)
	sum, err := ports.Runner.Run(ctx, collectdom.RunRequest{
		Start:  start,
		End:    end,
		Stars:  stars,
		Limit:  *fLimit,
		Resume: *fResume,
	})
	cm.Client().Metrics.Log(l)

	switch {
	case err == nil:
		l.Info().Int("repositories", sum.Repositories).Msg("collection complete")
	case errors.Is(err, context.Canceled):
		l.Warn().Int("repositories", sum.Repositories).Msg("interrupted, checkpoint flushed")
		os.Exit(exitInterrupted)
	default:
		l.Fatal().Err(err).Msg("collection failed")
	}
}

// parseStars builds the star qualifier; -star-range and -min-stars are
// mutually exclusive surfaces for the same filter
func parseStars(minStars int, starRange string) (collectdom.StarFilter, error) {
	if starRange == "" {
		if minStars < 0 {
			return collectdom.StarFilter{}, fmt.Errorf("min-stars must be non-negative")
		}
		return collectdom.StarFilter{Min: minStars}, nil
	}
	var lo, hi int
	if _, err := fmt.Sscanf(strings.TrimSpace(starRange), "%d-%d", &lo, &hi); err != nil {
		return collectdom.StarFilter{}, fmt.Errorf("star-range must look like MIN-MAX: %w", err)
	}
	if lo < 0 || hi < lo {
		return collectdom.StarFilter{}, fmt.Errorf("star-range %d-%d is not a valid interval", lo, hi)
	}
	return collectdom.StarFilter{Min: lo, Max: hi}, nil
}

// parseRange resolves the named range to [start, end). Custom dates are
// inclusive on both ends, so the upper bound advances one day
func parseRange(name, startDate, endDate string, now time.Time) (time.Time, time.Time, error) {
	end := now.Truncate(time.Second)
	switch name {
	case "week":
		return end.AddDate(0, 0, -7), end, nil
	case "month":
		return end.AddDate(0, -1, 0), end, nil
	case "year":
		return end.AddDate(-1, 0, 0), end, nil
	case "custom":
		if startDate == "" || endDate == "" {
			return time.Time{}, time.Time{}, fmt.Errorf("custom range needs -start-date and -end-date")
		}
		s, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad -start-date: %w", err)
		}
		e, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad -end-date: %w", err)
		}
		e = e.AddDate(0, 0, 1)
		if !e.After(s) {
			return time.Time{}, time.Time{}, fmt.Errorf("end-date before start-date")
		}
		return s, e, nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown time-range %q", name)
	}
}
