package module

import (
	"time"

	"github.com/go-playground/validator/v10"

	"ghcollector/internal/platform/config"
	perr "ghcollector/internal/platform/errors"
)

// Options holds configuration for the collect module
type Options struct {
	// GitHub credentials and client tuning
	Tokens    []string      `validate:"required,min=1"`
	CacheDir  string        `validate:"required"`
	CacheTTL  time.Duration `validate:"gte=0"`
	UserAgent string

	// Driver tuning
	StatePath     string `validate:"required"`
	WindowDays    int    `validate:"gt=0,lte=366"`
	PagePause     time.Duration
	OwnerWorkers  int `validate:"gt=0,lte=64"`
	ProgressEvery int `validate:"gt=0"`
}

// FromConfig reads collect options: credentials and cache from the global
// namespace, driver tuning under CORE_COLLECT_. Invalid combinations panic
// at startup, not mid-run
func FromConfig(cfg config.Conf) Options {
	tokens := cfg.MayCSV("GITHUB_API_TOKENS", nil)
	if len(tokens) == 0 {
		if t := cfg.MayString("GITHUB_API_TOKEN", ""); t != "" {
			tokens = []string{t}
		}
	}

	cc := cfg.Prefix("CORE_COLLECT_")
	o := Options{
		Tokens:        tokens,
		CacheDir:      cfg.MayString("CACHE_DIR", ".github_cache"),
		CacheTTL:      cc.MayDuration("CACHE_TTL", 24*time.Hour),
		UserAgent:     cc.MayString("USER_AGENT", "ghcollector"),
		StatePath:     cc.MayString("STATE_PATH", "collection_state.json"),
		WindowDays:    cc.MayInt("WINDOW_DAYS", 30),
		PagePause:     cc.MayDuration("PAGE_PAUSE", time.Second),
		OwnerWorkers:  cc.MayInt("OWNER_WORKERS", 4),
		ProgressEvery: cc.MayInt("PROGRESS_EVERY", 100),
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(o); err != nil {
		panic(perr.Wrap(err, perr.ErrorCodeValidation, "collect options invalid"))
	}
	return o
}
