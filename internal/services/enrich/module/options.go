package module

import (
	"time"

	"github.com/go-playground/validator/v10"

	"ghcollector/internal/platform/config"
	perr "ghcollector/internal/platform/errors"
)

// Options holds configuration for the enrich module
type Options struct {
	Tokens    []string      `validate:"required,min=1"`
	CacheDir  string        `validate:"required"`
	UserAgent string
	Timeout   time.Duration `validate:"gte=0"`

	BatchSize      int           `validate:"gt=0,lte=100"`
	MaxAttempts    int           `validate:"gt=0,lte=10"`
	RetryBase      time.Duration `validate:"gt=0"`
	CheckpointPath string        `validate:"required"`
	FailedDir      string
	Contributors   bool
}

// FromConfig reads enrich options: credentials from the global namespace,
// engine tuning under CORE_ENRICH_. Invalid combinations panic at startup
func FromConfig(cfg config.Conf) Options {
	tokens := cfg.MayCSV("GITHUB_API_TOKENS", nil)
	if len(tokens) == 0 {
		if t := cfg.MayString("GITHUB_API_TOKEN", ""); t != "" {
			tokens = []string{t}
		}
	}

	ce := cfg.Prefix("CORE_ENRICH_")
	o := Options{
		Tokens:         tokens,
		CacheDir:       cfg.MayString("CACHE_DIR", ".github_cache"),
		UserAgent:      ce.MayString("USER_AGENT", "ghcollector"),
		Timeout:        ce.MayDuration("TIMEOUT", time.Minute),
		BatchSize:      ce.MayInt("BATCH_SIZE", 50),
		MaxAttempts:    ce.MayInt("ATTEMPTS", 3),
		RetryBase:      ce.MayDuration("RETRY_BASE", time.Second),
		CheckpointPath: ce.MayString("CHECKPOINT_PATH", "enrich_checkpoint.txt"),
		FailedDir:      ce.MayString("FAILED_DIR", "."),
		Contributors:   ce.MayBool("CONTRIBUTORS", true),
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(o); err != nil {
		panic(perr.Wrap(err, perr.ErrorCodeValidation, "enrich options invalid"))
	}
	return o
}
