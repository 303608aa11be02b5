package github

import (
	"context"
	"strings"
	"sync"
	"time"

	perr "ghcollector/internal/platform/errors"
	"ghcollector/internal/platform/logger"
)

const (
	// defaultQuota is the REST core per-hour allowance assumed until headers say otherwise
	defaultQuota = 5000

	// poolPollEvery bounds how long an exhausted pool sleeps before re-checking
	poolPollEvery = 30 * time.Second
)

// ErrPoolEmpty is returned when a pool is constructed with no credentials
var ErrPoolEmpty = perr.New(perr.ErrorCodeInvalidArgument, "token pool: no credentials configured")

// tokenState tracks one credential's quota as reported by response headers
type tokenState struct {
	token     string
	remaining int
	reset     time.Time
	lastUsed  time.Time
}

// Pool multiplexes N credentials, always handing out the one with the most
// remaining quota. All state is guarded by a single mutex; Acquire blocks only
// when every credential is exhausted
type Pool struct {
	mu      sync.Mutex
	toks    []*tokenState
	quota   int
	metrics *Metrics
	last    string

	log   logger.Logger
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// PoolOption mutates a Pool during construction
type PoolOption func(*Pool)

// WithPoolQuota overrides the assumed per-hour quota
func WithPoolQuota(q int) PoolOption {
	return func(p *Pool) {
		if q > 0 {
			p.quota = q
		}
	}
}

// WithPoolMetrics attaches shared counters (rotations, waits)
func WithPoolMetrics(m *Metrics) PoolOption {
	return func(p *Pool) { p.metrics = m }
}

// NewPool builds a pool from raw token strings, dropping blanks
func NewPool(tokens []string, opts ...PoolOption) (*Pool, error) {
	p := &Pool{
		quota: defaultQuota,
		log:   *logger.Named("tokenpool"),
		now:   time.Now,
		sleep: sleepCtx,
	}
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		p.toks = append(p.toks, &tokenState{token: t, remaining: p.quota})
	}
	for _, o := range opts {
		o(p)
	}
	if len(p.toks) == 0 {
		return nil, ErrPoolEmpty
	}
	// quota override applies to the optimistic initial state too
	for _, ts := range p.toks {
		ts.remaining = p.quota
	}
	return p, nil
}

// Size returns the number of credentials in the pool
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.toks)
}

// Acquire returns the credential with the most remaining quota, breaking ties
// by oldest last_used. When every credential is spent it blocks until the
// earliest reset, polling every 30 seconds and logging the remaining wait
func (p *Pool) Acquire(ctx context.Context) (string, error) {
	for {
		p.mu.Lock()
		best := p.pickLocked()
		if best != nil {
			best.remaining--
			best.lastUsed = p.now()
			if p.last != "" && p.last != best.token {
				if p.metrics != nil {
					p.metrics.Rotations.Add(1)
				}
			}
			p.last = best.token
			tok := best.token
			p.mu.Unlock()
			return tok, nil
		}
		nearest := p.nearestResetLocked()
		p.mu.Unlock()

		wait := nearest.Sub(p.now()) + time.Second
		if wait > poolPollEvery {
			wait = poolPollEvery
		}
		if wait <= 0 {
			wait = time.Second
		}
		p.log.Warn().
			Time("nearest_reset", nearest).
			Dur("sleeping", wait).
			Msg("all credentials exhausted, waiting for reset")
		if p.metrics != nil {
			p.metrics.RateWaits.Add(1)
		}
		if err := p.sleep(ctx, wait); err != nil {
			return "", err
		}
	}
}

// Update records the authoritative quota headers for a credential
func (p *Pool) Update(token string, remaining int, reset time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ts := range p.toks {
		if ts.token != token {
			continue
		}
		ts.remaining = remaining
		if !reset.IsZero() {
			ts.reset = reset
		}
		return
	}
}

// pickLocked selects max remaining / oldest lastUsed, applying optimistic
// resets for credentials whose reset time has passed. Caller holds the mutex
func (p *Pool) pickLocked() *tokenState {
	now := p.now()
	var best *tokenState
	for _, ts := range p.toks {
		if ts.remaining <= 0 && !ts.reset.IsZero() && !now.Before(ts.reset) {
			ts.remaining = p.quota
			ts.reset = time.Time{}
		}
		if ts.remaining <= 0 {
			continue
		}
		if best == nil ||
			ts.remaining > best.remaining ||
			(ts.remaining == best.remaining && ts.lastUsed.Before(best.lastUsed)) {
			best = ts
		}
	}
	return best
}

// nearestResetLocked returns the earliest known reset among spent credentials
func (p *Pool) nearestResetLocked() time.Time {
	var nearest time.Time
	for _, ts := range p.toks {
		if ts.reset.IsZero() {
			continue
		}
		if nearest.IsZero() || ts.reset.Before(nearest) {
			nearest = ts.reset
		}
	}
	if nearest.IsZero() {
		// no header seen yet; a credential spent locally resets within the hour
		nearest = p.now().Add(poolPollEvery)
	}
	return nearest
}
