// Package github provides a resilient GitHub REST v3 client with a credential
// pool and a filesystem response cache
package github

import (
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	perr "ghcollector/internal/platform/errors"
	"ghcollector/internal/platform/logger"
)

const (
	baseURLDefault   = "https://api.github.com"
	defaultTimeout   = 30 * time.Second
	defaultUA        = "ghcollector"
	defaultMaxRetry  = 3
	defaultRetryBase = time.Second
)

// Options configures the Client
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	// Tokens is the credential set handed to the pool
	// Empty is rejected; tokenless crawling is pointless at search quotas
	Tokens []string

	// Retry config for transient responses
	MaxRetries int
	RetryBase  time.Duration

	// Response cache location and TTL; empty dir disables caching
	CacheDir string
	CacheTTL time.Duration
}

// Client is a GitHub REST client with token pooling, retries, and caching
type Client struct {
	http    *http.Client
	opts    Options
	pool    *Pool
	cache   *Cache
	Metrics *Metrics

	log    logger.Logger
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
	jitter func() time.Duration
}

// NewClient creates a new Client with sane defaults
// Fails only when no credentials are configured
func NewClient(o Options) (*Client, error) {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	m := &Metrics{}
	pool, err := NewPool(o.Tokens, WithPoolMetrics(m))
	if err != nil {
		return nil, err
	}
	var cache *Cache
	if o.CacheDir != "" {
		cache = NewCache(o.CacheDir, o.CacheTTL)
	}
	return &Client{
		http:    &http.Client{Timeout: o.Timeout},
		opts:    o,
		pool:    pool,
		cache:   cache,
		Metrics: m,
		log:     *logger.Named("github"),
		now:     time.Now,
		sleep:   sleepCtx,
		jitter:  func() time.Duration { return time.Duration(rand.Int63n(int64(time.Second))) },
	}, nil
}

// Pool exposes the credential pool for callers that want direct feedback
func (c *Client) Pool() *Pool { return c.pool }

// do issues one logical request: cache check, credential acquisition, bounded
// retries with backoff, and rate header feedback after every response
func (c *Client) do(ctx context.Context, method, path string, q url.Values, useCache bool) ([]byte, http.Header, int, error) {
	cacheable := useCache && method == http.MethodGet && c.cache != nil
	if cacheable {
		if raw, ok := c.cache.Get(path, q); ok {
			c.Metrics.CacheHits.Add(1)
			return raw, nil, http.StatusOK, nil
		}
	}

	u := c.opts.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, 0, err
		}

		tok, err := c.pool.Acquire(ctx)
		if err != nil {
			return nil, nil, 0, err
		}

		req, err := http.NewRequestWithContext(ctx, method, u, nil)
		if err != nil {
			return nil, nil, 0, perr.Wrapf(err, perr.ErrorCodeUnknown, "github new request failed")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/vnd.github.v3+json")
		req.Header.Set("Authorization", "token "+tok)

		start := c.now()
		resp, err := c.http.Do(req)
		lat := c.now().Sub(start)
		c.Metrics.Requests.Add(1)

		if err != nil {
			if attempts >= c.opts.MaxRetries {
				return nil, nil, 0, perr.Wrapf(err, perr.ErrorCodeUnavailable, "github do failed")
			}
			back := c.backoff(attempts)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempts).Msg("github transport error retrying")
			c.Metrics.Retries.Add(1)
			if se := c.sleep(ctx, back); se != nil {
				return nil, nil, 0, se
			}
			attempts++
			continue
		}

		rem, reset, retryAfter := parseRateHeaders(resp.Header)
		c.pool.Update(tok, rem, reset)

		c.log.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Int("attempt", attempts).
			Dur("latency", lat).
			Int("rate_remaining", rem).
			Time("rate_reset", reset).
			Msg("github http response")

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			body, rerr := io.ReadAll(resp.Body)
			hdr := resp.Header
			status := resp.StatusCode
			_ = resp.Body.Close()
			if rerr != nil {
				return nil, nil, 0, perr.Wrapf(rerr, perr.ErrorCodeUnavailable, "github read body failed")
			}
			if cacheable && status == http.StatusOK {
				if cerr := c.cache.Put(path, q, body); cerr != nil {
					c.log.Warn().Err(cerr).Str("path", path).Msg("cache write failed")
				}
			}
			return body, hdr, status, nil

		case resp.StatusCode == http.StatusNotFound:
			_ = drainAndClose(resp.Body)
			c.Metrics.NotFound.Add(1)
			return nil, resp.Header, resp.StatusCode, perr.NotFoundf("github: %s not found", path)

		case resp.StatusCode == http.StatusTooManyRequests || c.isRateLimited(resp):
			_ = drainAndClose(resp.Body)
			// mark spent so the pool rotates to (or waits for) another credential
			c.pool.Update(tok, 0, reset)
			wait := computeWait(0, reset, retryAfter, c.now())
			c.log.Warn().Str("path", path).Dur("header_wait", wait).Msg("github rate limited, rotating credential")
			// rotation, not a retry attempt; Acquire blocks if everyone is spent
			continue

		case resp.StatusCode >= 500:
			_ = drainAndClose(resp.Body)
			if attempts >= c.opts.MaxRetries {
				return nil, nil, 0, perr.Newf(perr.ErrorCodeUnavailable, "github transient server error %d", resp.StatusCode)
			}
			back := c.backoff(attempts)
			c.log.Warn().Int("status", resp.StatusCode).Dur("retry_in", back).Msg("github transient error retrying")
			c.Metrics.Retries.Add(1)
			if se := c.sleep(ctx, back); se != nil {
				return nil, nil, 0, se
			}
			attempts++
			continue

		default:
			// remaining 4xx are fatal for this request
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			_ = resp.Body.Close()
			return nil, nil, 0, perr.Newf(perr.ErrorCodeInvalidArgument,
				"github unexpected status %d body %s", resp.StatusCode, string(body))
		}
	}
}

// isRateLimited reports whether a 403 is a quota rejection rather than access
// denial. The caller owns the body; the sniff only consumes a prefix
func (c *Client) isRateLimited(resp *http.Response) bool {
	if resp.StatusCode != http.StatusForbidden {
		return false
	}
	if resp.Header.Get("X-RateLimit-Remaining") == "0" {
		return true
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return strings.Contains(strings.ToLower(string(body)), "rate limit exceeded")
}

// getJSON runs a cached GET and decodes into out
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, useCache bool, out any) error {
	body, _, _, err := c.do(ctx, http.MethodGet, path, q, useCache)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "github decode %s failed", path)
	}
	return nil
}

// backoff is 2^attempt seconds with up to 1s of jitter, capped at 60s
func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBase << uint(attempt)
	if d > 60*time.Second {
		d = 60 * time.Second
	}
	return d + c.jitter()
}
