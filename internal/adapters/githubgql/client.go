// Package githubgql batches repository stat lookups over the GitHub GraphQL v4
// API, one aliased subquery per repository in a single document
package githubgql

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	perr "ghcollector/internal/platform/errors"
	"ghcollector/internal/platform/logger"
)

const (
	endpointDefault = "https://api.github.com/graphql"
	timeoutDefault  = 60 * time.Second
)

// Options configures the GraphQL client
type Options struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// Rate is the quota snapshot returned with every batch, merged from the
// rateLimit block and the response headers
type Rate struct {
	Remaining int
	ResetAt   time.Time
}

// BatchResult maps input key indexes to resolved stats. Missing lists the
// indexes GitHub answered NOT_FOUND for; those are data, not errors
type BatchResult struct {
	Stats   map[int]RepoStats
	Missing []int
	Rate    Rate
}

// Client posts batch documents with a static bearer credential
type Client struct {
	http     *http.Client
	endpoint string

	log   logger.Logger
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewClient builds a client; the credential is mandatory
func NewClient(o Options) (*Client, error) {
	if o.Token == "" {
		return nil, perr.New(perr.ErrorCodeInvalidArgument, "graphql: no credential configured")
	}
	if o.Endpoint == "" {
		o.Endpoint = endpointDefault
	}
	if o.Timeout <= 0 {
		o.Timeout = timeoutDefault
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: o.Token})
	httpc := oauth2.NewClient(context.Background(), src)
	httpc.Timeout = o.Timeout
	return &Client{
		http:     httpc,
		endpoint: o.Endpoint,
		log:      *logger.Named("githubgql"),
		now:      time.Now,
		sleep:    sleepCtx,
	}, nil
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Path    []any  `json:"path"`
}

type gqlResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []gqlError                 `json:"errors"`
}

// FetchBatch resolves stats for keys in one round trip. A quota rejection
// sleeps until the advertised reset and reissues the same document; transient
// server errors surface as Unavailable for the caller's retry policy
func (c *Client) FetchBatch(ctx context.Context, keys []RepoKey) (*BatchResult, error) {
	if len(keys) == 0 {
		return &BatchResult{Stats: map[int]RepoStats{}}, nil
	}
	doc, vars := buildBatchDoc(keys)
	payload, err := json.Marshal(gqlRequest{Query: doc, Variables: vars})
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "graphql encode failed")
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, hdr, err := c.post(ctx, payload)
		if err != nil {
			if perr.IsCode(err, perr.ErrorCodeTooManyRequests) {
				wait := c.headerWait(hdr)
				c.log.Warn().Dur("sleeping", wait).Msg("graphql quota exhausted, waiting for reset")
				if se := c.sleep(ctx, wait); se != nil {
					return nil, se
				}
				continue
			}
			return nil, err
		}
		return c.decodeBatch(body, hdr, len(keys))
	}
}

// post issues one HTTP round trip and classifies the status
func (c *Client) post(ctx context.Context, payload []byte) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "graphql new request failed")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "graphql post failed")
	}
	body, rerr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if rerr != nil {
		return nil, resp.Header, perr.Wrapf(rerr, perr.ErrorCodeUnavailable, "graphql read body failed")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, resp.Header, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, resp.Header, perr.New(perr.ErrorCodeUnauthorized, "graphql credential rejected")
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		return nil, resp.Header, perr.New(perr.ErrorCodeTooManyRequests, "graphql rate limited")
	case resp.StatusCode >= 500:
		return nil, resp.Header, perr.Newf(perr.ErrorCodeUnavailable, "graphql server error %d", resp.StatusCode)
	default:
		return nil, resp.Header, perr.Newf(perr.ErrorCodeInvalidArgument,
			"graphql unexpected status %d body %s", resp.StatusCode, truncate(body, 2048))
	}
}

// decodeBatch turns a wire response into per-index stats. NOT_FOUND path
// errors mark indexes missing; any other error type fails the whole batch,
// as does a resolved repository with no databaseId
func (c *Client) decodeBatch(body []byte, hdr http.Header, n int) (*BatchResult, error) {
	var resp gqlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "graphql decode failed")
	}

	notFound := make(map[string]bool, len(resp.Errors))
	for _, ge := range resp.Errors {
		if ge.Type == "NOT_FOUND" && len(ge.Path) > 0 {
			if alias, ok := ge.Path[0].(string); ok {
				notFound[alias] = true
				continue
			}
		}
		return nil, perr.Newf(perr.ErrorCodeUnavailable, "graphql error %s: %s", ge.Type, ge.Message)
	}
	if resp.Data == nil {
		return nil, perr.New(perr.ErrorCodeUnavailable, "graphql response carried no data")
	}

	out := &BatchResult{Stats: make(map[int]RepoStats, n)}
	for i := 0; i < n; i++ {
		alias := batchAlias(i)
		raw, ok := resp.Data[alias]
		if !ok || string(raw) == "null" {
			if !notFound[alias] {
				c.log.Warn().Str("alias", alias).Msg("graphql answer null without NOT_FOUND marker")
			}
			out.Missing = append(out.Missing, i)
			continue
		}
		var ans repoAnswer
		if err := json.Unmarshal(raw, &ans); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "graphql decode %s failed", alias)
		}
		stats, ok := ans.stats()
		if !ok {
			return nil, perr.Newf(perr.ErrorCodeUnavailable, "graphql %s resolved without databaseId", alias)
		}
		out.Stats[i] = stats
	}

	out.Rate = c.parseRate(resp.Data["rateLimit"], hdr)
	return out, nil
}

// parseRate prefers the in-document rateLimit block, falling back to headers
func (c *Client) parseRate(raw json.RawMessage, hdr http.Header) Rate {
	var r Rate
	if len(raw) > 0 && string(raw) != "null" {
		var block struct {
			Remaining int       `json:"remaining"`
			ResetAt   time.Time `json:"resetAt"`
		}
		if err := json.Unmarshal(raw, &block); err == nil {
			return Rate{Remaining: block.Remaining, ResetAt: block.ResetAt}
		}
	}
	r.Remaining = atoi(hdr.Get("X-RateLimit-Remaining"))
	if sec := atoi(hdr.Get("X-RateLimit-Reset")); sec > 0 {
		r.ResetAt = time.Unix(int64(sec), 0).UTC()
	}
	return r
}

// headerWait derives a sleep from quota headers, defaulting to a minute
func (c *Client) headerWait(hdr http.Header) time.Duration {
	if hdr != nil {
		if sec := atoi(hdr.Get("Retry-After")); sec > 0 {
			return time.Duration(sec) * time.Second
		}
		if sec := atoi(hdr.Get("X-RateLimit-Reset")); sec > 0 {
			reset := time.Unix(int64(sec), 0)
			if d := reset.Sub(c.now()); d > 0 {
				return d + time.Second
			}
		}
	}
	return time.Minute
}
