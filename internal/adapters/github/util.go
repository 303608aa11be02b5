package github

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func atoi(s string) int {
	if s == "" {
		return 0
	}
	i, _ := strconv.Atoi(s)
	return i
}

// parseRateHeaders extracts the quota headers GitHub sends on every response
func parseRateHeaders(h http.Header) (remaining int, reset time.Time, retryAfter int) {
	remaining = atoi(h.Get("X-RateLimit-Remaining"))
	if rs := h.Get("X-RateLimit-Reset"); rs != "" {
		if sec := atoi(rs); sec > 0 {
			reset = time.Unix(int64(sec), 0).UTC()
		}
	}
	retryAfter = atoi(h.Get("Retry-After"))
	return
}

// computeWait decides how long to wait based on headers
func computeWait(remaining int, reset time.Time, retryAfter int, now time.Time) time.Duration {
	if retryAfter > 0 {
		return time.Duration(retryAfter) * time.Second
	}
	if remaining <= 0 && !reset.IsZero() {
		if reset.After(now) {
			return reset.Sub(now)
		}
		return 0
	}
	return 0
}

// parseLastPage pulls the page number out of a Link header's rel="last" entry
// e.g. <https://api.github.com/repositories/1/contributors?per_page=1&page=4301>; rel="last"
func parseLastPage(link string) (int, bool) {
	for _, part := range strings.Split(link, ",") {
		if !strings.Contains(part, `rel="last"`) {
			continue
		}
		lt := strings.Index(part, "<")
		gt := strings.Index(part, ">")
		if lt < 0 || gt < 0 || gt <= lt {
			return 0, false
		}
		u := part[lt+1 : gt]
		qi := strings.Index(u, "?")
		if qi < 0 {
			return 0, false
		}
		for _, kv := range strings.Split(u[qi+1:], "&") {
			if v, ok := strings.CutPrefix(kv, "page="); ok {
				n, err := strconv.Atoi(v)
				if err != nil || n < 0 {
					return 0, false
				}
				return n, true
			}
		}
	}
	return 0, false
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 512))
	return rc.Close()
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
