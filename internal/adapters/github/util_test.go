package github

import (
	"net/http"
	"testing"
	"time"
)

func TestParseRateHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("X-RateLimit-Remaining", "42")
	h.Set("X-RateLimit-Reset", "1700000000")
	h.Set("Retry-After", "7")

	rem, reset, ra := parseRateHeaders(h)
	if rem != 42 {
		t.Fatalf("remaining = %d, want 42", rem)
	}
	if got := reset.Unix(); got != 1700000000 {
		t.Fatalf("reset = %d, want 1700000000", got)
	}
	if ra != 7 {
		t.Fatalf("retry-after = %d, want 7", ra)
	}
}

func TestParseRateHeadersAbsent(t *testing.T) {
	rem, reset, ra := parseRateHeaders(http.Header{})
	if rem != 0 || ra != 0 || !reset.IsZero() {
		t.Fatalf("expected zero values, got rem=%d reset=%v ra=%d", rem, reset, ra)
	}
}

func TestComputeWait(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	if got := computeWait(0, now.Add(90*time.Second), 0, now); got != 90*time.Second {
		t.Fatalf("reset wait = %v, want 90s", got)
	}
	if got := computeWait(0, now, 30, now); got != 30*time.Second {
		t.Fatalf("retry-after should win, got %v", got)
	}
	if got := computeWait(0, now.Add(-time.Minute), 0, now); got != 0 {
		t.Fatalf("past reset should not wait, got %v", got)
	}
	if got := computeWait(100, now.Add(time.Minute), 0, now); got != 0 {
		t.Fatalf("quota left should not wait, got %v", got)
	}
}

func TestParseLastPage(t *testing.T) {
	link := `<https://api.github.com/repositories/1/contributors?per_page=1&page=2>; rel="next", ` +
		`<https://api.github.com/repositories/1/contributors?per_page=1&page=4301>; rel="last"`
	n, ok := parseLastPage(link)
	if !ok || n != 4301 {
		t.Fatalf("got (%d, %v), want (4301, true)", n, ok)
	}
}

func TestParseLastPageNoLast(t *testing.T) {
	if _, ok := parseLastPage(`<https://x/y?page=2>; rel="next"`); ok {
		t.Fatal("expected no rel=last match")
	}
	if _, ok := parseLastPage(""); ok {
		t.Fatal("expected miss on empty header")
	}
}
