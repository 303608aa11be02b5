package github

import (
	"sync/atomic"

	"ghcollector/internal/platform/logger"
)

// Metrics aggregates client-level counters across pool, cache, and transport.
// Shared by pointer; all fields are atomic
type Metrics struct {
	Requests  atomic.Int64 // network requests issued
	CacheHits atomic.Int64 // responses served from the disk cache
	Retries   atomic.Int64 // transport/5xx retries
	Rotations atomic.Int64 // credential switches in the pool
	RateWaits atomic.Int64 // sleeps forced by quota exhaustion
	NotFound  atomic.Int64 // 404s treated as empty documents
}

// Snapshot is a plain copy safe to log or compare
type Snapshot struct {
	Requests  int64
	CacheHits int64
	Retries   int64
	Rotations int64
	RateWaits int64
	NotFound  int64
}

// Snapshot returns the current counter values
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Requests:  m.Requests.Load(),
		CacheHits: m.CacheHits.Load(),
		Retries:   m.Retries.Load(),
		Rotations: m.Rotations.Load(),
		RateWaits: m.RateWaits.Load(),
		NotFound:  m.NotFound.Load(),
	}
}

// Log emits a snapshot at INFO on the given logger
func (m *Metrics) Log(l *logger.Logger) {
	s := m.Snapshot()
	l.Info().
		Int64("requests", s.Requests).
		Int64("cache_hits", s.CacheHits).
		Int64("retries", s.Retries).
		Int64("rotations", s.Rotations).
		Int64("rate_waits", s.RateWaits).
		Int64("not_found", s.NotFound).
		Msg("github client counters")
}
