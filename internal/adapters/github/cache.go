package github

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const defaultCacheTTL = 24 * time.Hour

// Cache is a filesystem cache of GET response bodies keyed by request shape.
// One file per key; entries carry their own write timestamp and expire by TTL.
// Only successful (2xx) bodies are ever stored
type Cache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// cacheEnvelope is the on-disk JSON shape
type cacheEnvelope struct {
	CacheTime time.Time       `json:"_cache_time"`
	Data      json.RawMessage `json:"data"`
}

// NewCache builds a cache rooted at dir; ttl <= 0 means the 24h default
func NewCache(dir string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	_ = os.MkdirAll(dir, 0o755)
	return &Cache{dir: dir, ttl: ttl, now: time.Now}
}

// Key hashes (path, sorted query string) to a stable filename stem
func (c *Cache) Key(path string, q url.Values) string {
	var sb strings.Builder
	sb.WriteString(path)
	if len(q) > 0 {
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('?')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(k)
			sb.WriteByte('=')
			sb.WriteString(q.Get(k))
		}
	}
	sum := md5.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached body for (path, q) when present and fresh
func (c *Cache) Get(path string, q url.Values) (json.RawMessage, bool) {
	if c == nil {
		return nil, false
	}
	b, err := os.ReadFile(c.file(path, q))
	if err != nil {
		return nil, false
	}
	var env cacheEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		// corrupt entry: treat as miss, the refetch will overwrite it
		return nil, false
	}
	if c.now().Sub(env.CacheTime) > c.ttl {
		return nil, false
	}
	return env.Data, true
}

// Put stores a body atomically (write to .part then rename)
func (c *Cache) Put(path string, q url.Values, data json.RawMessage) error {
	if c == nil {
		return nil
	}
	env := cacheEnvelope{CacheTime: c.now().UTC(), Data: data}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	dst := c.file(path, q)
	tmp := dst + ".part"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

func (c *Cache) file(path string, q url.Values) string {
	return filepath.Join(c.dir, c.Key(path, q)+".json")
}
