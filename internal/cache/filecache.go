package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// envelope is the on-disk record: one JSON file per key under the cache
// directory. CachedAt is epoch seconds.
type envelope struct {
	CachedAt float64         `json:"_cached_at"`
	Payload  json.RawMessage `json:"payload"`
}

// FileCache is a content-addressed cache with one JSON file per key.
// Expired entries are treated as absent, not deleted eagerly. Writes
// replace the whole file; concurrent writers to the same key race with
// last writer winning, and readers treat partial or corrupt files as
// misses.
type FileCache struct {
	dir    string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewFileCache(dir string, ttl time.Duration, logger *slog.Logger) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	return &FileCache{
		dir:    dir,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With("component", "file_cache"),
	}, nil
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func (c *FileCache) Get(_ context.Context, key string) ([]byte, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		// Corrupt or partially written file: a miss, never an error.
		c.logger.Debug("cache entry unreadable", "key", key, "error", err)
		return nil, false
	}

	age := c.now().Sub(time.Unix(0, int64(env.CachedAt*float64(time.Second))))
	if age > c.ttl {
		c.logger.Debug("cache entry expired", "key", key, "age", age)
		return nil, false
	}

	c.logger.Debug("cache hit", "key", key, "size_bytes", len(env.Payload))
	return env.Payload, true
}

func (c *FileCache) Set(_ context.Context, key string, payload []byte) {
	env := envelope{
		CachedAt: float64(c.now().UnixNano()) / float64(time.Second),
		Payload:  payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		c.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := os.WriteFile(c.path(key), data, 0o644); err != nil {
		// Disk full or permission trouble must not fail the fetch.
		c.logger.Warn("cache write failed", "key", key, "error", err)
		return
	}
	c.logger.Debug("cache set", "key", key, "size_bytes", len(payload))
}
