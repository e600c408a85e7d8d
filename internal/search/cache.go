package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"inquest/internal/redis"
)

const defaultCacheTTL = 5 * time.Minute

// CachedSearcher fronts a Searcher with a redis result cache. Cache failures
// are logged and ignored; they never fail a search.
type CachedSearcher struct {
	inner Searcher
	cache *redis.Client
	ttl   time.Duration
	log   *slog.Logger
}

func NewCachedSearcher(inner Searcher, cache *redis.Client, ttl time.Duration, log *slog.Logger) *CachedSearcher {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &CachedSearcher{inner: inner, cache: cache, ttl: ttl, log: log}
}

func (s *CachedSearcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	key := cacheKey(query, limit)

	if raw, err := s.cache.Get(ctx, key); err == nil {
		var results []Result
		if err := json.Unmarshal([]byte(raw), &results); err == nil {
			return results, nil
		}
		// Corrupt entry; drop it and fall through to the backend.
		_ = s.cache.Del(ctx, key)
	} else if err != redis.ErrCacheMiss {
		s.log.Warn("search cache read failed", "error", err)
	}

	results, err := s.inner.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(results); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
			s.log.Warn("search cache write failed", "error", err)
		}
	}
	return results, nil
}

func cacheKey(query string, limit int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	return fmt.Sprintf("search:%d:%s", limit, normalized)
}
