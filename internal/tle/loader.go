package tle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Where a Loader result came from.
const (
	SourceCache      = "cache"
	SourceNetwork    = "network"
	SourceStaleCache = "stale-cache"
)

// LoadResult is raw element set text and when it was downloaded.
type LoadResult struct {
	Data      []byte
	FetchedAt time.Time
	Source    string
}

// Loader serves downloads from a Cache while they are younger than maxAge
// and falls back to any cached copy when the network fails.
type Loader struct {
	fetcher *Fetcher
	cache   *Cache
	maxAge  time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewLoader creates a Loader.
func NewLoader(fetcher *Fetcher, cache *Cache, maxAge time.Duration, logger *slog.Logger) *Loader {
	return &Loader{
		fetcher: fetcher,
		cache:   cache,
		maxAge:  maxAge,
		logger:  logger,
		now:     time.Now,
	}
}

// ByIntDes loads the element sets for an international designator.
func (l *Loader) ByIntDes(ctx context.Context, intdes string) (LoadResult, error) {
	return l.load(ctx, "intdes-"+intdes, func(ctx context.Context) ([]byte, error) {
		return l.fetcher.FetchByIntDes(ctx, intdes)
	})
}

// ByGroup loads a CelesTrak group.
func (l *Loader) ByGroup(ctx context.Context, group string) (LoadResult, error) {
	return l.load(ctx, "group-"+group, func(ctx context.Context) ([]byte, error) {
		return l.fetcher.FetchGroup(ctx, group)
	})
}

// Refresh downloads a group regardless of cache age.
func (l *Loader) Refresh(ctx context.Context, group string) (LoadResult, error) {
	return l.fetch(ctx, "group-"+group, func(ctx context.Context) ([]byte, error) {
		return l.fetcher.FetchGroup(ctx, group)
	})
}

func (l *Loader) load(ctx context.Context, key string, fetch func(context.Context) ([]byte, error)) (LoadResult, error) {
	data, ts, cacheErr := l.cache.LoadLatest(key)
	if cacheErr == nil && l.now().Sub(ts) < l.maxAge {
		l.logger.Info("using cached element sets", "key", key, "cached_at", ts.Format(time.RFC3339))
		return LoadResult{Data: data, FetchedAt: ts, Source: SourceCache}, nil
	}
	if cacheErr != nil && !errors.Is(cacheErr, ErrCacheMiss) {
		l.logger.Warn("reading TLE cache failed", "key", key, "error", cacheErr)
	}

	res, err := l.fetch(ctx, key, fetch)
	if err == nil {
		return res, nil
	}
	if cacheErr == nil && ctx.Err() == nil {
		l.logger.Warn("fetch failed, using stale cached element sets",
			"key", key, "cached_at", ts.Format(time.RFC3339), "error", err)
		return LoadResult{Data: data, FetchedAt: ts, Source: SourceStaleCache}, nil
	}
	return LoadResult{}, err
}

func (l *Loader) fetch(ctx context.Context, key string, fetch func(context.Context) ([]byte, error)) (LoadResult, error) {
	data, err := fetch(ctx)
	if err != nil {
		return LoadResult{}, fmt.Errorf("load %s: %w", key, err)
	}
	now := l.now().UTC()
	if err := l.cache.Write(key, data, now); err != nil {
		l.logger.Warn("writing TLE cache failed", "key", key, "error", err)
	}
	return LoadResult{Data: data, FetchedAt: now, Source: SourceNetwork}, nil
}
