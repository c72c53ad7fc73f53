// Package cached wraps a source with a short-lived in-memory cache so that
// page loads within the TTL share one upstream fetch.
package cached

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"foodie/internal/cache"
	"foodie/internal/core"
	"foodie/internal/source"
)

// DefaultTTL matches the s-maxage the HTTP layer advertises.
const DefaultTTL = 60 * time.Second

// fetchTimeout bounds a shared upstream fetch. The fetch runs detached from
// the caller that started it.
const fetchTimeout = 60 * time.Second

const (
	keyRecords     = "records"
	keyRestaurants = "restaurants"
)

// Observer is told about cache hits and misses per operation.
type Observer interface {
	CacheHit(op string)
	CacheMiss(op string)
}

type Source struct {
	next  source.Source
	cache *cache.LRUCache[[]core.Row]
	group singleflight.Group
	obs   Observer
}

var _ source.Source = (*Source)(nil)

// New wraps next. A ttl of zero or less uses DefaultTTL; obs may be nil.
func New(next source.Source, ttl time.Duration, obs Observer) *Source {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Source{
		next:  next,
		cache: cache.NewLRUCache[[]core.Row](2, ttl),
		obs:   obs,
	}
}

// Cache exposes the underlying cache for registration with a cache.Manager.
func (s *Source) Cache() *cache.LRUCache[[]core.Row] { return s.cache }

func (s *Source) ListRecords(ctx context.Context) ([]core.Row, error) {
	return s.load(ctx, keyRecords, s.next.ListRecords)
}

func (s *Source) ListRestaurants(ctx context.Context) ([]core.Row, error) {
	return s.load(ctx, keyRestaurants, s.next.ListRestaurants)
}

// Invalidate drops every cached result.
func (s *Source) Invalidate() {
	s.cache.Delete(keyRecords)
	s.cache.Delete(keyRestaurants)
}

func (s *Source) load(ctx context.Context, key string, fetch func(context.Context) ([]core.Row, error)) ([]core.Row, error) {
	if rows, ok := s.cache.Get(key); ok {
		s.hit(key)
		return clone(rows), nil
	}
	s.miss(key)

	ch := s.group.DoChan(key, func() (any, error) {
		if rows, ok := s.cache.Get(key); ok {
			return rows, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		rows, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, rows)
		return rows, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.([]core.Row)), nil
	}
}

func (s *Source) hit(op string) {
	if s.obs != nil {
		s.obs.CacheHit(op)
	}
}

func (s *Source) miss(op string) {
	if s.obs != nil {
		s.obs.CacheMiss(op)
	}
}

// clone copies the slice header so callers cannot reorder the cached rows.
func clone(rows []core.Row) []core.Row {
	return append([]core.Row(nil), rows...)
}
