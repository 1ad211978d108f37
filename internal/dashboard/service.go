package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/thebenmerlin/material-management-api/internal/shared"
)

const recentLimit = 10

// Service computes dashboard stats behind a redis cache. Concurrent misses
// for the same key collapse into one database round trip.
type Service struct {
	repo   Repository
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewService constructs the dashboard service. cache may be nil, in which
// case every call recomputes.
func NewService(repo Repository, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

func cacheKey(siteID *int64) string {
	if siteID == nil {
		return "dashboard:stats:all"
	}
	return fmt.Sprintf("dashboard:stats:site:%d", *siteID)
}

// Stats returns the dashboard payload scoped to the actor's visibility.
func (s *Service) Stats(ctx context.Context, actor shared.Identity) (*Stats, error) {
	siteID := actor.SiteFilter()
	key := cacheKey(siteID)

	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key).Bytes()
		if err == nil {
			var cached Stats
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("dashboard cache read", slog.Any("error", err))
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.compute(ctx, siteID)
	})
	if err != nil {
		return nil, err
	}
	stats := v.(*Stats)
	s.store(ctx, key, stats)
	return stats, nil
}

// Warm recomputes and caches the global stats. The worker calls this on a
// schedule so first-paint dashboards hit a warm entry.
func (s *Service) Warm(ctx context.Context) error {
	stats, err := s.compute(ctx, nil)
	if err != nil {
		return err
	}
	s.store(ctx, cacheKey(nil), stats)
	return nil
}

func (s *Service) compute(ctx context.Context, siteID *int64) (*Stats, error) {
	counts, err := s.repo.StatusCounts(ctx, siteID)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.RecentIndents(ctx, siteID, recentLimit)
	if err != nil {
		return nil, err
	}
	if counts == nil {
		counts = []StatusCount{}
	}
	if recent == nil {
		recent = []RecentIndent{}
	}
	return &Stats{IndentStats: counts, RecentActivities: recent}, nil
}

func (s *Service) store(ctx context.Context, key string, stats *Stats) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.logger.Warn("dashboard cache write", slog.Any("error", err))
	}
}
