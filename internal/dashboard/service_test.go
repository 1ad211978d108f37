package dashboard

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/thebenmerlin/material-management-api/internal/shared"
)

type stubRepo struct {
	counts []StatusCount
	recent []RecentIndent
	calls  int
}

func (s *stubRepo) StatusCounts(_ context.Context, _ *int64) ([]StatusCount, error) {
	s.calls++
	return s.counts, nil
}

func (s *stubRepo) RecentIndents(_ context.Context, _ *int64, _ int) ([]RecentIndent, error) {
	return s.recent, nil
}

func newTestService(t *testing.T, repo *stubRepo) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewService(repo, client, time.Minute, slog.Default()), mr
}

func TestStatsCachesResult(t *testing.T) {
	repo := &stubRepo{
		counts: []StatusCount{{Status: "Pending", Count: 3}, {Status: "Completed", Count: 1}},
		recent: []RecentIndent{{ID: 1, IndentNumber: "IND-1-1", Status: "Pending"}},
	}
	svc, _ := newTestService(t, repo)
	director := shared.Identity{UserID: 1, Role: shared.RoleDirector}

	stats, err := svc.Stats(context.Background(), director)
	require.NoError(t, err)
	require.Len(t, stats.IndentStats, 2)
	require.Len(t, stats.RecentActivities, 1)
	require.Equal(t, 1, repo.calls)

	// Second call is served from cache.
	stats, err = svc.Stats(context.Background(), director)
	require.NoError(t, err)
	require.Len(t, stats.IndentStats, 2)
	require.Equal(t, 1, repo.calls)
}

func TestStatsCacheExpiry(t *testing.T) {
	repo := &stubRepo{counts: []StatusCount{{Status: "Pending", Count: 1}}}
	svc, mr := newTestService(t, repo)
	director := shared.Identity{UserID: 1, Role: shared.RoleDirector}

	_, err := svc.Stats(context.Background(), director)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = svc.Stats(context.Background(), director)
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}

func TestStatsSiteScopedKey(t *testing.T) {
	repo := &stubRepo{counts: []StatusCount{{Status: "Pending", Count: 1}}}
	svc, mr := newTestService(t, repo)

	site := int64(4)
	engineer := shared.Identity{UserID: 2, Role: shared.RoleSiteEngineer, SiteID: &site}

	_, err := svc.Stats(context.Background(), engineer)
	require.NoError(t, err)
	require.True(t, mr.Exists("dashboard:stats:site:4"))
	require.False(t, mr.Exists("dashboard:stats:all"))
}

func TestWarmPopulatesGlobalKey(t *testing.T) {
	repo := &stubRepo{counts: []StatusCount{{Status: "Pending", Count: 5}}}
	svc, mr := newTestService(t, repo)

	require.NoError(t, svc.Warm(context.Background()))
	require.True(t, mr.Exists("dashboard:stats:all"))

	// A director request now hits the warmed entry.
	_, err := svc.Stats(context.Background(), shared.Identity{UserID: 1, Role: shared.RoleDirector})
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls)
}

func TestStatsWithoutCache(t *testing.T) {
	repo := &stubRepo{counts: []StatusCount{{Status: "Pending", Count: 1}}}
	svc := NewService(repo, nil, time.Minute, slog.Default())

	_, err := svc.Stats(context.Background(), shared.Identity{UserID: 1, Role: shared.RoleDirector})
	require.NoError(t, err)
	_, err = svc.Stats(context.Background(), shared.Identity{UserID: 1, Role: shared.RoleDirector})
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}
