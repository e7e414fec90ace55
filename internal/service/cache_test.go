package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/floor-guesser/internal/domain"
	"github.com/floor-guesser/internal/ranking"
)

// memCache is an in-memory BestScoreCache
type memCache struct {
	mu    sync.Mutex
	bests map[int64]int
	fail  bool
	reads int
}

func newMemCache() *memCache {
	return &memCache{bests: make(map[int64]int)}
}

func (c *memCache) RecordBest(ctx context.Context, userID int64, score int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("redis: connection refused")
	}
	if cur, ok := c.bests[userID]; !ok || score > cur {
		c.bests[userID] = score
	}
	return nil
}

func (c *memCache) CountAbove(ctx context.Context, score int, excludeUserID int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return 0, errors.New("redis: connection refused")
	}
	c.reads++
	var n int64
	for id, best := range c.bests {
		if id != excludeUserID && best > score {
			n++
		}
	}
	return n, nil
}

func (c *memCache) TopBests(ctx context.Context, n int) ([]domain.UserBest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, errors.New("redis: connection refused")
	}
	c.reads++
	all := make([]domain.UserBest, 0, len(c.bests))
	for id, score := range c.bests {
		all = append(all, domain.UserBest{UserID: id, Score: score})
	}
	ranking.Sort(all)
	if len(all) <= n {
		return all, nil
	}
	cut := n
	for cut < len(all) && all[cut].Score == all[n-1].Score {
		cut++
	}
	return all[:cut], nil
}

func (c *memCache) Count(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return 0, errors.New("redis: connection refused")
	}
	return int64(len(c.bests)), nil
}

func TestRecordGameCompletionRanksFromCache(t *testing.T) {
	cases := []struct {
		score int
		rank  int
	}{
		{500, 1},
		{301, 3},
		{50, 5},
	}

	for _, c := range cases {
		s, _ := newTestService(t)
		cache := newMemCache()
		s.SetCache(cache)
		seed(t, s, 1, 500)
		seed(t, s, 2, 500)
		seed(t, s, 3, 300)
		seed(t, s, 4, 100)

		res, err := s.RecordGameCompletion(context.Background(), ptr(int64(5)), c.score, 5)
		if err != nil {
			t.Fatalf("RecordGameCompletion error: %v", err)
		}
		if *res.Rank != c.rank {
			t.Errorf("score %d: rank=%d want=%d", c.score, *res.Rank, c.rank)
		}
		assert.Equal(t, c.score, cache.bests[5])
	}
}

func TestRecordGameCompletionCacheIgnoresOwnBetterBest(t *testing.T) {
	s, _ := newTestService(t)
	cache := newMemCache()
	s.SetCache(cache)
	seed(t, s, 1, 400)
	seed(t, s, 2, 300)

	res, err := s.RecordGameCompletion(context.Background(), ptr(int64(1)), 250, 5)
	if err != nil {
		t.Fatalf("RecordGameCompletion error: %v", err)
	}
	assert.Equal(t, 2, *res.Rank)
	assert.Equal(t, 400, cache.bests[1])
}

func TestRecordGameCompletionFallsBackWhenCacheFails(t *testing.T) {
	s, store := newTestService(t)
	seed(t, s, 1, 500)
	seed(t, s, 2, 300)

	cache := newMemCache()
	cache.fail = true
	s.SetCache(cache)

	res, err := s.RecordGameCompletion(context.Background(), ptr(int64(3)), 400, 5)
	if err != nil {
		t.Fatalf("RecordGameCompletion error: %v", err)
	}
	assert.Equal(t, 2, *res.Rank)
	assert.Equal(t, 3, len(store.results))
}

func TestLeaderboardFromCacheBreaksTiesByUserID(t *testing.T) {
	s, _ := newTestService(t)
	cache := newMemCache()
	s.SetCache(cache)
	seed(t, s, 3, 500)
	seed(t, s, 2, 500)
	seed(t, s, 1, 100)

	entries, err := s.Leaderboard(context.Background(), 1)
	if err != nil {
		t.Fatalf("Leaderboard error: %v", err)
	}
	assert.Equal(t, 1, len(entries))
	assert.Equal(t, int64(2), entries[0].UserID)
	assert.Equal(t, "Bob B", entries[0].Name)
	if cache.reads == 0 {
		t.Error("expected the leaderboard to be read from the cache")
	}
}

func TestLeaderboardFallsBackWhenCacheFails(t *testing.T) {
	s, _ := newTestService(t)
	seed(t, s, 1, 200)
	seed(t, s, 2, 500)

	cache := newMemCache()
	cache.fail = true
	s.SetCache(cache)

	entries, err := s.Leaderboard(context.Background(), 0)
	if err != nil {
		t.Fatalf("Leaderboard error: %v", err)
	}
	assert.Equal(t, 2, len(entries))
	assert.Equal(t, int64(2), entries[0].UserID)
	assert.Equal(t, 500, entries[0].Score)

	rank, _, err := s.HypotheticalRank(context.Background(), 300, 0)
	if err != nil {
		t.Fatalf("HypotheticalRank error: %v", err)
	}
	assert.Equal(t, 2, rank)
}
