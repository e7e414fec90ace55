package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bmizerany/assert"
	"github.com/floor-guesser/internal/config"
	"github.com/floor-guesser/internal/domain"
	"github.com/floor-guesser/internal/game"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(&config.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func newTestCache(t *testing.T) (*miniredis.Miniredis, *BestScoreCache) {
	t.Helper()
	mr, client := newTestClient(t)
	return mr, NewBestScoreCache(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRecordBestKeepsHigherScore(t *testing.T) {
	mr, cache := newTestCache(t)
	ctx := context.Background()

	for _, score := range []int{300, 120, 450, 450} {
		if err := cache.RecordBest(ctx, 7, score); err != nil {
			t.Fatalf("RecordBest(%d) error: %v", score, err)
		}
	}

	best, err := mr.ZScore(bestScoresKey, "7")
	if err != nil {
		t.Fatalf("ZScore error: %v", err)
	}
	assert.Equal(t, 450.0, best)

	count, err := cache.Count(ctx)
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	assert.Equal(t, int64(1), count)
}

func TestCountAbove(t *testing.T) {
	_, cache := newTestCache(t)
	ctx := context.Background()
	for id, score := range map[int64]int{1: 500, 2: 500, 3: 300, 4: 100} {
		_ = cache.RecordBest(ctx, id, score)
	}

	cases := []struct {
		score   int
		exclude int64
		want    int64
	}{
		{500, 5, 0},
		{301, 5, 2},
		{50, 5, 4},
		{300, 5, 2},
		// own best above the score is not counted
		{250, 1, 2},
		{250, 3, 2},
		{600, 1, 0},
	}
	for _, c := range cases {
		got, err := cache.CountAbove(ctx, c.score, c.exclude)
		if err != nil {
			t.Fatalf("CountAbove error: %v", err)
		}
		if got != c.want {
			t.Errorf("CountAbove(%d, %d) = %d, want %d", c.score, c.exclude, got, c.want)
		}
	}
}

func TestTopBestsOrdersTiesByUserID(t *testing.T) {
	_, cache := newTestCache(t)
	ctx := context.Background()
	_ = cache.RecordBest(ctx, 11, 500)
	_ = cache.RecordBest(ctx, 10, 500)
	_ = cache.RecordBest(ctx, 9, 300)
	_ = cache.RecordBest(ctx, 2, 800)

	bests, err := cache.TopBests(ctx, 2)
	if err != nil {
		t.Fatalf("TopBests error: %v", err)
	}
	assert.Equal(t, []domain.UserBest{
		{UserID: 2, Score: 800},
		{UserID: 10, Score: 500},
		{UserID: 11, Score: 500},
	}, bests)

	bests, err = cache.TopBests(ctx, 10)
	if err != nil {
		t.Fatalf("TopBests error: %v", err)
	}
	assert.Equal(t, 4, len(bests))
	assert.Equal(t, int64(9), bests[3].UserID)

	bests, err = cache.TopBests(ctx, 0)
	if err != nil {
		t.Fatalf("TopBests error: %v", err)
	}
	assert.Equal(t, 0, len(bests))
}

func TestRebuildKeepsNewerBests(t *testing.T) {
	mr, cache := newTestCache(t)
	ctx := context.Background()

	// written after the snapshot below was read
	_ = cache.RecordBest(ctx, 5, 900)
	_ = cache.RecordBest(ctx, 8, 250)

	err := cache.Rebuild(ctx, []domain.UserBest{
		{UserID: 1, Score: 500},
		{UserID: 5, Score: 700},
	})
	if err != nil {
		t.Fatalf("Rebuild error: %v", err)
	}

	bests, err := cache.TopBests(ctx, 10)
	if err != nil {
		t.Fatalf("TopBests error: %v", err)
	}
	assert.Equal(t, []domain.UserBest{
		{UserID: 5, Score: 900},
		{UserID: 1, Score: 500},
		{UserID: 8, Score: 250},
	}, bests)

	if mr.Exists(bestScoresRebuildKey) {
		t.Error("rebuild key should be renamed away")
	}

	if err := cache.Rebuild(ctx, nil); err != nil {
		t.Fatalf("Rebuild(nil) error: %v", err)
	}
	count, _ := cache.Count(ctx)
	assert.Equal(t, int64(3), count)
}

func TestSessionStore(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewSessionStore(client, time.Minute)
	ctx := context.Background()

	userID := int64(4)
	s := game.NewSession(&userID, 5)
	_ = s.Record(80)
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	loaded, err := store.Load(ctx, s.ID)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	assert.Equal(t, 80, loaded.Total())
	assert.Equal(t, int64(4), *loaded.UserID)
	assert.Equal(t, time.Minute, mr.TTL(sessionKey(s.ID)))

	mr.FastForward(2 * time.Minute)
	if _, err := store.Load(ctx, s.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}

	_ = store.Save(ctx, s)
	if err := store.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := store.Load(ctx, s.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected deleted session, got %v", err)
	}
}
