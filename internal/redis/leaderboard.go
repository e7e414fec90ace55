package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/floor-guesser/internal/config"
	"github.com/floor-guesser/internal/domain"
	"github.com/floor-guesser/internal/ranking"
	"github.com/redis/go-redis/v9"
)

const (
	bestScoresKey        = "leaderboard:best"
	bestScoresRebuildKey = "leaderboard:best:rebuild"
)

// BestScoreCache keeps every user's best game total in a sorted set
type BestScoreCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewClient connects to Redis
func NewClient(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// NewBestScoreCache creates a cache on an existing client
func NewBestScoreCache(client *redis.Client, logger *slog.Logger) *BestScoreCache {
	return &BestScoreCache{
		client: client,
		logger: logger,
	}
}

// Ping checks the Redis connection
func (c *BestScoreCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// RecordBest raises the user's cached best to score; lower scores are ignored
func (c *BestScoreCache) RecordBest(ctx context.Context, userID int64, score int) error {
	err := c.client.ZAddGT(ctx, bestScoresKey, redis.Z{
		Score:  float64(score),
		Member: member(userID),
	}).Err()
	if err != nil {
		return fmt.Errorf("recording best score: %w", err)
	}
	return nil
}

// CountAbove counts users other than excludeUserID whose best is strictly
// greater than score
func (c *BestScoreCache) CountAbove(ctx context.Context, score int, excludeUserID int64) (int64, error) {
	pipe := c.client.Pipeline()
	countCmd := pipe.ZCount(ctx, bestScoresKey, "("+strconv.Itoa(score), "+inf")
	ownCmd := pipe.ZScore(ctx, bestScoresKey, member(excludeUserID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("counting higher scores: %w", err)
	}

	count, err := countCmd.Result()
	if err != nil {
		return 0, fmt.Errorf("counting higher scores: %w", err)
	}

	own, err := ownCmd.Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return 0, fmt.Errorf("getting own best: %w", err)
	case own > float64(score):
		count--
	}
	return count, nil
}

// TopBests returns the n best users, best first with ties by ascending user
// ID. Every user tied with the n-th is included, so more than n may come back.
func (c *BestScoreCache) TopBests(ctx context.Context, n int) ([]domain.UserBest, error) {
	if n <= 0 {
		return []domain.UserBest{}, nil
	}

	// sorted sets order equal scores by member, which is not numeric user order
	cutoff, err := c.client.ZRevRangeWithScores(ctx, bestScoresKey, int64(n-1), int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top scores: %w", err)
	}

	var results []redis.Z
	if len(cutoff) == 0 {
		results, err = c.client.ZRevRangeWithScores(ctx, bestScoresKey, 0, -1).Result()
	} else {
		results, err = c.client.ZRevRangeByScoreWithScores(ctx, bestScoresKey, &redis.ZRangeBy{
			Min: strconv.FormatFloat(cutoff[0].Score, 'f', -1, 64),
			Max: "+inf",
		}).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("getting top scores: %w", err)
	}

	bests, err := toUserBests(results)
	if err != nil {
		return nil, err
	}
	ranking.Sort(bests)
	return bests, nil
}

// Count returns the number of users with at least one game
func (c *BestScoreCache) Count(ctx context.Context) (int64, error) {
	count, err := c.client.ZCard(ctx, bestScoresKey).Result()
	if err != nil {
		return 0, fmt.Errorf("getting count: %w", err)
	}
	return count, nil
}

// Rebuild folds bests into the cached set in one step. Each user keeps the
// higher of the cached and the given score, so a RecordBest that lands while
// the snapshot is being read is not lost.
func (c *BestScoreCache) Rebuild(ctx context.Context, bests []domain.UserBest) error {
	if len(bests) == 0 {
		return nil
	}

	members := make([]redis.Z, len(bests))
	for i, b := range bests {
		members[i] = redis.Z{Score: float64(b.Score), Member: member(b.UserID)}
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, bestScoresRebuildKey)
	pipe.ZAdd(ctx, bestScoresRebuildKey, members...)
	pipe.ZUnionStore(ctx, bestScoresRebuildKey, &redis.ZStore{
		Keys:      []string{bestScoresRebuildKey, bestScoresKey},
		Aggregate: "MAX",
	})
	pipe.Rename(ctx, bestScoresRebuildKey, bestScoresKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rebuilding best scores: %w", err)
	}

	c.logger.Debug("best score cache rebuilt", "players", len(bests))
	return nil
}

func member(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

func toUserBests(results []redis.Z) ([]domain.UserBest, error) {
	bests := make([]domain.UserBest, 0, len(results))
	for _, r := range results {
		raw, ok := r.Member.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected member type %T", r.Member)
		}
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing member %q: %w", raw, err)
		}
		bests = append(bests, domain.UserBest{UserID: userID, Score: int(r.Score)})
	}
	return bests, nil
}
