package service

import (
	"context"
	"fmt"

	"github.com/floor-guesser/internal/domain"
	"github.com/floor-guesser/internal/ranking"
)

// Leaderboard returns the top players by best game total. limit <= 0 uses the
// configured default; it is capped at the configured maximum.
func (s *GameService) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	limit = s.clampLimit(limit)

	bests, err := s.topBests(ctx, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(bests))
	for i, b := range bests {
		ids[i] = b.UserID
	}
	names, err := s.store.UserDisplayNames(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("getting display names: %w", err)
	}

	return ranking.Build(bests, limit, func(id int64) string { return names[id] }), nil
}

// HypotheticalRank is the rank a guest's score would have on the current leaderboard
func (s *GameService) HypotheticalRank(ctx context.Context, score, limit int) (int, []domain.LeaderboardEntry, error) {
	if score < 0 {
		return 0, nil, fmt.Errorf("%w: score must not be negative", domain.ErrInvalidInput)
	}

	entries, err := s.Leaderboard(ctx, limit)
	if err != nil {
		return 0, nil, err
	}
	return ranking.HypotheticalRank(entries, score), entries, nil
}

// GetStats returns statistics for the leaderboard
func (s *GameService) GetStats(ctx context.Context) (*domain.LeaderboardStats, error) {
	bests, err := s.store.BestScorePerUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting best scores: %w", err)
	}

	stats := &domain.LeaderboardStats{TotalPlayers: len(bests)}
	if len(bests) > 0 {
		ranking.Sort(bests)
		stats.TopScore = bests[0].Score
		stats.LowestScore = bests[len(bests)-1].Score
	}
	return stats, nil
}

// topBests returns at least the best n users, from the cache when possible
func (s *GameService) topBests(ctx context.Context, n int) ([]domain.UserBest, error) {
	if s.cache != nil {
		bests, err := s.cache.TopBests(ctx, n)
		if err == nil {
			return bests, nil
		}
		s.logger.Warn("failed to read leaderboard from cache, falling back to database", "error", err)
	}

	bests, err := s.store.BestScorePerUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting best scores: %w", err)
	}
	return bests, nil
}

func (s *GameService) playerCount(ctx context.Context) (int, error) {
	if s.cache != nil {
		if n, err := s.cache.Count(ctx); err == nil {
			return int(n), nil
		}
	}
	bests, err := s.store.BestScorePerUser(ctx)
	if err != nil {
		return 0, err
	}
	return len(bests), nil
}

func (s *GameService) clampLimit(limit int) int {
	if limit <= 0 {
		limit = s.config.Leaderboard.DefaultLimit
	}
	if limit > s.config.Leaderboard.MaxLimit {
		limit = s.config.Leaderboard.MaxLimit
	}
	return limit
}
