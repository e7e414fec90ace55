// Package ranking holds the leaderboard arithmetic: personal records, ranks
// among users' best scores and the guest "what if" rank.
package ranking

import (
	"sort"

	"github.com/floor-guesser/internal/domain"
)

// IsNewRecord reports whether total beats every prior game. A first game
// scoring 0 is not a record.
func IsNewRecord(total, previousBest int) bool {
	return total > previousBest
}

// RankOf returns 1 + the number of users other than excludeUserID whose best
// score is strictly greater than score. Ties share the better rank.
func RankOf(bests []domain.UserBest, score int, excludeUserID int64) int {
	rank := 1
	for _, b := range bests {
		if b.UserID == excludeUserID {
			continue
		}
		if b.Score > score {
			rank++
		}
	}
	return rank
}

// Sort orders bests by score descending, then by user id
func Sort(bests []domain.UserBest) {
	sort.SliceStable(bests, func(i, j int) bool {
		if bests[i].Score != bests[j].Score {
			return bests[i].Score > bests[j].Score
		}
		return bests[i].UserID < bests[j].UserID
	})
}

// Build turns per-user bests into ranked leaderboard entries, keeping at most
// limit of them (limit <= 0 keeps all). Equal scores get equal ranks; the rank
// of a score is 1 + the number of users with a strictly greater one.
func Build(bests []domain.UserBest, limit int, names func(userID int64) string) []domain.LeaderboardEntry {
	sorted := make([]domain.UserBest, len(bests))
	copy(sorted, bests)
	Sort(sorted)

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	entries := make([]domain.LeaderboardEntry, len(sorted))
	for i, b := range sorted {
		rank := i + 1
		if i > 0 && b.Score == sorted[i-1].Score {
			rank = entries[i-1].Rank
		}

		name := ""
		if names != nil {
			name = names(b.UserID)
		}

		entries[i] = domain.LeaderboardEntry{
			Rank:   rank,
			UserID: b.UserID,
			Name:   name,
			Score:  b.Score,
		}
	}
	return entries
}

// HypotheticalRank is the position a guest's score would take on an already
// sorted leaderboard: the first 1-based position whose score it meets or
// beats, or len+1 when it is below every entry.
func HypotheticalRank(entries []domain.LeaderboardEntry, score int) int {
	for i, e := range entries {
		if score >= e.Score {
			return i + 1
		}
	}
	return len(entries) + 1
}
