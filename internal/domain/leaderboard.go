package domain

import (
	"time"
)

// GameResult is a completed game stored in the permanent history
type GameResult struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	TotalScore   int       `json:"total_score"`
	RoundsPlayed int       `json:"rounds_played"`
	PlayedAt     time.Time `json:"played_at"`
}

// UserBest is a user's best-ever total score
type UserBest struct {
	UserID int64 `json:"user_id"`
	Score  int   `json:"score"`
}

// LeaderboardEntry represents a single entry in the leaderboard
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
}

// GameResultSubmission represents a request to record a completed game
type GameResultSubmission struct {
	UserID       *int64 `json:"user_id,omitempty"`
	TotalScore   int    `json:"total_score"`
	RoundsPlayed int    `json:"rounds_played"`
}

// BatchGameResultSubmission represents multiple completed games
type BatchGameResultSubmission struct {
	Results []GameResultSubmission `json:"results"`
}

// CompletionResult is returned when a game is recorded. Rank, IsNewRecord and
// PreviousBest are nil for guests.
type CompletionResult struct {
	Score        int   `json:"score"`
	Rank         *int  `json:"rank,omitempty"`
	IsNewRecord  *bool `json:"isNewRecord,omitempty"`
	PreviousBest *int  `json:"previousBest,omitempty"`
}

// GameCompletedEvent is published after a user's game has been recorded
type GameCompletedEvent struct {
	EventID      string    `json:"event_id"`
	UserID       int64     `json:"user_id"`
	TotalScore   int       `json:"total_score"`
	RoundsPlayed int       `json:"rounds_played"`
	Rank         int       `json:"rank"`
	IsNewRecord  bool      `json:"is_new_record"`
	PreviousBest int       `json:"previous_best"`
	Timestamp    time.Time `json:"timestamp"`
}

// LeaderboardStats contains statistics about the leaderboard
type LeaderboardStats struct {
	TotalPlayers int `json:"total_players"`
	TopScore     int `json:"top_score,omitempty"`
	LowestScore  int `json:"lowest_score,omitempty"`
}
