// Package game tracks the rounds of a single player's game.
package game

import (
	"fmt"
	"time"

	"github.com/floor-guesser/internal/domain"
	"github.com/google/uuid"
)

// DefaultTotalRounds is the number of rounds in a game unless configured otherwise
const DefaultTotalRounds = 5

// Session is the running state of one game. It belongs to a single player and
// is only ever written by that player's requests.
type Session struct {
	ID           string    `json:"id"`
	UserID       *int64    `json:"user_id,omitempty"`
	TotalRounds  int       `json:"total_rounds"`
	RoundsPlayed int       `json:"rounds_played"`
	TotalScore   int       `json:"total_score"`
	Scores       []int     `json:"scores"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewSession starts a game of totalRounds rounds
func NewSession(userID *int64, totalRounds int) *Session {
	if totalRounds <= 0 {
		totalRounds = DefaultTotalRounds
	}
	now := time.Now()
	return &Session{
		ID:          uuid.New().String(),
		UserID:      userID,
		TotalRounds: totalRounds,
		Scores:      make([]int, 0, totalRounds),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Record adds a round's score to the total and advances to the next round
func (s *Session) Record(score int) error {
	if s.Finished() {
		return domain.ErrGameFinished
	}
	if score < 0 || score > 100 {
		return fmt.Errorf("%w: round score %d out of range", domain.ErrInvalidInput, score)
	}

	s.Scores = append(s.Scores, score)
	s.TotalScore += score
	s.RoundsPlayed++
	s.UpdatedAt = time.Now()
	return nil
}

// CurrentRound is the 1-based round being played, capped at TotalRounds
func (s *Session) CurrentRound() int {
	return min(s.RoundsPlayed+1, s.TotalRounds)
}

// Remaining is the number of rounds still to play
func (s *Session) Remaining() int {
	return max(s.TotalRounds-s.RoundsPlayed, 0)
}

// Total is the running total score
func (s *Session) Total() int {
	return s.TotalScore
}

// Finished reports whether all rounds have been played
func (s *Session) Finished() bool {
	return s.RoundsPlayed >= s.TotalRounds
}

// IsGuest reports whether the session has no user attached
func (s *Session) IsGuest() bool {
	return s.UserID == nil
}

// Snapshot is the client view of a session
type Snapshot struct {
	ID          string `json:"id"`
	Round       int    `json:"round"`
	TotalRounds int    `json:"total_rounds"`
	Remaining   int    `json:"remaining"`
	TotalScore  int    `json:"total_score"`
	Scores      []int  `json:"scores"`
	Finished    bool   `json:"finished"`
}

// Snapshot returns the client view of the session
func (s *Session) Snapshot() Snapshot {
	scores := make([]int, len(s.Scores))
	copy(scores, s.Scores)
	return Snapshot{
		ID:          s.ID,
		Round:       s.CurrentRound(),
		TotalRounds: s.TotalRounds,
		Remaining:   s.Remaining(),
		TotalScore:  s.TotalScore,
		Scores:      scores,
		Finished:    s.Finished(),
	}
}
