package service

import (
	"context"
	"fmt"
	"time"

	"github.com/floor-guesser/internal/domain"
	"github.com/floor-guesser/internal/game"
	"github.com/floor-guesser/internal/ranking"
	"github.com/floor-guesser/internal/scoring"
	"github.com/google/uuid"
)

// RoundLocation is the photo and floor list entry for a new round
type RoundLocation struct {
	Location domain.LocationForGame `json:"location"`
	Floor    domain.Floor           `json:"floor"`
}

// RoundResult is the outcome of playing one round of a game
type RoundResult struct {
	Guess      domain.GuessResponse     `json:"guess"`
	Game       game.Snapshot            `json:"game"`
	Completion *domain.CompletionResult `json:"completion,omitempty"`
}

// ListFloors returns all floors for the map picker
func (s *GameService) ListFloors(ctx context.Context) ([]domain.Floor, error) {
	return s.store.ListFloors(ctx)
}

// GetFloor returns a floor by ID
func (s *GameService) GetFloor(ctx context.Context, floorID int64) (*domain.Floor, error) {
	return s.store.GetFloor(ctx, floorID)
}

// RandomLocation picks a location to guess, optionally restricted to one floor
func (s *GameService) RandomLocation(ctx context.Context, floorID *int64) (*RoundLocation, error) {
	loc, err := s.store.RandomLocation(ctx, floorID)
	if err != nil {
		return nil, err
	}

	floor, err := s.store.GetFloor(ctx, loc.FloorID)
	if err != nil {
		return nil, fmt.Errorf("getting floor of location %d: %w", loc.ID, err)
	}

	return &RoundLocation{
		Location: loc.ForGame(),
		Floor:    *floor,
	}, nil
}

// ScoreGuess scores a guess against the true location
func (s *GameService) ScoreGuess(ctx context.Context, guess domain.Guess) (*domain.GuessResponse, error) {
	loc, floor, err := s.resolve(ctx, guess)
	if err != nil {
		return nil, err
	}

	in := scoring.Input{
		Target:      scoring.Point{X: float64(loc.X), Y: float64(loc.Y)},
		Guess:       scoring.Point{X: *guess.GuessX, Y: *guess.GuessY},
		FloorWidth:  float64(floor.WidthPx),
		FloorHeight: float64(floor.HeightPx),
	}
	if guess.SelectedFloor != nil {
		match := *guess.SelectedFloor == loc.FloorID
		in.FloorMatch = &match
	}

	result, err := s.scorer.Score(in)
	if err != nil {
		return nil, err
	}

	return &domain.GuessResponse{
		ScoreResult: result,
		CorrectX:    loc.X,
		CorrectY:    loc.Y,
		FloorID:     loc.FloorID,
		FloorWidth:  floor.WidthPx,
		FloorHeight: floor.HeightPx,
	}, nil
}

// QuickPlayGuess scores a guess with the linear quick-play formula, ignoring floors
func (s *GameService) QuickPlayGuess(ctx context.Context, guess domain.Guess) (*domain.QuickPlayResponse, error) {
	loc, floor, err := s.resolve(ctx, guess)
	if err != nil {
		return nil, err
	}

	result, err := s.scorer.QuickPlay(
		scoring.Point{X: float64(loc.X), Y: float64(loc.Y)},
		scoring.Point{X: *guess.GuessX, Y: *guess.GuessY},
		float64(floor.WidthPx),
		float64(floor.HeightPx),
	)
	if err != nil {
		return nil, err
	}

	result.CorrectX = loc.X
	result.CorrectY = loc.Y
	result.FloorWidth = floor.WidthPx
	result.FloorHeight = floor.HeightPx
	return &result, nil
}

// resolve validates a guess and loads its location and the location's floor
func (s *GameService) resolve(ctx context.Context, guess domain.Guess) (*domain.Location, *domain.Floor, error) {
	if guess.LocationID <= 0 {
		return nil, nil, fmt.Errorf("%w: location_id is required", domain.ErrInvalidInput)
	}
	if guess.GuessX == nil || guess.GuessY == nil {
		return nil, nil, fmt.Errorf("%w: guess_x and guess_y are required", domain.ErrInvalidInput)
	}

	loc, err := s.store.GetLocation(ctx, guess.LocationID)
	if err != nil {
		return nil, nil, err
	}

	floor, err := s.store.GetFloor(ctx, loc.FloorID)
	if err != nil {
		return nil, nil, fmt.Errorf("getting floor of location %d: %w", loc.ID, err)
	}

	return loc, floor, nil
}

// StartGame creates a new game session. A nil userID starts a guest game.
func (s *GameService) StartGame(ctx context.Context, userID *int64) (*game.Session, error) {
	if userID != nil {
		if _, err := s.store.UserDisplayName(ctx, *userID); err != nil {
			return nil, err
		}
	}

	session := game.NewSession(userID, s.config.Game.TotalRounds)
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	s.logger.Debug("game started", "session_id", session.ID, "guest", session.IsGuest())
	return session, nil
}

// GetGame returns a game session by ID
func (s *GameService) GetGame(ctx context.Context, sessionID string) (*game.Session, error) {
	return s.sessions.Load(ctx, sessionID)
}

// PlayRound scores a guess within a game session. When the last round is
// played the game is recorded and the session discarded.
func (s *GameService) PlayRound(ctx context.Context, sessionID string, guess domain.Guess) (*RoundResult, error) {
	session, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Finished() {
		return nil, domain.ErrGameFinished
	}

	scored, err := s.ScoreGuess(ctx, guess)
	if err != nil {
		return nil, err
	}

	if err := session.Record(scored.Score); err != nil {
		return nil, err
	}

	result := &RoundResult{
		Guess: *scored,
		Game:  session.Snapshot(),
	}

	if !session.Finished() {
		if err := s.sessions.Save(ctx, session); err != nil {
			return nil, fmt.Errorf("saving session: %w", err)
		}
		return result, nil
	}

	completion, err := s.RecordGameCompletion(ctx, session.UserID, session.Total(), session.RoundsPlayed)
	if err != nil {
		return nil, err
	}
	result.Completion = completion

	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		s.logger.Warn("failed to delete finished session", "session_id", session.ID, "error", err)
	}

	return result, nil
}

// RecordGameCompletion records a finished game. Guests get back only their
// score; for users the game is stored and the personal record and rank are
// computed.
func (s *GameService) RecordGameCompletion(ctx context.Context, userID *int64, totalScore, roundsPlayed int) (*domain.CompletionResult, error) {
	if totalScore < 0 {
		return nil, fmt.Errorf("%w: total_score must not be negative", domain.ErrInvalidInput)
	}
	if roundsPlayed < 0 {
		return nil, fmt.Errorf("%w: rounds_played must not be negative", domain.ErrInvalidInput)
	}

	result := &domain.CompletionResult{Score: totalScore}
	if userID == nil {
		return result, nil
	}
	uid := *userID
	if uid <= 0 {
		return nil, fmt.Errorf("%w: user_id must be positive", domain.ErrInvalidInput)
	}

	if _, err := s.store.UserDisplayName(ctx, uid); err != nil {
		return nil, err
	}

	previousBest := 0
	best, err := s.store.BestScoreForUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("getting previous best: %w", err)
	}
	if best != nil {
		previousBest = *best
	}
	isNewRecord := ranking.IsNewRecord(totalScore, previousBest)

	if _, err := s.store.InsertGameResult(ctx, uid, totalScore, roundsPlayed); err != nil {
		return nil, fmt.Errorf("inserting game result: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.RecordBest(ctx, uid, totalScore); err != nil {
			s.logger.Warn("failed to update best score cache", "user_id", uid, "error", err)
		}
	}

	rank, err := s.rankOf(ctx, uid, totalScore)
	if err != nil {
		return nil, err
	}

	result.Rank = &rank
	result.IsNewRecord = &isNewRecord
	result.PreviousBest = &previousBest

	s.logger.Info("game recorded",
		"user_id", uid,
		"total_score", totalScore,
		"rank", rank,
		"new_record", isNewRecord,
	)

	s.afterRecord(ctx, domain.GameCompletedEvent{
		EventID:      uuid.New().String(),
		UserID:       uid,
		TotalScore:   totalScore,
		RoundsPlayed: roundsPlayed,
		Rank:         rank,
		IsNewRecord:  isNewRecord,
		PreviousBest: previousBest,
		Timestamp:    time.Now(),
	})

	return result, nil
}

// RecordBatch records several completed games, continuing past failures
func (s *GameService) RecordBatch(ctx context.Context, batch domain.BatchGameResultSubmission) error {
	for _, sub := range batch.Results {
		if _, err := s.RecordGameCompletion(ctx, sub.UserID, sub.TotalScore, sub.RoundsPlayed); err != nil {
			s.logger.Error("failed to record game in batch",
				"user_id", sub.UserID,
				"total_score", sub.TotalScore,
				"error", err,
			)
		}
	}
	return nil
}

// rankOf ranks score against the best of every other user
func (s *GameService) rankOf(ctx context.Context, userID int64, score int) (int, error) {
	if s.cache != nil {
		above, err := s.cache.CountAbove(ctx, score, userID)
		if err == nil {
			return int(above) + 1, nil
		}
		s.logger.Warn("failed to rank from cache, falling back to database", "error", err)
	}

	bests, err := s.store.BestScorePerUser(ctx)
	if err != nil {
		return 0, fmt.Errorf("getting best scores: %w", err)
	}
	return ranking.RankOf(bests, score, userID), nil
}

// afterRecord publishes the event and pushes the new leaderboard. Failures
// are logged; the game is already stored.
func (s *GameService) afterRecord(ctx context.Context, event domain.GameCompletedEvent) {
	if s.publisher != nil {
		if err := s.publisher.PublishGameCompleted(ctx, event); err != nil {
			s.logger.Warn("failed to publish game completed event", "error", err)
		}
	}

	if s.hub != nil {
		s.hub.BroadcastGameCompleted(event)

		entries, err := s.Leaderboard(ctx, 0)
		if err != nil {
			s.logger.Warn("failed to load leaderboard for broadcast", "error", err)
			return
		}
		total, err := s.playerCount(ctx)
		if err != nil {
			s.logger.Warn("failed to count players for broadcast", "error", err)
			total = len(entries)
		}
		s.hub.BroadcastLeaderboardUpdate(entries, total)
	}
}
