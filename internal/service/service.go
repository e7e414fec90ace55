package service

import (
	"context"
	"log/slog"

	"github.com/floor-guesser/internal/config"
	"github.com/floor-guesser/internal/domain"
	"github.com/floor-guesser/internal/game"
	"github.com/floor-guesser/internal/scoring"
)

// Store is the durable storage the game depends on
type Store interface {
	GetLocation(ctx context.Context, id int64) (*domain.Location, error)
	RandomLocation(ctx context.Context, floorID *int64) (*domain.Location, error)
	GetFloor(ctx context.Context, id int64) (*domain.Floor, error)
	ListFloors(ctx context.Context) ([]domain.Floor, error)
	UserDisplayName(ctx context.Context, userID int64) (string, error)
	UserDisplayNames(ctx context.Context, userIDs []int64) (map[int64]string, error)
	BestScoreForUser(ctx context.Context, userID int64) (*int, error)
	InsertGameResult(ctx context.Context, userID int64, totalScore, roundsPlayed int) (int64, error)
	BestScorePerUser(ctx context.Context) ([]domain.UserBest, error)
}

// BestScoreCache mirrors every user's best score for fast rank queries
type BestScoreCache interface {
	RecordBest(ctx context.Context, userID int64, score int) error
	CountAbove(ctx context.Context, score int, excludeUserID int64) (int64, error)
	TopBests(ctx context.Context, n int) ([]domain.UserBest, error)
	Count(ctx context.Context) (int64, error)
}

// EventPublisher publishes completed games to other systems
type EventPublisher interface {
	PublishGameCompleted(ctx context.Context, event domain.GameCompletedEvent) error
}

// Broadcaster pushes fresh leaderboards and finished games to connected clients
type Broadcaster interface {
	BroadcastLeaderboardUpdate(entries []domain.LeaderboardEntry, totalPlayers int)
	BroadcastGameCompleted(event domain.GameCompletedEvent)
}

// GameService provides the business logic for scoring, games and the leaderboard
type GameService struct {
	store     Store
	sessions  game.SessionStore
	scorer    *scoring.Scorer
	cache     BestScoreCache
	publisher EventPublisher
	hub       Broadcaster
	config    *config.Config
	logger    *slog.Logger
}

// NewGameService creates a new game service
func NewGameService(
	store Store,
	sessions game.SessionStore,
	cfg *config.Config,
	logger *slog.Logger,
) *GameService {
	return &GameService{
		store:    store,
		sessions: sessions,
		scorer:   scoring.NewScorer(cfg.Game.CorrectRadius),
		config:   cfg,
		logger:   logger,
	}
}

// SetCache enables the best-score cache
func (s *GameService) SetCache(cache BestScoreCache) {
	s.cache = cache
}

// SetPublisher enables publishing of game-completed events
func (s *GameService) SetPublisher(publisher EventPublisher) {
	s.publisher = publisher
}

// SetHub sets the broadcaster for leaderboard updates
func (s *GameService) SetHub(hub Broadcaster) {
	s.hub = hub
}
