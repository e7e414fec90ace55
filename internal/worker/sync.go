package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/floor-guesser/internal/config"
	"github.com/floor-guesser/internal/domain"
)

// BestScoreSource is the durable record of every user's best score
type BestScoreSource interface {
	BestScorePerUser(ctx context.Context) ([]domain.UserBest, error)
}

// BestScoreSink is the cache rebuilt from the source
type BestScoreSink interface {
	Rebuild(ctx context.Context, bests []domain.UserBest) error
}

// SyncWorker periodically rebuilds the best-score cache from PostgreSQL so
// that missed cache writes are repaired
type SyncWorker struct {
	source  BestScoreSource
	sink    BestScoreSink
	config  *config.SyncConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(
	source BestScoreSource,
	sink BestScoreSink,
	cfg *config.SyncConfig,
	logger *slog.Logger,
) *SyncWorker {
	return &SyncWorker{
		source: source,
		sink:   sink,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background sync process
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("sync worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background sync process
func (w *SyncWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("sync worker stopped")
	return nil
}

func (w *SyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("sync cycle failed", "error", err)
			}
		}
	}
}

// RunOnce rebuilds the cache a single time
func (w *SyncWorker) RunOnce(ctx context.Context) error {
	startTime := time.Now()

	bests, err := w.source.BestScorePerUser(ctx)
	if err != nil {
		return fmt.Errorf("loading best scores: %w", err)
	}

	if err := w.sink.Rebuild(ctx, bests); err != nil {
		return fmt.Errorf("rebuilding cache: %w", err)
	}

	w.logger.Info("sync cycle completed",
		"duration", time.Since(startTime),
		"players", len(bests),
	)
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
