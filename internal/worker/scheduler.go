package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RefreshSchedulerConfig holds configuration for the periodic refresher.
type RefreshSchedulerConfig struct {
	// Interval is how often every configured user gets synced (default: 6h).
	Interval time.Duration
}

// DefaultRefreshSchedulerConfig returns sensible defaults.
func DefaultRefreshSchedulerConfig() RefreshSchedulerConfig {
	return RefreshSchedulerConfig{Interval: 6 * time.Hour}
}

// RefreshScheduler periodically syncs every user with a known token, so
// transactions keep flowing even when nobody enqueues a request. Queue
// deliveries and scheduled runs for the same user are serialized by the
// engine's per-user lock.
type RefreshScheduler struct {
	engine Syncer
	tokens StaticTokens
	config RefreshSchedulerConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewRefreshScheduler(engine Syncer, tokens StaticTokens, config RefreshSchedulerConfig) *RefreshScheduler {
	return &RefreshScheduler{
		engine: engine,
		tokens: tokens,
		config: config,
	}
}

// Start begins the refresh loop. Returns an error if already running.
func (s *RefreshScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("refresh scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	slog.InfoContext(ctx, "Refresh scheduler started",
		"interval", s.config.Interval,
		"users", len(s.tokens))

	return nil
}

// Stop gracefully stops the scheduler and waits for completion.
func (s *RefreshScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)

	select {
	case <-s.doneCh:
		slog.InfoContext(ctx, "Refresh scheduler stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Refresh scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	return nil
}

// IsRunning returns whether the scheduler is currently running.
func (s *RefreshScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *RefreshScheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Refresh immediately on startup
	s.refreshAll(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshAll(ctx)
		}
	}
}

// refreshAll syncs every configured user in turn. One user's failure does
// not block the others; the next tick retries everyone anyway.
func (s *RefreshScheduler) refreshAll(ctx context.Context) {
	for _, userID := range s.tokens.Users() {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		token, _ := s.tokens.AccessToken(userID)
		result, err := s.engine.Sync(ctx, userID, token)
		if err != nil {
			slog.ErrorContext(ctx, "Scheduled sync failed",
				"user_id", userID,
				"error", err)
			continue
		}

		slog.DebugContext(ctx, "Scheduled sync completed",
			"user_id", userID,
			"applied", result.Applied,
			"modified", result.Modified,
			"removed", result.Removed)
	}
}
