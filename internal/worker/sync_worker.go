// Package worker runs syncs in the background: on demand from queued
// requests and periodically for every configured user.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"conto/internal/amqp"
	"conto/internal/services"
)

// TokenSource resolves a user's provider access token. Tokens stay on the
// worker side; queue messages only carry user ids.
type TokenSource interface {
	AccessToken(userID string) (string, bool)
}

// StaticTokens is a fixed user→token table, loaded from configuration.
type StaticTokens map[string]string

func (s StaticTokens) AccessToken(userID string) (string, bool) {
	tok, ok := s[userID]
	return tok, ok
}

// Users returns every user id with a token, in no particular order.
func (s StaticTokens) Users() []string {
	users := make([]string, 0, len(s))
	for u := range s {
		users = append(users, u)
	}
	return users
}

// Syncer runs one incremental sync for one user.
type Syncer interface {
	Sync(ctx context.Context, userID, accessToken string) (services.SyncResult, error)
}

// SyncWorker turns queued sync requests into engine runs.
type SyncWorker struct {
	engine Syncer
	tokens TokenSource
}

func NewSyncWorker(engine Syncer, tokens TokenSource) *SyncWorker {
	return &SyncWorker{engine: engine, tokens: tokens}
}

// HandleSyncRequest processes a single sync request message. A user with
// no known token is logged and dropped rather than requeued forever; an
// engine failure is returned so the delivery gets redelivered.
func (w *SyncWorker) HandleSyncRequest(ctx context.Context, msg *amqp.SyncRequestMessage) error {
	slog.InfoContext(ctx, "Processing sync request",
		"request_id", msg.RequestID,
		"user_id", msg.UserID)

	token, ok := w.tokens.AccessToken(msg.UserID)
	if !ok {
		slog.WarnContext(ctx, "No access token for user, dropping request",
			"request_id", msg.RequestID,
			"user_id", msg.UserID)
		return nil
	}

	result, err := w.engine.Sync(ctx, msg.UserID, token)
	if err != nil {
		return fmt.Errorf("sync user %s: %w", msg.UserID, err)
	}

	slog.InfoContext(ctx, "Sync request completed",
		"request_id", msg.RequestID,
		"user_id", msg.UserID,
		"applied", result.Applied,
		"skipped_duplicates", result.SkippedDuplicates,
		"modified", result.Modified,
		"removed", result.Removed)

	return nil
}
