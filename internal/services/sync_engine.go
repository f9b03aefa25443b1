package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"conto/internal/core"
	"conto/internal/provider"
)

// SyncStore is the slice of the ledger store the sync engine writes through.
type SyncStore interface {
	GetSyncCursor(ctx context.Context, userID string) (string, error)
	SaveSyncCursor(ctx context.Context, userID, cursor string) error
	EnsureAccount(ctx context.Context, userID, externalID string) (int64, error)
	InsertTransaction(ctx context.Context, t core.Transaction) (int64, error)
	UpdateTransactionFacts(ctx context.Context, userID, externalID string, date core.Date, amount core.Money, description, merchant string) (bool, error)
	DeleteTransactionByExternalID(ctx context.Context, userID, externalID string) error
}

// SyncConfig bounds the engine's two distinct retry situations: the
// provider's "delta not ready yet" signal (empty next cursor) and transient
// transport failures. Both sleeps are cancellable through the request
// context.
type SyncConfig struct {
	// NotReadyBackoff is the pause before repeating a request the provider
	// answered with an empty next cursor (default: 2s).
	NotReadyBackoff time.Duration

	// MaxNotReadyRetries caps not-ready repeats per sync run (default: 5).
	MaxNotReadyRetries int

	// TransientBackoff is the pause before retrying after a network or
	// rate-limit failure (default: 1s).
	TransientBackoff time.Duration

	// MaxTransientRetries caps transient retries per sync run (default: 3).
	MaxTransientRetries int
}

// DefaultSyncConfig returns sensible defaults.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		NotReadyBackoff:     2 * time.Second,
		MaxNotReadyRetries:  5,
		TransientBackoff:    1 * time.Second,
		MaxTransientRetries: 3,
	}
}

// SyncResult reports what one sync run changed. Applied and
// SkippedDuplicates together describe the added records: re-running a sync
// against unchanged upstream state moves everything from Applied into
// SkippedDuplicates.
type SyncResult struct {
	Applied           int
	SkippedDuplicates int
	Modified          int
	Removed           int
}

// SyncEngine drives the cursor-based incremental pull from the upstream
// provider into the ledger store. Runs are serialized per user id;
// different users sync concurrently.
type SyncEngine struct {
	store    SyncStore
	source   provider.Source
	resolver *CategoryResolver
	config   SyncConfig

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

func NewSyncEngine(store SyncStore, source provider.Source, resolver *CategoryResolver, config SyncConfig) *SyncEngine {
	return &SyncEngine{
		store:     store,
		source:    source,
		resolver:  resolver,
		config:    config,
		userLocks: make(map[string]*sync.Mutex),
	}
}

func (e *SyncEngine) lockFor(userID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		e.userLocks[userID] = lock
	}
	return lock
}

// Sync pulls every pending delta page for the user and applies it to the
// ledger store. The whole operation is safe to re-run: duplicate additions
// are absorbed by the external-id unique constraint and counted instead of
// failing, removals are idempotent, and the cursor only advances after its
// deltas are applied. On failure the partial progress stays committed and
// the returned result says how much; errors wrapping provider.ErrTransient
// are worth retrying.
func (e *SyncEngine) Sync(ctx context.Context, userID, accessToken string) (SyncResult, error) {
	var result SyncResult
	if strings.TrimSpace(userID) == "" {
		return result, core.ErrEmptyUserID
	}
	if accessToken == "" {
		return result, errors.New("empty access token")
	}

	lock := e.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	runID := uuid.NewString()
	log := slog.With("run_id", runID, "user_id", userID)

	startCursor, err := e.store.GetSyncCursor(ctx, userID)
	if err != nil {
		return result, err
	}

	var (
		added    []provider.Transaction
		modified []provider.Transaction
		removed  []provider.Removed
	)
	cursor := startCursor
	notReadyLeft := e.config.MaxNotReadyRetries
	transientLeft := e.config.MaxTransientRetries

	log.InfoContext(ctx, "Sync started", "cursor", cursor)

	var loopErr error
	for {
		page, err := e.source.SyncPage(ctx, accessToken, cursor)
		if err != nil {
			if errors.Is(err, provider.ErrTransient) {
				if transientLeft > 0 {
					transientLeft--
					log.WarnContext(ctx, "Transient upstream failure, backing off",
						"error", err,
						"retries_left", transientLeft)
					if err := sleepCtx(ctx, e.config.TransientBackoff); err != nil {
						loopErr = err
						break
					}
					continue
				}
				loopErr = fmt.Errorf("upstream retries exhausted: %w", err)
				break
			}
			loopErr = err
			break
		}

		if page.NextCursor == "" {
			// Delta not ready yet: repeat the same request after a pause.
			if notReadyLeft == 0 {
				loopErr = fmt.Errorf("delta still not ready after %d attempts: %w",
					e.config.MaxNotReadyRetries, provider.ErrTransient)
				break
			}
			notReadyLeft--
			log.DebugContext(ctx, "Delta not ready, backing off",
				"retries_left", notReadyLeft)
			if err := sleepCtx(ctx, e.config.NotReadyBackoff); err != nil {
				loopErr = err
				break
			}
			continue
		}

		if err := validatePage(page); err != nil {
			// Malformed page is fatal for this run; earlier pages still apply.
			loopErr = fmt.Errorf("malformed sync page: %w", err)
			break
		}

		added = append(added, page.Added...)
		modified = append(modified, page.Modified...)
		removed = append(removed, page.Removed...)
		cursor = page.NextCursor

		if !page.HasMore {
			break
		}
	}

	applyErr := e.apply(ctx, userID, added, modified, removed, &result)

	// The cursor only advances past fully applied deltas, so a crash or a
	// failed apply re-runs from the last safe point and the dedup key
	// absorbs the overlap.
	if applyErr == nil && cursor != startCursor {
		if err := e.store.SaveSyncCursor(ctx, userID, cursor); err != nil {
			log.ErrorContext(ctx, "Failed to save sync cursor", "error", err)
			if loopErr == nil {
				loopErr = err
			}
		}
	}

	log.InfoContext(ctx, "Sync finished",
		"applied", result.Applied,
		"skipped_duplicates", result.SkippedDuplicates,
		"modified", result.Modified,
		"removed", result.Removed,
		"error", loopErr)

	if applyErr != nil {
		return result, applyErr
	}
	return result, loopErr
}

// apply writes the accumulated deltas. Added records that hit the dedup key
// are counted and skipped; modified records fall back to insertion when the
// local row is missing; removals of unknown rows are no-ops.
func (e *SyncEngine) apply(ctx context.Context, userID string, added, modified []provider.Transaction, removed []provider.Removed, result *SyncResult) error {
	for _, rec := range added {
		if err := e.insertRecord(ctx, userID, rec, result); err != nil {
			return err
		}
	}

	for _, rec := range modified {
		date, err := core.ParseDate(rec.Date)
		if err != nil {
			return fmt.Errorf("modified record %s: %w", rec.ExternalID, err)
		}
		amount := core.Money{Cents: core.CentsFromFloat(rec.Amount)}
		updated, err := e.store.UpdateTransactionFacts(ctx, userID, rec.ExternalID, date, amount, rec.Name, rec.MerchantName)
		if err != nil {
			return err
		}
		if !updated {
			// Correction for a row never seen locally: treat as an addition.
			if err := e.insertRecord(ctx, userID, rec, result); err != nil {
				return err
			}
			continue
		}
		result.Modified++
	}

	for _, rec := range removed {
		if err := e.store.DeleteTransactionByExternalID(ctx, userID, rec.ExternalID); err != nil {
			return err
		}
		result.Removed++
	}

	return nil
}

func (e *SyncEngine) insertRecord(ctx context.Context, userID string, rec provider.Transaction, result *SyncResult) error {
	extAccount := rec.AccountID
	if extAccount == "" {
		extAccount = "unlinked:" + userID
	}
	accountID, err := e.store.EnsureAccount(ctx, userID, extAccount)
	if err != nil {
		return err
	}

	date, err := core.ParseDate(rec.Date)
	if err != nil {
		return fmt.Errorf("added record %s: %w", rec.ExternalID, err)
	}

	tx := core.Transaction{
		UserID:      userID,
		AccountID:   accountID,
		ExternalID:  rec.ExternalID,
		Date:        date,
		Amount:      core.Money{Cents: core.CentsFromFloat(rec.Amount)},
		Description: rec.Name,
		Merchant:    rec.MerchantName,
	}

	if rec.Category != nil {
		tx.Upstream = core.UpstreamCategory{
			Primary:    rec.Category.Primary,
			Detailed:   rec.Category.Detailed,
			Confidence: rec.Category.Confidence,
		}
		// Resolution only seeds brand-new transactions; an existing row's
		// authoritative category is never touched from here.
		categoryID, err := e.resolver.Resolve(ctx, userID, rec.Category.Primary)
		if err != nil {
			return err
		}
		tx.CategoryID = categoryID
	}

	_, err = e.store.InsertTransaction(ctx, tx)
	if errors.Is(err, core.ErrDuplicateTransaction) {
		result.SkippedDuplicates++
		return nil
	}
	if err != nil {
		return err
	}
	result.Applied++
	return nil
}

// validatePage checks the fields every delta record must carry before
// anything from the page is queued for application.
func validatePage(page provider.SyncPage) error {
	check := func(kind string, recs []provider.Transaction) error {
		for _, rec := range recs {
			if rec.ExternalID == "" {
				return fmt.Errorf("%s record missing external_id", kind)
			}
			if _, err := core.ParseDate(rec.Date); err != nil {
				return fmt.Errorf("%s record %s: %w", kind, rec.ExternalID, err)
			}
			if rec.Name == "" {
				return fmt.Errorf("%s record %s missing name", kind, rec.ExternalID)
			}
		}
		return nil
	}
	if err := check("added", page.Added); err != nil {
		return err
	}
	if err := check("modified", page.Modified); err != nil {
		return err
	}
	for _, rec := range page.Removed {
		if rec.ExternalID == "" {
			return errors.New("removed record missing id")
		}
	}
	return nil
}

// sleepCtx pauses for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
