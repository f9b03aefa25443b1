package services

import (
	"context"
	"fmt"
	"log/slog"

	"conto/internal/core"
)

// LedgerStore is the slice of the ledger store manual entry and account
// management write through.
type LedgerStore interface {
	InsertTransaction(ctx context.Context, t core.Transaction) (int64, error)
	CreateAccount(ctx context.Context, a core.Account) (int64, error)
	DeleteAccount(ctx context.Context, id int64, userID string) error
	UpdateAccountBalance(ctx context.Context, id int64, balance core.Money) error
	CreateCategory(ctx context.Context, c core.Category) (int64, error)
	DeleteCategory(ctx context.Context, id int64, userID string) error
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)
}

// MonthInvalidator drops cached month views after a write. Optional.
type MonthInvalidator interface {
	InvalidateMonth(userID string, month, year int)
}

// LedgerService covers the manually-driven side of the ledger: user-entered
// transactions, accounts and categories. Synced data comes in through the
// SyncEngine instead.
type LedgerService struct {
	store       LedgerStore
	invalidator MonthInvalidator
}

func NewLedgerService(store LedgerStore, invalidator MonthInvalidator) *LedgerService {
	return &LedgerService{store: store, invalidator: invalidator}
}

// CreateManualTransaction inserts a user-entered transaction. Manual
// entries carry no external id and no upstream metadata; they flow through
// aggregation exactly like synced ones.
func (s *LedgerService) CreateManualTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	t.IsManual = true
	t.ExternalID = ""
	t.Upstream = core.UpstreamCategory{}

	if err := t.Validate(); err != nil {
		return 0, err
	}

	id, err := s.store.InsertTransaction(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("create manual transaction: %w", err)
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateMonth(t.UserID, t.Date.Month(), t.Date.Year())
	}

	slog.InfoContext(ctx, "Manual transaction created",
		"id", id,
		"user_id", t.UserID,
		"amount_cents", t.Amount.Cents)

	return id, nil
}

func (s *LedgerService) CreateAccount(ctx context.Context, a core.Account) (int64, error) {
	return s.store.CreateAccount(ctx, a)
}

// DeleteAccount removes an account and its transactions.
func (s *LedgerService) DeleteAccount(ctx context.Context, id int64, userID string) error {
	return s.store.DeleteAccount(ctx, id, userID)
}

// RefreshBalance records a new current balance for an account.
func (s *LedgerService) RefreshBalance(ctx context.Context, id int64, balance core.Money) error {
	return s.store.UpdateAccountBalance(ctx, id, balance)
}

func (s *LedgerService) CreateCategory(ctx context.Context, c core.Category) (int64, error) {
	c.IsSystem = false
	return s.store.CreateCategory(ctx, c)
}

func (s *LedgerService) DeleteCategory(ctx context.Context, id int64, userID string) error {
	return s.store.DeleteCategory(ctx, id, userID)
}

func (s *LedgerService) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	return s.store.ListCategories(ctx, userID)
}
