package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"conto/internal/cache"
	"conto/internal/core"
)

// BudgetStore is the slice of the ledger store the budget service uses.
type BudgetStore interface {
	UpsertBudget(ctx context.Context, b core.Budget) (int64, error)
	BudgetsForMonth(ctx context.Context, userID string, month, year int) ([]core.Budget, error)
	UpdateTransactionCategory(ctx context.Context, id int64, userID string, categoryID *int64) (core.Date, error)
	CategoryByID(ctx context.Context, id int64) (core.Category, error)
}

// BudgetPage is the month view composed for the API layer: one row per
// category with budget or spending activity, plus the roll-up.
type BudgetPage struct {
	Month      int
	Year       int
	Categories []core.CategoryBudgetStatus
	Summary    core.BudgetSummary
}

// BudgetService composes aggregated spending with budget allocations and
// owns the category-override operation. Pages are cached briefly; writes
// through this service invalidate the affected month.
type BudgetService struct {
	store BudgetStore
	agg   *AggregationService
	pages *cache.LRUCache[BudgetPage]
}

func NewBudgetService(store BudgetStore, agg *AggregationService) *BudgetService {
	return &BudgetService{
		store: store,
		agg:   agg,
		pages: cache.NewLRUCache[BudgetPage](256, time.Minute),
	}
}

func pageKey(userID string, month, year int) string {
	return fmt.Sprintf("%s:%d-%02d", userID, year, month)
}

// BudgetPage returns the budget view for one month. Months without budgets
// or spending come back zeroed, never as errors.
func (s *BudgetService) BudgetPage(ctx context.Context, userID string, month, year int) (BudgetPage, error) {
	if month < 1 || month > 12 {
		return BudgetPage{}, core.ErrInvalidMonth
	}

	key := pageKey(userID, month, year)
	if page, ok := s.pages.Get(key); ok {
		return page, nil
	}

	budgets, err := s.store.BudgetsForMonth(ctx, userID, month, year)
	if err != nil {
		return BudgetPage{}, fmt.Errorf("budget page: %w", err)
	}
	spending, err := s.agg.MonthlySpending(ctx, userID, month, year)
	if err != nil {
		return BudgetPage{}, err
	}

	spentByCategory := make(map[int64]core.Money, len(spending.ByCategory))
	for _, cs := range spending.ByCategory {
		spentByCategory[cs.CategoryID] = cs.TotalSpent
	}

	page := BudgetPage{Month: month, Year: year}
	seen := make(map[int64]bool, len(budgets))
	for _, b := range budgets {
		page.Categories = append(page.Categories,
			core.CompareBudget(b.CategoryID, b.Amount, spentByCategory[b.CategoryID]))
		seen[b.CategoryID] = true
	}
	// Spending in unbudgeted categories still belongs on the page; it rolls
	// into the summary with a zero allocation.
	for _, cs := range spending.ByCategory {
		if !seen[cs.CategoryID] {
			page.Categories = append(page.Categories,
				core.CompareBudget(cs.CategoryID, core.Money{}, cs.TotalSpent))
		}
	}
	page.Summary = core.SummarizeBudgets(page.Categories)

	s.pages.Set(key, page)
	return page, nil
}

// SetBudget upserts one monthly allocation; a second call for the same
// (category, month, year) replaces the amount.
func (s *BudgetService) SetBudget(ctx context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if _, err := s.store.CategoryByID(ctx, b.CategoryID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("budget category %d: %w", b.CategoryID, core.ErrNotFound)
		}
		return err
	}

	if _, err := s.store.UpsertBudget(ctx, b); err != nil {
		return err
	}
	s.InvalidateMonth(b.UserID, b.Month, b.Year)
	return nil
}

// OverrideTransactionCategory reassigns a transaction's authoritative
// category (nil clears it back to "needs categorization"). Upstream
// category metadata is untouched; the very next aggregation reflects the
// move. A missing transaction or category comes back as core.ErrNotFound.
func (s *BudgetService) OverrideTransactionCategory(ctx context.Context, txID int64, userID string, categoryID *int64) error {
	if categoryID != nil {
		if _, err := s.store.CategoryByID(ctx, *categoryID); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return fmt.Errorf("category %d: %w", *categoryID, core.ErrNotFound)
			}
			return err
		}
	}

	date, err := s.store.UpdateTransactionCategory(ctx, txID, userID, categoryID)
	if err != nil {
		return err
	}
	s.InvalidateMonth(userID, date.Month(), date.Year())

	slog.InfoContext(ctx, "Transaction category overridden",
		"transaction_id", txID,
		"user_id", userID,
		"category_id", categoryID)

	return nil
}

// InvalidateMonth drops the cached page for one month, forcing the next
// read to recompute.
func (s *BudgetService) InvalidateMonth(userID string, month, year int) {
	s.pages.Delete(pageKey(userID, month, year))
}

// PageCache exposes the page cache for registration with a cache.Manager.
func (s *BudgetService) PageCache() cache.Cleaner {
	return s.pages
}
