package services

import (
	"context"
	"fmt"
	"sort"

	"conto/internal/core"
)

// SpendReader is the slice of the ledger store aggregation reads.
type SpendReader interface {
	TransactionsInRange(ctx context.Context, userID string, start, end core.Date) ([]core.Transaction, error)
}

// AggregationService computes per-category net spend for a month window,
// reading only the authoritative category field.
type AggregationService struct {
	store SpendReader
}

func NewAggregationService(store SpendReader) *AggregationService {
	return &AggregationService{store: store}
}

// MonthlySpending aggregates the user's transactions for one calendar
// month. Amounts are summed with their signs intact, so refunds offset
// expenses. Transactions without an authoritative category are excluded
// entirely — they appear in neither the per-category rows nor the totals.
// A month with no qualifying transactions yields an empty overview, not an
// error; only the month value itself is validated here.
func (s *AggregationService) MonthlySpending(ctx context.Context, userID string, month, year int) (core.SpendingOverview, error) {
	overview := core.SpendingOverview{Year: year, Month: month}

	start, end, err := core.MonthWindow(year, month)
	if err != nil {
		return overview, err
	}

	txns, err := s.store.TransactionsInRange(ctx, userID, start, end)
	if err != nil {
		return overview, fmt.Errorf("monthly spending: %w", err)
	}

	byCategory := make(map[int64]*core.CategorySpending)
	for _, tx := range txns {
		if tx.CategoryID == nil {
			continue
		}
		cs, ok := byCategory[*tx.CategoryID]
		if !ok {
			cs = &core.CategorySpending{CategoryID: *tx.CategoryID}
			byCategory[*tx.CategoryID] = cs
		}
		cs.TotalSpent.Cents += tx.Amount.Cents
		cs.Count++
		overview.TotalSpent.Cents += tx.Amount.Cents
		overview.TotalCount++
	}

	overview.ByCategory = make([]core.CategorySpending, 0, len(byCategory))
	for _, cs := range byCategory {
		overview.ByCategory = append(overview.ByCategory, *cs)
	}
	sort.Slice(overview.ByCategory, func(i, j int) bool {
		return overview.ByCategory[i].CategoryID < overview.ByCategory[j].CategoryID
	})

	return overview, nil
}
