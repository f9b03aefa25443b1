// Package services holds the application services between the ledger store
// and the API layer: category resolution, the incremental sync engine,
// monthly spend aggregation and budget composition.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"conto/internal/core"
)

// CategoryLookup is the slice of the ledger store the resolver needs.
type CategoryLookup interface {
	CategoryByName(ctx context.Context, userID, name string) (core.Category, error)
}

// CategoryResolver maps an upstream category label to a locally
// authoritative category id. It only ever seeds new, uncategorized
// transactions: callers must not invoke it for a transaction that already
// carries a user-assigned category.
type CategoryResolver struct {
	store  CategoryLookup
	labels map[string]string
}

// NewCategoryResolver builds a resolver over the given label→name table.
// A nil table selects the built-in default mapping.
func NewCategoryResolver(store CategoryLookup, labels map[string]string) *CategoryResolver {
	if labels == nil {
		labels = DefaultLabelMap()
	}
	return &CategoryResolver{store: store, labels: labels}
}

// Resolve returns the category id for an upstream primary label, or nil
// when no mapping or no matching local category exists — the transaction
// then stays uncategorized and is surfaced to the user as needing
// categorization.
func (r *CategoryResolver) Resolve(ctx context.Context, userID, upstreamPrimary string) (*int64, error) {
	name, ok := r.labels[upstreamPrimary]
	if !ok {
		slog.DebugContext(ctx, "No mapping for upstream category label",
			"label", upstreamPrimary)
		return nil, nil
	}

	c, err := r.store.CategoryByName(ctx, userID, name)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Mapped category name has no local category",
			"label", upstreamPrimary,
			"name", name)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve category %q: %w", name, err)
	}

	id := c.ID
	return &id, nil
}

// DefaultLabelMap returns the built-in upstream-label→category-name table,
// matching the system categories seeded by migration.
func DefaultLabelMap() map[string]string {
	return map[string]string{
		"INCOME":                        "Income",
		"FOOD_AND_DRINK_GROCERIES":      "Groceries",
		"FOOD_AND_DRINK":                "Dining & Drinks",
		"FOOD_AND_DRINK_RESTAURANT":     "Dining & Drinks",
		"FOOD_AND_DRINK_COFFEE":         "Dining & Drinks",
		"TRANSPORTATION":                "Transport",
		"TRANSPORTATION_PUBLIC_TRANSIT": "Transport",
		"TRANSPORTATION_GAS":            "Transport",
		"RENT_AND_UTILITIES":            "Bills & Utilities",
		"RENT_AND_UTILITIES_RENT":       "Rent & Mortgage",
		"LOAN_PAYMENTS_MORTGAGE":        "Rent & Mortgage",
		"ENTERTAINMENT":                 "Entertainment",
		"GENERAL_MERCHANDISE":           "Shopping",
		"MEDICAL":                       "Health",
		"PERSONAL_CARE":                 "Health",
		"TRAVEL":                        "Travel",
		"TRANSFER_IN":                   "Transfers",
		"TRANSFER_OUT":                  "Transfers",
		"BANK_FEES":                     "Other",
		"GENERAL_SERVICES":              "Other",
	}
}

// LoadLabelMap reads a label→name table from a JSON object file, so the
// mapping can evolve without touching the engine.
func LoadLabelMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read label map: %w", err)
	}
	var labels map[string]string
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("parse label map %s: %w", path, err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("label map %s is empty", path)
	}
	return labels, nil
}
