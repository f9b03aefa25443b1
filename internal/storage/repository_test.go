package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"conto/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "conto_test.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedAccount(t *testing.T, repo *SQLiteRepository, userID string) int64 {
	t.Helper()
	id, err := repo.CreateAccount(context.Background(), core.Account{
		UserID: userID,
		Name:   "Checking",
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return id
}

func TestInsertTransactionDuplicateExternalID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	accountID := seedAccount(t, repo, "u1")

	tx := core.Transaction{
		UserID:      "u1",
		AccountID:   accountID,
		ExternalID:  "e1",
		Date:        core.NewDate(2025, 1, 5),
		Amount:      core.Money{Cents: -4000},
		Description: "Grocery run",
	}

	if _, err := repo.InsertTransaction(ctx, tx); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := repo.InsertTransaction(ctx, tx)
	if !errors.Is(err, core.ErrDuplicateTransaction) {
		t.Fatalf("second insert should hit the dedup key, got %v", err)
	}
}

func TestManualTransactionsShareNoDedupKey(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	accountID := seedAccount(t, repo, "u1")

	manual := core.Transaction{
		UserID:      "u1",
		AccountID:   accountID,
		Date:        core.NewDate(2025, 1, 6),
		Amount:      core.Money{Cents: -1500},
		Description: "Cash lunch",
		IsManual:    true,
	}

	// Two manual entries with no external id must both insert; the partial
	// unique index only covers non-NULL external ids.
	if _, err := repo.InsertTransaction(ctx, manual); err != nil {
		t.Fatalf("first manual insert: %v", err)
	}
	if _, err := repo.InsertTransaction(ctx, manual); err != nil {
		t.Fatalf("second manual insert: %v", err)
	}
}

func TestUpdateTransactionFactsPreservesCategory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	accountID := seedAccount(t, repo, "u1")

	groceries, err := repo.CategoryByName(ctx, "u1", "Groceries")
	if err != nil {
		t.Fatalf("seeded category missing: %v", err)
	}

	_, err = repo.InsertTransaction(ctx, core.Transaction{
		UserID:      "u1",
		AccountID:   accountID,
		ExternalID:  "e1",
		Date:        core.NewDate(2025, 1, 5),
		Amount:      core.Money{Cents: -4000},
		Description: "Grocery run",
		CategoryID:  &groceries.ID,
		Upstream:    core.UpstreamCategory{Primary: "FOOD_AND_DRINK_GROCERIES"},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	updated, err := repo.UpdateTransactionFacts(ctx, "u1", "e1",
		core.NewDate(2025, 1, 6), core.Money{Cents: -4250}, "Grocery run (corrected)", "Fresh Mart")
	if err != nil {
		t.Fatalf("update facts: %v", err)
	}
	if !updated {
		t.Fatal("expected an existing row to be updated")
	}

	got, err := repo.TransactionByExternalID(ctx, "u1", "e1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Amount.Cents != -4250 || got.Date.ISO() != "2025-01-06" {
		t.Errorf("facts not applied: %+v", got)
	}
	if got.CategoryID == nil || *got.CategoryID != groceries.ID {
		t.Error("authoritative category must survive an upstream correction")
	}
	if got.Upstream.Primary != "FOOD_AND_DRINK_GROCERIES" {
		t.Error("upstream metadata must stay as written")
	}

	updated, err = repo.UpdateTransactionFacts(ctx, "u1", "missing",
		core.NewDate(2025, 1, 6), core.Money{Cents: -1}, "x", "")
	if err != nil {
		t.Fatalf("update missing: %v", err)
	}
	if updated {
		t.Error("missing external id should report no update")
	}
}

func TestDeleteTransactionIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	accountID := seedAccount(t, repo, "u1")

	if _, err := repo.InsertTransaction(ctx, core.Transaction{
		UserID: "u1", AccountID: accountID, ExternalID: "e1",
		Date: core.NewDate(2025, 1, 5), Amount: core.Money{Cents: -100}, Description: "x",
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := repo.DeleteTransactionByExternalID(ctx, "u1", "e1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteTransactionByExternalID(ctx, "u1", "e1"); err != nil {
		t.Fatalf("repeated delete must be a no-op, got %v", err)
	}
}

func TestUpdateTransactionCategoryNotFound(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.UpdateTransactionCategory(context.Background(), 9999, "u1", nil); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCategoryDeleteSetsTransactionsNull(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	accountID := seedAccount(t, repo, "u1")

	catID, err := repo.CreateCategory(ctx, core.Category{Name: "Hobby", UserID: "u1"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	txID, err := repo.InsertTransaction(ctx, core.Transaction{
		UserID: "u1", AccountID: accountID, ExternalID: "e1",
		Date: core.NewDate(2025, 3, 10), Amount: core.Money{Cents: -2000},
		Description: "Paint", CategoryID: &catID,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := repo.UpsertBudget(ctx, core.Budget{
		UserID: "u1", CategoryID: catID, Month: 3, Year: 2025, Amount: core.Money{Cents: 5000},
	}); err != nil {
		t.Fatalf("budget: %v", err)
	}

	if err := repo.DeleteCategory(ctx, catID, "u1"); err != nil {
		t.Fatalf("delete category: %v", err)
	}

	start, end, _ := core.MonthWindow(2025, 3)
	txns, err := repo.TransactionsInRange(ctx, "u1", start, end)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(txns) != 1 || txns[0].ID != txID {
		t.Fatalf("transaction should survive category delete: %+v", txns)
	}
	if txns[0].CategoryID != nil {
		t.Error("category id should fall back to NULL on delete")
	}

	budgets, err := repo.BudgetsForMonth(ctx, "u1", 3, 2025)
	if err != nil {
		t.Fatalf("budgets: %v", err)
	}
	if len(budgets) != 0 {
		t.Errorf("budgets for a deleted category should cascade away, got %+v", budgets)
	}
}

func TestSystemCategoryImmutable(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	groceries, err := repo.CategoryByName(ctx, "u1", "Groceries")
	if err != nil {
		t.Fatalf("seeded category missing: %v", err)
	}
	if !groceries.IsSystem {
		t.Fatal("seeded Groceries should be a system category")
	}
	if err := repo.DeleteCategory(ctx, groceries.ID, "u1"); !errors.Is(err, core.ErrSystemCategory) {
		t.Fatalf("system category delete should be refused, got %v", err)
	}
}

func TestCategoryScopeUniqueness(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Colliding with a global system category is refused.
	if _, err := repo.CreateCategory(ctx, core.Category{Name: "Groceries", UserID: "u1"}); !errors.Is(err, core.ErrCategoryExists) {
		t.Fatalf("expected ErrCategoryExists, got %v", err)
	}

	if _, err := repo.CreateCategory(ctx, core.Category{Name: "Climbing", UserID: "u1"}); err != nil {
		t.Fatalf("scoped create: %v", err)
	}
	if _, err := repo.CreateCategory(ctx, core.Category{Name: "Climbing", UserID: "u1"}); !errors.Is(err, core.ErrCategoryExists) {
		t.Fatalf("duplicate within scope should be refused, got %v", err)
	}

	// A different user may reuse the name.
	if _, err := repo.CreateCategory(ctx, core.Category{Name: "Climbing", UserID: "u2"}); err != nil {
		t.Fatalf("other scope create: %v", err)
	}
}

func TestAccountDeleteCascadesTransactions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	accountID := seedAccount(t, repo, "u1")

	if _, err := repo.InsertTransaction(ctx, core.Transaction{
		UserID: "u1", AccountID: accountID, ExternalID: "e1",
		Date: core.NewDate(2025, 1, 5), Amount: core.Money{Cents: -100}, Description: "x",
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := repo.DeleteAccount(ctx, accountID, "u1"); err != nil {
		t.Fatalf("delete account: %v", err)
	}

	start, end, _ := core.MonthWindow(2025, 1)
	txns, err := repo.TransactionsInRange(ctx, "u1", start, end)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(txns) != 0 {
		t.Errorf("transactions should cascade with their account, got %+v", txns)
	}
}

func TestBudgetUpsertReplacesAmount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	groceries, err := repo.CategoryByName(ctx, "u1", "Groceries")
	if err != nil {
		t.Fatalf("seeded category missing: %v", err)
	}

	b := core.Budget{UserID: "u1", CategoryID: groceries.ID, Month: 2, Year: 2025, Amount: core.Money{Cents: 30000}}
	if _, err := repo.UpsertBudget(ctx, b); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	b.Amount = core.Money{Cents: 35000}
	if _, err := repo.UpsertBudget(ctx, b); err != nil {
		t.Fatalf("conflicting upsert should replace, got %v", err)
	}

	budgets, err := repo.BudgetsForMonth(ctx, "u1", 2, 2025)
	if err != nil {
		t.Fatalf("budgets: %v", err)
	}
	if len(budgets) != 1 {
		t.Fatalf("expected a single budget row, got %d", len(budgets))
	}
	if budgets[0].Amount.Cents != 35000 {
		t.Errorf("amount = %d, want 35000", budgets[0].Amount.Cents)
	}
}

func TestSyncCursorRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	cursor, err := repo.GetSyncCursor(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cursor != "" {
		t.Errorf("fresh user should have an empty cursor, got %q", cursor)
	}

	if err := repo.SaveSyncCursor(ctx, "u1", "c1"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.SaveSyncCursor(ctx, "u1", "c2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	cursor, err = repo.GetSyncCursor(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cursor != "c2" {
		t.Errorf("cursor = %q, want c2", cursor)
	}
}

func TestEnsureAccountReusesRow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.EnsureAccount(ctx, "u1", "acct-1")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	second, err := repo.EnsureAccount(ctx, "u1", "acct-1")
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if first != second {
		t.Errorf("same upstream account should map to one row: %d vs %d", first, second)
	}
}

func TestEnsureAccountScopedPerUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Upstream account ids are only unique per item; two users can each
	// bring an "acct-1" and must get their own row.
	mine, err := repo.EnsureAccount(ctx, "u1", "acct-1")
	if err != nil {
		t.Fatalf("ensure for u1: %v", err)
	}
	theirs, err := repo.EnsureAccount(ctx, "u2", "acct-1")
	if err != nil {
		t.Fatalf("ensure for u2: %v", err)
	}
	if mine == theirs {
		t.Fatalf("colliding external ids mapped to one row (%d)", mine)
	}

	tx := core.Transaction{
		UserID:      "u2",
		AccountID:   theirs,
		ExternalID:  "e-shared",
		Date:        core.NewDate(2025, 1, 5),
		Amount:      core.Money{Cents: -4000},
		Description: "Grocery run",
	}
	if _, err := repo.InsertTransaction(ctx, tx); err != nil {
		t.Fatalf("insert for u2: %v", err)
	}
	got, err := repo.TransactionByExternalID(ctx, "u2", "e-shared")
	if err != nil {
		t.Fatalf("load for u2: %v", err)
	}
	if got.AccountID != theirs {
		t.Errorf("transaction landed on account %d, want %d", got.AccountID, theirs)
	}
	if _, err := repo.TransactionByExternalID(ctx, "u1", "e-shared"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("u1 should not see u2's transaction, got %v", err)
	}
}
