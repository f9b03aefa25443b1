package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"conto/internal/core"
)

// UpsertBudget sets the allocation for (user, category, month, year). A
// conflict replaces the amount and bumps the updated timestamp instead of
// failing.
func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.Budget) (int64, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (user_id, category_id, month, year, amount_cents)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, category_id, month, year)
		 DO UPDATE SET amount_cents = excluded.amount_cents, updated_at = datetime('now')`,
		b.UserID, b.CategoryID, b.Month, b.Year, b.Amount.Cents)
	if err != nil {
		return 0, fmt.Errorf("upsert budget: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("budget insert id: %w", err)
	}

	slog.InfoContext(ctx, "Budget upserted",
		"user_id", b.UserID,
		"category_id", b.CategoryID,
		"month", b.Month,
		"year", b.Year,
		"amount_cents", b.Amount.Cents)

	return id, nil
}

// BudgetsForMonth returns all of a user's allocations for one month.
func (r *SQLiteRepository) BudgetsForMonth(ctx context.Context, userID string, month, year int) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, category_id, month, year, amount_cents
		 FROM budgets WHERE user_id = ? AND month = ? AND year = ?
		 ORDER BY category_id`,
		userID, month, year)
	if err != nil {
		return nil, fmt.Errorf("budgets for month: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Month, &b.Year, &b.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// --- Sync cursors ---

// GetSyncCursor returns the user's last applied provider cursor, or the
// empty string for a first sync.
func (r *SQLiteRepository) GetSyncCursor(ctx context.Context, userID string) (string, error) {
	var cursor string
	err := r.db.QueryRowContext(ctx,
		`SELECT cursor FROM sync_cursors WHERE user_id = ?`, userID).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get sync cursor: %w", err)
	}
	return cursor, nil
}

// SaveSyncCursor persists the cursor after its page's deltas are applied,
// making it the resume point for the next run.
func (r *SQLiteRepository) SaveSyncCursor(ctx context.Context, userID, cursor string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_cursors (user_id, cursor)
		 VALUES (?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET cursor = excluded.cursor, updated_at = datetime('now')`,
		userID, cursor)
	if err != nil {
		return fmt.Errorf("save sync cursor: %w", err)
	}
	return nil
}
