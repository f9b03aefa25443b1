package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"conto/internal/core"
)

// InsertTransaction writes one transaction. A unique-constraint hit on the
// external id comes back as core.ErrDuplicateTransaction so sync can count
// it and move on.
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}

	var ext any
	if t.ExternalID != "" {
		ext = t.ExternalID
	}
	var cat any
	if t.CategoryID != nil {
		cat = *t.CategoryID
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions
		 (user_id, account_id, external_id, date, amount_cents, description, merchant,
		  upstream_primary, upstream_detailed, upstream_confidence, category_id, is_manual)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.AccountID, ext, t.Date.ISO(), t.Amount.Cents, t.Description, t.Merchant,
		t.Upstream.Primary, t.Upstream.Detailed, t.Upstream.Confidence, cat, t.IsManual)
	if err != nil {
		if isUniqueViolation(err, "transactions.external_id") {
			return 0, core.ErrDuplicateTransaction
		}
		return 0, fmt.Errorf("insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction insert id: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved",
		"id", id,
		"user_id", t.UserID,
		"external_id", t.ExternalID,
		"amount_cents", t.Amount.Cents)

	return id, nil
}

// UpdateTransactionFacts applies an upstream correction to the mutable facts
// of a synced transaction: date, amount, description and merchant. The
// authoritative category id is deliberately left alone so a user's override
// survives upstream corrections; upstream metadata is write-once and is not
// touched either. Returns false when no row carries the external id.
func (r *SQLiteRepository) UpdateTransactionFacts(ctx context.Context, userID, externalID string, date core.Date, amount core.Money, description, merchant string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET date = ?, amount_cents = ?, description = ?, merchant = ?
		 WHERE external_id = ? AND user_id = ?`,
		date.ISO(), amount.Cents, description, merchant, externalID, userID)
	if err != nil {
		return false, fmt.Errorf("update transaction facts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update transaction facts: %w", err)
	}
	return n > 0, nil
}

// DeleteTransactionByExternalID removes a transaction the provider has
// retracted. A missing row is not an error; removals are idempotent.
func (r *SQLiteRepository) DeleteTransactionByExternalID(ctx context.Context, userID, externalID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE external_id = ? AND user_id = ?`,
		externalID, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

// UpdateTransactionCategory reassigns the authoritative category. It is the
// only post-creation mutation allowed on categorization; upstream metadata
// stays as written. The transaction's date is returned so callers can
// invalidate the affected month.
func (r *SQLiteRepository) UpdateTransactionCategory(ctx context.Context, id int64, userID string, categoryID *int64) (core.Date, error) {
	var dateISO string
	err := r.db.QueryRowContext(ctx,
		`SELECT date FROM transactions WHERE id = ? AND user_id = ?`,
		id, userID).Scan(&dateISO)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Date{}, core.ErrNotFound
	}
	if err != nil {
		return core.Date{}, fmt.Errorf("lookup transaction: %w", err)
	}

	var cat any
	if categoryID != nil {
		cat = *categoryID
	}
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET category_id = ? WHERE id = ? AND user_id = ?`,
		cat, id, userID); err != nil {
		return core.Date{}, fmt.Errorf("update transaction category: %w", err)
	}

	date, err := core.ParseDate(dateISO)
	if err != nil {
		return core.Date{}, fmt.Errorf("stored date %q: %w", dateISO, err)
	}

	slog.InfoContext(ctx, "Transaction category updated",
		"id", id,
		"user_id", userID,
		"category_id", categoryID)

	return date, nil
}

// TransactionsInRange returns all of a user's transactions dated inside
// [start, end] inclusive. ISO date strings compare lexicographically, so the
// filter runs on the indexed text column.
func (r *SQLiteRepository) TransactionsInRange(ctx context.Context, userID string, start, end core.Date) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, account_id, COALESCE(external_id, ''), date, amount_cents,
		        description, merchant, upstream_primary, upstream_detailed,
		        upstream_confidence, category_id, is_manual
		 FROM transactions
		 WHERE user_id = ? AND date >= ? AND date <= ?
		 ORDER BY date, id`,
		userID, start.ISO(), end.ISO())
	if err != nil {
		return nil, fmt.Errorf("transactions in range: %w", err)
	}
	defer rows.Close()

	var txns []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// TransactionByExternalID fetches a single synced transaction.
func (r *SQLiteRepository) TransactionByExternalID(ctx context.Context, userID, externalID string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, account_id, COALESCE(external_id, ''), date, amount_cents,
		        description, merchant, upstream_primary, upstream_detailed,
		        upstream_confidence, category_id, is_manual
		 FROM transactions WHERE external_id = ? AND user_id = ?`,
		externalID, userID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	return t, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var t core.Transaction
	var dateISO string
	var cat sql.NullInt64
	err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &t.ExternalID, &dateISO, &t.Amount.Cents,
		&t.Description, &t.Merchant, &t.Upstream.Primary, &t.Upstream.Detailed,
		&t.Upstream.Confidence, &cat, &t.IsManual)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, err
		}
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	if cat.Valid {
		id := cat.Int64
		t.CategoryID = &id
	}
	t.Date, err = core.ParseDate(dateISO)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("stored date %q: %w", dateISO, err)
	}
	return t, nil
}
