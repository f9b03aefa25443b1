// Package storage is the ledger store: accounts, categories, transactions,
// budgets and sync cursors in SQLite. It exclusively owns persistence and
// invariant enforcement; callers get and give plain core types, never
// database handles.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"conto/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint hit on
// the named index column. The modernc driver exposes this only through the
// error text.
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}

// --- Accounts ---

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (int64, error) {
	var ext any
	if a.ExternalID != "" {
		ext = a.ExternalID
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (user_id, external_id, name, type, subtype, balance_cents, institution)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, ext, a.Name, a.Type, a.Subtype, a.Balance.Cents, a.Institution)
	if err != nil {
		return 0, fmt.Errorf("create account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("account insert id: %w", err)
	}

	slog.InfoContext(ctx, "Account created",
		"id", id,
		"user_id", a.UserID,
		"name", a.Name)

	return id, nil
}

// EnsureAccount returns the local id for an upstream account, creating a
// placeholder row the first time the id is seen in a sync feed.
func (r *SQLiteRepository) EnsureAccount(ctx context.Context, userID, externalID string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM accounts WHERE external_id = ? AND user_id = ?`,
		externalID, userID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup account %s: %w", externalID, err)
	}

	id, err = r.CreateAccount(ctx, core.Account{
		UserID:     userID,
		ExternalID: externalID,
		Name:       "Linked account " + externalID,
	})
	if err != nil {
		// Lost a race with a concurrent sync for the same user; re-read
		// with the same ownership filter as the first lookup.
		if isUniqueViolation(err, "accounts.external_id") {
			if lookupErr := r.db.QueryRowContext(ctx,
				`SELECT id FROM accounts WHERE external_id = ? AND user_id = ?`,
				externalID, userID).Scan(&id); lookupErr == nil {
				return id, nil
			}
		}
		return 0, err
	}
	return id, nil
}

func (r *SQLiteRepository) UpdateAccountBalance(ctx context.Context, id int64, balance core.Money) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = ? WHERE id = ?`, balance.Cents, id)
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// DeleteAccount removes an account and, through the cascade, its
// transactions.
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id int64, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM accounts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Account deleted", "id", id, "user_id", userID)
	return nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, COALESCE(external_id, ''), name, type, subtype, balance_cents, institution
		 FROM accounts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.ExternalID, &a.Name, &a.Type, &a.Subtype, &a.Balance.Cents, &a.Institution); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// --- Categories ---

// CreateCategory inserts a category into the caller's scope. The name must
// not collide with anything visible to that scope (global plus own).
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	if _, err := r.CategoryByName(ctx, c.UserID, c.Name); err == nil {
		return 0, core.ErrCategoryExists
	} else if !errors.Is(err, core.ErrNotFound) {
		return 0, err
	}

	var owner any
	if c.UserID != "" {
		owner = c.UserID
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, is_system, user_id) VALUES (?, 0, ?)`,
		c.Name, owner)
	if err != nil {
		if isUniqueViolation(err, "categories") {
			return 0, core.ErrCategoryExists
		}
		return 0, fmt.Errorf("create category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("category insert id: %w", err)
	}
	return id, nil
}

// CategoryByName resolves a name within the caller's visibility scope:
// the user's own categories shadow global ones of the same name.
func (r *SQLiteRepository) CategoryByName(ctx context.Context, userID, name string) (core.Category, error) {
	var c core.Category
	var owner sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, is_system, user_id FROM categories
		 WHERE name = ? AND (user_id IS NULL OR user_id = ?)
		 ORDER BY user_id IS NULL LIMIT 1`,
		name, userID).Scan(&c.ID, &c.Name, &c.IsSystem, &owner)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("category by name: %w", err)
	}
	c.UserID = owner.String
	return c, nil
}

func (r *SQLiteRepository) CategoryByID(ctx context.Context, id int64) (core.Category, error) {
	var c core.Category
	var owner sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, is_system, user_id FROM categories WHERE id = ?`,
		id).Scan(&c.ID, &c.Name, &c.IsSystem, &owner)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("category by id: %w", err)
	}
	c.UserID = owner.String
	return c, nil
}

// DeleteCategory removes a user-scoped category. System categories are
// undeletable; transactions referencing the category fall back to NULL via
// the foreign key, budgets cascade.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64, userID string) error {
	c, err := r.CategoryByID(ctx, id)
	if err != nil {
		return err
	}
	if c.IsSystem {
		return core.ErrSystemCategory
	}
	if c.UserID != userID {
		return core.ErrNotFound
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	slog.InfoContext(ctx, "Category deleted", "id", id, "name", c.Name, "user_id", userID)
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, is_system, user_id FROM categories
		 WHERE user_id IS NULL OR user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		var owner sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.IsSystem, &owner); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.UserID = owner.String
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
