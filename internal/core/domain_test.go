package core

import (
	"errors"
	"strings"
	"testing"
)

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{
		UserID:      "u1",
		AccountID:   1,
		Date:        NewDate(2025, 1, 5),
		Amount:      Money{Cents: -4000},
		Description: "Coffee",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid transaction rejected: %v", err)
	}

	zero := valid
	zero.Amount = Money{}
	if err := zero.Validate(); err != nil {
		t.Fatalf("zero-amount synced transaction rejected: %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr error
	}{
		{"missing user", func(tx *Transaction) { tx.UserID = " " }, ErrEmptyUserID},
		{"zero date", func(tx *Transaction) { tx.Date = Date{} }, nil},
		{"empty description", func(tx *Transaction) { tx.Description = "" }, ErrEmptyDescription},
		{"zero amount manual entry", func(tx *Transaction) { tx.IsManual = true; tx.Amount = Money{} }, ErrInvalidAmount},
		{"oversized description", func(tx *Transaction) { tx.Description = strings.Repeat("x", 501) }, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := valid
			tc.mutate(&tx)
			err := tx.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestBudgetValidate(t *testing.T) {
	valid := Budget{UserID: "u1", CategoryID: 3, Month: 6, Year: 2025, Amount: Money{Cents: 30000}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid budget rejected: %v", err)
	}

	b := valid
	b.Month = 13
	if err := b.Validate(); !errors.Is(err, ErrInvalidMonth) {
		t.Errorf("month 13 should fail with ErrInvalidMonth, got %v", err)
	}

	b = valid
	b.Amount = Money{Cents: -100}
	if err := b.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative allocation should fail, got %v", err)
	}

	b = valid
	b.CategoryID = 0
	if err := b.Validate(); err == nil {
		t.Error("zero category id should fail")
	}
}

func TestCategoryValidate(t *testing.T) {
	if err := (Category{Name: "Groceries"}).Validate(); err != nil {
		t.Fatalf("valid category rejected: %v", err)
	}
	if err := (Category{Name: "  "}).Validate(); err == nil {
		t.Error("blank name should fail")
	}
	if err := (Category{Name: strings.Repeat("a", 101)}).Validate(); err == nil {
		t.Error("oversized name should fail")
	}
}
