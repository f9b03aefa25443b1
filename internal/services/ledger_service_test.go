package services

import (
	"context"
	"errors"
	"testing"

	"conto/internal/core"
)

type fakeLedgerStore struct {
	inserted []core.Transaction
}

func (f *fakeLedgerStore) InsertTransaction(_ context.Context, t core.Transaction) (int64, error) {
	f.inserted = append(f.inserted, t)
	return int64(len(f.inserted)), nil
}

func (f *fakeLedgerStore) CreateAccount(_ context.Context, _ core.Account) (int64, error) {
	return 1, nil
}
func (f *fakeLedgerStore) DeleteAccount(_ context.Context, _ int64, _ string) error   { return nil }
func (f *fakeLedgerStore) UpdateAccountBalance(_ context.Context, _ int64, _ core.Money) error {
	return nil
}
func (f *fakeLedgerStore) CreateCategory(_ context.Context, _ core.Category) (int64, error) {
	return 1, nil
}
func (f *fakeLedgerStore) DeleteCategory(_ context.Context, _ int64, _ string) error { return nil }
func (f *fakeLedgerStore) ListCategories(_ context.Context, _ string) ([]core.Category, error) {
	return nil, nil
}

type recordingInvalidator struct {
	calls []string
}

func (r *recordingInvalidator) InvalidateMonth(userID string, month, year int) {
	r.calls = append(r.calls, pageKey(userID, month, year))
}

func TestCreateManualTransaction(t *testing.T) {
	store := &fakeLedgerStore{}
	inv := &recordingInvalidator{}
	svc := NewLedgerService(store, inv)

	id, err := svc.CreateManualTransaction(context.Background(), core.Transaction{
		UserID:      "u1",
		AccountID:   1,
		Date:        core.NewDate(2025, 3, 10),
		Amount:      core.Money{Cents: -2500},
		Description: "Lunch",
		// Callers cannot smuggle sync-only fields in.
		ExternalID: "spoofed",
		Upstream:   core.UpstreamCategory{Primary: "FOOD_AND_DRINK"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != 1 {
		t.Fatalf("id = %d", id)
	}

	got := store.inserted[0]
	if !got.IsManual {
		t.Error("manual flag not forced")
	}
	if got.ExternalID != "" {
		t.Errorf("external id = %q, want empty", got.ExternalID)
	}
	if got.Upstream != (core.UpstreamCategory{}) {
		t.Errorf("upstream metadata = %+v, want zero", got.Upstream)
	}

	if len(inv.calls) != 1 || inv.calls[0] != pageKey("u1", 3, 2025) {
		t.Errorf("invalidations = %v", inv.calls)
	}
}

func TestCreateManualTransactionValidation(t *testing.T) {
	svc := NewLedgerService(&fakeLedgerStore{}, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		tx   core.Transaction
		want error
	}{
		{"no user", core.Transaction{Date: core.NewDate(2025, 1, 1), Amount: core.Money{Cents: -1}, Description: "x"}, core.ErrEmptyUserID},
		{"zero amount", core.Transaction{UserID: "u1", Date: core.NewDate(2025, 1, 1), Description: "x"}, core.ErrInvalidAmount},
		{"no description", core.Transaction{UserID: "u1", Date: core.NewDate(2025, 1, 1), Amount: core.Money{Cents: -1}}, core.ErrEmptyDescription},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateManualTransaction(ctx, tc.tx); !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}
