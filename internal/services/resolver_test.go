package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"conto/internal/core"
)

type fakeCategoryLookup struct {
	categories map[string]core.Category
	err        error
}

func (f *fakeCategoryLookup) CategoryByName(_ context.Context, _, name string) (core.Category, error) {
	if f.err != nil {
		return core.Category{}, f.err
	}
	c, ok := f.categories[name]
	if !ok {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

func TestResolveMappedLabel(t *testing.T) {
	lookup := &fakeCategoryLookup{categories: map[string]core.Category{
		"Groceries": {ID: 2, Name: "Groceries", IsSystem: true},
	}}
	r := NewCategoryResolver(lookup, nil)

	id, err := r.Resolve(context.Background(), "u1", "FOOD_AND_DRINK_GROCERIES")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id == nil || *id != 2 {
		t.Fatalf("id = %v, want 2", id)
	}
}

func TestResolveUnmappedLabelStaysUncategorized(t *testing.T) {
	r := NewCategoryResolver(&fakeCategoryLookup{}, nil)

	id, err := r.Resolve(context.Background(), "u1", "SOMETHING_NOVEL")
	if err != nil {
		t.Fatalf("unmapped label must not error: %v", err)
	}
	if id != nil {
		t.Fatalf("id = %d, want nil", *id)
	}
}

func TestResolveMissingLocalCategoryStaysUncategorized(t *testing.T) {
	// The label maps to "Groceries" but no such category exists locally.
	r := NewCategoryResolver(&fakeCategoryLookup{}, nil)

	id, err := r.Resolve(context.Background(), "u1", "FOOD_AND_DRINK_GROCERIES")
	if err != nil {
		t.Fatalf("missing category must not error: %v", err)
	}
	if id != nil {
		t.Fatalf("id = %d, want nil", *id)
	}
}

func TestResolvePropagatesStoreErrors(t *testing.T) {
	boom := errors.New("db locked")
	r := NewCategoryResolver(&fakeCategoryLookup{err: boom}, nil)

	if _, err := r.Resolve(context.Background(), "u1", "TRAVEL"); !errors.Is(err, boom) {
		t.Fatalf("want store error surfaced, got %v", err)
	}
}

func TestResolveCustomLabelMap(t *testing.T) {
	lookup := &fakeCategoryLookup{categories: map[string]core.Category{
		"Vacanze": {ID: 7, Name: "Vacanze"},
	}}
	r := NewCategoryResolver(lookup, map[string]string{"TRAVEL": "Vacanze"})

	id, err := r.Resolve(context.Background(), "u1", "TRAVEL")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id == nil || *id != 7 {
		t.Fatalf("id = %v, want 7", id)
	}
}

func TestLoadLabelMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.json")
	if err := os.WriteFile(path, []byte(`{"TRAVEL": "Vacanze"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	labels, err := LoadLabelMap(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if labels["TRAVEL"] != "Vacanze" {
		t.Fatalf("labels = %v", labels)
	}
}

func TestLoadLabelMapRejectsEmptyAndBroken(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.json")
	os.WriteFile(empty, []byte(`{}`), 0o644)
	if _, err := LoadLabelMap(empty); err == nil {
		t.Error("empty map must fail")
	}

	broken := filepath.Join(dir, "broken.json")
	os.WriteFile(broken, []byte(`not json`), 0o644)
	if _, err := LoadLabelMap(broken); err == nil {
		t.Error("broken json must fail")
	}

	if _, err := LoadLabelMap(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("missing file must fail")
	}
}
