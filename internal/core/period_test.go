package core

import (
	"errors"
	"testing"
)

func TestMonthWindow(t *testing.T) {
	cases := []struct {
		year, month int
		wantEnd     string
	}{
		{2024, 2, "2024-02-29"}, // leap year
		{2025, 2, "2025-02-28"},
		{2000, 2, "2000-02-29"}, // divisible by 400
		{1900, 2, "1900-02-28"}, // divisible by 100 but not 400
		{2025, 1, "2025-01-31"},
		{2025, 4, "2025-04-30"},
		{2025, 12, "2025-12-31"},
	}

	for _, tc := range cases {
		start, end, err := MonthWindow(tc.year, tc.month)
		if err != nil {
			t.Fatalf("MonthWindow(%d, %d): %v", tc.year, tc.month, err)
		}
		if start.Day() != 1 {
			t.Errorf("window start should be day 1, got %s", start.ISO())
		}
		if end.ISO() != tc.wantEnd {
			t.Errorf("MonthWindow(%d, %d) end = %s, want %s", tc.year, tc.month, end.ISO(), tc.wantEnd)
		}
	}
}

func TestMonthWindowRejectsBadMonth(t *testing.T) {
	for _, month := range []int{0, 13, -1} {
		if _, _, err := MonthWindow(2025, month); !errors.Is(err, ErrInvalidMonth) {
			t.Errorf("month %d should be rejected with ErrInvalidMonth, got %v", month, err)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("valid leap day rejected: %v", err)
	}
	if d.ISO() != "2024-02-29" {
		t.Errorf("round trip failed: %s", d.ISO())
	}

	if _, err := ParseDate("2025-02-29"); err == nil {
		t.Error("2025-02-29 is not a valid date and should be rejected")
	}
	if _, err := ParseDate("05/01/2025"); err == nil {
		t.Error("non-ISO format should be rejected")
	}
}
