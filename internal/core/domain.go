package core

import (
	"errors"
	"strings"
	"time"
)

type (
	// Date is a calendar date; the time-of-day portion is always midnight UTC.
	Date struct {
		time.Time
	}

	// Account is a funding source transactions belong to. ExternalID is set
	// for provider-linked accounts and empty for manually created ones.
	Account struct {
		ID          int64
		UserID      string
		ExternalID  string
		Name        string
		Type        string
		Subtype     string
		Balance     Money
		Institution string
	}

	// Category is a spending category. System categories are seeded by
	// migration, owned by nobody and immutable; user categories carry the
	// owning user id.
	Category struct {
		ID       int64
		Name     string
		IsSystem bool
		UserID   string // empty for global scope
	}

	// UpstreamCategory is the provider's own categorization of a
	// transaction. It is stored verbatim for display and audit. Write-once:
	// nothing after insert may change it, and no financial math may read it.
	UpstreamCategory struct {
		Primary    string
		Detailed   string
		Confidence string
	}

	// Transaction is a single ledger entry. Amount is signed: negative for
	// expenses, positive for refunds and credits. CategoryID is the
	// authoritative assignment and the only category field aggregation
	// reads; nil means "needs categorization".
	Transaction struct {
		ID          int64
		UserID      string
		AccountID   int64
		ExternalID  string // empty for manual entries; unique when present
		Date        Date
		Amount      Money
		Description string
		Merchant    string
		Upstream    UpstreamCategory
		CategoryID  *int64
		IsManual    bool
	}

	// Budget is a monthly allocation for one category.
	Budget struct {
		ID         int64
		UserID     string
		CategoryID int64
		Month      int // 1-12
		Year       int
		Amount     Money
		UpdatedAt  time.Time
	}
)

var (
	ErrInvalidMonth         = errors.New("month must be between 1 and 12")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrEmptyDescription     = errors.New("empty description")
	ErrEmptyUserID          = errors.New("empty user id")
	ErrNotFound             = errors.New("not found")
	ErrDuplicateTransaction = errors.New("duplicate external transaction id")
	ErrCategoryExists       = errors.New("category name already in scope")
	ErrSystemCategory       = errors.New("system categories are immutable")
)

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string as used on the provider wire and in
// storage.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, errors.New("invalid date: " + s)
	}
	return Date{Time: t}, nil
}

// ISO returns the YYYY-MM-DD form.
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

// Month returns the month as an int.
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year.
func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUserID
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	// Providers emit zero-amount records (pending authorizations, balance
	// checks); only hand-entered transactions must carry a real amount.
	if t.IsManual && t.Amount.Cents == 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return ErrEmptyUserID
	}
	if b.Month < 1 || b.Month > 12 {
		return ErrInvalidMonth
	}
	if b.CategoryID <= 0 {
		return errors.New("invalid category id")
	}
	if b.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("empty category name")
	}
	if len(c.Name) > 100 {
		return errors.New("category name too long (max 100 characters)")
	}
	return nil
}
