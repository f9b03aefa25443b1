// Package provider defines the port to the upstream bank-data aggregator:
// the incremental transaction feed consumed by the sync engine. Concrete
// sources live in the subpackages (httpsource for the real API, memory for
// tests and local development).
package provider

import (
	"context"
	"errors"
)

// ErrTransient marks upstream failures (network, rate limiting, 5xx) that
// are safe to retry. The sync engine retries these with bounded backoff and
// surfaces them as retryable once the budget is exhausted.
var ErrTransient = errors.New("transient upstream error")

type (
	// CategorySuggestion is the provider's own categorization, carried
	// through for audit/display. It never feeds financial math.
	CategorySuggestion struct {
		Primary    string `json:"primary"`
		Detailed   string `json:"detailed"`
		Confidence string `json:"confidence"`
	}

	// Transaction is one upstream transaction record. Amount follows the
	// ledger convention: negative for expenses, positive for credits.
	Transaction struct {
		ExternalID   string              `json:"external_id"`
		AccountID    string              `json:"account_id"`
		Date         string              `json:"date"` // YYYY-MM-DD
		Amount       float64             `json:"amount"`
		Name         string              `json:"name"`
		MerchantName string              `json:"merchant_name"`
		Category     *CategorySuggestion `json:"category_suggestion,omitempty"`
	}

	// Removed identifies a transaction the provider has retracted.
	Removed struct {
		ExternalID string `json:"id"`
	}

	// SyncPage is one page of the incremental feed. An empty NextCursor is
	// the provider's "delta not ready yet" signal: repeat the same request
	// after a pause rather than treating the page as data.
	SyncPage struct {
		Added      []Transaction `json:"added"`
		Modified   []Transaction `json:"modified"`
		Removed    []Removed     `json:"removed"`
		NextCursor string        `json:"next_cursor"`
		HasMore    bool          `json:"has_more"`
	}
)

// Source pulls one page of transaction deltas. cursor is the opaque resume
// token from the previous page, empty on a first sync.
type Source interface {
	SyncPage(ctx context.Context, accessToken, cursor string) (SyncPage, error)
}
