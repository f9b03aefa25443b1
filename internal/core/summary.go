package core

// CategorySpending is the net spend for one authoritative category in a
// month window. TotalSpent keeps the transaction signs, so refunds offset
// expenses instead of inflating them.
type CategorySpending struct {
	CategoryID int64
	TotalSpent Money
	Count      int
}

// SpendingOverview is the per-month aggregation result. Transactions with a
// nil authoritative category are excluded from both the per-category rows
// and the totals.
type SpendingOverview struct {
	Year       int
	Month      int // 1-12
	TotalSpent Money
	TotalCount int
	ByCategory []CategorySpending
}
