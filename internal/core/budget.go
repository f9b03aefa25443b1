package core

// CategoryBudgetStatus is one category row on the budget page.
type CategoryBudgetStatus struct {
	CategoryID     int64
	Budgeted       Money
	Spent          Money // signed net spend for the month
	Remaining      Money
	PercentageUsed float64
}

// BudgetSummary is the roll-up across all category rows.
type BudgetSummary struct {
	TotalBudgeted  Money
	TotalSpent     Money
	TotalRemaining Money
	PercentageUsed float64
}

// CompareBudget turns a budgeted amount and a signed net spend into a status
// row. Spent already carries sign, so for an expense-only category
// (spent < 0) remaining grows past budgeted: remaining = budgeted - spent.
// PercentageUsed is |spent| / budgeted * 100 and may exceed 100; a zero
// budget yields 0 rather than dividing by zero. No rounding is applied;
// presentation rounding is the caller's concern.
func CompareBudget(categoryID int64, budgeted, spent Money) CategoryBudgetStatus {
	return CategoryBudgetStatus{
		CategoryID:     categoryID,
		Budgeted:       budgeted,
		Spent:          spent,
		Remaining:      Money{Cents: budgeted.Cents - spent.Cents},
		PercentageUsed: percentageUsed(budgeted, spent),
	}
}

// SummarizeBudgets rolls category rows up into totals. The overall
// percentage is computed from the summed totals the same way as the
// per-category case.
func SummarizeBudgets(rows []CategoryBudgetStatus) BudgetSummary {
	var s BudgetSummary
	for _, row := range rows {
		s.TotalBudgeted.Cents += row.Budgeted.Cents
		s.TotalSpent.Cents += row.Spent.Cents
		s.TotalRemaining.Cents += row.Remaining.Cents
	}
	s.PercentageUsed = percentageUsed(s.TotalBudgeted, s.TotalSpent)
	return s
}

func percentageUsed(budgeted, spent Money) float64 {
	if budgeted.Cents == 0 {
		return 0
	}
	return float64(spent.Abs().Cents) / float64(budgeted.Cents) * 100
}
