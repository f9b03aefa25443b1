package core

import "time"

// MonthWindow returns the inclusive [first day, last day] window for the
// given month. The last day falls out of time.Date's day-0 normalization,
// which handles 28/29/30/31-day months and leap-year February.
// Month outside [1,12] is rejected; year range validation is the caller's
// concern.
func MonthWindow(year, month int) (Date, Date, error) {
	if month < 1 || month > 12 {
		return Date{}, Date{}, ErrInvalidMonth
	}
	start := NewDate(year, month, 1)
	end := Date{Time: time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)}
	return start, end, nil
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
