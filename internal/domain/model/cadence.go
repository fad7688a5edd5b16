package model

import "time"

// AddCadence moves t forward by one billing period.
//
// Monthly adds one calendar month and yearly one calendar year. When the day
// of month does not exist in the target month it is clamped to that month's
// last day: Jan 31 -> Feb 29 (leap) / Feb 28, and Feb 29 + 1y -> Feb 28.
func AddCadence(t time.Time, c Cadence) time.Time {
	switch c {
	case CadenceYearly:
		return addMonthsClamped(t, 12)
	default:
		return addMonthsClamped(t, 1)
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + months
	ty := y + total/12
	tm := time.Month(total%12 + 1)
	if last := daysIn(ty, tm, t.Location()); d > last {
		d = last
	}
	return time.Date(ty, tm, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(y int, m time.Month, loc *time.Location) int {
	// day 0 of the next month normalizes to the last day of m
	return time.Date(y, m+1, 0, 0, 0, 0, 0, loc).Day()
}
