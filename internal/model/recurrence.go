package model

import "cloud.google.com/go/civil"

// NextWeekdayOnOrAfter returns the first date from start (inclusive) up to a
// week later whose weekday is in days. An empty set yields start.
func NextWeekdayOnOrAfter(start civil.Date, days WeekdaySet) civil.Date {
	if days == 0 {
		return start
	}
	for i := 0; i <= 7; i++ {
		candidate := start.AddDays(i)
		if days.Has(WeekdayOf(candidate)) {
			return candidate
		}
	}
	return start
}

// NextWeekdayAfter is like NextWeekdayOnOrAfter but never returns start
// itself. An empty set yields the same weekday one week later.
func NextWeekdayAfter(start civil.Date, days WeekdaySet) civil.Date {
	if days == 0 {
		return start.AddDays(7)
	}
	for i := 1; i <= 7; i++ {
		candidate := start.AddDays(i)
		if days.Has(WeekdayOf(candidate)) {
			return candidate
		}
	}
	return start.AddDays(7)
}
