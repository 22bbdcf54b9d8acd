// Package calendar holds the pure date arithmetic the recurrence engine is
// built on. Nothing here keeps state or touches the clock.
package calendar

import (
	"time"
)

// DateLayout is the ISO date form used everywhere a date crosses a boundary.
const DateLayout = "2006-01-02"

var weekdayNames = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// WeekdayName returns the lowercase name for a weekday index, 0 = Sunday.
// Out-of-range indexes yield the empty string.
func WeekdayName(index int) string {
	if index < 0 || index > 6 {
		return ""
	}
	return weekdayNames[index]
}

// WeekdayIndex is the inverse of WeekdayName; it also accepts three-letter
// abbreviations. Returns -1 for unknown names.
func WeekdayIndex(name string) int {
	for i, n := range weekdayNames {
		if n == name || (len(name) == 3 && n[:3] == name) {
			return i
		}
	}
	return -1
}

func IsWeekend(t time.Time) bool {
	d := t.Weekday()
	return d == time.Saturday || d == time.Sunday
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// WeekNumber is the day-of-year divided by seven, rounded up, so January 1st
// falls in week 1.
func WeekNumber(t time.Time) int {
	return (t.YearDay() + 6) / 7
}

func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1).Day()
}

// NthWeekdayOfMonth finds the date of the nth given weekday within a month.
// occurrence -1 means the last one, scanning backward from month end.
// Positive occurrences count forward; the second return value is false when
// the month has fewer matches (there is no 5th Monday most months).
func NthWeekdayOfMonth(year int, month time.Month, weekday time.Weekday, occurrence int) (time.Time, bool) {
	last := DaysInMonth(year, month)
	if occurrence == -1 {
		for day := last; day >= 1; day-- {
			d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
			if d.Weekday() == weekday {
				return d, true
			}
		}
		return time.Time{}, false
	}
	if occurrence < 1 {
		return time.Time{}, false
	}
	count := 0
	for day := 1; day <= last; day++ {
		d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		if d.Weekday() == weekday {
			count++
			if count == occurrence {
				return d, true
			}
		}
	}
	return time.Time{}, false
}
