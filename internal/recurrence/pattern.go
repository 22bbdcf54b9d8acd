package recurrence

import (
	"time"

	"github.com/teambition/rrule-go"

	"recurd/internal/calendar"
	"recurd/internal/model"
)

// Months without the requested nth weekday are skipped, up to this many
// cycles, before a pattern is considered unsatisfiable.
const maxCycleScan = 48

// nextOccurrence computes the single raw candidate date strictly after the
// reference date. The second return value is false when the pattern cannot
// produce another date.
func (e *Engine) nextOccurrence(p model.RecurrencePattern, from time.Time) (time.Time, bool) {
	switch p.Type {
	case model.PatternDaily:
		return e.nextDaily(p, from)
	case model.PatternWeekly:
		return e.nextWeekly(p, from)
	case model.PatternMonthly:
		return e.nextMonthly(p, from)
	case model.PatternYearly:
		return e.nextYearly(p, from)
	case model.PatternCustom:
		return e.nextCustom(p, from)
	default:
		return time.Time{}, false
	}
}

func (e *Engine) nextDaily(p model.RecurrencePattern, from time.Time) (time.Time, bool) {
	return applyClock(p, from.AddDate(0, 0, interval(p))), true
}

// nextWeekly scans day by day for a selected weekday, bounded to one full
// interval of weeks. With no weekdays selected it repeats on the same
// weekday every interval weeks.
func (e *Engine) nextWeekly(p model.RecurrencePattern, from time.Time) (time.Time, bool) {
	if len(p.Weekdays) == 0 {
		return applyClock(p, from.AddDate(0, 0, 7*interval(p))), true
	}
	selected := make(map[time.Weekday]bool, len(p.Weekdays))
	for _, d := range p.Weekdays {
		selected[d] = true
	}
	probe := from.AddDate(0, 0, 1)
	for i := 0; i < 7*interval(p); i++ {
		if selected[probe.Weekday()] {
			return applyClock(p, probe), true
		}
		probe = probe.AddDate(0, 0, 1)
	}
	return time.Time{}, false
}

// nextMonthly first considers the reference month itself: a candidate there
// counts when it is strictly after the reference date, so a rule for the
// 15th started on the 1st fires in the same month. Only then does the
// interval advance the month anchor.
func (e *Engine) nextMonthly(p model.RecurrencePattern, from time.Time) (time.Time, bool) {
	if c, ok := monthCandidate(p, from.Year(), from.Month()); ok && c.After(from) {
		return applyClock(p, c), true
	}
	anchor := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, from.Location())
	for i := 0; i < maxCycleScan; i++ {
		anchor = anchor.AddDate(0, interval(p), 0)
		if c, ok := monthCandidate(p, anchor.Year(), anchor.Month()); ok {
			return applyClock(p, c), true
		}
	}
	return time.Time{}, false
}

func monthCandidate(p model.RecurrencePattern, year int, month time.Month) (time.Time, bool) {
	switch p.MonthlyType {
	case model.MonthlyOnWeekday:
		return calendar.NthWeekdayOfMonth(year, month, p.MonthWeekday, p.MonthWeekOccurrence)
	default:
		if p.MonthDay < 1 {
			return time.Time{}, false
		}
		// Short months clamp to their last day rather than erroring.
		day := p.MonthDay
		if last := calendar.DaysInMonth(year, month); day > last {
			day = last
		}
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
	}
}

// nextYearly mirrors nextMonthly at year granularity with an explicit target
// month.
func (e *Engine) nextYearly(p model.RecurrencePattern, from time.Time) (time.Time, bool) {
	if c, ok := yearCandidate(p, from.Year()); ok && c.After(from) {
		return applyClock(p, c), true
	}
	year := from.Year()
	for i := 0; i < maxCycleScan; i++ {
		year += interval(p)
		if c, ok := yearCandidate(p, year); ok {
			return applyClock(p, c), true
		}
	}
	return time.Time{}, false
}

func yearCandidate(p model.RecurrencePattern, year int) (time.Time, bool) {
	if p.YearMonth < time.January || p.YearMonth > time.December {
		return time.Time{}, false
	}
	switch p.YearlyType {
	case model.YearlyOnWeekday:
		return calendar.NthWeekdayOfMonth(year, p.YearMonth, p.YearWeekday, p.YearWeekOccurrence)
	default:
		if p.YearDay < 1 {
			return time.Time{}, false
		}
		day := p.YearDay
		if last := calendar.DaysInMonth(year, p.YearMonth); day > last {
			day = last
		}
		return time.Date(year, p.YearMonth, day, 0, 0, 0, 0, time.UTC), true
	}
}

// nextCustom evaluates an RRULE expression anchored at the reference date.
// Malformed expressions degrade to no date; validation rejects them before a
// rule is ever persisted.
func (e *Engine) nextCustom(p model.RecurrencePattern, from time.Time) (time.Time, bool) {
	opt, err := rrule.StrToROption(p.CustomRule)
	if err != nil {
		return time.Time{}, false
	}
	if opt.Dtstart.IsZero() {
		opt.Dtstart = from.UTC().Truncate(time.Second)
	}
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return time.Time{}, false
	}
	next := r.After(from.UTC(), false)
	if next.IsZero() {
		return time.Time{}, false
	}
	return applyClock(p, next), true
}

func interval(p model.RecurrencePattern) int {
	if p.Interval < 1 {
		return 1
	}
	return p.Interval
}

// applyClock overwrites the time-of-day component with the pattern's
// specific time, when one is set and the pattern is not all-day.
func applyClock(p model.RecurrencePattern, t time.Time) time.Time {
	if p.AllDay || p.SpecificTime == "" {
		return t
	}
	clock, err := time.Parse("15:04", p.SpecificTime)
	if err != nil {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), clock.Hour(), clock.Minute(), 0, 0, t.Location())
}
