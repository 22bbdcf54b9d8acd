package recurrence

import (
	"time"

	"recurd/internal/calendar"
	"recurd/internal/model"
)

// CalendarPolicy is an explicit set of blocked dates (holidays). An empty
// policy disables holiday avoidance entirely.
type CalendarPolicy struct {
	blocked map[string]bool
}

func NewCalendarPolicy(blocked ...time.Time) CalendarPolicy {
	m := make(map[string]bool, len(blocked))
	for _, t := range blocked {
		m[calendar.FormatDate(t)] = true
	}
	return CalendarPolicy{blocked: m}
}

func (p CalendarPolicy) IsBlocked(t time.Time) bool {
	return p.blocked[calendar.FormatDate(t)]
}

// resolveConflicts applies the pattern's avoidance policy to a candidate
// date. The second return value is false when the occurrence should be
// dropped outright; the caller does not substitute another date for it.
func (e *Engine) resolveConflicts(p model.RecurrencePattern, date time.Time) (time.Time, bool) {
	resolved := date
	if p.SkipWeekends && calendar.IsWeekend(resolved) {
		switch p.AdjustForWeekends {
		case model.AdjustSkip:
			return time.Time{}, false
		case model.AdjustBefore:
			resolved = e.walkClear(p, resolved, -1)
		case model.AdjustAfter:
			resolved = e.walkClear(p, resolved, 1)
		}
	}
	if p.SkipHolidays && e.policy.IsBlocked(resolved) {
		switch p.AdjustForWeekends {
		case model.AdjustSkip:
			return time.Time{}, false
		case model.AdjustBefore:
			resolved = e.walkClear(p, resolved, -1)
		case model.AdjustAfter:
			resolved = e.walkClear(p, resolved, 1)
		}
	}
	return resolved, true
}

// walkClear steps one day at a time until the date is outside every avoided
// day class of the pattern.
func (e *Engine) walkClear(p model.RecurrencePattern, from time.Time, step int) time.Time {
	d := from
	for {
		d = d.AddDate(0, 0, step)
		if p.SkipWeekends && calendar.IsWeekend(d) {
			continue
		}
		if p.SkipHolidays && e.policy.IsBlocked(d) {
			continue
		}
		return d
	}
}
