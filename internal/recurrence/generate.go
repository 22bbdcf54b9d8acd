package recurrence

import (
	"time"

	"recurd/internal/calendar"
	"recurd/internal/model"
)

// iterationFactor bounds generation: a call asking for N dates visits at
// most N*iterationFactor raw candidates before giving up with whatever it
// has accumulated.
const iterationFactor = 50

// GenerateOccurrences produces up to count accepted ISO dates starting
// strictly after start. The second return value reports that the iteration
// bound was hit before count dates were accepted, which happens when a
// pattern keeps producing candidates that exceptions or the avoidance
// policy reject.
func (e *Engine) GenerateOccurrences(rule model.RecurrenceRule, start time.Time, count int) ([]string, bool) {
	dates := make([]string, 0, maxInt(count, 0))
	if count <= 0 {
		return dates, false
	}

	endDate := ""
	if rule.End.Type == model.EndOnDate {
		endDate = rule.End.Date
	}

	cursor := start
	maxIterations := count * iterationFactor
	for iterations := 0; len(dates) < count; iterations++ {
		if iterations >= maxIterations {
			return dates, true
		}

		next, ok := e.nextOccurrence(rule.Pattern, cursor)
		if !ok {
			break
		}

		day := calendar.FormatDate(next)
		if endDate != "" && day > endDate {
			break
		}

		// An exception always wins: the candidate is dropped before conflict
		// resolution, but the cursor still advances to it so interval growth
		// is unaffected.
		if rule.HasSkipException(day) {
			cursor = next
			continue
		}

		if resolved, keep := e.resolveConflicts(rule.Pattern, next); keep {
			dates = append(dates, calendar.FormatDate(resolved))
		}
		cursor = next
	}
	return dates, false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
