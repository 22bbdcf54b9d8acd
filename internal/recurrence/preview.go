package recurrence

import (
	"time"

	"recurd/internal/model"
)

// GeneratePreview builds a bounded, never-persisted view of upcoming
// occurrences together with warnings about dates the rule may drop.
func (e *Engine) GeneratePreview(rule model.RecurrenceRule, start time.Time) model.RecurrencePreview {
	dates, truncated := e.GenerateOccurrences(rule, start, model.MaxPreviewItems)

	warnings := make([]string, 0, 2)
	if rule.Pattern.SkipWeekends && rule.Pattern.AdjustForWeekends == model.AdjustSkip {
		warnings = append(warnings, "some occurrences may be skipped due to weekend avoidance")
	}
	if truncated {
		warnings = append(warnings, "occurrence list was cut off before reaching the requested count")
	}

	endDate := ""
	switch {
	case rule.End.Type == model.EndOnDate && rule.End.Date != "":
		endDate = rule.End.Date
	case rule.End.Type == model.EndAfter && rule.End.Count > 0:
		all, _ := e.GenerateOccurrences(rule, start, rule.End.Count)
		if len(all) > 0 {
			endDate = all[len(all)-1]
		}
	}

	return model.RecurrencePreview{
		Dates:     dates,
		Count:     len(dates),
		HasMore:   len(dates) >= model.MaxPreviewItems,
		EndDate:   endDate,
		Truncated: truncated,
		Warnings:  warnings,
	}
}
