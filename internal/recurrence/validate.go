package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"recurd/internal/calendar"
	"recurd/internal/model"
)

// ValidateRule checks a draft rule for structural and semantic problems.
// All checks run; errors accumulate instead of short-circuiting, so a form
// can show everything at once. When the rule is clean a bounded preview is
// attached; preview failures downgrade to warnings because validity is not
// preview-dependent.
func (e *Engine) ValidateRule(rule model.RecurrenceRule) model.RecurrenceValidation {
	errs := make([]string, 0, 4)
	warnings := make([]string, 0, 2)

	if strings.TrimSpace(rule.Name) == "" {
		errs = append(errs, "rule name is required")
	}
	if strings.TrimSpace(rule.Template.Title) == "" {
		errs = append(errs, "task title is required")
	}
	if strings.TrimSpace(rule.Template.ColumnID) == "" {
		errs = append(errs, "target column is required")
	}

	errs = append(errs, validatePattern(rule.Pattern)...)
	errs = append(errs, validateEnd(rule.End)...)

	var preview *model.RecurrencePreview
	if len(errs) == 0 {
		preview = e.safePreview(rule, &warnings)
		if preview != nil {
			warnings = append(warnings, preview.Warnings...)
		}
	}

	return model.RecurrenceValidation{
		IsValid:  len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
		Preview:  preview,
	}
}

func validatePattern(p model.RecurrencePattern) []string {
	if p.Type == "" {
		return []string{"recurrence pattern is required"}
	}
	if !p.Type.IsValid() {
		return []string{fmt.Sprintf("unknown pattern type %q", p.Type)}
	}

	errs := make([]string, 0, 2)
	if p.Interval < model.MinInterval || p.Interval > model.MaxInterval {
		errs = append(errs, fmt.Sprintf("interval must be between %d and %d", model.MinInterval, model.MaxInterval))
	}
	switch p.Type {
	case model.PatternWeekly:
		if len(p.Weekdays) == 0 {
			errs = append(errs, "weekly pattern requires at least one weekday")
		}
	case model.PatternMonthly:
		switch p.MonthlyType {
		case model.MonthlyOnWeekday:
			if !validWeekOccurrence(p.MonthWeekOccurrence) {
				errs = append(errs, "month week occurrence must be 1 through 4, or -1 for the last")
			}
		default:
			if p.MonthDay < 1 || p.MonthDay > 31 {
				errs = append(errs, "day of month must be between 1 and 31")
			}
		}
	case model.PatternYearly:
		if p.YearMonth < time.January || p.YearMonth > time.December {
			errs = append(errs, "year month must be between 1 and 12")
		}
		switch p.YearlyType {
		case model.YearlyOnWeekday:
			if !validWeekOccurrence(p.YearWeekOccurrence) {
				errs = append(errs, "year week occurrence must be 1 through 4, or -1 for the last")
			}
		default:
			if p.YearDay < 1 || p.YearDay > 31 {
				errs = append(errs, "day of month must be between 1 and 31")
			}
		}
	case model.PatternCustom:
		if strings.TrimSpace(p.CustomRule) == "" {
			errs = append(errs, "custom pattern requires a recurrence rule expression")
		} else if _, err := rrule.StrToROption(p.CustomRule); err != nil {
			errs = append(errs, fmt.Sprintf("invalid recurrence rule expression: %v", err))
		}
	}
	if p.SpecificTime != "" && !p.AllDay {
		if _, err := time.Parse("15:04", p.SpecificTime); err != nil {
			errs = append(errs, "specific time must be formatted as HH:MM")
		}
	}
	return errs
}

func validateEnd(end model.RecurrenceEnd) []string {
	switch end.Type {
	case "":
		return []string{"end condition is required"}
	case model.EndNever:
		return nil
	case model.EndAfter:
		if end.Count < 1 {
			return []string{"repeat count must be at least 1"}
		}
		return nil
	case model.EndOnDate:
		if end.Date == "" {
			return []string{"end date is required"}
		}
		if _, err := calendar.ParseDate(end.Date); err != nil {
			return []string{"end date must be formatted as YYYY-MM-DD"}
		}
		return nil
	default:
		return []string{fmt.Sprintf("unknown end type %q", end.Type)}
	}
}

func validWeekOccurrence(n int) bool {
	return n == -1 || (n >= 1 && n <= 4)
}

// safePreview builds the validation preview, converting any internal panic
// into a warning.
func (e *Engine) safePreview(rule model.RecurrenceRule, warnings *[]string) (preview *model.RecurrencePreview) {
	defer func() {
		if r := recover(); r != nil {
			preview = nil
			*warnings = append(*warnings, "preview generation failed")
		}
	}()
	p := e.GeneratePreview(rule, time.Now().UTC())
	return &p
}
