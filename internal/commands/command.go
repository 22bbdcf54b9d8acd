// Package commands parses the recurd CLI's argument grammar into typed
// commands. Parsing is deliberately strict: anything unrecognized is a
// coded error the caller can print without guessing.
package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"recurd/internal/calendar"
	"recurd/internal/model"
)

type Type string

const (
	TypeAdd      Type = "add"
	TypeList     Type = "list"
	TypePreview  Type = "preview"
	TypeValidate Type = "validate"
	TypeGenerate Type = "generate"
	TypeSkip     Type = "skip"
	TypeComplete Type = "complete"
	TypeServe    Type = "serve"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type AddArgs struct {
	Rule model.RecurrenceRule
}

type PreviewArgs struct {
	RuleID string
}

type ValidateArgs struct {
	RuleID string
}

type SkipArgs struct {
	RuleID string
	Date   string
}

type CompleteArgs struct {
	TaskID string
}

type Command struct {
	Type     Type
	Add      *AddArgs
	Preview  *PreviewArgs
	Validate *ValidateArgs
	Skip     *SkipArgs
	Complete *CompleteArgs
}

func Parse(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "no command given"}
	}
	head := strings.ToLower(strings.TrimSpace(args[0]))
	rest := args[1:]

	switch Type(head) {
	case TypeAdd:
		return parseAdd(rest)
	case TypeList, TypeGenerate, TypeServe:
		return Command{Type: Type(head)}, nil
	case TypePreview:
		if len(rest) != 1 {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "preview requires a rule id"}
		}
		return Command{Type: TypePreview, Preview: &PreviewArgs{RuleID: rest[0]}}, nil
	case TypeValidate:
		if len(rest) != 1 {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "validate requires a rule id"}
		}
		return Command{Type: TypeValidate, Validate: &ValidateArgs{RuleID: rest[0]}}, nil
	case TypeSkip:
		if len(rest) != 2 {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "skip requires a rule id and a date"}
		}
		return Command{Type: TypeSkip, Skip: &SkipArgs{RuleID: rest[0], Date: rest[1]}}, nil
	case TypeComplete:
		if len(rest) != 1 {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "complete requires a task id"}
		}
		return Command{Type: TypeComplete, Complete: &CompleteArgs{TaskID: rest[0]}}, nil
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

// parseAdd reads key=value pairs into a draft rule. The engine-side
// validator decides whether the result is acceptable; this parser only
// rejects values it cannot read at all.
func parseAdd(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "add requires key=value arguments"}
	}

	rule := model.RecurrenceRule{
		Pattern: model.RecurrencePattern{Interval: 1},
		End:     model.RecurrenceEnd{Type: model.EndNever},
	}

	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found || value == "" {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("expected key=value, got %q", arg)}
		}
		if err := applyAddField(&rule, strings.ToLower(key), value); err != nil {
			return Command{}, err
		}
	}
	return Command{Type: TypeAdd, Add: &AddArgs{Rule: rule}}, nil
}

func applyAddField(rule *model.RecurrenceRule, key, value string) error {
	switch key {
	case "name":
		rule.Name = value
	case "description":
		rule.Description = value
	case "title":
		rule.Template.Title = value
		rule.Template.UsePlaceholders = strings.Contains(value, "{{")
	case "column":
		rule.Template.ColumnID = value
	case "priority":
		rule.Template.Priority = model.Priority(value)
	case "tags":
		rule.Template.Tags = strings.Split(value, ",")
	case "estimate":
		n, err := strconv.Atoi(value)
		if err != nil {
			return invalidArg("estimate must be a number of minutes")
		}
		rule.Template.EstimatedMinutes = n
	case "pattern":
		rule.Pattern.Type = model.PatternType(value)
	case "interval":
		n, err := strconv.Atoi(value)
		if err != nil {
			return invalidArg("interval must be a number")
		}
		rule.Pattern.Interval = n
	case "weekdays":
		days, err := parseWeekdays(value)
		if err != nil {
			return err
		}
		rule.Pattern.Weekdays = days
	case "monthday":
		n, err := strconv.Atoi(value)
		if err != nil {
			return invalidArg("monthday must be a number")
		}
		rule.Pattern.MonthlyType = model.MonthlyOnDate
		rule.Pattern.MonthDay = n
	case "nth":
		occurrence, weekday, err := parseNth(value)
		if err != nil {
			return err
		}
		rule.Pattern.MonthlyType = model.MonthlyOnWeekday
		rule.Pattern.MonthWeekOccurrence = occurrence
		rule.Pattern.MonthWeekday = weekday
	case "yearmonth":
		n, err := strconv.Atoi(value)
		if err != nil {
			return invalidArg("yearmonth must be a number")
		}
		rule.Pattern.YearMonth = time.Month(n)
	case "yearday":
		n, err := strconv.Atoi(value)
		if err != nil {
			return invalidArg("yearday must be a number")
		}
		rule.Pattern.YearlyType = model.YearlyOnDate
		rule.Pattern.YearDay = n
	case "rule":
		rule.Pattern.CustomRule = value
	case "time":
		rule.Pattern.SpecificTime = value
	case "allday":
		rule.Pattern.AllDay = value == "true" || value == "yes"
	case "weekends":
		adjust := model.WeekendAdjustment(value)
		switch adjust {
		case model.AdjustSkip, model.AdjustBefore, model.AdjustAfter:
			rule.Pattern.SkipWeekends = true
			rule.Pattern.AdjustForWeekends = adjust
		default:
			return invalidArg("weekends must be skip, before or after")
		}
	case "end":
		end, err := parseEnd(value)
		if err != nil {
			return err
		}
		rule.End = end
	case "start":
		if _, err := calendar.ParseDate(value); err != nil {
			return invalidArg("start must be formatted as YYYY-MM-DD")
		}
		rule.StartDate = value
	case "ahead":
		n, err := strconv.Atoi(value)
		if err != nil {
			return invalidArg("ahead must be a number of days")
		}
		rule.GenerateAhead = n
	case "cleanup":
		n, err := strconv.Atoi(value)
		if err != nil {
			return invalidArg("cleanup must be a number of days")
		}
		rule.CleanupAfter = n
	default:
		return &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unknown field %q", key)}
	}
	return nil
}

func parseWeekdays(value string) ([]time.Weekday, error) {
	parts := strings.Split(value, ",")
	out := make([]time.Weekday, 0, len(parts))
	for _, p := range parts {
		idx := calendar.WeekdayIndex(strings.ToLower(strings.TrimSpace(p)))
		if idx < 0 {
			return nil, invalidArg(fmt.Sprintf("unknown weekday %q", p))
		}
		out = append(out, time.Weekday(idx))
	}
	return out, nil
}

// parseNth reads "2:tuesday" or "last:friday".
func parseNth(value string) (int, time.Weekday, error) {
	occStr, dayStr, found := strings.Cut(value, ":")
	if !found {
		return 0, 0, invalidArg("nth must be formatted as occurrence:weekday, e.g. 2:tuesday")
	}
	occurrence := -1
	if occStr != "last" {
		n, err := strconv.Atoi(occStr)
		if err != nil || n < 1 || n > 4 {
			return 0, 0, invalidArg("nth occurrence must be 1-4 or last")
		}
		occurrence = n
	}
	idx := calendar.WeekdayIndex(strings.ToLower(dayStr))
	if idx < 0 {
		return 0, 0, invalidArg(fmt.Sprintf("unknown weekday %q", dayStr))
	}
	return occurrence, time.Weekday(idx), nil
}

// parseEnd reads "never", "after:12" or "on:2026-12-31".
func parseEnd(value string) (model.RecurrenceEnd, error) {
	if value == string(model.EndNever) {
		return model.RecurrenceEnd{Type: model.EndNever}, nil
	}
	kind, arg, found := strings.Cut(value, ":")
	if !found {
		return model.RecurrenceEnd{}, invalidArg("end must be never, after:N or on:YYYY-MM-DD")
	}
	switch kind {
	case "after":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return model.RecurrenceEnd{}, invalidArg("end repeat count must be a number")
		}
		return model.RecurrenceEnd{Type: model.EndAfter, Count: n}, nil
	case "on":
		if _, err := calendar.ParseDate(arg); err != nil {
			return model.RecurrenceEnd{}, invalidArg("end date must be formatted as YYYY-MM-DD")
		}
		return model.RecurrenceEnd{Type: model.EndOnDate, Date: arg}, nil
	default:
		return model.RecurrenceEnd{}, invalidArg("end must be never, after:N or on:YYYY-MM-DD")
	}
}

func invalidArg(msg string) error {
	return &CommandError{Code: ErrCodeInvalidArgument, Message: msg}
}
