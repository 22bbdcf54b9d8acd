package model

import (
	"errors"
	"strings"
	"time"
)

type PatternType string

const (
	PatternDaily   PatternType = "daily"
	PatternWeekly  PatternType = "weekly"
	PatternMonthly PatternType = "monthly"
	PatternYearly  PatternType = "yearly"
	PatternCustom  PatternType = "custom"
)

func (p PatternType) IsValid() bool {
	switch p {
	case PatternDaily, PatternWeekly, PatternMonthly, PatternYearly, PatternCustom:
		return true
	default:
		return false
	}
}

type MonthlyType string

const (
	MonthlyOnDate    MonthlyType = "date"
	MonthlyOnWeekday MonthlyType = "weekday"
)

type YearlyType string

const (
	YearlyOnDate    YearlyType = "date"
	YearlyOnWeekday YearlyType = "weekday"
)

// WeekendAdjustment selects what happens to an occurrence that lands on a
// weekend (or a blocked date) when the pattern avoids them.
type WeekendAdjustment string

const (
	AdjustSkip   WeekendAdjustment = "skip"
	AdjustBefore WeekendAdjustment = "before"
	AdjustAfter  WeekendAdjustment = "after"
)

type EndType string

const (
	EndNever  EndType = "never"
	EndAfter  EndType = "after"
	EndOnDate EndType = "on_date"
)

func (e EndType) IsValid() bool {
	switch e {
	case EndNever, EndAfter, EndOnDate:
		return true
	default:
		return false
	}
}

type ExceptionType string

const (
	ExceptionSkip       ExceptionType = "skip"
	ExceptionReschedule ExceptionType = "reschedule"
	ExceptionModify     ExceptionType = "modify"
)

const (
	MinInterval          = 1
	MaxInterval          = 365
	MaxPreviewItems      = 10
	DefaultGenerateAhead = 30
	DefaultCleanupAfter  = 90
)

var (
	ErrInvalidPatternType = errors.New("model: invalid pattern type")
	ErrInvalidEndType     = errors.New("model: invalid end type")
)

// RecurrencePattern describes how occurrence dates repeat. Exactly one
// interpretation is active per Type; fields belonging to other types are
// ignored.
type RecurrencePattern struct {
	Type     PatternType
	Interval int

	// weekly
	Weekdays []time.Weekday

	// monthly
	MonthlyType         MonthlyType
	MonthDay            int
	MonthWeekOccurrence int // 1-4, -1 for the last occurrence
	MonthWeekday        time.Weekday

	// yearly
	YearlyType         YearlyType
	YearMonth          time.Month
	YearDay            int
	YearWeekOccurrence int
	YearWeekday        time.Weekday

	// custom: an RRULE expression, e.g. "FREQ=DAILY;INTERVAL=2"
	CustomRule string

	SpecificTime string // HH:MM, ignored when AllDay
	AllDay       bool

	SkipWeekends      bool
	SkipHolidays      bool
	AdjustForWeekends WeekendAdjustment
}

// RecurrenceEnd bounds a rule. Count applies to "after", Date to "on_date".
type RecurrenceEnd struct {
	Type  EndType
	Count int
	Date  string
}

// RecurrenceException overrides a single occurrence date. Only "skip" affects
// generation today; reschedule/modify are reserved.
type RecurrenceException struct {
	Date string
	Type ExceptionType
}

// RecurrenceTemplate holds the task fields a rule stamps onto every
// materialized instance. Title and Description may contain placeholder
// tokens such as {{date}} and {{counter}}.
type RecurrenceTemplate struct {
	Title            string
	Description      string
	Priority         Priority
	EstimatedMinutes int
	Tags             []string
	ColumnID         string
	UsePlaceholders  bool
}

type RuleStats struct {
	TotalGenerated int
	TotalCompleted int
	TotalSkipped   int
	CurrentStreak  int
	BestStreak     int
	LastGenerated  string
}

// RecurrenceRule is the unit of persistence. It owns its pattern, end
// condition and exception list; generated instances refer back to it by ID
// only.
type RecurrenceRule struct {
	ID          string
	Name        string
	Description string
	Template    RecurrenceTemplate
	Pattern     RecurrencePattern
	End         RecurrenceEnd
	Exceptions  []RecurrenceException

	StartDate     string // ISO date anchoring the occurrence sequence
	GenerateAhead int    // days
	CleanupAfter  int    // days
	IsActive      bool

	CreatedAt time.Time
	UpdatedAt time.Time
	Stats     RuleStats
}

// HasSkipException reports whether the given ISO date is suppressed by a
// skip exception.
func (r RecurrenceRule) HasSkipException(date string) bool {
	for _, ex := range r.Exceptions {
		if ex.Date == date && ex.Type == ExceptionSkip {
			return true
		}
	}
	return false
}

// Validate performs the structural checks the storage layer relies on. The
// user-facing accumulating validation lives in the recurrence engine.
func (r RecurrenceRule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("model: rule id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("model: rule name is required")
	}
	if !r.Pattern.Type.IsValid() {
		return ErrInvalidPatternType
	}
	if !r.End.Type.IsValid() {
		return ErrInvalidEndType
	}
	if r.CreatedAt.IsZero() {
		return errors.New("model: rule created_at is required")
	}
	return nil
}

// RecurrencePreview is a transient, recomputed view of upcoming occurrences.
type RecurrencePreview struct {
	Dates     []string
	Count     int
	HasMore   bool
	EndDate   string
	Truncated bool
	Warnings  []string
}

type RecurrenceValidation struct {
	IsValid  bool
	Errors   []string
	Warnings []string
	Preview  *RecurrencePreview
}
