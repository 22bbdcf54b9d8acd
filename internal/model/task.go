package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidPriority = errors.New("model: invalid task priority")

type Priority string

const (
	PriorityNone   Priority = "None"
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityNone, PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// RecurringTask is one materialized instance of a recurrence rule.
// RecurrenceRuleID is a lookup key into the rule store, not an owning
// reference; the instance outlives edits to its rule.
type RecurringTask struct {
	ID          string
	Title       string
	Description string
	Completed   bool
	Priority    Priority

	EstimatedMinutes int
	TrackedMinutes   int
	Tags             []string
	Subtasks         []string
	Attachments      []string
	ColumnID         string

	ScheduledDate string
	ReminderDate  string

	RecurrenceRuleID string
	InstanceNumber   int
	IsGenerated      bool
	CanReschedule    bool
	CanSkip          bool
	CanModify        bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t RecurringTask) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("model: task id is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return errors.New("model: task title is required")
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, t.Priority)
	}
	if t.ScheduledDate == "" {
		return errors.New("model: task scheduled date is required")
	}
	if t.InstanceNumber < 1 {
		return errors.New("model: task instance number must be positive")
	}
	return nil
}
