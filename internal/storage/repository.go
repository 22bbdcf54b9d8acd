package storage

import (
	"context"
	"errors"

	"recurd/internal/model"
)

var ErrNotFound = errors.New("storage: not found")

type RuleListFilter struct {
	IsActive *bool
	Limit    int
	Offset   int
}

type TaskListFilter struct {
	RuleID      string
	ScheduledOn string
	Completed   *bool
	Limit       int
	Offset      int
}

// Repository persists recurrence rules and the task instances materialized
// from them. A rule's exceptions travel with the rule. CreateTask reports
// whether a row was actually inserted: re-materializing an occurrence whose
// deterministic id already exists is a no-op, never a duplicate.
type Repository interface {
	CreateRule(ctx context.Context, in model.RecurrenceRule) error
	GetRule(ctx context.Context, id string) (model.RecurrenceRule, error)
	UpdateRule(ctx context.Context, in model.RecurrenceRule) error
	DeleteRule(ctx context.Context, id string) error
	ListRules(ctx context.Context, filter RuleListFilter) ([]model.RecurrenceRule, error)

	CreateTask(ctx context.Context, in model.RecurringTask) (bool, error)
	GetTask(ctx context.Context, id string) (model.RecurringTask, error)
	UpdateTask(ctx context.Context, in model.RecurringTask) error
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, filter TaskListFilter) ([]model.RecurringTask, error)
	CountTasks(ctx context.Context, ruleID string) (int, error)
	PruneTasks(ctx context.Context, ruleID string, before string) (int, error)
}
