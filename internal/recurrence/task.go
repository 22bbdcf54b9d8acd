package recurrence

import (
	"fmt"
	"time"

	"recurd/internal/calendar"
	"recurd/internal/model"
)

// GenerateTask materializes one task instance for an accepted occurrence.
// The id is derived from (rule, date, instance number) so regenerating the
// same logical occurrence always yields the same id.
func (e *Engine) GenerateTask(rule model.RecurrenceRule, date time.Time, instanceNumber int) model.RecurringTask {
	day := calendar.FormatDate(date)
	now := time.Now().UTC()

	priority := rule.Template.Priority
	if priority == "" {
		priority = model.PriorityNone
	}

	return model.RecurringTask{
		ID:          fmt.Sprintf("recurring-%s-%s-%d", rule.ID, day, instanceNumber),
		Title:       RenderTemplate(rule.Template.Title, date, instanceNumber),
		Description: RenderTemplate(rule.Template.Description, date, instanceNumber),
		Completed:   false,
		Priority:    priority,

		EstimatedMinutes: rule.Template.EstimatedMinutes,
		TrackedMinutes:   0,
		Tags:             append([]string(nil), rule.Template.Tags...),
		Subtasks:         []string{},
		Attachments:      []string{},
		ColumnID:         rule.Template.ColumnID,

		ScheduledDate: day,
		ReminderDate:  day,

		RecurrenceRuleID: rule.ID,
		InstanceNumber:   instanceNumber,
		IsGenerated:      true,
		CanReschedule:    true,
		CanSkip:          true,
		CanModify:        true,

		CreatedAt: now,
		UpdatedAt: now,
	}
}
