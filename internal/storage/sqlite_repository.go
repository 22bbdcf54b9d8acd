package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"recurd/internal/model"
)

const sqliteTimeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// OpenSQLite opens the database file with foreign keys enforced on every
// pooled connection.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo, err := NewSQLiteRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) DB() *sql.DB {
	return r.db
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

const ruleColumns = `id, name, description, is_active, start_date,
	pattern_type, interval_value, weekdays, monthly_type, month_day, month_week_occurrence, month_weekday,
	yearly_type, year_month, year_day, year_week_occurrence, year_weekday, custom_rule,
	specific_time, all_day, skip_weekends, skip_holidays, adjust_weekends,
	template_title, template_description, template_priority, template_estimated_minutes, template_tags, template_column_id, template_use_placeholders,
	end_type, end_count, end_date, generate_ahead, cleanup_after,
	total_generated, total_completed, total_skipped, current_streak, best_streak, last_generated,
	created_at, updated_at`

func ruleArgs(in model.RecurrenceRule) []any {
	return []any{
		in.ID, in.Name, in.Description, boolInt(in.IsActive), in.StartDate,
		string(in.Pattern.Type), in.Pattern.Interval, weekdaysCSV(in.Pattern.Weekdays), string(in.Pattern.MonthlyType), in.Pattern.MonthDay, in.Pattern.MonthWeekOccurrence, int(in.Pattern.MonthWeekday),
		string(in.Pattern.YearlyType), int(in.Pattern.YearMonth), in.Pattern.YearDay, in.Pattern.YearWeekOccurrence, int(in.Pattern.YearWeekday), in.Pattern.CustomRule,
		in.Pattern.SpecificTime, boolInt(in.Pattern.AllDay), boolInt(in.Pattern.SkipWeekends), boolInt(in.Pattern.SkipHolidays), string(in.Pattern.AdjustForWeekends),
		in.Template.Title, in.Template.Description, string(in.Template.Priority), in.Template.EstimatedMinutes, strings.Join(in.Template.Tags, ","), in.Template.ColumnID, boolInt(in.Template.UsePlaceholders),
		string(in.End.Type), in.End.Count, in.End.Date, in.GenerateAhead, in.CleanupAfter,
		in.Stats.TotalGenerated, in.Stats.TotalCompleted, in.Stats.TotalSkipped, in.Stats.CurrentStreak, in.Stats.BestStreak, in.Stats.LastGenerated,
		mustTime(in.CreatedAt), mustTime(in.UpdatedAt),
	}
}

func (r *SQLiteRepository) CreateRule(ctx context.Context, in model.RecurrenceRule) error {
	if err := in.Validate(); err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", 43), ", ")
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO recurrence_rules (`+ruleColumns+`) VALUES (`+placeholders+`)`,
		ruleArgs(in)...,
	); err != nil {
		return err
	}
	if err := insertExceptions(ctx, tx, in.ID, in.Exceptions); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteRepository) GetRule(ctx context.Context, id string) (model.RecurrenceRule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM recurrence_rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RecurrenceRule{}, ErrNotFound
		}
		return model.RecurrenceRule{}, err
	}
	rule.Exceptions, err = r.loadExceptions(ctx, id)
	if err != nil {
		return model.RecurrenceRule{}, err
	}
	return rule, nil
}

func (r *SQLiteRepository) UpdateRule(ctx context.Context, in model.RecurrenceRule) error {
	if err := in.Validate(); err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE recurrence_rules
		SET name = ?, description = ?, is_active = ?, start_date = ?,
			pattern_type = ?, interval_value = ?, weekdays = ?, monthly_type = ?, month_day = ?, month_week_occurrence = ?, month_weekday = ?,
			yearly_type = ?, year_month = ?, year_day = ?, year_week_occurrence = ?, year_weekday = ?, custom_rule = ?,
			specific_time = ?, all_day = ?, skip_weekends = ?, skip_holidays = ?, adjust_weekends = ?,
			template_title = ?, template_description = ?, template_priority = ?, template_estimated_minutes = ?, template_tags = ?, template_column_id = ?, template_use_placeholders = ?,
			end_type = ?, end_count = ?, end_date = ?, generate_ahead = ?, cleanup_after = ?,
			total_generated = ?, total_completed = ?, total_skipped = ?, current_streak = ?, best_streak = ?, last_generated = ?,
			updated_at = ?
		WHERE id = ?`,
		in.Name, in.Description, boolInt(in.IsActive), in.StartDate,
		string(in.Pattern.Type), in.Pattern.Interval, weekdaysCSV(in.Pattern.Weekdays), string(in.Pattern.MonthlyType), in.Pattern.MonthDay, in.Pattern.MonthWeekOccurrence, int(in.Pattern.MonthWeekday),
		string(in.Pattern.YearlyType), int(in.Pattern.YearMonth), in.Pattern.YearDay, in.Pattern.YearWeekOccurrence, int(in.Pattern.YearWeekday), in.Pattern.CustomRule,
		in.Pattern.SpecificTime, boolInt(in.Pattern.AllDay), boolInt(in.Pattern.SkipWeekends), boolInt(in.Pattern.SkipHolidays), string(in.Pattern.AdjustForWeekends),
		in.Template.Title, in.Template.Description, string(in.Template.Priority), in.Template.EstimatedMinutes, strings.Join(in.Template.Tags, ","), in.Template.ColumnID, boolInt(in.Template.UsePlaceholders),
		string(in.End.Type), in.End.Count, in.End.Date, in.GenerateAhead, in.CleanupAfter,
		in.Stats.TotalGenerated, in.Stats.TotalCompleted, in.Stats.TotalSkipped, in.Stats.CurrentStreak, in.Stats.BestStreak, in.Stats.LastGenerated,
		mustTime(in.UpdatedAt), in.ID,
	)
	if err != nil {
		return err
	}
	if err := checkRowsAffected(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rule_exceptions WHERE rule_id = ?`, in.ID); err != nil {
		return err
	}
	if err := insertExceptions(ctx, tx, in.ID, in.Exceptions); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteRepository) DeleteRule(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurrence_rules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) ListRules(ctx context.Context, filter RuleListFilter) ([]model.RecurrenceRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM recurrence_rules`
	args := make([]any, 0, 3)
	if filter.IsActive != nil {
		query += ` WHERE is_active = ?`
		args = append(args, boolInt(*filter.IsActive))
	}
	query += ` ORDER BY created_at ASC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.RecurrenceRule, 0)
	for rows.Next() {
		rule, scanErr := scanRule(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Exceptions, err = r.loadExceptions(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

const taskColumns = `id, rule_id, title, description, completed, priority,
	estimated_minutes, tracked_minutes, tags, column_id, scheduled_date, reminder_date,
	instance_number, is_generated, can_reschedule, can_skip, can_modify, created_at, updated_at`

// CreateTask inserts a materialized instance. Ids are deterministic per
// occurrence, so an id collision means the instance already exists; the
// insert is skipped and false is returned.
func (r *SQLiteRepository) CreateTask(ctx context.Context, in model.RecurringTask) (bool, error) {
	if err := in.Validate(); err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO recurring_tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.RecurrenceRuleID, in.Title, in.Description, boolInt(in.Completed), string(in.Priority),
		in.EstimatedMinutes, in.TrackedMinutes, strings.Join(in.Tags, ","), in.ColumnID, in.ScheduledDate, in.ReminderDate,
		in.InstanceNumber, boolInt(in.IsGenerated), boolInt(in.CanReschedule), boolInt(in.CanSkip), boolInt(in.CanModify),
		mustTime(in.CreatedAt), mustTime(in.UpdatedAt),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *SQLiteRepository) GetTask(ctx context.Context, id string) (model.RecurringTask, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM recurring_tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RecurringTask{}, ErrNotFound
		}
		return model.RecurringTask{}, err
	}
	return task, nil
}

func (r *SQLiteRepository) UpdateTask(ctx context.Context, in model.RecurringTask) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_tasks
		SET title = ?, description = ?, completed = ?, priority = ?, estimated_minutes = ?, tracked_minutes = ?,
			tags = ?, column_id = ?, scheduled_date = ?, reminder_date = ?,
			can_reschedule = ?, can_skip = ?, can_modify = ?, updated_at = ?
		WHERE id = ?`,
		in.Title, in.Description, boolInt(in.Completed), string(in.Priority), in.EstimatedMinutes, in.TrackedMinutes,
		strings.Join(in.Tags, ","), in.ColumnID, in.ScheduledDate, in.ReminderDate,
		boolInt(in.CanReschedule), boolInt(in.CanSkip), boolInt(in.CanModify), mustTime(in.UpdatedAt),
		in.ID,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) DeleteTask(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) ListTasks(ctx context.Context, filter TaskListFilter) ([]model.RecurringTask, error) {
	query := `SELECT ` + taskColumns + ` FROM recurring_tasks`
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 5)
	if filter.RuleID != "" {
		clauses = append(clauses, "rule_id = ?")
		args = append(args, filter.RuleID)
	}
	if filter.ScheduledOn != "" {
		clauses = append(clauses, "scheduled_date = ?")
		args = append(args, filter.ScheduledOn)
	}
	if filter.Completed != nil {
		clauses = append(clauses, "completed = ?")
		args = append(args, boolInt(*filter.Completed))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY scheduled_date ASC, instance_number ASC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.RecurringTask, 0)
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CountTasks(ctx context.Context, ruleID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recurring_tasks WHERE rule_id = ?`, ruleID).Scan(&n)
	return n, err
}

// PruneTasks removes generated, uncompleted instances scheduled before the
// given ISO date. Completed instances stay as history.
func (r *SQLiteRepository) PruneTasks(ctx context.Context, ruleID string, before string) (int, error) {
	query := `DELETE FROM recurring_tasks WHERE is_generated = 1 AND completed = 0 AND scheduled_date < ?`
	args := []any{before}
	if ruleID != "" {
		query += ` AND rule_id = ?`
		args = append(args, ruleID)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

func (r *SQLiteRepository) loadExceptions(ctx context.Context, ruleID string) ([]model.RecurrenceException, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT exception_date, exception_type FROM rule_exceptions WHERE rule_id = ? ORDER BY exception_date ASC`, ruleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.RecurrenceException, 0)
	for rows.Next() {
		var ex model.RecurrenceException
		var exType string
		if err := rows.Scan(&ex.Date, &exType); err != nil {
			return nil, err
		}
		ex.Type = model.ExceptionType(exType)
		out = append(out, ex)
	}
	return out, rows.Err()
}

func insertExceptions(ctx context.Context, tx *sql.Tx, ruleID string, exceptions []model.RecurrenceException) error {
	for _, ex := range exceptions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rule_exceptions (rule_id, exception_date, exception_type) VALUES (?, ?, ?)`,
			ruleID, ex.Date, string(ex.Type),
		); err != nil {
			return err
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(s scanner) (model.RecurrenceRule, error) {
	var out model.RecurrenceRule
	var isActive, allDay, skipWeekends, skipHolidays, usePlaceholders int
	var patternType, monthlyType, yearlyType, adjustWeekends, priority, endType, weekdays, tags string
	var monthWeekday, yearMonth, yearWeekday int
	var created, updated string

	if err := s.Scan(
		&out.ID, &out.Name, &out.Description, &isActive, &out.StartDate,
		&patternType, &out.Pattern.Interval, &weekdays, &monthlyType, &out.Pattern.MonthDay, &out.Pattern.MonthWeekOccurrence, &monthWeekday,
		&yearlyType, &yearMonth, &out.Pattern.YearDay, &out.Pattern.YearWeekOccurrence, &yearWeekday, &out.Pattern.CustomRule,
		&out.Pattern.SpecificTime, &allDay, &skipWeekends, &skipHolidays, &adjustWeekends,
		&out.Template.Title, &out.Template.Description, &priority, &out.Template.EstimatedMinutes, &tags, &out.Template.ColumnID, &usePlaceholders,
		&endType, &out.End.Count, &out.End.Date, &out.GenerateAhead, &out.CleanupAfter,
		&out.Stats.TotalGenerated, &out.Stats.TotalCompleted, &out.Stats.TotalSkipped, &out.Stats.CurrentStreak, &out.Stats.BestStreak, &out.Stats.LastGenerated,
		&created, &updated,
	); err != nil {
		return model.RecurrenceRule{}, err
	}

	out.IsActive = isActive == 1
	out.Pattern.Type = model.PatternType(patternType)
	out.Pattern.Weekdays = parseWeekdaysCSV(weekdays)
	out.Pattern.MonthlyType = model.MonthlyType(monthlyType)
	out.Pattern.MonthWeekday = time.Weekday(monthWeekday)
	out.Pattern.YearlyType = model.YearlyType(yearlyType)
	out.Pattern.YearMonth = time.Month(yearMonth)
	out.Pattern.YearWeekday = time.Weekday(yearWeekday)
	out.Pattern.AllDay = allDay == 1
	out.Pattern.SkipWeekends = skipWeekends == 1
	out.Pattern.SkipHolidays = skipHolidays == 1
	out.Pattern.AdjustForWeekends = model.WeekendAdjustment(adjustWeekends)
	out.Template.Priority = model.Priority(priority)
	out.Template.Tags = splitCSV(tags)
	out.Template.UsePlaceholders = usePlaceholders == 1
	out.End.Type = model.EndType(endType)

	createdAt, err := parseRequiredTime(created)
	if err != nil {
		return model.RecurrenceRule{}, err
	}
	updatedAt, err := parseRequiredTime(updated)
	if err != nil {
		return model.RecurrenceRule{}, err
	}
	out.CreatedAt = createdAt
	out.UpdatedAt = updatedAt
	return out, nil
}

func scanTask(s scanner) (model.RecurringTask, error) {
	var out model.RecurringTask
	var completed, isGenerated, canReschedule, canSkip, canModify int
	var priority, tags, created, updated string

	if err := s.Scan(
		&out.ID, &out.RecurrenceRuleID, &out.Title, &out.Description, &completed, &priority,
		&out.EstimatedMinutes, &out.TrackedMinutes, &tags, &out.ColumnID, &out.ScheduledDate, &out.ReminderDate,
		&out.InstanceNumber, &isGenerated, &canReschedule, &canSkip, &canModify, &created, &updated,
	); err != nil {
		return model.RecurringTask{}, err
	}

	out.Completed = completed == 1
	out.Priority = model.Priority(priority)
	out.Tags = splitCSV(tags)
	out.Subtasks = []string{}
	out.Attachments = []string{}
	out.IsGenerated = isGenerated == 1
	out.CanReschedule = canReschedule == 1
	out.CanSkip = canSkip == 1
	out.CanModify = canModify == 1

	createdAt, err := parseRequiredTime(created)
	if err != nil {
		return model.RecurringTask{}, err
	}
	updatedAt, err := parseRequiredTime(updated)
	if err != nil {
		return model.RecurringTask{}, err
	}
	out.CreatedAt = createdAt
	out.UpdatedAt = updatedAt
	return out, nil
}

func weekdaysCSV(days []time.Weekday) string {
	if len(days) == 0 {
		return ""
	}
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}

func parseWeekdaysCSV(csv string) []time.Weekday {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]time.Weekday, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 6 {
			continue
		}
		out = append(out, time.Weekday(n))
	}
	return out
}

func splitCSV(csv string) []string {
	if csv == "" {
		return []string{}
	}
	return strings.Split(csv, ",")
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, v)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func applyPagination(args *[]any, limit, offset int) string {
	clause := ""
	if limit > 0 {
		clause += " LIMIT ?"
		*args = append(*args, limit)
	}
	if offset > 0 {
		clause += " OFFSET ?"
		*args = append(*args, offset)
	}
	return clause
}

func checkRowsAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
