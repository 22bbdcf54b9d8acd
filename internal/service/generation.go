// Package service drives the recurrence engine against the store: periodic
// materialization of upcoming instances, pruning of stale ones, and the
// rule-level operations the CLI exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"recurd/internal/calendar"
	"recurd/internal/model"
	"recurd/internal/recurrence"
	"recurd/internal/storage"
)

// maxSequence caps how far into a rule's occurrence sequence one
// maintenance pass will look.
const maxSequence = 1000

type GenerationService struct {
	repo   storage.Repository
	engine *recurrence.Engine
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*GenerationService)

func WithLogger(logger *slog.Logger) Option {
	return func(s *GenerationService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the service's notion of "today". Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *GenerationService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewGenerationService(repo storage.Repository, engine *recurrence.Engine, opts ...Option) *GenerationService {
	s := &GenerationService{
		repo:   repo,
		engine: engine,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaintenanceResult summarizes one generation pass.
type MaintenanceResult struct {
	RulesVisited int
	Created      int
	Pruned       int
}

// RunMaintenance materializes upcoming instances for every active rule
// within its generate-ahead horizon and prunes stale generated instances
// older than its cleanup horizon. Safe to re-run at any time: instance ids
// are deterministic, so nothing is ever inserted twice.
func (s *GenerationService) RunMaintenance(ctx context.Context) (MaintenanceResult, error) {
	var result MaintenanceResult
	active := true
	rules, err := s.repo.ListRules(ctx, storage.RuleListFilter{IsActive: &active})
	if err != nil {
		return result, fmt.Errorf("list rules: %w", err)
	}

	today := s.today()
	for _, rule := range rules {
		result.RulesVisited++

		created, err := s.generateForRule(ctx, rule, today)
		if err != nil {
			return result, fmt.Errorf("generate for rule %s: %w", rule.ID, err)
		}
		result.Created += created

		pruned, err := s.pruneForRule(ctx, rule, today)
		if err != nil {
			return result, fmt.Errorf("prune for rule %s: %w", rule.ID, err)
		}
		result.Pruned += pruned

		if created > 0 || pruned > 0 {
			s.logger.Info("rule maintained",
				"rule", rule.ID, "name", rule.Name, "created", created, "pruned", pruned)
		}
	}
	return result, nil
}

func (s *GenerationService) generateForRule(ctx context.Context, rule model.RecurrenceRule, today time.Time) (int, error) {
	ahead := rule.GenerateAhead
	if ahead <= 0 {
		ahead = model.DefaultGenerateAhead
	}
	windowEnd := today.AddDate(0, 0, ahead)

	start, err := calendar.ParseDate(rule.StartDate)
	if err != nil {
		// Rules created before the anchor field existed fall back to their
		// creation day.
		start = rule.CreatedAt.UTC().Truncate(24 * time.Hour)
	}

	limit := maxSequence
	if rule.End.Type == model.EndAfter && rule.End.Count > 0 && rule.End.Count < limit {
		limit = rule.End.Count
	}

	// The whole sequence is regenerated from the anchor every pass so that
	// instance numbers stay stable across runs.
	dates, truncated := s.engine.GenerateOccurrences(rule, start, limit)
	if truncated {
		s.logger.Warn("occurrence generation hit its iteration bound", "rule", rule.ID)
	}

	created := 0
	for i, day := range dates {
		date, err := calendar.ParseDate(day)
		if err != nil {
			continue
		}
		if date.Before(today) {
			continue
		}
		if date.After(windowEnd) {
			break
		}
		inserted, err := s.repo.CreateTask(ctx, s.engine.GenerateTask(rule, date, i+1))
		if err != nil {
			return created, err
		}
		if inserted {
			created++
		}
	}

	if created > 0 {
		rule.Stats.TotalGenerated += created
		rule.Stats.LastGenerated = s.now().UTC().Format(time.RFC3339)
		rule.UpdatedAt = s.now().UTC()
		if err := s.repo.UpdateRule(ctx, rule); err != nil {
			return created, err
		}
	}
	return created, nil
}

func (s *GenerationService) pruneForRule(ctx context.Context, rule model.RecurrenceRule, today time.Time) (int, error) {
	after := rule.CleanupAfter
	if after <= 0 {
		after = model.DefaultCleanupAfter
	}
	cutoff := calendar.FormatDate(today.AddDate(0, 0, -after))
	return s.repo.PruneTasks(ctx, rule.ID, cutoff)
}

// CreateRule validates a draft rule and persists it only when clean. The
// returned validation carries the errors otherwise.
func (s *GenerationService) CreateRule(ctx context.Context, rule model.RecurrenceRule) (model.RecurrenceRule, model.RecurrenceValidation, error) {
	validation := s.engine.ValidateRule(rule)
	if !validation.IsValid {
		return model.RecurrenceRule{}, validation, nil
	}

	now := s.now().UTC()
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.StartDate == "" {
		rule.StartDate = calendar.FormatDate(now)
	}
	if rule.GenerateAhead <= 0 {
		rule.GenerateAhead = model.DefaultGenerateAhead
	}
	if rule.CleanupAfter <= 0 {
		rule.CleanupAfter = model.DefaultCleanupAfter
	}
	rule.IsActive = true
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return model.RecurrenceRule{}, validation, err
	}
	s.logger.Info("rule created", "rule", rule.ID, "name", rule.Name)
	return rule, validation, nil
}

// SkipOccurrence records a skip exception for one date. The exception shifts
// the instance numbering of every later occurrence, so all generated
// uncompleted instances from that date onward are dropped; the next
// maintenance pass re-materializes them under their new numbers.
func (s *GenerationService) SkipOccurrence(ctx context.Context, ruleID, date string) error {
	if _, err := calendar.ParseDate(date); err != nil {
		return fmt.Errorf("parse date %q: %w", date, err)
	}
	rule, err := s.repo.GetRule(ctx, ruleID)
	if err != nil {
		return err
	}
	if !rule.HasSkipException(date) {
		rule.Exceptions = append(rule.Exceptions, model.RecurrenceException{Date: date, Type: model.ExceptionSkip})
		rule.Stats.TotalSkipped++
		rule.Stats.CurrentStreak = 0
		rule.UpdatedAt = s.now().UTC()
		if err := s.repo.UpdateRule(ctx, rule); err != nil {
			return err
		}
	}

	instances, err := s.repo.ListTasks(ctx, storage.TaskListFilter{RuleID: ruleID})
	if err != nil {
		return err
	}
	for _, task := range instances {
		if !task.IsGenerated || task.Completed || task.ScheduledDate < date {
			continue
		}
		if err := s.repo.DeleteTask(ctx, task.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	return nil
}

// CompleteInstance marks a materialized instance done and feeds the rule's
// completion stats and streaks.
func (s *GenerationService) CompleteInstance(ctx context.Context, taskID string) error {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Completed {
		return nil
	}
	task.Completed = true
	task.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return err
	}

	rule, err := s.repo.GetRule(ctx, task.RecurrenceRuleID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil // orphan instance, rule deleted since generation
		}
		return err
	}
	rule.Stats.TotalCompleted++
	rule.Stats.CurrentStreak++
	if rule.Stats.CurrentStreak > rule.Stats.BestStreak {
		rule.Stats.BestStreak = rule.Stats.CurrentStreak
	}
	rule.UpdatedAt = s.now().UTC()
	return s.repo.UpdateRule(ctx, rule)
}

// PreviewRule loads a rule and computes its preview from today.
func (s *GenerationService) PreviewRule(ctx context.Context, ruleID string) (model.RecurrencePreview, error) {
	rule, err := s.repo.GetRule(ctx, ruleID)
	if err != nil {
		return model.RecurrencePreview{}, err
	}
	return s.engine.GeneratePreview(rule, s.today()), nil
}

// ValidateRule re-validates a stored rule.
func (s *GenerationService) ValidateRule(ctx context.Context, ruleID string) (model.RecurrenceValidation, error) {
	rule, err := s.repo.GetRule(ctx, ruleID)
	if err != nil {
		return model.RecurrenceValidation{}, err
	}
	return s.engine.ValidateRule(rule), nil
}

func (s *GenerationService) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
