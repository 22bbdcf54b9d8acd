package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"recurd/internal/model"
	"recurd/internal/recurrence"
	"recurd/internal/storage"
)

func testFixture(t *testing.T) (*GenerationService, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "recurd_test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	if err := storage.MigrateUp(repo.DB()); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	fixed := time.Date(2026, 2, 9, 10, 0, 0, 0, time.UTC)
	svc := NewGenerationService(repo, recurrence.NewEngine(recurrence.NewCalendarPolicy()),
		WithClock(func() time.Time { return fixed }))
	return svc, repo
}

func draftDaily() model.RecurrenceRule {
	return model.RecurrenceRule{
		Name: "Daily journal",
		Template: model.RecurrenceTemplate{
			Title:    "Journal {{date}}",
			ColumnID: "today",
		},
		Pattern:       model.RecurrencePattern{Type: model.PatternDaily, Interval: 1},
		End:           model.RecurrenceEnd{Type: model.EndNever},
		StartDate:     "2026-02-05",
		GenerateAhead: 3,
		CleanupAfter:  30,
	}
}

func TestCreateRulePersistsValidDraft(t *testing.T) {
	svc, repo := testFixture(t)
	ctx := context.Background()

	created, validation, err := svc.CreateRule(ctx, draftDaily())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !validation.IsValid {
		t.Fatalf("draft rejected: %v", validation.Errors)
	}
	if created.ID == "" {
		t.Fatal("rule must receive an id")
	}
	if !created.IsActive {
		t.Fatal("new rules start active")
	}

	stored, err := repo.GetRule(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Name != "Daily journal" || stored.StartDate != "2026-02-05" {
		t.Fatalf("stored rule = %+v", stored)
	}
}

func TestCreateRuleRejectsInvalidDraftWithoutPersisting(t *testing.T) {
	svc, repo := testFixture(t)
	ctx := context.Background()

	draft := draftDaily()
	draft.Name = ""
	draft.Pattern.Interval = 0
	_, validation, err := svc.CreateRule(ctx, draft)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if validation.IsValid {
		t.Fatal("invalid draft accepted")
	}

	rules, err := repo.ListRules(ctx, storage.RuleListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rules) != 0 {
		t.Fatalf("invalid draft was persisted: %+v", rules)
	}
}

func TestCreateRuleAppliesDefaults(t *testing.T) {
	svc, _ := testFixture(t)
	draft := draftDaily()
	draft.StartDate = ""
	draft.GenerateAhead = 0
	draft.CleanupAfter = 0

	created, _, err := svc.CreateRule(context.Background(), draft)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.StartDate != "2026-02-09" {
		t.Fatalf("start date defaults to today, got %q", created.StartDate)
	}
	if created.GenerateAhead != model.DefaultGenerateAhead || created.CleanupAfter != model.DefaultCleanupAfter {
		t.Fatalf("horizons = %d/%d", created.GenerateAhead, created.CleanupAfter)
	}
}

func TestRunMaintenanceMaterializesWindow(t *testing.T) {
	svc, repo := testFixture(t)
	ctx := context.Background()

	created, _, err := svc.CreateRule(ctx, draftDaily())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := svc.RunMaintenance(ctx)
	if err != nil {
		t.Fatalf("maintenance: %v", err)
	}
	if result.RulesVisited != 1 {
		t.Fatalf("visited %d rules", result.RulesVisited)
	}
	// Sequence from 2026-02-05 runs 02-06, 02-07, ...; the window on a
	// 3-day horizon from 2026-02-09 covers four days.
	if result.Created != 4 {
		t.Fatalf("created %d instances, want 4", result.Created)
	}

	tasks, err := repo.ListTasks(ctx, storage.TaskListFilter{RuleID: created.ID})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 4 {
		t.Fatalf("%d tasks in store", len(tasks))
	}
	if tasks[0].ScheduledDate != "2026-02-09" || tasks[3].ScheduledDate != "2026-02-12" {
		t.Fatalf("window edges = %q .. %q", tasks[0].ScheduledDate, tasks[3].ScheduledDate)
	}
	// Instance numbers count from the rule anchor, not the window start.
	if tasks[0].InstanceNumber != 4 {
		t.Fatalf("first windowed instance number = %d, want 4", tasks[0].InstanceNumber)
	}
	if tasks[0].Title != "Journal 2026-02-09" {
		t.Fatalf("rendered title = %q", tasks[0].Title)
	}

	rule, err := repo.GetRule(ctx, created.ID)
	if err != nil {
		t.Fatalf("get rule: %v", err)
	}
	if rule.Stats.TotalGenerated != 4 {
		t.Fatalf("total generated = %d", rule.Stats.TotalGenerated)
	}
	if rule.Stats.LastGenerated == "" {
		t.Fatal("last generated timestamp not set")
	}
}

func TestRunMaintenanceIsIdempotent(t *testing.T) {
	svc, _ := testFixture(t)
	ctx := context.Background()
	if _, _, err := svc.CreateRule(ctx, draftDaily()); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.RunMaintenance(ctx); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := svc.RunMaintenance(ctx)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if second.Created != 0 {
		t.Fatalf("second pass created %d instances, want 0", second.Created)
	}
}

func TestRunMaintenanceSkipsInactiveRules(t *testing.T) {
	svc, repo := testFixture(t)
	ctx := context.Background()

	created, _, err := svc.CreateRule(ctx, draftDaily())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	created.IsActive = false
	if err := repo.UpdateRule(ctx, created); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	result, err := svc.RunMaintenance(ctx)
	if err != nil {
		t.Fatalf("maintenance: %v", err)
	}
	if result.RulesVisited != 0 || result.Created != 0 {
		t.Fatalf("inactive rule was processed: %+v", result)
	}
}

func TestRunMaintenanceHonorsEndCount(t *testing.T) {
	svc, repo := testFixture(t)
	ctx := context.Background()

	draft := draftDaily()
	draft.StartDate = "2026-02-08"
	draft.End = model.RecurrenceEnd{Type: model.EndAfter, Count: 2}
	created, _, err := svc.CreateRule(ctx, draft)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.RunMaintenance(ctx); err != nil {
		t.Fatalf("maintenance: %v", err)
	}
	tasks, err := repo.ListTasks(ctx, storage.TaskListFilter{RuleID: created.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("%d tasks for a twice-ending rule, want 2", len(tasks))
	}
	if tasks[1].ScheduledDate != "2026-02-10" {
		t.Fatalf("final occurrence = %q", tasks[1].ScheduledDate)
	}
}

func TestRunMaintenancePrunesStaleInstances(t *testing.T) {
	svc, repo := testFixture(t)
	ctx := context.Background()

	created, _, err := svc.CreateRule(ctx, draftDaily())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	stale := model.RecurringTask{
		ID:               "recurring-" + created.ID + "-2026-01-01-1",
		Title:            "Old journal",
		Priority:         model.PriorityNone,
		ScheduledDate:    "2026-01-01",
		RecurrenceRuleID: created.ID,
		InstanceNumber:   1,
		IsGenerated:      true,
		CreatedAt:        ts,
		UpdatedAt:        ts,
	}
	if _, err := repo.CreateTask(ctx, stale); err != nil {
		t.Fatalf("seed stale task: %v", err)
	}

	result, err := svc.RunMaintenance(ctx)
	if err != nil {
		t.Fatalf("maintenance: %v", err)
	}
	// 2026-01-01 is more than 30 days before 2026-02-09.
	if result.Pruned != 1 {
		t.Fatalf("pruned %d, want 1", result.Pruned)
	}
}

func TestSkipOccurrence(t *testing.T) {
	svc, repo := testFixture(t)
	ctx := context.Background()

	created, _, err := svc.CreateRule(ctx, draftDaily())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.RunMaintenance(ctx); err != nil {
		t.Fatalf("maintenance: %v", err)
	}

	if err := svc.SkipOccurrence(ctx, created.ID, "2026-02-10"); err != nil {
		t.Fatalf("skip: %v", err)
	}

	rule, err := repo.GetRule(ctx, created.ID)
	if err != nil {
		t.Fatalf("get rule: %v", err)
	}
	if !rule.HasSkipException("2026-02-10") {
		t.Fatal("skip exception not recorded")
	}
	if rule.Stats.TotalSkipped != 1 || rule.Stats.CurrentStreak != 0 {
		t.Fatalf("stats = %+v", rule.Stats)
	}

	onDay, err := repo.ListTasks(ctx, storage.TaskListFilter{RuleID: created.ID, ScheduledOn: "2026-02-10"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(onDay) != 0 {
		t.Fatalf("materialized instance survived the skip: %+v", onDay)
	}

	// The next pass must not bring the skipped date back.
	if _, err := svc.RunMaintenance(ctx); err != nil {
		t.Fatalf("second maintenance: %v", err)
	}
	onDay, _ = repo.ListTasks(ctx, storage.TaskListFilter{RuleID: created.ID, ScheduledOn: "2026-02-10"})
	if len(onDay) != 0 {
		t.Fatal("skipped occurrence was regenerated")
	}

	// Later occurrences are renumbered past the skip, never duplicated.
	after, _ := repo.ListTasks(ctx, storage.TaskListFilter{RuleID: created.ID, ScheduledOn: "2026-02-11"})
	if len(after) != 1 {
		t.Fatalf("%d instances on 2026-02-11, want 1", len(after))
	}
	if after[0].InstanceNumber != 5 {
		t.Fatalf("renumbered instance = %d, want 5", after[0].InstanceNumber)
	}

	// Skipping twice is a no-op.
	if err := svc.SkipOccurrence(ctx, created.ID, "2026-02-10"); err != nil {
		t.Fatalf("repeat skip: %v", err)
	}
	rule, _ = repo.GetRule(ctx, created.ID)
	if rule.Stats.TotalSkipped != 1 {
		t.Fatalf("repeated skip inflated stats: %+v", rule.Stats)
	}
}

func TestSkipOccurrenceRejectsBadDate(t *testing.T) {
	svc, _ := testFixture(t)
	if err := svc.SkipOccurrence(context.Background(), "rule", "10.02.2026"); err == nil {
		t.Fatal("malformed date must be rejected")
	}
}

func TestCompleteInstance(t *testing.T) {
	svc, repo := testFixture(t)
	ctx := context.Background()

	created, _, err := svc.CreateRule(ctx, draftDaily())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.RunMaintenance(ctx); err != nil {
		t.Fatalf("maintenance: %v", err)
	}
	tasks, err := repo.ListTasks(ctx, storage.TaskListFilter{RuleID: created.ID})
	if err != nil || len(tasks) == 0 {
		t.Fatalf("no tasks to complete: %v", err)
	}

	if err := svc.CompleteInstance(ctx, tasks[0].ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, err := repo.GetTask(ctx, tasks[0].ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if !got.Completed {
		t.Fatal("task not marked completed")
	}

	rule, _ := repo.GetRule(ctx, created.ID)
	if rule.Stats.TotalCompleted != 1 || rule.Stats.CurrentStreak != 1 || rule.Stats.BestStreak != 1 {
		t.Fatalf("stats after first completion = %+v", rule.Stats)
	}

	// Completing an already completed instance changes nothing.
	if err := svc.CompleteInstance(ctx, tasks[0].ID); err != nil {
		t.Fatalf("repeat complete: %v", err)
	}
	rule, _ = repo.GetRule(ctx, created.ID)
	if rule.Stats.TotalCompleted != 1 {
		t.Fatalf("repeated completion inflated stats: %+v", rule.Stats)
	}

	if err := svc.CompleteInstance(ctx, tasks[1].ID); err != nil {
		t.Fatalf("second complete: %v", err)
	}
	rule, _ = repo.GetRule(ctx, created.ID)
	if rule.Stats.CurrentStreak != 2 || rule.Stats.BestStreak != 2 {
		t.Fatalf("streaks = %+v", rule.Stats)
	}
}

func TestPreviewRule(t *testing.T) {
	svc, _ := testFixture(t)
	ctx := context.Background()

	created, _, err := svc.CreateRule(ctx, draftDaily())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	preview, err := svc.PreviewRule(ctx, created.ID)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.Count == 0 || preview.Dates[0] != "2026-02-10" {
		t.Fatalf("preview = %+v", preview)
	}

	if _, err := svc.PreviewRule(ctx, "missing"); err == nil {
		t.Fatal("previewing a missing rule must fail")
	}
}
