package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"recurd/internal/commands"
	"recurd/internal/config"
	"recurd/internal/recurrence"
	"recurd/internal/service"
	"recurd/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "recurd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	cmd, err := commands.Parse(os.Args[1:])
	if err != nil {
		printUsage()
		return err
	}

	repo, err := storage.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := storage.MigrateUp(repo.DB()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	engine := recurrence.NewEngine(recurrence.NewCalendarPolicy())
	svc := service.NewGenerationService(repo, engine, service.WithLogger(logger))

	switch cmd.Type {
	case commands.TypeAdd:
		return runAdd(ctx, svc, cmd)
	case commands.TypeList:
		return runList(ctx, repo)
	case commands.TypePreview:
		return runPreview(ctx, svc, cmd.Preview.RuleID)
	case commands.TypeValidate:
		return runValidate(ctx, svc, cmd.Validate.RuleID)
	case commands.TypeGenerate:
		result, err := svc.RunMaintenance(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("visited %d rules, created %d instances, pruned %d\n",
			result.RulesVisited, result.Created, result.Pruned)
		return nil
	case commands.TypeSkip:
		return svc.SkipOccurrence(ctx, cmd.Skip.RuleID, cmd.Skip.Date)
	case commands.TypeComplete:
		return svc.CompleteInstance(ctx, cmd.Complete.TaskID)
	case commands.TypeServe:
		return runServe(ctx, svc, cfg, logger)
	default:
		printUsage()
		return fmt.Errorf("unsupported command %q", cmd.Type)
	}
}

func runAdd(ctx context.Context, svc *service.GenerationService, cmd commands.Command) error {
	rule, validation, err := svc.CreateRule(ctx, cmd.Add.Rule)
	if err != nil {
		return err
	}
	if !validation.IsValid {
		for _, msg := range validation.Errors {
			fmt.Fprintf(os.Stderr, "error: %s\n", msg)
		}
		return fmt.Errorf("rule is invalid")
	}
	for _, msg := range validation.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
	}
	fmt.Printf("created rule %s\n", rule.ID)
	if validation.Preview != nil && len(validation.Preview.Dates) > 0 {
		fmt.Printf("next: %s\n", strings.Join(validation.Preview.Dates, ", "))
	}
	return nil
}

func runList(ctx context.Context, repo storage.Repository) error {
	rules, err := repo.ListRules(ctx, storage.RuleListFilter{})
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		fmt.Println("no rules")
		return nil
	}
	for _, rule := range rules {
		state := "active"
		if !rule.IsActive {
			state = "inactive"
		}
		fmt.Printf("%s  %-24s %s/%d  %s  generated=%d\n",
			rule.ID, rule.Name, rule.Pattern.Type, rule.Pattern.Interval, state, rule.Stats.TotalGenerated)
	}
	return nil
}

func runPreview(ctx context.Context, svc *service.GenerationService, ruleID string) error {
	preview, err := svc.PreviewRule(ctx, ruleID)
	if err != nil {
		return err
	}
	for _, date := range preview.Dates {
		fmt.Println(date)
	}
	if preview.HasMore {
		fmt.Println("...")
	}
	if preview.EndDate != "" {
		fmt.Printf("ends %s\n", preview.EndDate)
	}
	for _, w := range preview.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	return nil
}

func runValidate(ctx context.Context, svc *service.GenerationService, ruleID string) error {
	validation, err := svc.ValidateRule(ctx, ruleID)
	if err != nil {
		return err
	}
	for _, msg := range validation.Errors {
		fmt.Printf("error: %s\n", msg)
	}
	for _, msg := range validation.Warnings {
		fmt.Printf("warning: %s\n", msg)
	}
	if validation.IsValid {
		fmt.Println("ok")
		return nil
	}
	return fmt.Errorf("rule is invalid")
}

func runServe(ctx context.Context, svc *service.GenerationService, cfg config.Config, logger *slog.Logger) error {
	scheduler := service.NewScheduler(time.Local)
	job := func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := svc.RunMaintenance(jobCtx); err != nil {
			logger.Error("maintenance failed", "err", err)
		}
	}

	if cfg.GenerateEvery > 0 {
		if _, err := scheduler.ScheduleInterval(cfg.GenerateEvery, job); err != nil {
			return fmt.Errorf("schedule maintenance: %w", err)
		}
	} else {
		if _, err := scheduler.ScheduleDaily(cfg.GenerateTime, job); err != nil {
			return fmt.Errorf("schedule maintenance: %w", err)
		}
	}

	// One pass on startup so a machine that slept through the slot catches up.
	job()

	scheduler.Start()
	defer scheduler.Stop()
	logger.Info("recurd serving", "db", cfg.DBPath)
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: recurd <command>

  add key=value ...     create a rule (name=, title=, column=, pattern=, ...)
  list                  list rules
  preview <rule-id>     show upcoming occurrences
  validate <rule-id>    re-validate a stored rule
  generate              run one maintenance pass now
  skip <rule-id> <date> suppress one occurrence date
  complete <task-id>    mark an instance completed
  serve                 run scheduled maintenance until interrupted`)
}
