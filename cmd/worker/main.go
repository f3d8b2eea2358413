// Package main - точка входа фонового процесса (Worker) Schedule Hub.
//
// Worker по расписанию перечитывает фиды всех отслеживаемых групп и
// обновляет базовое расписание в хранилище. Журнал изменений при этом
// не трогается: сверка выполняется при чтении.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/schedule-hub/schedule-hub/config"
	"github.com/schedule-hub/schedule-hub/internal/app"
	"github.com/schedule-hub/schedule-hub/internal/infrastructure/scheduler"
	"github.com/schedule-hub/schedule-hub/internal/infrastructure/scheduler/jobs"
	"github.com/schedule-hub/schedule-hub/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.Setup(logger.Options{
		Level:     cfg.Observability.LogLevel,
		Format:    cfg.Observability.LogFormat,
		AddSource: cfg.Observability.AddSource,
		Service:   cfg.App.Name + "-worker",
	})
	log.Info("starting Schedule Hub Worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ, ФИД И ОБРАБОТЧИКИ
	// ─────────────────────────────────────────────────────────────────────────
	container, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer container.Close()

	if cfg.Database.AutoMigrate {
		log.Info("checking database migrations...")
		if err := container.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler is disabled, nothing to do")
		<-ctx.Done()
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{
		Logger:   logger.Component(log, "scheduler"),
		Timezone: cfg.App.Location,
	})

	var lock jobs.GroupLock
	if container.RefreshLock != nil {
		lock = container.RefreshLock
	}
	refreshJob := jobs.NewRefreshSchedulesJob(
		container.Lessons,
		container.RefreshGroup,
		lock,
		logger.Component(log, "refresh_schedules"),
		jobs.RefreshSchedulesConfig{
			Concurrency: cfg.Scheduler.RefreshConcurrency,
			Timeout:     cfg.Scheduler.RefreshTimeout,
			SeedGroups:  cfg.Scheduler.Groups,
		},
	)

	refreshSchedule, err := refreshScheduleFor(cfg.Scheduler)
	if err != nil {
		return err
	}
	if err := sched.Register(refreshJob, refreshSchedule); err != nil {
		return fmt.Errorf("failed to register job: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if cfg.Scheduler.RunOnStart {
		go func() {
			if _, err := sched.RunNow(ctx, refreshJob.Name()); err != nil {
				log.Error("initial refresh failed", "error", err)
			}
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("received shutdown signal, stopping scheduler...", "timeout", cfg.App.ShutdownTimeout.String())

	stopped := make(chan error, 1)
	go func() { stopped <- sched.Stop() }()
	select {
	case err := <-stopped:
		if err != nil {
			log.Error("scheduler stop failed", "error", err)
		}
	case <-time.After(cfg.App.ShutdownTimeout):
		log.Warn("jobs did not finish before the shutdown timeout")
	}
	for _, job := range sched.Jobs() {
		attrs := []any{"job", job.Name, "runs", job.Runs, "failures", job.Failures, "skipped", job.Skipped}
		if job.Last != nil {
			attrs = append(attrs, "last_ok", job.Last.OK())
		}
		log.Info("job totals", attrs...)
	}
	if cb := container.FeedClient.CircuitSnapshot(); cb.TotalRequests > 0 {
		log.Info("feed totals", "requests", cb.TotalRequests, "failures", cb.TotalFailures, "rejected", cb.Rejected)
	}
	if stats := refreshJob.LastStats(); stats != nil {
		log.Info("last refresh",
			"refreshed", stats.Refreshed,
			"failed", stats.Failed,
			"locked", stats.Locked,
			"completed_at", stats.CompletedAt,
		)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// refreshScheduleFor picks the fixed interval when configured, the cron expression otherwise.
func refreshScheduleFor(cfg config.SchedulerConfig) (scheduler.Schedule, error) {
	if cfg.RefreshInterval > 0 {
		return scheduler.NewIntervalSchedule(cfg.RefreshInterval), nil
	}
	expr, err := scheduler.ParseCronExpression(cfg.RefreshCron)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh cron %q: %w", cfg.RefreshCron, err)
	}
	return expr, nil
}
