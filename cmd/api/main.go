// Package main - точка входа HTTP API Schedule Hub.
//
// API отдаёт сверенное расписание групп и преподавателей, выгрузку
// семестра в iCalendar и принимает изменения от диспетчерской.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/schedule-hub/schedule-hub/config"
	"github.com/schedule-hub/schedule-hub/internal/app"
	"github.com/schedule-hub/schedule-hub/internal/infrastructure/calendar"
	httpserver "github.com/schedule-hub/schedule-hub/internal/interface/http"
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
		Service:   cfg.App.Name + "-api",
	})
	log.Info("starting Schedule Hub API",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"addr", cfg.HTTP.Addr,
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
		if err := container.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	health := httpserver.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("postgres", httpserver.PingCheck(container.DB))
	if container.Cache != nil {
		health.AddCheck("redis", httpserver.PingCheck(container.Cache))
	}
	health.AddOptionalCheck("feed", container.FeedClient.CheckHealth)

	var cal httpserver.CalendarWriter
	if cfg.Features.CalendarExport {
		cal = calendar.NewExporter(cfg.App.Location)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	server, err := httpserver.NewServer(httpserver.Config{
		Addr:           cfg.HTTP.Addr,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		APIKeyHeader:   cfg.HTTP.APIKeyHeader,
		APIKeyHashes:   cfg.HTTP.APIKeyHashes,
	}, httpserver.Dependencies{
		Days:            container.Days,
		Semester:        container.SemesterView,
		Teachers:        container.TeacherDays,
		TeacherSemester: container.TeacherTerm,
		Lessons:         container.Lessons,
		Changes:         container.ChangeLog,
		Recorder:        container.RecordChange,
		Refresh:         container.RefreshGroup,
		Calendar:        cal,
		Health:          health,
		Logger:          log,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}
	if len(cfg.HTTP.APIKeyHashes) == 0 {
		log.Warn("no API keys configured, write endpoints will reject every request")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("received shutdown signal", "timeout", cfg.App.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	log.Info("shutdown completed successfully")
	return nil
}
