// Package app wires configuration into the concrete infrastructure and
// application handlers shared by the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/schedule-hub/schedule-hub/config"
	"github.com/schedule-hub/schedule-hub/internal/application/command"
	"github.com/schedule-hub/schedule-hub/internal/application/query"
	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
	"github.com/schedule-hub/schedule-hub/internal/infrastructure/external/feed"
	"github.com/schedule-hub/schedule-hub/internal/infrastructure/persistence/postgres"
	"github.com/schedule-hub/schedule-hub/internal/infrastructure/persistence/redis"
	"github.com/schedule-hub/schedule-hub/pkg/logger"
)

// Container holds the long-lived dependencies of a process.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	DB    *postgres.Connection
	Cache *redis.Cache // nil when Redis is disabled or unreachable

	Semester schedule.Semester
	Lessons  *postgres.LessonRepository
	Changes  *postgres.ChangeRepository
	Teachers *postgres.TeacherRepository

	FeedClient *feed.Client
	Parser     *feed.Parser

	DayCache    *redis.ScheduleCache
	RefreshLock *redis.RefreshLock

	RefreshGroup *command.RefreshGroupHandler
	RecordChange *command.RecordChangeHandler

	Days         *query.GetDayScheduleHandler
	SemesterView *query.GetSemesterScheduleHandler
	TeacherDays  *query.GetTeacherScheduleHandler
	TeacherTerm  *query.GetTeacherSemesterHandler
	ChangeLog    *query.ListChangesHandler

	closers []func()
}

// Build connects to storage and assembles every handler.
// Redis is optional: a failed connection is logged and the process runs uncached.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: log}
	c.Semester = schedule.NewSemester(cfg.Semester.Start, cfg.Semester.End)

	// ─────────────────────────────────────────────────────────────────────────
	// Storage
	// ─────────────────────────────────────────────────────────────────────────
	db, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL, postgres.PoolOptions{
		MaxConns:          int32(cfg.Database.MaxConns),
		MinConns:          int32(cfg.Database.MinConns),
		MaxConnLifetime:   cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime:   cfg.Database.ConnMaxIdleTime,
		HealthCheckPeriod: postgres.DefaultPoolOptions().HealthCheckPeriod,
		ApplicationName:   cfg.App.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DB = db
	c.closers = append(c.closers, db.Close)

	c.Lessons = postgres.NewLessonRepository(db)
	c.Changes = postgres.NewChangeRepository(db)
	c.Teachers = postgres.NewTeacherRepository(db)

	if !cfg.Redis.Disabled {
		cache, err := redis.NewCache(ctx, redis.Config{
			URL:          cfg.Redis.URL,
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			Namespace:    cfg.Redis.Namespace,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
		} else {
			c.Cache = cache
			c.closers = append(c.closers, func() { _ = cache.Close() })
			c.DayCache = redis.NewScheduleCache(cache, cfg.Redis.DayTTL)
			c.RefreshLock = redis.NewRefreshLock(cache, cfg.Redis.LockTTL)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Feed
	// ─────────────────────────────────────────────────────────────────────────
	clientCfg := feed.DefaultClientConfig(cfg.Feed.BaseURL)
	clientCfg.Timeout = cfg.Feed.RequestTimeout
	clientCfg.UserAgent = cfg.App.Name + "/" + cfg.App.Version
	clientCfg.RateLimiterConfig.RequestsPerSecond = cfg.Feed.RateLimit
	clientCfg.RateLimiterConfig.BurstSize = cfg.Feed.RateLimitBurst
	clientCfg.MaxAttempts = cfg.Feed.MaxRetries
	clientCfg.RetryBaseDelay = cfg.Feed.RetryBaseDelay
	clientCfg.RetryMaxDelay = cfg.Feed.RetryMaxDelay
	clientCfg.CircuitBreakerConfig.FailureThreshold = cfg.Feed.CircuitBreakerThreshold
	clientCfg.CircuitBreakerConfig.Timeout = cfg.Feed.CircuitBreakerTimeout
	clientCfg.Logger = logger.Component(log, "feed")
	c.FeedClient = feed.NewClient(clientCfg)

	parserCfg := feed.DefaultParserConfig(c.Semester)
	parserCfg.Workers = cfg.Feed.DayWorkers
	parserCfg.DayTimeout = cfg.Feed.DayTimeout
	parserCfg.Logger = logger.Component(log, "parser")
	c.Parser = feed.NewParser(c.FeedClient, c.Teachers, parserCfg)

	// ─────────────────────────────────────────────────────────────────────────
	// Handlers
	// ─────────────────────────────────────────────────────────────────────────
	var invalidator command.CacheInvalidator
	var dayCache query.DayCache
	if c.DayCache != nil {
		invalidator = c.DayCache
		dayCache = c.DayCache
	}

	c.RefreshGroup = command.NewRefreshGroupHandler(c.Parser, c.Lessons, invalidator, log)
	c.RecordChange = command.NewRecordChangeHandler(c.Lessons, c.Changes, invalidator, log)

	c.Days = query.NewGetDayScheduleHandler(c.Lessons, c.Changes, dayCache, c.Semester, log)
	c.SemesterView = query.NewGetSemesterScheduleHandler(c.Days, c.Semester)
	c.ChangeLog = query.NewListChangesHandler(c.Changes)

	var loader query.GroupLoader
	if cfg.Features.TeacherLiveLoad {
		loader = c.RefreshGroup
	}
	c.TeacherDays = query.NewGetTeacherScheduleHandler(
		c.Parser, c.Teachers, c.Lessons, c.Days, loader, cfg.Features.TeacherFanOut, log)
	c.TeacherTerm = query.NewGetTeacherSemesterHandler(c.TeacherDays, c.SemesterView)

	return c, nil
}

// Migrate applies pending schema migrations.
func (c *Container) Migrate(ctx context.Context) error {
	applied, err := postgres.NewMigrator(c.DB).Migrate(ctx)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		c.Logger.Info("schema migrated", "versions", applied)
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
