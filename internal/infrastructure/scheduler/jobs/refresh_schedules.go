// Package jobs contains the scheduled jobs run by the worker.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH SCHEDULES JOB
// Ежедневно перечитывает фиды всех отслеживаемых групп.
// ══════════════════════════════════════════════════════════════════════════════

// GroupRefresher reloads one group's baseline from the feed.
type GroupRefresher interface {
	LoadGroup(ctx context.Context, group string) error
}

// GroupLock lets a single worker instance refresh a group at a time.
type GroupLock interface {
	TryAcquire(ctx context.Context, group string) (token string, ok bool, err error)
	Release(ctx context.Context, group, token string) error
}

// lockReleaseTimeout bounds the release call made after a refresh.
const lockReleaseTimeout = 5 * time.Second

// RefreshSchedulesConfig contains configuration for the job.
type RefreshSchedulesConfig struct {
	// Concurrency is the number of groups refreshed in parallel.
	Concurrency int

	// Timeout bounds the whole run.
	Timeout time.Duration

	// SeedGroups are refreshed even if storage does not know them yet.
	SeedGroups []string
}

// DefaultRefreshSchedulesConfig returns sensible defaults.
func DefaultRefreshSchedulesConfig() RefreshSchedulesConfig {
	return RefreshSchedulesConfig{
		Concurrency: 3,
		Timeout:     30 * time.Minute,
	}
}

// RefreshStats contains statistics from a run.
type RefreshStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	TotalGroups int
	Refreshed   int
	Locked      int
	Failed      int
	Errors      map[string]error
}

// RefreshSchedulesJob refreshes every tracked group. A failing group is logged
// and counted; it never stops the others.
type RefreshSchedulesJob struct {
	lessons   schedule.LessonRepository
	refresher GroupRefresher
	lock      GroupLock
	logger    *slog.Logger
	config    RefreshSchedulesConfig

	lastStats atomic.Pointer[RefreshStats]
}

// NewRefreshSchedulesJob creates the job. lock may be nil.
func NewRefreshSchedulesJob(
	lessons schedule.LessonRepository,
	refresher GroupRefresher,
	lock GroupLock,
	logger *slog.Logger,
	config RefreshSchedulesConfig,
) *RefreshSchedulesJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultRefreshSchedulesConfig().Concurrency
	}
	return &RefreshSchedulesJob{
		lessons:   lessons,
		refresher: refresher,
		lock:      lock,
		logger:    logger,
		config:    config,
	}
}

// Name returns the job name.
func (j *RefreshSchedulesJob) Name() string {
	return "refresh_schedules"
}

// Description returns a human-readable description.
func (j *RefreshSchedulesJob) Description() string {
	return "Reloads baseline schedules of tracked groups from the feed"
}

// Run executes the job. It fails only when listing groups fails or more than
// half of the groups could not be refreshed.
func (j *RefreshSchedulesJob) Run(ctx context.Context) error {
	stats := &RefreshStats{StartedAt: time.Now(), Errors: make(map[string]error)}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	groups, err := j.groups(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tracked groups: %w", err)
	}
	stats.TotalGroups = len(groups)
	j.logger.Info("refreshing schedules", "groups", stats.TotalGroups)

	j.refreshConcurrently(ctx, groups, stats)

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
	j.lastStats.Store(stats)

	j.logger.Info("schedules refreshed",
		"duration", stats.Duration.String(),
		"total", stats.TotalGroups,
		"refreshed", stats.Refreshed,
		"locked", stats.Locked,
		"failed", stats.Failed,
	)

	if stats.TotalGroups > 0 && stats.Failed*2 > stats.TotalGroups {
		return fmt.Errorf("refresh failed for more than 50%% of groups (%d/%d)", stats.Failed, stats.TotalGroups)
	}
	return nil
}

// LastStats returns statistics from the last run, or nil.
func (j *RefreshSchedulesJob) LastStats() *RefreshStats {
	return j.lastStats.Load()
}

func (j *RefreshSchedulesJob) groups(ctx context.Context) ([]string, error) {
	tracked, err := j.lessons.TrackedGroups(ctx)
	if err != nil {
		return nil, err
	}
	groups := append(slices.Clone(j.config.SeedGroups), tracked...)
	slices.Sort(groups)
	return slices.Compact(groups), nil
}

func (j *RefreshSchedulesJob) refreshConcurrently(ctx context.Context, groups []string, stats *RefreshStats) {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		semaphore = make(chan struct{}, j.config.Concurrency)
	)

	record := func(group string, locked bool, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err != nil:
			stats.Failed++
			stats.Errors[group] = err
		case locked:
			stats.Locked++
		default:
			stats.Refreshed++
		}
	}

	for _, group := range groups {
		select {
		case <-ctx.Done():
			record(group, false, ctx.Err())
			continue
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-semaphore }()

			locked, err := j.refreshOne(ctx, group)
			if err != nil {
				j.logger.Error("failed to refresh group", "group", group, "error", err)
			}
			record(group, locked, err)
		}()
	}

	wg.Wait()
}

// refreshOne returns locked=true when another instance owns the group.
func (j *RefreshSchedulesJob) refreshOne(ctx context.Context, group string) (locked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh of %s panicked: %v", group, r)
		}
	}()

	if j.lock != nil {
		token, ok, err := j.lock.TryAcquire(ctx, group)
		switch {
		case err != nil:
			j.logger.Warn("refresh lock unavailable, refreshing anyway", "group", group, "error", err)
		case !ok:
			j.logger.Debug("group is being refreshed elsewhere", "group", group)
			return true, nil
		default:
			defer j.release(ctx, group, token)
		}
	}

	return false, j.refresher.LoadGroup(ctx, group)
}

// release frees the group's lock even when the run was cancelled.
func (j *RefreshSchedulesJob) release(ctx context.Context, group, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
	defer cancel()

	if err := j.lock.Release(ctx, group, token); err != nil {
		j.logger.Warn("failed to release refresh lock", "group", group, "error", err)
	}
}
