// Package command contains write operations: refreshing the baseline snapshot
// from the feed and recording schedule changes.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH GROUP COMMAND
// Перечитывает фид группы и атомарно заменяет базовое расписание.
// ══════════════════════════════════════════════════════════════════════════════

// RefreshGroupCommand refreshes one group's baseline.
type RefreshGroupCommand struct {
	Group string
}

// Validate validates the command.
func (c RefreshGroupCommand) Validate() error {
	if strings.TrimSpace(c.Group) == "" {
		return errors.New("refresh_group: group is required")
	}
	return nil
}

// RefreshGroupResult describes a completed refresh.
type RefreshGroupResult struct {
	Group       string    `json:"group"`
	Lessons     int       `json:"lessons"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// GroupParser turns a group feed into lessons.
type GroupParser interface {
	ParseGroupSchedule(ctx context.Context, group string) ([]schedule.Lesson, error)
}

// CacheInvalidator drops reconciled days that are no longer valid.
type CacheInvalidator interface {
	InvalidateGroup(ctx context.Context, group string) error
	InvalidateDay(ctx context.Context, group string, date time.Time) error
}

// NopInvalidator is used when no cache is configured.
type NopInvalidator struct{}

// InvalidateGroup does nothing.
func (NopInvalidator) InvalidateGroup(context.Context, string) error { return nil }

// InvalidateDay does nothing.
func (NopInvalidator) InvalidateDay(context.Context, string, time.Time) error { return nil }

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RefreshGroupHandler handles RefreshGroupCommand.
type RefreshGroupHandler struct {
	parser  GroupParser
	lessons schedule.LessonRepository
	cache   CacheInvalidator
	logger  *slog.Logger
	now     func() time.Time
}

// NewRefreshGroupHandler creates a new RefreshGroupHandler.
// A nil cache or logger falls back to a no-op invalidator and slog.Default().
func NewRefreshGroupHandler(
	parser GroupParser,
	lessons schedule.LessonRepository,
	cache CacheInvalidator,
	logger *slog.Logger,
) *RefreshGroupHandler {
	if cache == nil {
		cache = NopInvalidator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshGroupHandler{
		parser:  parser,
		lessons: lessons,
		cache:   cache,
		logger:  logger,
		now:     time.Now,
	}
}

// Handle parses the feed and replaces the stored snapshot.
// A feed failure leaves the previous snapshot untouched.
func (h *RefreshGroupHandler) Handle(ctx context.Context, cmd RefreshGroupCommand) (*RefreshGroupResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	lessons, err := h.parser.ParseGroupSchedule(ctx, cmd.Group)
	if err != nil {
		return nil, fmt.Errorf("refresh_group: failed to parse %s: %w", cmd.Group, err)
	}

	if err := h.lessons.ReplaceGroupLessons(ctx, cmd.Group, lessons); err != nil {
		return nil, fmt.Errorf("refresh_group: failed to store %s: %w", cmd.Group, err)
	}

	if err := h.cache.InvalidateGroup(ctx, cmd.Group); err != nil {
		h.logger.Warn("failed to invalidate group cache", "group", cmd.Group, "error", err)
	}

	return &RefreshGroupResult{
		Group:       cmd.Group,
		Lessons:     len(lessons),
		RefreshedAt: h.now(),
	}, nil
}

// LoadGroup refreshes a group and discards the result.
func (h *RefreshGroupHandler) LoadGroup(ctx context.Context, group string) error {
	_, err := h.Handle(ctx, RefreshGroupCommand{Group: group})
	return err
}
