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
// RECORD CHANGE COMMAND
// Создаёт или заменяет запись журнала изменений для занятия базового расписания.
// ══════════════════════════════════════════════════════════════════════════════

// RecordChangeCommand addresses a baseline lesson by (group, date, start) and
// carries the full set of overrides. Recording again for the same lesson
// replaces the previous change.
type RecordChangeCommand struct {
	Group string
	Date  time.Time
	Start schedule.Clock

	Subject     *string
	Type        *schedule.LessonType
	TeacherName *string
	Classroom   *string
	NewDate     *time.Time
	NewStart    *schedule.Clock
	NewEnd      *schedule.Clock
	Description *string
	Deleted     bool
}

// Validate validates the addressing part of the command.
func (c RecordChangeCommand) Validate() error {
	if strings.TrimSpace(c.Group) == "" {
		return schedule.InvalidChange("group is required")
	}
	if c.Date.IsZero() {
		return schedule.InvalidChange("lesson date is required")
	}
	return nil
}

// RecordChangeHandler handles RecordChangeCommand.
type RecordChangeHandler struct {
	lessons schedule.LessonRepository
	changes schedule.ChangeLogStore
	cache   CacheInvalidator
	logger  *slog.Logger
	now     func() time.Time
}

// NewRecordChangeHandler creates a new RecordChangeHandler.
func NewRecordChangeHandler(
	lessons schedule.LessonRepository,
	changes schedule.ChangeLogStore,
	cache CacheInvalidator,
	logger *slog.Logger,
) *RecordChangeHandler {
	if cache == nil {
		cache = NopInvalidator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordChangeHandler{
		lessons: lessons,
		changes: changes,
		cache:   cache,
		logger:  logger,
		now:     time.Now,
	}
}

// Handle looks up the baseline lesson, builds the change from it, validates and saves it.
func (h *RecordChangeHandler) Handle(ctx context.Context, cmd RecordChangeCommand) (*schedule.Change, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	lesson, err := h.lessons.FindLesson(ctx, cmd.Group, schedule.DateOf(cmd.Date), cmd.Start)
	if err != nil {
		return nil, fmt.Errorf("record_change: %w", err)
	}

	change := &schedule.Change{
		Group:         cmd.Group,
		OldControlSum: lesson.ControlSum,
		OldDate:       lesson.Date,
		OldStart:      lesson.Start,
		OldEnd:        lesson.End,
		Subject:       cmd.Subject,
		Type:          cmd.Type,
		TeacherName:   cmd.TeacherName,
		Classroom:     cmd.Classroom,
		NewStart:      cmd.NewStart,
		NewEnd:        cmd.NewEnd,
		Description:   cmd.Description,
		Deleted:       cmd.Deleted,
		UpdatedAt:     h.now().UTC(),
	}
	if cmd.NewDate != nil {
		d := schedule.DateOf(*cmd.NewDate)
		change.NewDate = &d
	}

	existing, err := h.changes.FindByControlSum(ctx, cmd.Group, lesson.ControlSum)
	switch {
	case err == nil:
		change.ID = existing.ID
		// The day the lesson was previously moved to must be recomputed as well.
		if existing.NewDate != nil {
			h.invalidateDay(ctx, cmd.Group, *existing.NewDate)
		}
	case !errors.Is(err, schedule.ErrChangeNotFound):
		return nil, fmt.Errorf("record_change: failed to load existing change: %w", err)
	}

	if err := change.Validate(); err != nil {
		return nil, err
	}

	if err := h.changes.Save(ctx, change); err != nil {
		return nil, fmt.Errorf("record_change: failed to save: %w", err)
	}

	h.invalidateDay(ctx, cmd.Group, change.OldDate)
	if change.NewDate != nil {
		h.invalidateDay(ctx, cmd.Group, *change.NewDate)
	}

	h.logger.Info("schedule change recorded",
		"group", change.Group,
		"control_sum", change.OldControlSum,
		"deleted", change.Deleted,
		"moved", change.IsMove(),
	)
	return change, nil
}

// DeleteLesson cancels the lesson at (group, date, start).
func (h *RecordChangeHandler) DeleteLesson(ctx context.Context, group string, date time.Time, start schedule.Clock) (*schedule.Change, error) {
	return h.Handle(ctx, RecordChangeCommand{
		Group:   group,
		Date:    date,
		Start:   start,
		Deleted: true,
	})
}

func (h *RecordChangeHandler) invalidateDay(ctx context.Context, group string, date time.Time) {
	if err := h.cache.InvalidateDay(ctx, group, date); err != nil {
		h.logger.Warn("failed to invalidate day cache",
			"group", group, "date", schedule.DateKey(date), "error", err)
	}
}
