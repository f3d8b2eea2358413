// Package query contains read operations. Queries reconcile the stored baseline
// with the change log and never modify either.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
	"github.com/schedule-hub/schedule-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DAY SCHEDULE QUERY
// Актуальное расписание группы на день: базовое расписание + журнал изменений.
// ══════════════════════════════════════════════════════════════════════════════

// GetDayScheduleQuery содержит параметры запроса.
type GetDayScheduleQuery struct {
	Group string
	Date  time.Time
}

// Validate проверяет корректность параметров запроса.
func (q GetDayScheduleQuery) Validate() error {
	if strings.TrimSpace(q.Group) == "" {
		return errors.New("group is required")
	}
	if q.Date.IsZero() {
		return errors.New("date is required")
	}
	return nil
}

// DaySchedule - расписание одного дня.
type DaySchedule struct {
	Group   string            `json:"group"`
	Date    string            `json:"date"`
	Weekday string            `json:"weekday"`
	Week    int               `json:"week"`
	Lessons []schedule.Lesson `json:"lessons"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// DayCache кэширует сверенные дни. Любая ошибка GetDay считается промахом.
//
// Инвалидация группы увеличивает её поколение. SetDay записывает день, только
// если поколение не изменилось с момента чтения, поэтому результат сверки,
// начатой до обновления, не попадёт в кэш после него.
type DayCache interface {
	GetDay(ctx context.Context, group string, date time.Time) ([]schedule.Lesson, error)
	Generation(ctx context.Context, group string) (int64, error)
	SetDay(ctx context.Context, group string, date time.Time, generation int64, lessons []schedule.Lesson) error
}

var errNoCache = errors.New("cache disabled")

// NopDayCache используется, когда кэш не настроен.
type NopDayCache struct{}

// GetDay всегда промахивается.
func (NopDayCache) GetDay(context.Context, string, time.Time) ([]schedule.Lesson, error) {
	return nil, errNoCache
}

// Generation всегда возвращает ошибку: без кэша писать нечего.
func (NopDayCache) Generation(context.Context, string) (int64, error) {
	return 0, errNoCache
}

// SetDay ничего не делает.
func (NopDayCache) SetDay(context.Context, string, time.Time, int64, []schedule.Lesson) error {
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetDayScheduleHandler обрабатывает GetDayScheduleQuery.
type GetDayScheduleHandler struct {
	lessons  schedule.LessonRepository
	changes  schedule.ChangeLogStore
	cache    DayCache
	semester schedule.Semester
	logger   *slog.Logger
}

// NewGetDayScheduleHandler создаёт обработчик.
func NewGetDayScheduleHandler(
	lessons schedule.LessonRepository,
	changes schedule.ChangeLogStore,
	cache DayCache,
	semester schedule.Semester,
	logger *slog.Logger,
) *GetDayScheduleHandler {
	if cache == nil {
		cache = NopDayCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GetDayScheduleHandler{
		lessons:  lessons,
		changes:  changes,
		cache:    cache,
		semester: semester,
		logger:   logger,
	}
}

// Handle возвращает расписание дня.
func (h *GetDayScheduleHandler) Handle(ctx context.Context, q GetDayScheduleQuery) (*DaySchedule, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	date := schedule.DateOf(q.Date)
	lessons, err := h.Lessons(ctx, q.Group, date)
	if err != nil {
		return nil, err
	}

	return &DaySchedule{
		Group:   q.Group,
		Date:    timeutil.FormatDate(date),
		Weekday: timeutil.WeekdayNameRu(date),
		Week:    h.semester.WeekOf(date),
		Lessons: lessons,
	}, nil
}

// Lessons возвращает сверенные занятия группы на дату, используя кэш.
func (h *GetDayScheduleHandler) Lessons(ctx context.Context, group string, date time.Time) ([]schedule.Lesson, error) {
	date = schedule.DateOf(date)

	if cached, err := h.cache.GetDay(ctx, group, date); err == nil {
		return cached, nil
	}
	generation, genErr := h.cache.Generation(ctx, group)

	lessons, err := h.reconcile(ctx, group, date)
	if err != nil {
		return nil, err
	}

	if genErr != nil {
		return lessons, nil
	}
	if err := h.cache.SetDay(ctx, group, date, generation, lessons); err != nil {
		h.logger.Warn("failed to cache day", "group", group, "date", schedule.DateKey(date), "error", err)
	}
	return lessons, nil
}

// reconcile читает базу и журнал и применяет MergeChanges.
//
// Исходные занятия переносов на date подгружаются из их старых дат: MergeChanges
// убирает их из результата как перенесённые и берёт из них незаданные поля.
func (h *GetDayScheduleHandler) reconcile(ctx context.Context, group string, date time.Time) ([]schedule.Lesson, error) {
	baseline, err := h.lessons.FindByGroupAndDate(ctx, group, date)
	if err != nil {
		return nil, fmt.Errorf("get_day_schedule: failed to load baseline: %w", err)
	}

	changes, err := h.changes.FindChanges(ctx, group, date)
	if err != nil {
		return nil, fmt.Errorf("get_day_schedule: failed to load changes: %w", err)
	}

	input := baseline
	for _, c := range changes {
		if !c.IsMove() || c.Deleted || !schedule.SameDate(*c.NewDate, date) || schedule.SameDate(c.OldDate, date) {
			continue
		}
		origin, err := h.lessons.FindLesson(ctx, group, c.OldDate, c.OldStart)
		if err != nil {
			if !errors.Is(err, schedule.ErrLessonNotFound) {
				return nil, fmt.Errorf("get_day_schedule: failed to load moved lesson: %w", err)
			}
			h.logger.Debug("moved lesson has no baseline origin",
				"group", group, "control_sum", c.OldControlSum)
			continue
		}
		input = append(slices.Clip(input), *origin)
	}

	merged := schedule.MergeChanges(input, changes, date)

	week := h.semester.WeekOf(date)
	for i := range merged {
		merged[i].Week = week
	}
	return merged, nil
}
