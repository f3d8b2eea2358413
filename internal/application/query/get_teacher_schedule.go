package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
	"github.com/schedule-hub/schedule-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TEACHER SCHEDULE QUERY
// Расписание преподавателя на день по всем его группам. Совместные занятия
// нескольких групп склеиваются в одно.
// ══════════════════════════════════════════════════════════════════════════════

// GetTeacherScheduleQuery содержит параметры запроса.
type GetTeacherScheduleQuery struct {
	TeacherID string
	Date      time.Time
}

// TeacherSchedule - расписание преподавателя на день.
type TeacherSchedule struct {
	TeacherID string            `json:"teacher_id"`
	Date      string            `json:"date"`
	Groups    []string          `json:"groups"`
	Lessons   []schedule.Lesson `json:"lessons"`
}

// TeacherGroupsSource возвращает группы преподавателя из его фида.
type TeacherGroupsSource interface {
	TeacherGroups(ctx context.Context, externalID string) ([]string, error)
}

// GroupLoader загружает базовое расписание группы, которой ещё нет в хранилище.
type GroupLoader interface {
	LoadGroup(ctx context.Context, group string) error
}

// DefaultTeacherFanOut ограничивает число групп, сверяемых одновременно.
const DefaultTeacherFanOut = 4

// GetTeacherScheduleHandler обрабатывает GetTeacherScheduleQuery.
type GetTeacherScheduleHandler struct {
	feed      TeacherGroupsSource
	directory schedule.TeacherDirectory
	lessons   schedule.LessonRepository
	days      *GetDayScheduleHandler
	loader    GroupLoader
	sem       *semaphore.Weighted
	logger    *slog.Logger
}

// NewGetTeacherScheduleHandler создаёт обработчик. loader может быть nil.
func NewGetTeacherScheduleHandler(
	feed TeacherGroupsSource,
	directory schedule.TeacherDirectory,
	lessons schedule.LessonRepository,
	days *GetDayScheduleHandler,
	loader GroupLoader,
	fanOut int,
	logger *slog.Logger,
) *GetTeacherScheduleHandler {
	if fanOut <= 0 {
		fanOut = DefaultTeacherFanOut
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GetTeacherScheduleHandler{
		feed:      feed,
		directory: directory,
		lessons:   lessons,
		days:      days,
		loader:    loader,
		sem:       semaphore.NewWeighted(int64(fanOut)),
		logger:    logger,
	}
}

// Handle собирает занятия преподавателя по всем группам.
// Ошибка одной группы логируется и не прерывает остальные.
func (h *GetTeacherScheduleHandler) Handle(ctx context.Context, q GetTeacherScheduleQuery) (*TeacherSchedule, error) {
	if strings.TrimSpace(q.TeacherID) == "" {
		return nil, errors.New("teacher id is required")
	}
	if q.Date.IsZero() {
		return nil, errors.New("date is required")
	}
	date := schedule.DateOf(q.Date)

	groups, err := h.teacherGroups(ctx, q.TeacherID)
	if err != nil {
		return nil, err
	}

	perGroup, err := h.collect(ctx, q.TeacherID, groups, func(ctx context.Context, group string) ([]schedule.Lesson, error) {
		return h.days.Lessons(ctx, group, date)
	})
	if err != nil {
		return nil, err
	}

	return &TeacherSchedule{
		TeacherID: q.TeacherID,
		Date:      timeutil.FormatDate(date),
		Groups:    groups,
		Lessons:   schedule.MergeMultiGroups(perGroup),
	}, nil
}

// lessonSource returns one group's reconciled lessons for the requested period.
type lessonSource func(ctx context.Context, group string) ([]schedule.Lesson, error)

// collect fans out over the teacher's groups and keeps only the teacher's
// lessons. A failing group is logged and left out.
func (h *GetTeacherScheduleHandler) collect(
	ctx context.Context,
	teacherID string,
	groups []string,
	source lessonSource,
) (map[string][]schedule.Lesson, error) {
	tracked := h.trackedSet(ctx)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		perGroup = make(map[string][]schedule.Lesson, len(groups))
	)

	for _, group := range groups {
		if err := h.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer h.sem.Release(1)

			lessons, err := h.groupLessons(ctx, group, teacherID, tracked, source)
			if err != nil {
				h.logger.Error("failed to build teacher schedule for group",
					"teacher_id", teacherID, "group", group, "error", err)
				return
			}
			if len(lessons) == 0 {
				return
			}

			mu.Lock()
			perGroup[group] = lessons
			mu.Unlock()
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return perGroup, nil
}

// teacherGroups reads the teacher feed and falls back to the directory.
func (h *GetTeacherScheduleHandler) teacherGroups(ctx context.Context, teacherID string) ([]string, error) {
	groups, err := h.feed.TeacherGroups(ctx, teacherID)
	if err == nil && len(groups) > 0 {
		return groups, nil
	}
	if err != nil {
		h.logger.Warn("teacher feed unavailable, using directory", "teacher_id", teacherID, "error", err)
	}

	groups, dirErr := h.directory.TeacherGroups(ctx, teacherID)
	if dirErr != nil {
		return nil, fmt.Errorf("get_teacher_schedule: failed to resolve groups: %w", errors.Join(err, dirErr))
	}
	slices.Sort(groups)
	return groups, nil
}

func (h *GetTeacherScheduleHandler) trackedSet(ctx context.Context) map[string]struct{} {
	set := make(map[string]struct{})
	if h.loader == nil {
		return set
	}
	groups, err := h.lessons.TrackedGroups(ctx)
	if err != nil {
		h.logger.Warn("failed to list tracked groups", "error", err)
		return nil
	}
	for _, g := range groups {
		set[g] = struct{}{}
	}
	return set
}

// groupLessons reconciles one group and keeps the teacher's lessons.
// A group absent from storage is loaded from the feed first.
func (h *GetTeacherScheduleHandler) groupLessons(
	ctx context.Context,
	group string,
	teacherID string,
	tracked map[string]struct{},
	source lessonSource,
) ([]schedule.Lesson, error) {
	if tracked != nil && h.loader != nil {
		if _, ok := tracked[group]; !ok {
			h.logger.Debug("loading untracked group", "group", group)
			if err := h.loader.LoadGroup(ctx, group); err != nil {
				return nil, err
			}
		}
	}

	lessons, err := source(ctx, group)
	if err != nil {
		return nil, err
	}

	return slices.DeleteFunc(slices.Clone(lessons), func(l schedule.Lesson) bool {
		return !strings.EqualFold(l.Teacher.ExternalID, teacherID)
	}), nil
}
