package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SEMESTER SCHEDULE QUERY
// Расписание группы на весь семестр, день за днём.
// ══════════════════════════════════════════════════════════════════════════════

// GetSemesterScheduleQuery содержит параметры запроса.
type GetSemesterScheduleQuery struct {
	Group string
}

// SemesterSchedule - все непустые дни семестра по порядку.
type SemesterSchedule struct {
	Group string        `json:"group"`
	Days  []DaySchedule `json:"days"`
}

// Lessons возвращает занятия всех дней одним списком.
func (s *SemesterSchedule) Lessons() []schedule.Lesson {
	var out []schedule.Lesson
	for _, d := range s.Days {
		out = append(out, d.Lessons...)
	}
	return out
}

const semesterDayWorkers = 4

// GetSemesterScheduleHandler обрабатывает GetSemesterScheduleQuery.
type GetSemesterScheduleHandler struct {
	days     *GetDayScheduleHandler
	semester schedule.Semester
}

// NewGetSemesterScheduleHandler создаёт обработчик.
func NewGetSemesterScheduleHandler(days *GetDayScheduleHandler, semester schedule.Semester) *GetSemesterScheduleHandler {
	return &GetSemesterScheduleHandler{days: days, semester: semester}
}

// Handle сверяет каждый день семестра, кроме воскресений.
// Занятие, перенесённое на воскресенье, в семестровое расписание не попадёт.
func (h *GetSemesterScheduleHandler) Handle(ctx context.Context, q GetSemesterScheduleQuery) (*SemesterSchedule, error) {
	if strings.TrimSpace(q.Group) == "" {
		return nil, errors.New("group is required")
	}

	perDay, err := h.reconcileDays(ctx, q.Group)
	if err != nil {
		return nil, err
	}

	result := &SemesterSchedule{Group: q.Group}
	for _, day := range perDay {
		if len(day.Lessons) > 0 {
			result.Days = append(result.Days, *day)
		}
	}
	return result, nil
}

// GroupLessons возвращает сверенные занятия группы за семестр одним списком.
func (h *GetSemesterScheduleHandler) GroupLessons(ctx context.Context, group string) ([]schedule.Lesson, error) {
	perDay, err := h.reconcileDays(ctx, group)
	if err != nil {
		return nil, err
	}

	var out []schedule.Lesson
	for _, day := range perDay {
		out = append(out, day.Lessons...)
	}
	return out, nil
}

func (h *GetSemesterScheduleHandler) reconcileDays(ctx context.Context, group string) ([]*DaySchedule, error) {
	dates := h.semester.Days(true)
	if len(dates) == 0 {
		return nil, errors.New("semester end is not configured")
	}

	perDay := make([]*DaySchedule, len(dates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(semesterDayWorkers)
	for i, date := range dates {
		g.Go(func() error {
			day, err := h.days.Handle(gctx, GetDayScheduleQuery{Group: group, Date: date})
			if err != nil {
				return err
			}
			perDay[i] = day
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("get_semester_schedule: %w", err)
	}
	return perDay, nil
}
