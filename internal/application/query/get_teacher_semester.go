package query

import (
	"context"
	"errors"
	"strings"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TEACHER SEMESTER QUERY
// Расписание преподавателя на весь семестр по всем его группам.
// ══════════════════════════════════════════════════════════════════════════════

// GetTeacherSemesterQuery содержит параметры запроса.
type GetTeacherSemesterQuery struct {
	TeacherID string
}

// TeacherSemester - занятия преподавателя за семестр, по (дата, начало).
type TeacherSemester struct {
	TeacherID string            `json:"teacher_id"`
	Groups    []string          `json:"groups"`
	Lessons   []schedule.Lesson `json:"lessons"`
}

// GetTeacherSemesterHandler обрабатывает GetTeacherSemesterQuery.
type GetTeacherSemesterHandler struct {
	teacher  *GetTeacherScheduleHandler
	semester *GetSemesterScheduleHandler
}

// NewGetTeacherSemesterHandler создаёт обработчик.
func NewGetTeacherSemesterHandler(teacher *GetTeacherScheduleHandler, semester *GetSemesterScheduleHandler) *GetTeacherSemesterHandler {
	return &GetTeacherSemesterHandler{teacher: teacher, semester: semester}
}

// Handle сверяет семестр каждой группы преподавателя и склеивает совместные
// занятия. Ошибка одной группы логируется и не прерывает остальные.
func (h *GetTeacherSemesterHandler) Handle(ctx context.Context, q GetTeacherSemesterQuery) (*TeacherSemester, error) {
	if strings.TrimSpace(q.TeacherID) == "" {
		return nil, errors.New("teacher id is required")
	}

	groups, err := h.teacher.teacherGroups(ctx, q.TeacherID)
	if err != nil {
		return nil, err
	}

	perGroup, err := h.teacher.collect(ctx, q.TeacherID, groups, h.semester.GroupLessons)
	if err != nil {
		return nil, err
	}

	return &TeacherSemester{
		TeacherID: q.TeacherID,
		Groups:    groups,
		Lessons:   schedule.MergeMultiGroups(perGroup),
	}, nil
}
