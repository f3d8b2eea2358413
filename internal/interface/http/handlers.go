package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/schedule-hub/schedule-hub/internal/application/command"
	"github.com/schedule-hub/schedule-hub/internal/application/query"
	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
	"github.com/schedule-hub/schedule-hub/pkg/timeutil"
)

const maxChangeBodyBytes = 64 << 10

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULE VIEWS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetDay handles GET /api/v1/groups/{group}/days/{date}
func (s *Server) handleGetDay(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}

	day, err := s.deps.Days.Handle(r.Context(), query.GetDayScheduleQuery{
		Group: chi.URLParam(r, "group"),
		Date:  date,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, day, &ResponseMeta{TotalCount: len(day.Lessons)})
}

// handleGetSemester handles GET /api/v1/groups/{group}/semester
func (s *Server) handleGetSemester(w http.ResponseWriter, r *http.Request) {
	sem, err := s.deps.Semester.Handle(r.Context(), query.GetSemesterScheduleQuery{
		Group: chi.URLParam(r, "group"),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sem, &ResponseMeta{TotalCount: len(sem.Days)})
}

// handleGetCalendar handles GET /api/v1/groups/{group}/calendar.ics
func (s *Server) handleGetCalendar(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")

	sem, err := s.deps.Semester.Handle(r.Context(), query.GetSemesterScheduleQuery{Group: group})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="schedule.ics"`)
	if err := s.deps.Calendar.Write(w, group, sem.Lessons()); err != nil {
		s.logger.Error("failed to write calendar", "group", group, "error", err)
	}
}

// handleListChanges handles GET /api/v1/groups/{group}/changes
func (s *Server) handleListChanges(w http.ResponseWriter, r *http.Request) {
	changes, err := s.deps.Changes.Handle(r.Context(), query.ListChangesQuery{
		Group:          chi.URLParam(r, "group"),
		IncludeDeleted: queryBool(r, "include_deleted"),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, changes, &ResponseMeta{TotalCount: len(changes)})
}

// handleGetTeacherDay handles GET /api/v1/teachers/{teacherID}/days/{date}
func (s *Server) handleGetTeacherDay(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}

	result, err := s.deps.Teachers.Handle(r.Context(), query.GetTeacherScheduleQuery{
		TeacherID: chi.URLParam(r, "teacherID"),
		Date:      date,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: len(result.Lessons)})
}

// handleGetTeacherSemester handles GET /api/v1/teachers/{teacherID}/semester
func (s *Server) handleGetTeacherSemester(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.TeacherSemester.Handle(r.Context(), query.GetTeacherSemesterQuery{
		TeacherID: chi.URLParam(r, "teacherID"),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: len(result.Lessons)})
}

// handleGetLesson handles GET /api/v1/groups/{group}/days/{date}/lessons/{start}
func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	start, err := schedule.ParseClock(chi.URLParam(r, "start"))
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	lesson, err := s.deps.Lessons.FindLesson(r.Context(), chi.URLParam(r, "group"), date, start)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, lesson, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// CHANGE LOG WRITES
// ══════════════════════════════════════════════════════════════════════════════

// changeRequest is the body of POST /api/v1/changes. Dates use dd.MM.yyyy or
// yyyy-MM-dd, times use HH:mm.
type changeRequest struct {
	Group       string  `json:"group"`
	Date        string  `json:"date"`
	Start       string  `json:"start"`
	Subject     *string `json:"subject"`
	Type        *string `json:"type"`
	TeacherName *string `json:"teacher_name"`
	Classroom   *string `json:"classroom"`
	NewDate     *string `json:"new_date"`
	NewStart    *string `json:"new_start"`
	NewEnd      *string `json:"new_end"`
	Description *string `json:"description"`
	Deleted     bool    `json:"deleted"`
}

func (req changeRequest) toCommand() (command.RecordChangeCommand, error) {
	cmd := command.RecordChangeCommand{
		Group:       strings.TrimSpace(req.Group),
		Subject:     req.Subject,
		TeacherName: req.TeacherName,
		Classroom:   req.Classroom,
		Description: req.Description,
		Deleted:     req.Deleted,
	}

	var err error
	if cmd.Date, err = timeutil.ParseDate(req.Date); err != nil {
		return cmd, fmt.Errorf("date: %w", err)
	}
	if cmd.Start, err = schedule.ParseClock(req.Start); err != nil {
		return cmd, fmt.Errorf("start: %w", err)
	}

	if req.Type != nil {
		t, err := parseLessonType(*req.Type)
		if err != nil {
			return cmd, err
		}
		cmd.Type = &t
	}
	if req.NewDate != nil {
		d, err := timeutil.ParseDate(*req.NewDate)
		if err != nil {
			return cmd, fmt.Errorf("new_date: %w", err)
		}
		cmd.NewDate = &d
	}
	if cmd.NewStart, err = optionalClock("new_start", req.NewStart); err != nil {
		return cmd, err
	}
	if cmd.NewEnd, err = optionalClock("new_end", req.NewEnd); err != nil {
		return cmd, err
	}
	return cmd, nil
}

// parseLessonType accepts both enum names (LAB) and feed codes (ЛР).
func parseLessonType(s string) (schedule.LessonType, error) {
	if t := schedule.LessonType(strings.ToUpper(strings.TrimSpace(s))); t.IsValid() {
		return t, nil
	}
	if t, known := schedule.ParseLessonType(s); known {
		return t, nil
	}
	return "", fmt.Errorf("type: unknown lesson type %q", s)
}

func optionalClock(field string, s *string) (*schedule.Clock, error) {
	if s == nil {
		return nil, nil
	}
	c, err := schedule.ParseClock(*s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &c, nil
}

// handleRecordChange handles POST /api/v1/changes
func (s *Server) handleRecordChange(w http.ResponseWriter, r *http.Request) {
	var req changeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChangeBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	cmd, err := req.toCommand()
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	change, err := s.deps.Recorder.Handle(r.Context(), cmd)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, change, nil)
}

// handleDeleteLesson handles DELETE /api/v1/groups/{group}/days/{date}/lessons/{start}
func (s *Server) handleDeleteLesson(w http.ResponseWriter, r *http.Request) {
	date, ok := dateParam(w, r)
	if !ok {
		return
	}
	start, err := schedule.ParseClock(chi.URLParam(r, "start"))
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	change, err := s.deps.Recorder.DeleteLesson(r.Context(), chi.URLParam(r, "group"), date, start)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, change, nil)
}

// handleRefreshGroup handles POST /api/v1/groups/{group}/refresh
func (s *Server) handleRefreshGroup(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Refresh.Handle(r.Context(), command.RefreshGroupCommand{
		Group: chi.URLParam(r, "group"),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result, nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// dateParam parses the {date} path parameter or writes 400. "today" and
// "tomorrow" resolve against the Moscow date and never land on a Sunday.
func dateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := chi.URLParam(r, "date")
	switch strings.ToLower(raw) {
	case "today":
		return timeutil.TodaySkippingSunday(), true
	case "tomorrow":
		return timeutil.TomorrowSkippingSunday(), true
	}
	date, err := timeutil.ParseDate(raw)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return time.Time{}, false
	}
	return date, true
}

func queryBool(r *http.Request, key string) bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
