// Package http exposes the schedule over a REST API: reconciled day, semester
// and teacher views, calendar export and the change log.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/schedule-hub/schedule-hub/internal/application/command"
	"github.com/schedule-hub/schedule-hub/internal/application/query"
	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
	"github.com/schedule-hub/schedule-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Addr - address to listen on, e.g. ":8080".
	Addr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RequestTimeout bounds every handler through chi's Timeout middleware.
	RequestTimeout time.Duration

	// APIKeyHeader - header carrying the API key for write routes.
	APIKeyHeader string

	// APIKeyHashes - bcrypt hashes of accepted API keys.
	APIKeyHashes []string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: 45 * time.Second,
		APIKeyHeader:   "X-API-Key",
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// DayScheduleReader serves the reconciled schedule of one group and day.
type DayScheduleReader interface {
	Handle(ctx context.Context, q query.GetDayScheduleQuery) (*query.DaySchedule, error)
}

// SemesterScheduleReader serves a group's whole semester.
type SemesterScheduleReader interface {
	Handle(ctx context.Context, q query.GetSemesterScheduleQuery) (*query.SemesterSchedule, error)
}

// TeacherScheduleReader serves a teacher's day across groups.
type TeacherScheduleReader interface {
	Handle(ctx context.Context, q query.GetTeacherScheduleQuery) (*query.TeacherSchedule, error)
}

// TeacherSemesterReader serves a teacher's whole semester across groups.
type TeacherSemesterReader interface {
	Handle(ctx context.Context, q query.GetTeacherSemesterQuery) (*query.TeacherSemester, error)
}

// LessonFinder returns one stored lesson by its slot.
type LessonFinder interface {
	FindLesson(ctx context.Context, group string, date time.Time, start schedule.Clock) (*schedule.Lesson, error)
}

// ChangeLogReader lists a group's change log.
type ChangeLogReader interface {
	Handle(ctx context.Context, q query.ListChangesQuery) ([]schedule.Change, error)
}

// ChangeRecorder writes the change log.
type ChangeRecorder interface {
	Handle(ctx context.Context, cmd command.RecordChangeCommand) (*schedule.Change, error)
	DeleteLesson(ctx context.Context, group string, date time.Time, start schedule.Clock) (*schedule.Change, error)
}

// GroupRefresher reloads a group from the feed on demand.
type GroupRefresher interface {
	Handle(ctx context.Context, cmd command.RefreshGroupCommand) (*command.RefreshGroupResult, error)
}

// CalendarWriter renders lessons as an iCalendar file.
type CalendarWriter interface {
	Write(w io.Writer, group string, lessons []schedule.Lesson) error
}

// Dependencies contains everything the handlers call into.
type Dependencies struct {
	Days            DayScheduleReader
	Semester        SemesterScheduleReader
	Teachers        TeacherScheduleReader
	TeacherSemester TeacherSemesterReader
	Lessons         LessonFinder
	Changes         ChangeLogReader
	Recorder        ChangeRecorder
	Refresh         GroupRefresher
	Calendar        CalendarWriter // nil disables calendar export
	Health          HealthChecker
	Logger          *slog.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	router     *chi.Mux
	httpServer *http.Server
	auth       *APIKeyAuth
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewServer creates the server and its routes.
func NewServer(config Config, deps Dependencies) (*Server, error) {
	auth, err := NewAPIKeyAuth(config.APIKeyHeader, config.APIKeyHashes)
	if err != nil {
		return nil, err
	}
	if deps.Health == nil {
		deps.Health = NewCompositeHealthChecker("v1")
	}

	s := &Server{
		config: config,
		deps:   deps,
		router: chi.NewRouter(),
		auth:   auth,
		logger: logger.Component(deps.Logger, "http"),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s, nil
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	if s.config.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.config.RequestTimeout))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/groups/{group}/days/{date}", s.handleGetDay)
		r.Get("/groups/{group}/days/{date}/lessons/{start}", s.handleGetLesson)
		r.Get("/groups/{group}/semester", s.handleGetSemester)
		if s.deps.Calendar != nil {
			r.Get("/groups/{group}/calendar.ics", s.handleGetCalendar)
		}
		r.Get("/groups/{group}/changes", s.handleListChanges)
		r.Get("/teachers/{teacherID}/days/{date}", s.handleGetTeacherDay)
		r.Get("/teachers/{teacherID}/semester", s.handleGetTeacherSemester)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Post("/changes", s.handleRecordChange)
			r.Delete("/groups/{group}/days/{date}/lessons/{start}", s.handleDeleteLesson)
			r.Post("/groups/{group}/refresh", s.handleRefreshGroup)
		})
	})
}

// requestLogger logs every request with its request id.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logger.FromContext(r.Context()).Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", r.RemoteAddr,
		)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", "address", s.config.Addr)

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
