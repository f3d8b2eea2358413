package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/schedule-hub/schedule-hub/internal/domain/schedule"
	"github.com/schedule-hub/schedule-hub/internal/domain/shared"
	"github.com/schedule-hub/schedule-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version"`
	TotalCount int       `json:"total_count,omitempty"`
}

// apiVersion is reported in every response envelope.
const apiVersion = "v1"

func respond(w http.ResponseWriter, r *http.Request, status int, body JSONResponse) {
	if body.Meta == nil {
		body.Meta = &ResponseMeta{}
	}
	body.Meta.Timestamp = time.Now().UTC()
	body.Meta.Version = apiVersion
	body.Success = status >= 200 && status < 300
	body.RequestID = middleware.GetReqID(r.Context())

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.FromContext(r.Context()).Warn("write response", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any, meta *ResponseMeta) {
	respond(w, r, status, JSONResponse{Data: data, Meta: meta})
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respond(w, r, status, JSONResponse{Error: &APIError{Code: code, Message: message}})
}

// errorStatuses maps the error taxonomy onto HTTP statuses. First match wins.
var errorStatuses = []struct {
	match  func(error) bool
	status int
	code   string
}{
	{either(shared.IsValidation, isAny(schedule.ErrInvalidChange)), http.StatusBadRequest, "invalid_request"},
	{either(shared.IsNotFound, isAny(schedule.ErrLessonNotFound, schedule.ErrChangeNotFound)), http.StatusNotFound, "not_found"},
	{isAny(schedule.ErrFeedUnavailable, schedule.ErrMalformedFeed), http.StatusBadGateway, "feed_error"},
}

func isAny(targets ...error) func(error) bool {
	return func(err error) bool {
		for _, t := range targets {
			if errors.Is(err, t) {
				return true
			}
		}
		return false
	}
}

func either(a, b func(error) bool) func(error) bool {
	return func(err error) bool { return a(err) || b(err) }
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	for _, m := range errorStatuses {
		if m.match(err) {
			status, code = m.status, m.code
			break
		}
	}

	log := logger.FromContext(r.Context()).With("path", r.URL.Path, "status", status, "error", err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("request failed")
		message = "An unexpected error occurred"
	} else {
		log.Debug("request rejected")
	}
	writeJSONError(w, r, status, code, message)
}
