package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-compliance/internal/compliance"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeInternal       = "internal_error"
	ErrCodeUnavailable    = "service_unavailable"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeComplianceError maps compliance error kinds onto HTTP statuses.
func (s *Server) writeComplianceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, compliance.ErrNotFound):
		writeNotFound(w, "compliance record not found")
	case errors.Is(err, compliance.ErrInvalidArgument):
		writeBadRequest(w, err.Error())
	case errors.Is(err, compliance.ErrConfiguration):
		s.logger.Error("compliance store unavailable", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "compliance store unavailable")
	default:
		s.logger.Error("compliance query failed", "path", r.URL.Path, "error", err)
		writeInternalError(w, "compliance query failed")
	}
}
