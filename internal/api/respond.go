package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"shophours/internal/hours"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Day   string `json:"day,omitempty"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeServiceError maps engine errors to HTTP status codes.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *hours.InvalidScheduleError
	switch {
	case errors.As(err, &invalid):
		resp := ErrorResponse{Error: invalid.Error(), Field: invalid.Field}
		if invalid.Day != nil {
			resp.Day = invalid.Day.String()
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, hours.ErrScheduleNotFound):
		writeError(w, http.StatusNotFound, "schedule not found")
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "status unknown")
	}
}

// decodeJSON reads a single JSON object, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
