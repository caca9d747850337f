package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/account-dashboard/internal/errors"
	"github.com/jrsteele09/account-dashboard/sessions"
	"github.com/rs/zerolog/log"
)

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write JSON response")
	}
}

// statusFor maps an error to the HTTP status and body the caller sees.
// Internal detail stays in the log.
func statusFor(err error) (int, ErrorResponse) {
	var (
		cfgErr      *errors.ConfigurationError
		authErr     *errors.AuthenticationError
		refreshErr  *errors.RefreshError
		transport   *errors.TransportError
		upstreamErr *errors.UpstreamError
	)
	switch {
	case errors.As(err, &refreshErr):
		return http.StatusUnauthorized, ErrorResponse{
			Error:   sessions.RefreshAccessTokenError,
			Message: "session expired, sign in again",
		}
	case errors.As(err, &authErr):
		return http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"}
	case errors.As(err, &cfgErr):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "configuration error"}
	case errors.As(err, &transport):
		return http.StatusServiceUnavailable, ErrorResponse{Error: errors.ServiceUnavailable}
	case errors.As(err, &upstreamErr):
		return upstreamErr.Status, ErrorResponse{Error: upstreamErr.Message}
	case errors.Is(err, errors.ErrSearchTermTooShort),
		errors.Is(err, errors.ErrMissingAccountID),
		errors.Is(err, errors.ErrInvalidRequest):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error()}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: "internal server error"}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	writeErrorLog(r, err, status)
	writeJSON(w, status, body)
}

func writeErrorLog(r *http.Request, err error, status int) {
	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("Request failed")
}
