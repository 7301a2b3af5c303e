package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/meetapp/meetapp/internal/service"
)

// Error codes returned in the "code" field.
const (
	CodeValidation        = "VALIDATION"
	CodeLeadTime          = "LEAD_TIME"
	CodeDoubleBooked      = "DOUBLE_BOOKED"
	CodeNotFound          = "NOT_FOUND"
	CodeForbidden         = "FORBIDDEN"
	CodeSelfSubscribe     = "SELF_SUBSCRIBE"
	CodePastMeetup        = "PAST_MEETUP"
	CodeAlreadySubscribed = "ALREADY_SUBSCRIBED"
	CodeTimeConflict      = "TIME_CONFLICT"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInternal          = "INTERNAL_ERROR"
	CodeMethodNotAllowed  = "METHOD_NOT_ALLOWED"
)

// serviceErrors maps service sentinels to their HTTP status and code.
// Order matters only for errors wrapping more than one sentinel.
var serviceErrors = []struct {
	err    error
	status int
	code   string
}{
	{service.ErrValidation, http.StatusBadRequest, CodeValidation},
	{service.ErrMeetupNotFound, http.StatusNotFound, CodeNotFound},
	{service.ErrForbidden, http.StatusForbidden, CodeForbidden},
	{service.ErrLeadTime, http.StatusUnprocessableEntity, CodeLeadTime},
	{service.ErrDoubleBooked, http.StatusConflict, CodeDoubleBooked},
	{service.ErrSelfSubscribe, http.StatusUnprocessableEntity, CodeSelfSubscribe},
	{service.ErrPastMeetup, http.StatusUnprocessableEntity, CodePastMeetup},
	{service.ErrAlreadySubscribed, http.StatusConflict, CodeAlreadySubscribed},
	{service.ErrTimeConflict, http.StatusConflict, CodeTimeConflict},
}

// writeServiceError maps service errors to HTTP responses. Anything
// unrecognized is logged and hidden behind a 500.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	for _, e := range serviceErrors {
		if errors.Is(err, e.err) {
			writeErrorJSON(w, e.status, e.code, err.Error())
			return
		}
	}

	logger.Error("internal error", "error", err)
	writeErrorJSON(w, http.StatusInternalServerError, CodeInternal, "internal server error")
}

// writeErrorJSON writes a JSON error response.
func writeErrorJSON(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  code,
	})
}
