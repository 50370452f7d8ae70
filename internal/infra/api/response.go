package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"activity-engine/internal/domain"
	"activity-engine/internal/validation"
)

var (
	errNoRoute = errors.New("route not found")
	errMethod  = errors.New("method not allowed")
)

type envelope struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, code int, data any, msg string) {
	writeJSON(w, code, envelope{Success: true, Data: data, Message: msg})
}

func writeError(w http.ResponseWriter, err error) {
	writeErrorStatus(w, statusFor(err), err)
}

func writeErrorStatus(w http.ResponseWriter, code int, err error) {
	body := envelope{Success: false, Message: err.Error()}
	var ve *validation.Error
	if errors.As(err, &ve) {
		body.Message = "validation failed"
		body.Errors = ve.Fields
	}
	writeJSON(w, code, body)
}

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var ve *validation.Error
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrNoEntitlement):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrActivityNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyParticipant),
		errors.Is(err, domain.ErrNotParticipant),
		errors.Is(err, domain.ErrActivityFull),
		errors.Is(err, domain.ErrAlreadyPaid),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrPaymentExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPaymentNotCompleted), errors.Is(err, domain.ErrPaymentRequired):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrResourceBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrActivityFree):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
