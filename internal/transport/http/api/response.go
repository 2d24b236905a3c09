package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"kpieval/internal/domain/apperr"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     *Error `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("write json failed", "err", err)
	}
}

func Success(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Created(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusCreated, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Fail(w http.ResponseWriter, status int, code, message, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message}, RequestID: requestID})
}

func FailWithDetails(w http.ResponseWriter, status int, code, message string, details any, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message, Details: details}, RequestID: requestID})
}

// StatusFor maps a domain error kind to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// FailError writes err using its apperr code. Integrity violations keep their
// code; anything unclassified is reported as internal_error without detail.
func FailError(w http.ResponseWriter, err error, requestID string) {
	status := StatusFor(err)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		slog.Error("request failed", "err", err, "requestId", requestID)
		Fail(w, http.StatusInternalServerError, "internal_error", "internal error", requestID)
		return
	}
	if status >= http.StatusInternalServerError {
		slog.Error("integrity violation", "code", appErr.Code, "err", err, "requestId", requestID)
	}
	Fail(w, status, appErr.Code, appErr.Message, requestID)
}
