package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/chronos/internal/service"
)

type errorBody struct {
	Error    string `json:"error"`
	Message  string `json:"message,omitempty"`
	UnlockAt int64  `json:"unlockAt,omitempty"`
	Fallback any    `json:"fallback,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps service errors onto status codes. Unknown errors
// are logged and reported as 500 without their details.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	var locked *service.LockedError
	switch {
	case errors.As(err, &locked):
		writeJSON(w, http.StatusLocked, errorBody{
			Error:    locked.Error(),
			UnlockAt: locked.UnlockAt.UnixMilli(),
		})
	case errors.Is(err, service.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, service.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "capsule not found"})
	case errors.Is(err, service.ErrUserExists):
		writeJSON(w, http.StatusConflict, errorBody{Error: "user already exists"})
	case errors.Is(err, service.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "user not found"})
	case errors.Is(err, service.ErrRegistrationDisabled):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
	default:
		log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
