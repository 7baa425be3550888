package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/handsomefox/tv-discover/internal/logger"
)

type HandlerWithErr func(w http.ResponseWriter, r *http.Request) error

type Error struct {
	Status  int
	Message string
	Err     error
}

func (e Error) Error() string {
	return e.Message + " code=" + strconv.FormatInt(int64(e.Status), 10)
}

func (e Error) Unwrap() error { return e.Err }

type errorResponse struct {
	Error string `json:"error"`
}

// Adapt turns a handler that returns errors into an http.Handler. Errors that
// are not *Error are reported as a generic 500 and logged.
func Adapt(h HandlerWithErr) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			var statusErr *Error
			if errors.As(err, &statusErr) {
				if statusErr.Err != nil {
					slog.WarnContext(r.Context(), statusErr.Message,
						slog.String("request_id", RequestIDFrom(r.Context())),
						logger.Error(statusErr.Err))
				}
				writeJSON(w, statusErr.Status, errorResponse{Error: statusErr.Message})
				return
			}
			slog.ErrorContext(r.Context(), "request failed",
				slog.String("request_id", RequestIDFrom(r.Context())),
				logger.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
	})
}
