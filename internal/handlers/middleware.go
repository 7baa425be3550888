package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// RequestID tags every request with an id, reusing a well-formed incoming one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type upstreamKey struct{}

// MiddlewareRequireCredential rejects requests while no credential is stored
// and pins the current upstream client to the request.
func (h *Handler) MiddlewareRequireCredential(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := h.currentUpstream()
		if up == nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "credential required"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), upstreamKey{}, up)))
	})
}

// requestUpstream returns the client pinned by MiddlewareRequireCredential.
// A credential removed mid-request does not affect it.
func requestUpstream(r *http.Request) (Upstream, error) {
	up, _ := r.Context().Value(upstreamKey{}).(Upstream)
	if up == nil {
		return nil, unauthorized("credential required")
	}
	return up, nil
}
