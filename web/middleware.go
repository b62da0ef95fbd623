package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/johnmuchir/machinry/identity"
)

// subjectMiddleware lifts the session's actor id into the request context.
// Requests without a session pass through as anonymous.
func (h *Handler) subjectMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sessionValueNotFoundErr SessionValueNotFoundError

		actorID, err := h.getSessionValue(r, actorIDKey)
		if err != nil && !errors.As(err, &sessionValueNotFoundErr) {
			slog.ErrorContext(
				r.Context(),
				"error on getting session value",
				"key",
				actorIDKey,
				"error",
				err,
			)
			http.Error(w, "error on getting session value", http.StatusInternalServerError)

			return
		}

		if id, ok := actorID.(string); ok && id != "" {
			r = r.WithContext(identity.WithSubject(r.Context(), id))
		}

		next.ServeHTTP(w, r)
	})
}

// ActorOnly rejects anonymous requests to mutating endpoints.
func (h *Handler) ActorOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !identity.IsAuthenticated(r.Context()) {
			writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{Error: "session required"})

			return
		}

		next.ServeHTTP(w, r)
	})
}
