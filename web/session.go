package web

import (
	"fmt"
	"net/http"
	"strings"
)

const actorIDKey = "actorId"

type SessionValueNotFoundError struct {
	Key string
}

func (err SessionValueNotFoundError) Error() string {
	return fmt.Sprintf("session value for key '%s' not found", err.Key)
}

func (h *Handler) getSessionValue(r *http.Request, key string) (any, error) {
	session, err := h.cookieStore.Get(r, h.sessionName)
	if err != nil {
		return nil, fmt.Errorf("error getting session: %w", err)
	}

	value, ok := session.Values[key]
	if !ok {
		return nil, SessionValueNotFoundError{Key: key}
	}

	return value, nil
}

func (h *Handler) setSessionValue(
	w http.ResponseWriter,
	r *http.Request,
	key string,
	value any,
) error {
	session, err := h.cookieStore.Get(r, h.sessionName)
	if err != nil {
		return fmt.Errorf("error getting session: %w", err)
	}

	session.Values[key] = value

	err = session.Save(r, w)
	if err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}

	return nil
}

func (h *Handler) deleteSessionValue(w http.ResponseWriter, r *http.Request, key string) error {
	session, err := h.cookieStore.Get(r, h.sessionName)
	if err != nil {
		return fmt.Errorf("error getting session: %w", err)
	}

	delete(session.Values, key)

	err = session.Save(r, w)
	if err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}

	return nil
}

// HandleStartSession records the given actor id as the session subject. The
// id is trusted as supplied; verifying it belongs to the caller is the
// upstream identity provider's job.
func (h *Handler) HandleStartSession() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ActorID string `json:"actorId"`
		}

		err := decodeJSON(r, &body)
		if err != nil {
			writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})

			return
		}

		if strings.TrimSpace(body.ActorID) == "" {
			writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: "actorId is required"})

			return
		}

		err = h.setSessionValue(w, r, actorIDKey, body.ActorID)
		if err != nil {
			h.writeError(w, r, "startSession", err)

			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func (h *Handler) HandleEndSession() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := h.deleteSessionValue(w, r, actorIDKey)
		if err != nil {
			h.writeError(w, r, "endSession", err)

			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}
