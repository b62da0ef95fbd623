package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/sessions"
	"github.com/johnmuchir/machinry/community"
	"github.com/johnmuchir/machinry/engagement"
	"github.com/johnmuchir/machinry/threads"
)

// Handler is the JSON presentation layer over the discussion engine. It
// derives the acting subject from the session cookie and maps domain errors
// to HTTP statuses; all business rules live in the services.
type Handler struct {
	mux           *http.ServeMux
	handler       http.Handler
	threadsSvc    *threads.Service
	engagementSvc *engagement.Service
	communitySvc  *community.Service
	cookieStore   *sessions.CookieStore
	sessionName   string
}

var _ http.Handler = (*Handler)(nil)

func NewHandler(
	threadsSvc *threads.Service,
	engagementSvc *engagement.Service,
	communitySvc *community.Service,
	cookieStore *sessions.CookieStore,
	sessionName string,
) *Handler {
	h := &Handler{
		mux:           nil,
		handler:       nil,
		threadsSvc:    threadsSvc,
		engagementSvc: engagementSvc,
		communitySvc:  communitySvc,
		cookieStore:   cookieStore,
		sessionName:   sessionName,
	}

	h.mux = &http.ServeMux{}
	h.registerRoutes()

	h.handler = h.subjectMiddleware(h.mux)
	h.handler = recoverMiddleware(h.handler)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.Handle("POST /api/session", h.HandleStartSession())
	h.mux.Handle("DELETE /api/session", h.HandleEndSession())

	h.mux.Handle("GET /api/threads", h.HandleListThreads())
	h.mux.Handle("POST /api/threads", h.ActorOnly(h.HandleCreateThread()))
	h.mux.Handle("GET /api/threads/{threadId}", h.HandleGetThread())
	h.mux.Handle("DELETE /api/threads/{threadId}", h.ActorOnly(h.HandleDeleteThread()))
	h.mux.Handle("POST /api/threads/{threadId}/comments", h.ActorOnly(h.HandleAddComment()))

	h.mux.Handle("PUT /api/threads/{threadId}/likes", h.ActorOnly(h.HandleLike()))
	h.mux.Handle("DELETE /api/threads/{threadId}/likes", h.ActorOnly(h.HandleUnlike()))
	h.mux.Handle("GET /api/threads/{threadId}/likes", h.HandleGetLikes())

	h.mux.Handle("POST /api/actors", h.HandleRegisterActor())
	h.mux.Handle("GET /api/actors/{actorId}/threads", h.HandleActorThreads())
	h.mux.Handle("POST /api/groups", h.HandleRegisterGroup())
	h.mux.Handle("GET /api/groups/{groupId}/threads", h.HandleGroupThreads())
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func(ctx context.Context) {
			if err := recover(); err != nil {
				slog.ErrorContext(
					ctx,
					"recovered from panic",
					"error",
					err,
					"stack",
					string(debug.Stack()),
				)

				http.Error(w, "internal error occurred", http.StatusInternalServerError)
			}
		}(r.Context())

		next.ServeHTTP(w, r)
	})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(value)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func decodeJSON(r *http.Request, target any) error {
	err := json.NewDecoder(r.Body).Decode(target)
	if err != nil {
		return fmt.Errorf("failed to decode request body: %w", err)
	}

	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the domain error taxonomy to HTTP statuses: not-found
// errors to 404, invalid arguments to 400, everything else to 500 with the
// detail logged rather than leaked.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var (
		threadNotFoundErr threads.ThreadNotFoundError
		actorNotFoundErr  community.ActorNotFoundError
		groupNotFoundErr  community.GroupNotFoundError

		emptyTextErr      threads.EmptyTextError
		invalidActorErr   threads.InvalidActorIDError
		invalidPageErr    threads.InvalidPageError
		invalidSortErr    threads.InvalidSortOrderError
		invalidProfileErr community.InvalidProfileError
	)

	switch {
	case errors.As(err, &threadNotFoundErr),
		errors.As(err, &actorNotFoundErr),
		errors.As(err, &groupNotFoundErr):
		writeJSON(r.Context(), w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &emptyTextErr),
		errors.As(err, &invalidActorErr),
		errors.As(err, &invalidPageErr),
		errors.As(err, &invalidSortErr),
		errors.As(err, &invalidProfileErr):
		writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		slog.ErrorContext(r.Context(), "operation failed", "operation", op, "error", err)
		writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
