package web

import (
	"net/http"

	"github.com/johnmuchir/machinry/identity"
)

type likesResponse struct {
	ActorIDs []string `json:"actorIds"`
	Count    int      `json:"count"`
}

func (h *Handler) HandleLike() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		threadID := r.PathValue("threadId")
		actorID := identity.GetSubject(r.Context())

		err := h.engagementSvc.Like(r.Context(), threadID, actorID, r.URL.Query().Get("revalidatePath"))
		if err != nil {
			h.writeError(w, r, "like", err)

			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func (h *Handler) HandleUnlike() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		threadID := r.PathValue("threadId")
		actorID := identity.GetSubject(r.Context())

		err := h.engagementSvc.Unlike(r.Context(), threadID, actorID, r.URL.Query().Get("revalidatePath"))
		if err != nil {
			h.writeError(w, r, "unlike", err)

			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func (h *Handler) HandleGetLikes() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		threadID := r.PathValue("threadId")

		actorIDs, err := h.engagementSvc.Likes(r.Context(), threadID)
		if err != nil {
			h.writeError(w, r, "getLikes", err)

			return
		}

		if actorIDs == nil {
			actorIDs = []string{}
		}

		writeJSON(r.Context(), w, http.StatusOK, likesResponse{
			ActorIDs: actorIDs,
			Count:    len(actorIDs),
		})
	})
}
