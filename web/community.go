package web

import (
	"net/http"

	"github.com/johnmuchir/machinry/community"
	"github.com/johnmuchir/machinry/threads"
)

func (h *Handler) HandleRegisterActor() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Name     string `json:"name"`
			ImageURL string `json:"imageUrl"`
		}

		err := decodeJSON(r, &body)
		if err != nil {
			writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})

			return
		}

		actor, err := h.communitySvc.RegisterActor(r.Context(), community.RegisterActorRequest{
			ID:       body.ID,
			Username: body.Username,
			Name:     body.Name,
			ImageURL: body.ImageURL,
		})
		if err != nil {
			h.writeError(w, r, "registerActor", err)

			return
		}

		writeJSON(r.Context(), w, http.StatusCreated, toActorResponse(actor))
	})
}

func (h *Handler) HandleActorThreads() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID := r.PathValue("actorId")

		list, err := h.threadsSvc.ListByAuthor(r.Context(), actorID)
		if err != nil {
			h.writeError(w, r, "actorThreads", err)

			return
		}

		writeJSON(r.Context(), w, http.StatusOK, toThreadListResponse(list))
	})
}

func (h *Handler) HandleRegisterGroup() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ID       string `json:"id"`
			Slug     string `json:"slug"`
			Name     string `json:"name"`
			ImageURL string `json:"imageUrl"`
		}

		err := decodeJSON(r, &body)
		if err != nil {
			writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})

			return
		}

		group, err := h.communitySvc.RegisterGroup(r.Context(), community.RegisterGroupRequest{
			ID:       body.ID,
			Slug:     body.Slug,
			Name:     body.Name,
			ImageURL: body.ImageURL,
		})
		if err != nil {
			h.writeError(w, r, "registerGroup", err)

			return
		}

		writeJSON(r.Context(), w, http.StatusCreated, toGroupResponse(group))
	})
}

func (h *Handler) HandleGroupThreads() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		groupID := r.PathValue("groupId")

		list, err := h.threadsSvc.ListByGroup(r.Context(), groupID)
		if err != nil {
			h.writeError(w, r, "groupThreads", err)

			return
		}

		writeJSON(r.Context(), w, http.StatusOK, toThreadListResponse(list))
	})
}

func toThreadListResponse(list []*threads.Thread) []threadResponse {
	res := make([]threadResponse, 0, len(list))

	for _, thread := range list {
		res = append(res, toThreadResponse(*thread))
	}

	return res
}
