package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/johnmuchir/machinry/community"
	"github.com/johnmuchir/machinry/identity"
	"github.com/johnmuchir/machinry/threads"
)

const (
	defaultPageNumber = 1
	defaultPageSize   = 20
)

type threadResponse struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Images    []string  `json:"images"`
	AuthorID  string    `json:"authorId"`
	GroupID   *string   `json:"groupId,omitempty"`
	ParentID  *string   `json:"parentId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type actorResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

type groupResponse struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

type threadSummaryResponse struct {
	threadResponse

	Author    *actorResponse   `json:"author,omitempty"`
	Group     *groupResponse   `json:"group,omitempty"`
	RepliedBy []*actorResponse `json:"repliedBy,omitempty"`
}

type threadNodeResponse struct {
	threadResponse

	Author   *actorResponse        `json:"author,omitempty"`
	Group    *groupResponse        `json:"group,omitempty"`
	Likes    []string              `json:"likes"`
	Children []*threadNodeResponse `json:"children"`
}

type threadPageResponse struct {
	Threads     []*threadSummaryResponse `json:"threads"`
	HasNextPage bool                     `json:"hasNextPage"`
}

func toThreadResponse(thread threads.Thread) threadResponse {
	images := thread.Images
	if images == nil {
		images = []string{}
	}

	return threadResponse{
		ID:        thread.ID,
		Text:      thread.Text,
		Images:    images,
		AuthorID:  thread.AuthorID,
		GroupID:   thread.GroupID,
		ParentID:  thread.ParentID,
		CreatedAt: thread.CreatedAt,
	}
}

func toActorResponse(actor *community.Actor) *actorResponse {
	if actor == nil {
		return nil
	}

	return &actorResponse{
		ID:       actor.ID,
		Username: actor.Username,
		Name:     actor.Name,
		ImageURL: actor.ImageURL,
	}
}

func toGroupResponse(group *community.Group) *groupResponse {
	if group == nil {
		return nil
	}

	return &groupResponse{
		ID:       group.ID,
		Slug:     group.Slug,
		Name:     group.Name,
		ImageURL: group.ImageURL,
	}
}

func toThreadNodeResponse(node *threads.ThreadNode) *threadNodeResponse {
	likes := node.Likes
	if likes == nil {
		likes = []string{}
	}

	res := &threadNodeResponse{
		threadResponse: toThreadResponse(node.Thread),
		Author:         toActorResponse(node.Author),
		Group:          toGroupResponse(node.Group),
		Likes:          likes,
		Children:       make([]*threadNodeResponse, 0, len(node.Children)),
	}

	for _, child := range node.Children {
		res.Children = append(res.Children, toThreadNodeResponse(child))
	}

	return res
}

func (h *Handler) HandleListThreads() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		req := threads.ListThreadsRequest{
			Search:     query.Get("search"),
			PageNumber: defaultPageNumber,
			PageSize:   defaultPageSize,
			Sort:       threads.SortOrder(query.Get("sort")),
		}

		if raw := query.Get("page"); raw != "" {
			pageNumber, err := strconv.Atoi(raw)
			if err != nil {
				writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: "invalid page parameter"})

				return
			}

			req.PageNumber = pageNumber
		}

		if raw := query.Get("pageSize"); raw != "" {
			pageSize, err := strconv.Atoi(raw)
			if err != nil {
				writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: "invalid pageSize parameter"})

				return
			}

			req.PageSize = pageSize
		}

		page, err := h.threadsSvc.ListThreads(r.Context(), req)
		if err != nil {
			h.writeError(w, r, "listThreads", err)

			return
		}

		res := threadPageResponse{
			Threads:     make([]*threadSummaryResponse, 0, len(page.Threads)),
			HasNextPage: page.HasNextPage,
		}

		for _, summary := range page.Threads {
			entry := &threadSummaryResponse{
				threadResponse: toThreadResponse(summary.Thread),
				Author:         toActorResponse(summary.Author),
				Group:          toGroupResponse(summary.Group),
			}

			for _, author := range summary.RepliedBy {
				entry.RepliedBy = append(entry.RepliedBy, toActorResponse(author))
			}

			res.Threads = append(res.Threads, entry)
		}

		writeJSON(r.Context(), w, http.StatusOK, res)
	})
}

func (h *Handler) HandleCreateThread() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text           string   `json:"text"`
			Images         []string `json:"images"`
			GroupID        string   `json:"groupId"`
			RevalidatePath string   `json:"revalidatePath"`
		}

		err := decodeJSON(r, &body)
		if err != nil {
			writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})

			return
		}

		thread, err := h.threadsSvc.CreateThread(r.Context(), threads.CreateThreadRequest{
			Text:     body.Text,
			Images:   body.Images,
			AuthorID: identity.GetSubject(r.Context()),
			GroupID:  body.GroupID,
			Path:     body.RevalidatePath,
		})
		if err != nil {
			h.writeError(w, r, "createThread", err)

			return
		}

		writeJSON(r.Context(), w, http.StatusCreated, toThreadResponse(*thread))
	})
}

func (h *Handler) HandleGetThread() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		threadID := r.PathValue("threadId")

		node, err := h.threadsSvc.GetThread(r.Context(), threadID)
		if err != nil {
			h.writeError(w, r, "getThread", err)

			return
		}

		writeJSON(r.Context(), w, http.StatusOK, toThreadNodeResponse(node))
	})
}

func (h *Handler) HandleDeleteThread() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		threadID := r.PathValue("threadId")

		err := h.threadsSvc.DeleteSubtree(r.Context(), threadID, r.URL.Query().Get("revalidatePath"))
		if err != nil {
			h.writeError(w, r, "deleteThread", err)

			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func (h *Handler) HandleAddComment() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		threadID := r.PathValue("threadId")

		var body struct {
			Text           string `json:"text"`
			RevalidatePath string `json:"revalidatePath"`
		}

		err := decodeJSON(r, &body)
		if err != nil {
			writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})

			return
		}

		comment, err := h.threadsSvc.AddComment(r.Context(), threads.AddCommentRequest{
			ParentID: threadID,
			Text:     body.Text,
			AuthorID: identity.GetSubject(r.Context()),
			Path:     body.RevalidatePath,
		})
		if err != nil {
			h.writeError(w, r, "addComment", err)

			return
		}

		writeJSON(r.Context(), w, http.StatusCreated, toThreadResponse(*comment))
	})
}
