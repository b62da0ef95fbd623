package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/johnmuchir/machinry/community"
	"github.com/johnmuchir/machinry/db/sqlite3"
	"github.com/johnmuchir/machinry/engagement"
	"github.com/johnmuchir/machinry/random"
	"github.com/johnmuchir/machinry/threads"
	"github.com/johnmuchir/machinry/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	server *httptest.Server
	client *http.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()

	db, err := sqlite3.NewDB(ctx, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	err = sqlite3.MigrateUp(ctx, db)
	require.NoError(t, err)

	threadRepo := sqlite3.NewThreadRepository(db)
	likeRepo := sqlite3.NewLikeRepository(db)
	actorRepo := sqlite3.NewActorRepository(db)
	groupRepo := sqlite3.NewGroupRepository(db)

	handler := web.NewHandler(
		threads.NewService(threadRepo, actorRepo, groupRepo, nil),
		engagement.NewService(likeRepo, threadRepo, nil),
		community.NewService(actorRepo, groupRepo),
		sessions.NewCookieStore([]byte(random.String(32))),
		"machinry-test",
	)

	// The cookie store marks session cookies Secure (gorilla/sessions v1.4.0
	// default), so the fixture must serve TLS for the client jar to keep them.
	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	client := server.Client()
	client.Jar = jar

	return &fixture{
		server: server,
		client: client,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reqBody io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reqBody)
	require.NoError(t, err)

	res, err := f.client.Do(req)
	require.NoError(t, err)

	resBody, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	err = res.Body.Close()
	require.NoError(t, err)

	return res, resBody
}

// registerActor creates the actor profile and starts a session for it.
func (f *fixture) registerActor(t *testing.T, username string) string {
	t.Helper()

	res, body := f.do(t, http.MethodPost, "/api/actors", map[string]any{"username": username})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var actor struct {
		ID string `json:"id"`
	}

	err := json.Unmarshal(body, &actor)
	require.NoError(t, err)
	require.NotEmpty(t, actor.ID)

	res, _ = f.do(t, http.MethodPost, "/api/session", map[string]any{"actorId": actor.ID})
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	return actor.ID
}

func TestThreadEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("create get and list", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		actorID := f.registerActor(t, "mechanic")

		res, body := f.do(t, http.MethodPost, "/api/threads", map[string]any{
			"text":   "Bandsaw blade keeps wandering",
			"images": []string{"https://img.example/saw.jpg"},
		})
		require.Equal(t, http.StatusCreated, res.StatusCode)

		var created struct {
			ID       string   `json:"id"`
			Text     string   `json:"text"`
			Images   []string `json:"images"`
			AuthorID string   `json:"authorId"`
		}

		err := json.Unmarshal(body, &created)
		require.NoError(t, err)
		assert.Equal(t, "Bandsaw blade keeps wandering", created.Text)
		assert.Equal(t, actorID, created.AuthorID)
		assert.Equal(t, []string{"https://img.example/saw.jpg"}, created.Images)

		res, body = f.do(t, http.MethodGet, "/api/threads/"+created.ID, nil)
		require.Equal(t, http.StatusOK, res.StatusCode)

		var node struct {
			ID     string `json:"id"`
			Author *struct {
				Username string `json:"username"`
			} `json:"author"`
			Likes    []string          `json:"likes"`
			Children []json.RawMessage `json:"children"`
		}

		err = json.Unmarshal(body, &node)
		require.NoError(t, err)
		assert.Equal(t, created.ID, node.ID)
		require.NotNil(t, node.Author)
		assert.Equal(t, "mechanic", node.Author.Username)
		assert.NotNil(t, node.Likes)
		assert.Empty(t, node.Likes)
		assert.Empty(t, node.Children)

		res, body = f.do(t, http.MethodGet, "/api/threads?page=1&pageSize=20", nil)
		require.Equal(t, http.StatusOK, res.StatusCode)

		var page struct {
			Threads     []json.RawMessage `json:"threads"`
			HasNextPage bool              `json:"hasNextPage"`
		}

		err = json.Unmarshal(body, &page)
		require.NoError(t, err)
		assert.Len(t, page.Threads, 1)
		assert.False(t, page.HasNextPage)
	})

	t.Run("comment and delete", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.registerActor(t, "mechanic")

		res, body := f.do(t, http.MethodPost, "/api/threads", map[string]any{
			"text": "Mill vise bolt pattern",
		})
		require.Equal(t, http.StatusCreated, res.StatusCode)

		var post struct {
			ID string `json:"id"`
		}

		err := json.Unmarshal(body, &post)
		require.NoError(t, err)

		res, body = f.do(t, http.MethodPost, "/api/threads/"+post.ID+"/comments", map[string]any{
			"text": "Standard 14mm T-slots",
		})
		require.Equal(t, http.StatusCreated, res.StatusCode)

		var comment struct {
			ID       string  `json:"id"`
			ParentID *string `json:"parentId"`
		}

		err = json.Unmarshal(body, &comment)
		require.NoError(t, err)
		require.NotNil(t, comment.ParentID)
		assert.Equal(t, post.ID, *comment.ParentID)

		res, _ = f.do(t, http.MethodDelete, "/api/threads/"+post.ID, nil)
		require.Equal(t, http.StatusNoContent, res.StatusCode)

		res, _ = f.do(t, http.MethodGet, "/api/threads/"+post.ID, nil)
		assert.Equal(t, http.StatusNotFound, res.StatusCode)

		res, _ = f.do(t, http.MethodGet, "/api/threads/"+comment.ID, nil)
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	})

	t.Run("mutations require a session", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)

		res, _ := f.do(t, http.MethodPost, "/api/threads", map[string]any{"text": "Anonymous post"})
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

		res, _ = f.do(t, http.MethodDelete, "/api/threads/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})

	t.Run("validation errors map to bad request", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.registerActor(t, "mechanic")

		res, _ := f.do(t, http.MethodPost, "/api/threads", map[string]any{"text": "   "})
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)

		res, _ = f.do(t, http.MethodGet, "/api/threads?page=0", nil)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)

		res, _ = f.do(t, http.MethodGet, "/api/threads?sort=sideways", nil)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("ending the session revokes access", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.registerActor(t, "mechanic")

		res, _ := f.do(t, http.MethodDelete, "/api/session", nil)
		require.Equal(t, http.StatusNoContent, res.StatusCode)

		res, _ = f.do(t, http.MethodPost, "/api/threads", map[string]any{"text": "After logout"})
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})
}

func TestLikeEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	actorID := f.registerActor(t, "mechanic")

	res, body := f.do(t, http.MethodPost, "/api/threads", map[string]any{
		"text": "Plasma cutter consumable life",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var post struct {
		ID string `json:"id"`
	}

	err := json.Unmarshal(body, &post)
	require.NoError(t, err)

	res, _ = f.do(t, http.MethodPut, "/api/threads/"+post.ID+"/likes", nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	// Liking again is idempotent.
	res, _ = f.do(t, http.MethodPut, "/api/threads/"+post.ID+"/likes", nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	res, body = f.do(t, http.MethodGet, "/api/threads/"+post.ID+"/likes", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var likes struct {
		ActorIDs []string `json:"actorIds"`
		Count    int      `json:"count"`
	}

	err = json.Unmarshal(body, &likes)
	require.NoError(t, err)
	assert.Equal(t, []string{actorID}, likes.ActorIDs)
	assert.Equal(t, 1, likes.Count)

	res, _ = f.do(t, http.MethodDelete, "/api/threads/"+post.ID+"/likes", nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	res, body = f.do(t, http.MethodGet, "/api/threads/"+post.ID+"/likes", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	err = json.Unmarshal(body, &likes)
	require.NoError(t, err)
	assert.Empty(t, likes.ActorIDs)
	assert.Equal(t, 0, likes.Count)

	res, _ = f.do(t, http.MethodGet, "/api/threads/"+uuid.NewString()+"/likes", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestCommunityEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	actorID := f.registerActor(t, "mechanic")

	res, body := f.do(t, http.MethodPost, "/api/groups", map[string]any{
		"slug": "hydraulics",
		"name": "Hydraulics",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var group struct {
		ID   string `json:"id"`
		Slug string `json:"slug"`
	}

	err := json.Unmarshal(body, &group)
	require.NoError(t, err)
	assert.Equal(t, "hydraulics", group.Slug)

	res, body = f.do(t, http.MethodPost, "/api/threads", map[string]any{
		"text":    "Cylinder drift troubleshooting",
		"groupId": group.ID,
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var post struct {
		ID string `json:"id"`
	}

	err = json.Unmarshal(body, &post)
	require.NoError(t, err)

	res, body = f.do(t, http.MethodGet, "/api/groups/"+group.ID+"/threads", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var groupThreads []struct {
		ID string `json:"id"`
	}

	err = json.Unmarshal(body, &groupThreads)
	require.NoError(t, err)
	require.Len(t, groupThreads, 1)
	assert.Equal(t, post.ID, groupThreads[0].ID)

	res, body = f.do(t, http.MethodGet, "/api/actors/"+actorID+"/threads", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var authored []struct {
		ID string `json:"id"`
	}

	err = json.Unmarshal(body, &authored)
	require.NoError(t, err)
	require.Len(t, authored, 1)
	assert.Equal(t, post.ID, authored[0].ID)

	res, _ = f.do(t, http.MethodGet, "/api/actors/"+uuid.NewString()+"/threads", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, _ = f.do(t, http.MethodPost, "/api/actors", map[string]any{"name": "No Username"})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}
