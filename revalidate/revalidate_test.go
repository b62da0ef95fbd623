package revalidate_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/johnmuchir/machinry/revalidate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPHook(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("posts the path to the endpoint", func(t *testing.T) {
		t.Parallel()

		var gotMethod, gotPath string

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotPath = r.URL.Query().Get("path")
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(ts.Close)

		hook := revalidate.NewHTTPHook(ts.URL, ts.Client())

		err := hook.Invalidate(ctx, "/threads?page=2")
		require.NoError(t, err)

		assert.Equal(t, http.MethodPost, gotMethod)
		assert.Equal(t, "/threads?page=2", gotPath)
	})

	t.Run("error statuses surface", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		t.Cleanup(ts.Close)

		hook := revalidate.NewHTTPHook(ts.URL, ts.Client())

		err := hook.Invalidate(ctx, "/threads")
		require.Error(t, err)
	})
}

func TestNopHook(t *testing.T) {
	t.Parallel()

	err := revalidate.NopHook{}.Invalidate(context.Background(), "/anywhere")
	require.NoError(t, err)
}
