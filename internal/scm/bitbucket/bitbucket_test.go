package bitbucket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/festy23/pitcrew/internal/scm/provider"
)

const testToken = "bb_test"

var repo = provider.RepoRef{FullName: "acme/billing"}

func setupServer(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL + "/"}, zaptest.NewLogger(t).Sugar())
}

func TestClient_FetchDiff(t *testing.T) {
	t.Run("reads diff sub-resource", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/2.0/repositories/acme/billing/pullrequests/7/diff", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
			fmt.Fprint(w, "diff --git a/a.py b/a.py\n-x\n+y\n")
		})
		client := setupServer(t, mux)

		diff, err := client.FetchDiff(context.Background(), repo, 7, testToken)
		require.NoError(t, err)
		assert.Equal(t, "diff --git a/a.py b/a.py\n-x\n+y\n", diff)
	})

	t.Run("follows redirect", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/2.0/repositories/acme/billing/pullrequests/7/diff", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/2.0/repositories/acme/billing/diff/abc..def", http.StatusFound)
		})
		mux.HandleFunc("/2.0/repositories/acme/billing/diff/abc..def", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "redirected diff")
		})
		client := setupServer(t, mux)

		diff, err := client.FetchDiff(context.Background(), repo, 7, testToken)
		require.NoError(t, err)
		assert.Equal(t, "redirected diff", diff)
	})

	t.Run("error status", func(t *testing.T) {
		client := setupServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, "maintenance")
		}))

		_, err := client.FetchDiff(context.Background(), repo, 7, testToken)
		require.Error(t, err)
		assert.True(t, provider.IsKind(err, provider.KindDiffFetchFailed))
		var sErr *provider.StatusError
		require.ErrorAs(t, err, &sErr)
		assert.Equal(t, http.StatusServiceUnavailable, sErr.StatusCode)
		assert.Equal(t, "maintenance", sErr.Body)
	})

	t.Run("unauthorized", func(t *testing.T) {
		client := setupServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))

		_, err := client.FetchDiff(context.Background(), repo, 7, testToken)
		assert.ErrorIs(t, err, provider.ErrUnauthorized)
	})
}

func TestClient_PostComment(t *testing.T) {
	var got map[string]map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/2.0/repositories/acme/billing/pullrequests/7/comments", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":5}`)
	})
	client := setupServer(t, mux)

	require.NoError(t, client.PostComment(context.Background(), repo, 7, testToken, "looks good"))
	assert.Equal(t, "looks good", got["content"]["raw"])
}

func TestClient_RegisterWebhook(t *testing.T) {
	t.Run("returns uuid", func(t *testing.T) {
		var got map[string]any
		mux := http.NewServeMux()
		mux.HandleFunc("/2.0/repositories/acme/billing/hooks", func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"uuid":"{hook-1}"}`)
		})
		client := setupServer(t, mux)

		id, err := client.RegisterWebhook(context.Background(), repo, "https://pitcrew.example/webhooks/bitbucket", testToken)
		require.NoError(t, err)
		assert.Equal(t, "{hook-1}", id)
		assert.Equal(t, "PitCrew AI Code Review", got["description"])
		assert.Equal(t, true, got["active"])
		assert.Len(t, got["events"], 5)
	})

	t.Run("missing uuid", func(t *testing.T) {
		client := setupServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{}`)
		}))

		_, err := client.RegisterWebhook(context.Background(), repo, "https://x", testToken)
		assert.True(t, provider.IsKind(err, provider.KindWebhookRegistrationFailed))
	})
}

func TestClient_UnregisterWebhook(t *testing.T) {
	t.Run("escapes uuid", func(t *testing.T) {
		var path string
		client := setupServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			path = r.URL.EscapedPath()
			w.WriteHeader(http.StatusNoContent)
		}))

		err := client.UnregisterWebhook(context.Background(), provider.RepoRef{FullName: "acme/billing", WebhookID: "{hook-1}"}, testToken)
		require.NoError(t, err)
		assert.Equal(t, "/2.0/repositories/acme/billing/hooks/%7Bhook-1%7D", path)
	})

	t.Run("404 is success", func(t *testing.T) {
		client := setupServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

		assert.NoError(t, client.UnregisterWebhook(context.Background(), provider.RepoRef{FullName: "acme/billing", WebhookID: "{h}"}, testToken))
	})

	t.Run("no webhook id", func(t *testing.T) {
		client := New(Config{}, zaptest.NewLogger(t).Sugar())
		assert.NoError(t, client.UnregisterWebhook(context.Background(), repo, testToken))
	})
}

func TestClient_FetchRepos(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/2.0/user/workspaces", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"values":[{"workspace":{"slug":"acme","name":"Acme"}}]}`)
	})
	mux.HandleFunc("/2.0/repositories/acme", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"values":[{"uuid":"{2}","name":"web","full_name":"acme/web","links":{"html":{"href":"https://bitbucket.org/acme/web"}}}]}`)
			return
		}
		assert.Equal(t, "member", r.URL.Query().Get("role"))
		fmt.Fprintf(w, `{"values":[{"uuid":"{1}","name":"billing","full_name":"acme/billing","links":{"html":{"href":"https://bitbucket.org/acme/billing"}}}],"next":"%s/2.0/repositories/acme?role=member&page=2"}`, server.URL)
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	client := New(Config{BaseURL: server.URL}, zaptest.NewLogger(t).Sugar())

	repos, err := client.FetchRepos(context.Background(), testToken)
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "acme/billing", repos[0].FullName)
	assert.Equal(t, "https://bitbucket.org/acme/billing", repos[0].URL)
	assert.Equal(t, "{2}", repos[1].ID)
	assert.Equal(t, "bitbucket", client.Name())
}

func TestClient_ContextCancellation(t *testing.T) {
	var calls atomic.Int32
	client := setupServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":1}`)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.PostComment(ctx, repo, 7, testToken, "late")
	require.Error(t, err)
	assert.True(t, provider.IsKind(err, provider.KindCommentPostFailed))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())
}
