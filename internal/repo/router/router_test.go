package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/festy23/pitcrew/internal/pullrequest/model"
	"github.com/festy23/pitcrew/internal/pullrequest/repository"
	"github.com/festy23/pitcrew/internal/scm"
	"github.com/festy23/pitcrew/internal/scm/bitbucket"
	"github.com/festy23/pitcrew/internal/scm/provider"
)

// fakeHooks records Bitbucket hook calls for acme/billing.
type fakeHooks struct {
	mu        sync.Mutex
	callbacks []string
	deleted   []string
}

func (f *fakeHooks) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/2.0/repositories/acme/billing/hooks", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			URL string `json:"url"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.callbacks = append(f.callbacks, body.URL)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"uuid":"hook-1"}`))
	})
	mux.HandleFunc("/2.0/repositories/acme/billing/hooks/hook-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		f.mu.Lock()
		f.deleted = append(f.deleted, "hook-1")
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setup(t *testing.T) (*gin.Engine, *gorm.DB, *fakeHooks) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Repository{}, &model.PullRequest{}, &model.AIReview{}, &model.ReviewIssue{}))

	logger := zap.NewNop().Sugar()
	_, err = repository.New(db, logger).UpsertRepository(context.Background(), model.RepositoryInfo{
		Provider:       model.ProviderBitbucket,
		ProviderRepoID: "{b7f4c1e2}",
		Name:           "billing",
		FullName:       "acme/billing",
		URL:            "https://bitbucket.org/acme/billing",
	})
	require.NoError(t, err)

	hooks := &fakeHooks{}
	client := bitbucket.New(bitbucket.Config{BaseURL: hooks.server(t).URL}, logger)
	factory := scm.NewFactoryWithClients(
		map[model.Provider]provider.Client{model.ProviderBitbucket: client},
		scm.StaticCredentials{model.ProviderBitbucket: "bb-token"},
	)

	r := gin.New()
	RegisterRoutes(r, db, factory, "https://reviews.example.com", logger)
	return r, db, hooks
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRoutes_WebhookLifecycle(t *testing.T) {
	r, db, hooks := setup(t)

	w := serve(r, http.MethodPost, "/repositories/1/webhook")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"https://reviews.example.com/webhooks/bitbucket"}, hooks.callbacks)

	var stored model.Repository
	require.NoError(t, db.First(&stored, 1).Error)
	require.NotNil(t, stored.WebhookID)
	assert.Equal(t, "hook-1", *stored.WebhookID)
	assert.True(t, stored.IsActive)

	w = serve(r, http.MethodDelete, "/repositories/1/webhook")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"hook-1"}, hooks.deleted)

	require.NoError(t, db.First(&stored, 1).Error)
	assert.Nil(t, stored.WebhookID)
	assert.False(t, stored.IsActive)

	// repository row is kept after unregistering
	var count int64
	require.NoError(t, db.Model(&model.Repository{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRoutes_UnregisterWithoutHook(t *testing.T) {
	r, _, hooks := setup(t)

	w := serve(r, http.MethodDelete, "/repositories/1/webhook")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, hooks.deleted)
}

func TestRoutes_UnknownRepository(t *testing.T) {
	r, _, _ := setup(t)

	w := serve(r, http.MethodPost, "/repositories/42/webhook")

	assert.Equal(t, http.StatusNotFound, w.Code)
}
