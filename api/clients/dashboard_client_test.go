package clients

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wpbryant/WordOps-Dashboard/api"
	"github.com/wpbryant/WordOps-Dashboard/api/authhandler"
	"github.com/wpbryant/WordOps-Dashboard/auth"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
	"golang.org/x/crypto/bcrypt"
)

func newTestDashboard(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.MinCost)
	require.NoError(t, err)
	a, err := auth.New(auth.Options{Username: "admin", PasswordHash: string(hash)})
	require.NoError(t, err)

	ah := authhandler.NewHandler(a, 0, 1, logger)
	mux := chi.NewRouter()
	ah.RegisterRoutes(mux)
	mux.Get("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSON(w, http.StatusOK, api.HealthResponse{Status: "healthy", Version: "test"})
	})
	mux.Group(func(r chi.Router) {
		r.Use(ah.RequireAuth)
		r.Get("/api/v1/sites", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "wordpress", q.Get("type"))
			assert.Equal(t, "false", q.Get("ssl"))
			assert.Equal(t, "shop", q.Get("search"))
			api.WriteJSON(w, http.StatusOK, []interfaces.SiteRecord{{Domain: "shop.example.com", Type: interfaces.SiteTypeWordPress}})
		})
		r.Get("/api/v1/sites/{domain}", func(w http.ResponseWriter, r *http.Request) {
			api.WriteError(w, logger, api.NewRequestError(http.StatusNotFound, "Site not found: %s", r.PathValue("domain")))
		})
		r.Get("/api/v1/server/services", func(w http.ResponseWriter, r *http.Request) {
			api.WriteJSON(w, http.StatusOK, []api.ServiceResponse{
				api.NewServiceResponse(interfaces.ServiceStatus{Name: "nginx", ActiveState: "active"}),
			})
		})
		r.Post("/api/v1/server/services/{name}/restart", func(w http.ResponseWriter, r *http.Request) {
			api.WriteJSON(w, http.StatusOK, api.ActionResponse{Success: true, Message: "Service " + r.PathValue("name") + " restarted successfully"})
		})
		r.Get("/api/v1/server/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.WriteJSON(w, http.StatusOK, interfaces.SystemSnapshot{Range: interfaces.TimeRange(r.URL.Query().Get("range"))})
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDashboardClientFlow(t *testing.T) {
	srv := newTestDashboard(t)
	ctx := context.Background()
	client := &DashboardClient{BaseURL: srv.URL + "/"}

	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)

	_, err = client.ListServices(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "could not validate credentials", apiErr.Detail)

	_, err = client.Login(ctx, "admin", "wrong")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	token, err := client.Login(ctx, "admin", "changeme")
	require.NoError(t, err)
	assert.Empty(t, client.Token)
	client.Token = token.AccessToken

	tls := false
	sites, err := client.ListSites(ctx, interfaces.SiteFilter{Type: interfaces.SiteTypeWordPress, TLS: &tls, Search: "shop"})
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "shop.example.com", sites[0].Domain)

	_, err = client.GetSite(ctx, "missing.com")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Site not found: missing.com", apiErr.Detail)

	services, err := client.ListServices(ctx)
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.True(t, services[0].Active)
	assert.Equal(t, "nginx", services[0].Name)

	action, err := client.RestartService(ctx, "nginx")
	require.NoError(t, err)
	assert.Equal(t, "Service nginx restarted successfully", action.Message)

	snap, err := client.Metrics(ctx, interfaces.Range24h)
	require.NoError(t, err)
	assert.Equal(t, interfaces.Range24h, snap.Range)
}

func TestDashboardClientUnreachable(t *testing.T) {
	client := &DashboardClient{BaseURL: "http://127.0.0.1:1"}
	_, err := client.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not reach dashboard")
}

func TestMockDashboardAPI(t *testing.T) {
	m := &MockDashboardAPI{}
	m.On("RestartService", context.Background(), "nginx").Return(&api.ActionResponse{Success: true}, nil)

	var client DashboardAPI = m
	resp, err := client.RestartService(context.Background(), "nginx")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	m.AssertExpectations(t)
}
