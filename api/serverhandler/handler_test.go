package serverhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wpbryant/WordOps-Dashboard/api/authhandler"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
	"github.com/wpbryant/WordOps-Dashboard/logs"
	"github.com/wpbryant/WordOps-Dashboard/netdata"
)

type mockServices struct {
	mock.Mock
}

func (m *mockServices) GetStatus(ctx context.Context, name string) (*interfaces.ServiceStatus, error) {
	args := m.Called(ctx, name)
	s, _ := args.Get(0).(*interfaces.ServiceStatus)
	return s, args.Error(1)
}

func (m *mockServices) GetAllStatuses(ctx context.Context) []interfaces.ServiceStatus {
	s, _ := m.Called(ctx).Get(0).([]interfaces.ServiceStatus)
	return s
}

func (m *mockServices) Restart(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockServices) Start(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockServices) Stop(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockServices) StackServices(ctx context.Context) []interfaces.StackServiceInfo {
	s, _ := m.Called(ctx).Get(0).([]interfaces.StackServiceInfo)
	return s
}

type mockMetrics struct {
	mock.Mock
}

func (m *mockMetrics) GetSnapshot(ctx context.Context, r interfaces.TimeRange) (*interfaces.SystemSnapshot, error) {
	args := m.Called(ctx, r)
	s, _ := args.Get(0).(*interfaces.SystemSnapshot)
	return s, args.Error(1)
}

type fakeSysInfo struct{}

func (fakeSysInfo) SystemInfo(context.Context) interfaces.SystemInfo {
	return interfaces.SystemInfo{Hostname: "web1", PublicIP: "unknown", BootTime: "2026-01-19T01:23:45Z"}
}

func (fakeSysInfo) Overview(context.Context) interfaces.ServerOverview {
	return interfaces.ServerOverview{Hostname: "web1", OSVersion: "Ubuntu 24.04.1 LTS", WordOpsVersion: "3.21.3"}
}

type fakeVerifier struct{}

func (fakeVerifier) Verify(token string) (string, error) {
	if token == "good" {
		return "admin", nil
	}
	return "", errors.New("bad token")
}

type testEnv struct {
	services *mockServices
	metrics  *mockMetrics
	relay    *logs.Relay
	logPath  string
	mux      *chi.Mux
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	return setupWithMetrics(t, nil)
}

// setupWithMetrics wires source in place of the metrics mock when non-nil.
func setupWithMetrics(t *testing.T, source interfaces.MetricsSource) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	logPath := filepath.Join(t.TempDir(), "error.log")
	require.NoError(t, os.WriteFile(logPath, []byte("one\ntwo\nthree\n"), 0o644))
	tailer := logs.NewTailer(map[string]string{"nginx-error": logPath}, logger)
	relay := logs.NewRelay(tailer, logger, nil, logs.RelayOptions{Interval: 50 * time.Millisecond})
	t.Cleanup(relay.Stop)

	env := &testEnv{
		services: &mockServices{},
		metrics:  &mockMetrics{},
		relay:    relay,
		logPath:  logPath,
		mux:      chi.NewRouter(),
	}
	t.Cleanup(func() {
		env.services.AssertExpectations(t)
		env.metrics.AssertExpectations(t)
	})

	if source == nil {
		source = env.metrics
	}
	NewHandler(Deps{
		Services: env.services,
		Metrics:  source,
		SysInfo:  fakeSysInfo{},
		Logs:     tailer,
		Stream:   relay,
		Verifier: fakeVerifier{},
	}, authhandler.RequireAuth(fakeVerifier{}, logger), logger).RegisterRoutes(env.mux)
	return env
}

func (e *testEnv) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func TestRoutesRequireAuth(t *testing.T) {
	env := setup(t)
	for _, target := range []string{"/api/v1/server/metrics", "/api/v1/server/info", "/api/v1/server/services", "/api/v1/server/logs/nginx-error"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		w := httptest.NewRecorder()
		env.mux.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, target)
	}
}

func TestMetrics(t *testing.T) {
	env := setup(t)
	env.metrics.On("GetSnapshot", mock.Anything, interfaces.Range1h).Return(&interfaces.SystemSnapshot{
		Range: interfaces.Range1h,
		CPU:   interfaces.MetricSeries{Name: "cpu", Unit: "%", Current: 12.5, Data: []interfaces.MetricPoint{{Timestamp: 1, Value: 12.5}}},
	}, nil)
	env.metrics.On("GetSnapshot", mock.Anything, interfaces.Range5m).Return(nil,
		fmt.Errorf("%w: dial tcp 127.0.0.1:19999: connection refused", interfaces.ErrMonitoringUnavailable))

	w := env.do(http.MethodGet, "/api/v1/server/metrics?range=1h")
	require.Equal(t, http.StatusOK, w.Code)
	var snap interfaces.SystemSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, 12.5, snap.CPU.Current)

	w = env.do(http.MethodGet, "/api/v1/server/metrics?range=2d")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/v1/server/metrics")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsDefaultsToFiveMinutes(t *testing.T) {
	var afters []string
	var mu sync.Mutex
	agent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		afters = append(afters, r.URL.Query().Get("after"))
		mu.Unlock()
		fmt.Fprint(w, `{"result":{"labels":["time","user","system","idle"],"data":[[1700000000,5,5,90]]}}`)
	}))
	t.Cleanup(agent.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := setupWithMetrics(t, netdata.NewClient(agent.URL, logger, nil))

	w := env.do(http.MethodGet, "/api/v1/server/metrics")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var snap interfaces.SystemSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, interfaces.Range5m, snap.Range)
	assert.Equal(t, 10.0, snap.CPU.Current)

	mu.Lock()
	assert.Equal(t, []string{"-300", "-300", "-300", "-300"}, afters)
	mu.Unlock()

	w = env.do(http.MethodGet, "/api/v1/server/metrics?range=2d")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInfoAndOverview(t *testing.T) {
	env := setup(t)

	w := env.do(http.MethodGet, "/api/v1/server/info")
	require.Equal(t, http.StatusOK, w.Code)
	var info interfaces.SystemInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "web1", info.Hostname)

	w = env.do(http.MethodGet, "/api/v1/server/overview")
	require.Equal(t, http.StatusOK, w.Code)
	var overview interfaces.ServerOverview
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &overview))
	assert.Equal(t, "3.21.3", overview.WordOpsVersion)
}

func TestServices(t *testing.T) {
	env := setup(t)
	env.services.On("GetAllStatuses", mock.Anything).Return([]interfaces.ServiceStatus{
		{Name: "nginx", ActiveState: "active", SubState: "running", MainPID: 10},
		{Name: "redis-server", ActiveState: "inactive", SubState: "dead"},
	})
	env.services.On("GetStatus", mock.Anything, "nginx").Return(&interfaces.ServiceStatus{Name: "nginx", ActiveState: "active"}, nil)
	env.services.On("GetStatus", mock.Anything, "ufw").Return(nil, nil)

	w := env.do(http.MethodGet, "/api/v1/server/services")
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, true, list[0]["active"])
	assert.Equal(t, "running", list[0]["sub_state"])
	assert.Equal(t, false, list[1]["active"])

	w = env.do(http.MethodGet, "/api/v1/server/services/nginx")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/v1/server/services/ufw")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/v1/server/services/sshd")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServiceControl(t *testing.T) {
	env := setup(t)
	env.services.On("Restart", mock.Anything, "nginx").Return(nil)
	env.services.On("Start", mock.Anything, "php8.3-fpm").Return(nil)
	env.services.On("Stop", mock.Anything, "mariadb").Return(&interfaces.CommandFailedError{
		Argv: []string{"systemctl", "stop", "mariadb"}, ExitCode: 1, Detail: "Failed to stop mariadb.service: Access denied",
	})

	w := env.do(http.MethodPost, "/api/v1/server/services/nginx/restart")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Service nginx restarted successfully"}`, w.Body.String())

	w = env.do(http.MethodPost, "/api/v1/server/services/php8.3-fpm/start")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/v1/server/services/mariadb/stop")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Access denied")

	w = env.do(http.MethodPost, "/api/v1/server/services/nginx;reboot/restart")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStackServices(t *testing.T) {
	env := setup(t)
	env.services.On("StackServices", mock.Anything).Return(nil)

	w := env.do(http.MethodGet, "/api/v1/server/stack-services")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestLogs(t *testing.T) {
	env := setup(t)

	w := env.do(http.MethodGet, "/api/v1/server/logs/nginx-error?lines=2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"log_type":"nginx-error","lines":["two","three"],"count":2}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/v1/server/logs/nginx-error")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"log_type":"nginx-error","lines":["one","two","three"],"count":3}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/v1/server/logs/nginx-error?lines=many")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/v1/server/logs/syslog")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func dialStream(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func expectClose(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, code, ce.Code)
}

func TestLogStreamRejects(t *testing.T) {
	env := setup(t)
	srv := httptest.NewServer(env.mux)
	defer srv.Close()

	expectClose(t, dialStream(t, srv, "/api/v1/server/logs/nginx-error/stream"), CloseInvalidToken)
	expectClose(t, dialStream(t, srv, "/api/v1/server/logs/nginx-error/stream?token=bad"), CloseInvalidToken)
	expectClose(t, dialStream(t, srv, "/api/v1/server/logs/syslog/stream?token=good"), CloseInvalidLogType)
	assert.Equal(t, 0, env.relay.Subscribers("syslog"))
}

func TestLogStream(t *testing.T) {
	env := setup(t)
	srv := httptest.NewServer(env.mux)
	defer srv.Close()

	conn := dialStream(t, srv, "/api/v1/server/logs/nginx-error/stream?token=good")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var batch logs.Batch
	require.NoError(t, conn.ReadJSON(&batch))
	assert.Equal(t, []string{"one", "two", "three"}, batch.Lines)
	assert.Equal(t, 1, env.relay.Subscribers("nginx-error"))

	f, err := os.OpenFile(env.logPath, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("four\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, conn.ReadJSON(&batch))
		if len(batch.Lines) > 0 && batch.Lines[len(batch.Lines)-1] == "four" {
			break
		}
		require.True(t, time.Now().Before(deadline), "appended line never streamed")
	}

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		return env.relay.Subscribers("nginx-error") == 0
	}, 2*time.Second, 20*time.Millisecond)
}
