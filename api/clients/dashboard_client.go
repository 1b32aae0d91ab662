package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/wpbryant/WordOps-Dashboard/api"
	"github.com/wpbryant/WordOps-Dashboard/auth"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
)

// DefaultTimeout is long enough for restarts, shorter than site creation.
const DefaultTimeout = 2 * time.Minute

// DashboardAPI is the subset of the dashboard API used by operator tooling.
type DashboardAPI interface {
	Health(ctx context.Context) (*api.HealthResponse, error)
	Login(ctx context.Context, username, password string) (*auth.Token, error)
	ListSites(ctx context.Context, filter interfaces.SiteFilter) ([]interfaces.SiteRecord, error)
	GetSite(ctx context.Context, domain string) (*interfaces.SiteRecord, error)
	ListServices(ctx context.Context) ([]api.ServiceResponse, error)
	RestartService(ctx context.Context, name string) (*api.ActionResponse, error)
	Metrics(ctx context.Context, r interfaces.TimeRange) (*interfaces.SystemSnapshot, error)
}

// APIError is a non-2xx answer from the dashboard.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dashboard returned %d: %s", e.StatusCode, e.Detail)
}

// DashboardClient talks to a dashboard over HTTP.
type DashboardClient struct {
	// BaseURL is the dashboard root, e.g. http://127.0.0.1:8000
	BaseURL string

	// Token is sent as a bearer token when set.
	Token string

	// HTTP defaults to a client with DefaultTimeout.
	HTTP *http.Client
}

var _ DashboardAPI = (*DashboardClient)(nil)

func (c *DashboardClient) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/health", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login exchanges credentials for a token. The client's Token is not changed.
func (c *DashboardClient) Login(ctx context.Context, username, password string) (*auth.Token, error) {
	form := url.Values{"username": {username}, "password": {password}}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/auth/login", nil, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var token auth.Token
	if err := c.send(req, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

func (c *DashboardClient) ListSites(ctx context.Context, filter interfaces.SiteFilter) ([]interfaces.SiteRecord, error) {
	q := url.Values{}
	if filter.Type != "" {
		q.Set("type", string(filter.Type))
	}
	if filter.TLS != nil {
		q.Set("ssl", strconv.FormatBool(*filter.TLS))
	}
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}
	var sites []interfaces.SiteRecord
	if err := c.do(ctx, http.MethodGet, "/api/v1/sites", q, nil, &sites); err != nil {
		return nil, err
	}
	return sites, nil
}

func (c *DashboardClient) GetSite(ctx context.Context, domain string) (*interfaces.SiteRecord, error) {
	var site interfaces.SiteRecord
	if err := c.do(ctx, http.MethodGet, "/api/v1/sites/"+url.PathEscape(domain), nil, nil, &site); err != nil {
		return nil, err
	}
	return &site, nil
}

func (c *DashboardClient) ListServices(ctx context.Context) ([]api.ServiceResponse, error) {
	var services []api.ServiceResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/server/services", nil, nil, &services); err != nil {
		return nil, err
	}
	return services, nil
}

func (c *DashboardClient) RestartService(ctx context.Context, name string) (*api.ActionResponse, error) {
	var resp api.ActionResponse
	path := fmt.Sprintf("/api/v1/server/services/%s/restart", url.PathEscape(name))
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *DashboardClient) Metrics(ctx context.Context, r interfaces.TimeRange) (*interfaces.SystemSnapshot, error) {
	q := url.Values{}
	if r != "" {
		q.Set("range", string(r))
	}
	var snap interfaces.SystemSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/v1/server/metrics", q, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *DashboardClient) do(ctx context.Context, method, path string, q url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := c.newRequest(ctx, method, path, q, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *DashboardClient) newRequest(ctx context.Context, method, path string, q url.Values, body io.Reader) (*http.Request, error) {
	target := strings.TrimRight(c.BaseURL, "/") + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

func (c *DashboardClient) send(req *http.Request, out any) error {
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach dashboard: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, api.MaxBodySize))
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(bodyBytes))}
		var parsed api.ErrorResponse
		if json.Unmarshal(bodyBytes, &parsed) == nil && parsed.Detail != "" {
			apiErr.Detail = parsed.Detail
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse dashboard response: %w", err)
	}
	return nil
}

// MockDashboardAPI implements DashboardAPI for tests.
type MockDashboardAPI struct {
	mock.Mock
}

var _ DashboardAPI = (*MockDashboardAPI)(nil)

func (m *MockDashboardAPI) Health(ctx context.Context) (*api.HealthResponse, error) {
	args := m.Called(ctx)
	resp, _ := args.Get(0).(*api.HealthResponse)
	return resp, args.Error(1)
}

func (m *MockDashboardAPI) Login(ctx context.Context, username, password string) (*auth.Token, error) {
	args := m.Called(ctx, username, password)
	token, _ := args.Get(0).(*auth.Token)
	return token, args.Error(1)
}

func (m *MockDashboardAPI) ListSites(ctx context.Context, filter interfaces.SiteFilter) ([]interfaces.SiteRecord, error) {
	args := m.Called(ctx, filter)
	sites, _ := args.Get(0).([]interfaces.SiteRecord)
	return sites, args.Error(1)
}

func (m *MockDashboardAPI) GetSite(ctx context.Context, domain string) (*interfaces.SiteRecord, error) {
	args := m.Called(ctx, domain)
	site, _ := args.Get(0).(*interfaces.SiteRecord)
	return site, args.Error(1)
}

func (m *MockDashboardAPI) ListServices(ctx context.Context) ([]api.ServiceResponse, error) {
	args := m.Called(ctx)
	services, _ := args.Get(0).([]api.ServiceResponse)
	return services, args.Error(1)
}

func (m *MockDashboardAPI) RestartService(ctx context.Context, name string) (*api.ActionResponse, error) {
	args := m.Called(ctx, name)
	resp, _ := args.Get(0).(*api.ActionResponse)
	return resp, args.Error(1)
}

func (m *MockDashboardAPI) Metrics(ctx context.Context, r interfaces.TimeRange) (*interfaces.SystemSnapshot, error) {
	args := m.Called(ctx, r)
	snap, _ := args.Get(0).(*interfaces.SystemSnapshot)
	return snap, args.Error(1)
}
