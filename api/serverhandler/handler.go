package serverhandler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/wpbryant/WordOps-Dashboard/api"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
	"github.com/wpbryant/WordOps-Dashboard/logs"
	"github.com/wpbryant/WordOps-Dashboard/netdata"
	"github.com/wpbryant/WordOps-Dashboard/validation"
)

// LogStreamer is the subscription side of the log relay.
type LogStreamer interface {
	Subscribe(topic string) (*logs.Subscriber, error)
	Unsubscribe(sub *logs.Subscriber)
}

// Deps are the components behind the /api/v1/server endpoints.
type Deps struct {
	Services interfaces.ServiceManager
	Metrics  interfaces.MetricsSource
	SysInfo  interfaces.SystemInfoProvider
	Logs     interfaces.LogSource
	Stream   LogStreamer
	// Verifier checks the ?token= of websocket requests, which cannot carry
	// an Authorization header from a browser.
	Verifier interfaces.TokenVerifier
	// AllowedOrigins restricts websocket upgrades; empty or "*" allows any.
	AllowedOrigins []string
}

// Handler serves host metrics, service control and log endpoints.
type Handler struct {
	deps        Deps
	requireAuth func(http.Handler) http.Handler
	log         *slog.Logger
}

func NewHandler(deps Deps, requireAuth func(http.Handler) http.Handler, log *slog.Logger) *Handler {
	return &Handler{
		deps:        deps,
		requireAuth: requireAuth,
		log:         log,
	}
}

// RegisterRoutes registers the /api/v1/server endpoints. The log stream
// authenticates itself and is registered outside the bearer middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/api/v1/server/metrics", h.HandleMetrics)
		r.Get("/api/v1/server/info", h.HandleInfo)
		r.Get("/api/v1/server/overview", h.HandleOverview)
		r.Get("/api/v1/server/services", h.HandleServices)
		r.Get("/api/v1/server/services/{name}", h.HandleService)
		r.Post("/api/v1/server/services/{name}/restart", h.HandleRestart)
		r.Post("/api/v1/server/services/{name}/start", h.HandleStart)
		r.Post("/api/v1/server/services/{name}/stop", h.HandleStop)
		r.Get("/api/v1/server/stack-services", h.HandleStackServices)
		r.Get("/api/v1/server/logs/{type}", h.HandleLogs)
	})
	r.Get("/api/v1/server/logs/{type}/stream", h.HandleLogStream)
}

// HandleMetrics returns the five dashboard series for ?range= (default 5m).
//
// Status codes:
//   - 200 OK
//   - 400 Bad Request: unknown range
//   - 503 Service Unavailable: monitoring API unreachable or malformed
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	tr, err := netdata.ParseTimeRange(r.URL.Query().Get("range"))
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}
	snapshot, err := h.deps.Metrics.GetSnapshot(r.Context(), tr)
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, snapshot)
}

// HandleInfo never fails; each probe degrades to its own default.
func (h *Handler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, h.deps.SysInfo.SystemInfo(r.Context()))
}

func (h *Handler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, h.deps.SysInfo.Overview(r.Context()))
}

// HandleServices lists every installed allow-listed service.
func (h *Handler) HandleServices(w http.ResponseWriter, r *http.Request) {
	statuses := h.deps.Services.GetAllStatuses(r.Context())
	resp := make([]api.ServiceResponse, 0, len(statuses))
	for _, s := range statuses {
		resp = append(resp, api.NewServiceResponse(s))
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleService(w http.ResponseWriter, r *http.Request) {
	name, ok := h.serviceParam(w, r)
	if !ok {
		return
	}
	status, err := h.deps.Services.GetStatus(r.Context(), name)
	if err != nil {
		api.WriteError(w, h.log, fmt.Errorf("failed to get service status: %w", err))
		return
	}
	if status == nil {
		api.WriteError(w, h.log, api.NewRequestError(http.StatusNotFound, "Service not installed: %s", name))
		return
	}
	api.WriteJSON(w, http.StatusOK, api.NewServiceResponse(*status))
}

func (h *Handler) HandleRestart(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, "restart", "restarted", h.deps.Services.Restart)
}

func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, "start", "started", h.deps.Services.Start)
}

func (h *Handler) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, "stop", "stopped", h.deps.Services.Stop)
}

func (h *Handler) control(w http.ResponseWriter, r *http.Request, action, past string, fn func(context.Context, string) error) {
	name, ok := h.serviceParam(w, r)
	if !ok {
		return
	}
	if err := fn(r.Context(), name); err != nil {
		api.WriteError(w, h.log, fmt.Errorf("failed to %s %s: %w", action, name, err))
		return
	}
	h.log.Info("Service state changed", "service", name, "action", action)
	api.WriteJSON(w, http.StatusOK, api.ActionResponse{
		Success: true,
		Message: fmt.Sprintf("Service %s %s successfully", name, past),
	})
}

// HandleStackServices returns the enriched view of the known stack services.
func (h *Handler) HandleStackServices(w http.ResponseWriter, r *http.Request) {
	infos := h.deps.Services.StackServices(r.Context())
	if infos == nil {
		infos = []interfaces.StackServiceInfo{}
	}
	api.WriteJSON(w, http.StatusOK, infos)
}

// HandleLogs returns the last ?lines= lines (default 50, clamped to 1-500)
// of an allow-listed log file.
func (h *Handler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	logType := r.PathValue("type")
	n := logs.DefaultLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			api.WriteError(w, h.log, &interfaces.ValidationError{Field: "lines", Value: raw, Reason: "must be an integer"})
			return
		}
		n = parsed
	}
	lines, err := h.deps.Logs.Tail(logType, n)
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.LogsResponse{LogType: logType, Lines: lines, Count: len(lines)})
}

func (h *Handler) serviceParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := r.PathValue("name")
	if err := validation.Service(name); err != nil {
		api.WriteError(w, h.log, err)
		return "", false
	}
	return name, true
}
