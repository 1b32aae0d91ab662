package sitehandler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/wpbryant/WordOps-Dashboard/api"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
	"github.com/wpbryant/WordOps-Dashboard/validation"
)

const maxSearchLength = 253

// Handler serves the site management API on top of a SiteManager.
type Handler struct {
	sites       interfaces.SiteManager
	requireAuth func(http.Handler) http.Handler
	log         *slog.Logger
}

// NewHandler creates a site handler. Every route is wrapped in requireAuth.
func NewHandler(sites interfaces.SiteManager, requireAuth func(http.Handler) http.Handler, log *slog.Logger) *Handler {
	return &Handler{
		sites:       sites,
		requireAuth: requireAuth,
		log:         log,
	}
}

// RegisterRoutes registers the /api/v1/sites endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/api/v1/sites/health-check", h.HandleHealthCheck)
		r.Get("/api/v1/sites", h.HandleList)
		r.Post("/api/v1/sites", h.HandleCreate)
		r.Get("/api/v1/sites/{domain}", h.HandleGet)
		r.Put("/api/v1/sites/{domain}", h.HandleUpdate)
		r.Delete("/api/v1/sites/{domain}", h.HandleDelete)
		r.Get("/api/v1/sites/{domain}/monitoring", h.HandleMonitoring)
		r.Get("/api/v1/sites/{domain}/nginx-config", h.HandleNginxConfig)
		r.Post("/api/v1/sites/{domain}/enable", h.HandleEnable)
		r.Post("/api/v1/sites/{domain}/disable", h.HandleDisable)
	})
}

// HandleHealthCheck reports whether the WordOps CLI answers `wo --version`.
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := api.SiteHealthResponse{Status: "unavailable"}
	version, err := h.sites.Version(r.Context())
	if err != nil {
		h.log.Warn("WordOps unavailable", "err", err)
	} else {
		resp.WordOpsAvailable = true
		resp.Status = "healthy"
		resp.Version = version
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// HandleList lists sites, optionally filtered by ?type=, ?ssl= and ?search=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}
	sites, err := h.sites.ListSitesFiltered(r.Context(), filter)
	if err != nil {
		api.WriteError(w, h.log, fmt.Errorf("failed to fetch sites: %w", err))
		return
	}
	if sites == nil {
		sites = []interfaces.SiteRecord{}
	}
	api.WriteJSON(w, http.StatusOK, sites)
}

func parseFilter(r *http.Request) (interfaces.SiteFilter, error) {
	var filter interfaces.SiteFilter
	q := r.URL.Query()

	if t := q.Get("type"); t != "" {
		filter.Type = interfaces.SiteType(t)
		if !filter.Type.Valid() {
			return filter, &interfaces.ValidationError{Field: "type", Value: t, Reason: "unknown site type"}
		}
	}
	if s := q.Get("ssl"); s != "" {
		tls, err := strconv.ParseBool(s)
		if err != nil {
			return filter, &interfaces.ValidationError{Field: "ssl", Value: s, Reason: "must be true or false"}
		}
		filter.TLS = &tls
	}
	if q.Has("search") {
		search := q.Get("search")
		if len(search) < 1 || len(search) > maxSearchLength {
			return filter, &interfaces.ValidationError{Field: "search", Value: search, Reason: "must be 1-253 characters"}
		}
		filter.Search = search
	}
	return filter, nil
}

// HandleGet returns one site, or 404.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	domain, ok := h.domainParam(w, r)
	if !ok {
		return
	}
	site, err := h.sites.GetSiteInfo(r.Context(), domain)
	if err != nil {
		api.WriteError(w, h.log, fmt.Errorf("failed to fetch site: %w", err))
		return
	}
	if site == nil {
		api.WriteError(w, h.log, api.NewRequestError(http.StatusNotFound, "Site not found: %s", domain))
		return
	}
	api.WriteJSON(w, http.StatusOK, site)
}

// HandleCreate provisions a site and returns it with 201. WordPress admin
// credentials are only ever returned here.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var body api.CreateSiteRequest
	if err := api.DecodeJSON(w, r, &body); err != nil {
		api.WriteError(w, h.log, err)
		return
	}
	req, err := body.Validate()
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}
	site, err := h.sites.CreateSite(r.Context(), req)
	if err != nil {
		api.WriteError(w, h.log, fmt.Errorf("failed to create site: %w", err))
		return
	}
	h.log.Info("Site created", "domain", site.Domain, "type", site.Type)
	api.WriteJSON(w, http.StatusCreated, site)
}

// HandleUpdate applies TLS, cache or PHP version changes.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	domain, ok := h.domainParam(w, r)
	if !ok {
		return
	}
	var body api.UpdateSiteRequest
	if err := api.DecodeJSON(w, r, &body); err != nil {
		api.WriteError(w, h.log, err)
		return
	}
	req, err := body.Validate()
	if err != nil {
		api.WriteError(w, h.log, err)
		return
	}
	site, err := h.sites.UpdateSite(r.Context(), domain, req)
	if err != nil {
		api.WriteError(w, h.log, fmt.Errorf("failed to update site: %w", err))
		return
	}
	h.log.Info("Site updated", "domain", domain)
	api.WriteJSON(w, http.StatusOK, site)
}

// HandleDelete removes a site. The caller must pass ?confirm=true.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	domain, ok := h.domainParam(w, r)
	if !ok {
		return
	}
	if confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm")); !confirm {
		api.WriteError(w, h.log, api.NewRequestError(http.StatusBadRequest, "Deletion requires confirm=true query parameter"))
		return
	}
	if err := h.sites.DeleteSite(r.Context(), domain); err != nil {
		api.WriteError(w, h.log, fmt.Errorf("failed to delete site: %w", err))
		return
	}
	h.log.Info("Site deleted", "domain", domain)
	w.WriteHeader(http.StatusNoContent)
}

// HandleMonitoring reports disk, inode and bandwidth usage of a site.
func (h *Handler) HandleMonitoring(w http.ResponseWriter, r *http.Request) {
	domain, ok := h.domainParam(w, r)
	if !ok {
		return
	}
	stats, err := h.sites.SiteMonitoring(r.Context(), domain)
	if err != nil {
		api.WriteError(w, h.log, fmt.Errorf("failed to fetch site monitoring: %w", err))
		return
	}
	api.WriteJSON(w, http.StatusOK, stats)
}

// HandleNginxConfig returns the raw nginx vhost of a site.
func (h *Handler) HandleNginxConfig(w http.ResponseWriter, r *http.Request) {
	domain, ok := h.domainParam(w, r)
	if !ok {
		return
	}
	config, err := h.sites.NginxConfig(r.Context(), domain)
	if err != nil {
		api.WriteError(w, h.log, fmt.Errorf("failed to fetch nginx configuration: %w", err))
		return
	}
	api.WriteJSON(w, http.StatusOK, api.NginxConfigResponse{Config: config})
}

func (h *Handler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "enable", h.sites.EnableSite)
}

func (h *Handler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "disable", h.sites.DisableSite)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context, string) (*interfaces.SiteRecord, error)) {
	domain, ok := h.domainParam(w, r)
	if !ok {
		return
	}
	if _, err := fn(r.Context(), domain); err != nil {
		api.WriteError(w, h.log, fmt.Errorf("failed to %s site: %w", action, err))
		return
	}
	h.log.Info("Site toggled", "domain", domain, "action", action)
	api.WriteJSON(w, http.StatusOK, api.ActionResponse{
		Success: true,
		Message: fmt.Sprintf("Site %s %sd successfully", domain, action),
	})
}

// domainParam validates the {domain} URL parameter, writing a 400 on failure.
func (h *Handler) domainParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	domain := r.PathValue("domain")
	if err := validation.Domain(domain); err != nil {
		api.WriteError(w, h.log, err)
		return "", false
	}
	return domain, true
}
