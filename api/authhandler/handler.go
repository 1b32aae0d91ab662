package authhandler

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/wpbryant/WordOps-Dashboard/api"
	"github.com/wpbryant/WordOps-Dashboard/auth"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
	"golang.org/x/time/rate"
)

// Authenticator issues and verifies access tokens.
type Authenticator interface {
	interfaces.TokenVerifier
	Login(username, password string) (*auth.Token, error)
}

type contextKey struct{}

// Handler serves the login endpoints and provides the bearer middleware used
// by every other protected route.
type Handler struct {
	auth    Authenticator
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewHandler creates an auth handler. Login attempts are throttled to
// loginRate per second with the given burst; a non-positive rate disables
// throttling.
func NewHandler(a Authenticator, loginRate float64, loginBurst int, log *slog.Logger) *Handler {
	limit := rate.Limit(loginRate)
	if loginRate <= 0 {
		limit = rate.Inf
	}
	return &Handler{
		auth:    a,
		limiter: rate.NewLimiter(limit, loginBurst),
		log:     log,
	}
}

// RegisterRoutes registers:
//   - POST /api/v1/auth/login - exchange credentials for a bearer token
//   - GET  /api/v1/auth/me    - return the authenticated username
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/auth/login", h.HandleLogin)
	r.With(h.RequireAuth).Get("/api/v1/auth/me", h.HandleMe)
}

// HandleLogin accepts either an OAuth2 password form or a JSON LoginRequest.
//
// Status codes:
//   - 200 OK: token issued
//   - 400 Bad Request: malformed body or missing fields
//   - 401 Unauthorized: bad credentials
//   - 429 Too Many Requests: login throttle exceeded
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow() {
		api.WriteError(w, h.log, api.NewRequestError(http.StatusTooManyRequests, "too many login attempts"))
		return
	}

	var req api.LoginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, api.MaxBodySize)
		if err := r.ParseForm(); err != nil {
			api.WriteError(w, h.log, api.NewRequestError(http.StatusBadRequest, "invalid form: %v", err))
			return
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	default:
		if err := api.DecodeJSON(w, r, &req); err != nil {
			api.WriteError(w, h.log, err)
			return
		}
	}
	if req.Username == "" || req.Password == "" {
		api.WriteError(w, h.log, api.NewRequestError(http.StatusBadRequest, "username and password are required"))
		return
	}

	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.log.Warn("Rejected login", "username", req.Username, "remote", r.RemoteAddr)
			unauthorized(w, h.log, err)
			return
		}
		api.WriteError(w, h.log, err)
		return
	}
	h.log.Info("User logged in", "username", req.Username)
	api.WriteJSON(w, http.StatusOK, token)
}

// HandleMe returns the username bound to the request token.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, api.UserResponse{Username: UsernameFrom(r.Context())})
}

// RequireAuth rejects requests without a valid "Authorization: Bearer" header.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return RequireAuth(h.auth, h.log)(next)
}

// RequireAuth builds bearer-token middleware around any verifier.
func RequireAuth(v interfaces.TokenVerifier, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				unauthorized(w, log, auth.ErrInvalidToken)
				return
			}
			username, err := v.Verify(token)
			if err != nil {
				unauthorized(w, log, auth.ErrInvalidToken)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, username)))
		})
	}
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// UsernameFrom returns the username stored by RequireAuth, or "".
func UsernameFrom(ctx context.Context) string {
	username, _ := ctx.Value(contextKey{}).(string)
	return username
}

func unauthorized(w http.ResponseWriter, log *slog.Logger, err error) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	api.WriteError(w, log, &api.RequestError{StatusCode: http.StatusUnauthorized, Err: err})
}
