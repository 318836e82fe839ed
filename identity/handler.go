package identity

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"portalguard"
)

// HandlerOption configures the development handler.
type HandlerOption func(*handler)

// WithHandlerLogger sets the logger request failures are written to.
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *handler) {
		if l != nil {
			h.logger = l
		}
	}
}

type handler struct {
	api    portalguard.IdentityAPI
	logger *slog.Logger
}

// NewHandler serves the identity REST endpoints over api. It is meant for
// development and tests; pair it with memory.Service.
func NewHandler(api portalguard.IdentityAPI, opts ...HandlerOption) http.Handler {
	h := &handler{api: api, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.login)
		r.Get("/me", h.me)
		r.Post("/refresh", h.refresh)
		r.Post("/logout", h.logout)
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return r
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.api.Login(r.Context(), portalguard.PasswordCredentials{Username: req.Username, Password: req.Password})
	if err != nil {
		h.fail(w, r, opLogin, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	token, ok := portalguard.ParseBearer(r.Header.Get("Authorization"))
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	u, err := h.api.CurrentUser(r.Context(), token)
	if err != nil {
		h.fail(w, r, opMe, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}
	pair, err := h.api.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, opRefresh, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := portalguard.ParseBearer(r.Header.Get("Authorization"))
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	if err := h.api.Logout(r.Context(), token); err != nil {
		h.fail(w, r, opLogout, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("identity request failed", "operation", op, "request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	writeError(w, status, err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, portalguard.ErrInvalidCredentials),
		errors.Is(err, portalguard.ErrRefreshFailed),
		errors.Is(err, portalguard.ErrTokenRejected):
		return http.StatusUnauthorized
	case errors.Is(err, portalguard.ErrNetwork):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: http.StatusText(status), Message: message})
}
