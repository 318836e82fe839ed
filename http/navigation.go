package http

import (
	"encoding/json"
	"net/http"

	"portalguard"
)

// NavigationResponse is the body served by NavigationHandler.
type NavigationResponse struct {
	RoleKey      string                       `json:"role_key"`
	DefaultRoute string                       `json:"default_route"`
	Items        []portalguard.NavigationItem `json:"items"`
}

// NavigationHandler renders the menu of the requesting principal as JSON.
func (m *Middleware) NavigationHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := m.source.Principal(r)
		if !ok {
			defaultUnauthorizedHandler(w, r)
			return
		}
		eval := m.guard.Evaluator()
		resp := NavigationResponse{
			RoleKey:      p.RoleKey,
			DefaultRoute: eval.DefaultRoute(p),
			Items:        eval.Navigation(p),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
}
