package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kigalimart/storefront/internal/auth"
	"github.com/kigalimart/storefront/internal/settings"
)

func (s *Server) mountAdminSettings(r chi.Router) {
	r.Get("/settings", s.listSettings)
	r.Post("/settings/{key}/toggle", s.toggleSetting)
	r.Put("/settings/{key}", s.putSetting)
}

func (s *Server) listSettings(w http.ResponseWriter, r *http.Request) {
	list, err := s.Settings.List(r.Context())
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) toggleSetting(w http.ResponseWriter, r *http.Request) {
	st, err := s.Settings.Toggle(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	s.Log.InfoContext(r.Context(), "setting toggled", "key", st.Key, "enabled", st.Enabled, "actor_id", identity(r).UserID)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) putSetting(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Enabled bool `json:"enabled"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	st, err := s.Settings.Set(r.Context(), chi.URLParam(r, "key"), in.Enabled)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// maintenance refuses writes from non-admins while maintenance mode is on.
func (s *Server) maintenance(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || identity(r).Role == auth.RoleAdmin {
			next.ServeHTTP(w, r)
			return
		}
		on, err := s.Settings.Enabled(r.Context(), settings.MaintenanceMode)
		if err != nil {
			s.Log.WarnContext(r.Context(), "maintenance check failed", "error", err)
		}
		if on {
			writeError(w, r, s.Log, errMaintenance)
			return
		}
		next.ServeHTTP(w, r)
	})
}
