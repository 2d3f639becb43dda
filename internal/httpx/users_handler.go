package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kigalimart/storefront/internal/users"
)

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in users.RegisterInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	u, err := s.Users.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in loginReq
	if err := decode(r, &in); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	sess, err := s.Users.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, err := s.Users.Get(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) updateMe(w http.ResponseWriter, r *http.Request) {
	var in users.ProfileInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	u, err := s.Users.UpdateProfile(r.Context(), identity(r).UserID, in)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) mountAdminUsers(r chi.Router) {
	r.Get("/users", s.listUsers)
	r.Post("/users/{id}/role", s.setRole)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := s.Users.List(r.Context(), users.ListFilter{
		Role:   r.URL.Query().Get("role"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	})
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) setRole(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Role string `json:"role"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.Users.SetRole(r.Context(), id, in.Role); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "role": in.Role})
}
