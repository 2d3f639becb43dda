package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kigalimart/storefront/internal/riders"
)

func (s *Server) mountAdminRiders(r chi.Router) {
	r.Get("/riders", s.listRiders)
	r.Post("/riders", s.createRider)
	r.Get("/assignments", s.listAssignments)
	r.Post("/assignments", s.assign)
	r.Post("/assignments/{id}/cancel", s.unassign)
	r.Get("/dashboard", s.dashboard)
}

func (s *Server) mountRider(r chi.Router) {
	r.Route("/rider", func(r chi.Router) {
		r.Get("/me", s.riderMe)
		r.Get("/work", s.currentWork)
		r.Get("/history", s.riderHistory)
		r.Post("/availability", s.setAvailability)
		r.Post("/assignments/{id}/accept", s.acceptAssignment)
		r.Post("/assignments/{id}/reject", s.rejectAssignment)
		r.Post("/assignments/{id}/complete", s.completeAssignment)
	})
}

func (s *Server) listRiders(w http.ResponseWriter, r *http.Request) {
	list, err := s.Riders.ListRiders(r.Context(), riders.RiderStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	if list == nil {
		list = []riders.Rider{}
	}
	writeJSON(w, http.StatusOK, list)
}

// createRider promotes the user to rider. Tokens already issued still carry
// the old role until the user logs in again.
func (s *Server) createRider(w http.ResponseWriter, r *http.Request) {
	var in riders.RiderInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	rd, err := s.Riders.CreateRider(r.Context(), in)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, rd)
}

func (s *Server) listAssignments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.Riders.ListAssignments(r.Context(), riders.AssignmentFilter{
		RiderID: q.Get("rider_id"),
		OrderID: q.Get("order_id"),
		Status:  riders.AssignmentStatus(q.Get("status")),
		Limit:   queryInt(r, "limit", 50),
	})
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) assign(w http.ResponseWriter, r *http.Request) {
	var in riders.AssignInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	a, err := s.Riders.Assign(r.Context(), in, identity(r))
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) unassign(w http.ResponseWriter, r *http.Request) {
	a, err := s.Riders.Unassign(r.Context(), chi.URLParam(r, "id"), identity(r))
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.Riders.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) riderMe(w http.ResponseWriter, r *http.Request) {
	rd, err := s.Riders.Me(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rd)
}

func (s *Server) currentWork(w http.ResponseWriter, r *http.Request) {
	work, err := s.Riders.CurrentWork(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, work)
}

func (s *Server) riderHistory(w http.ResponseWriter, r *http.Request) {
	list, err := s.Riders.History(r.Context(), identity(r).UserID, queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) setAvailability(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Available bool `json:"available"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	rd, err := s.Riders.SetAvailability(r.Context(), identity(r).UserID, in.Available)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rd)
}

func (s *Server) acceptAssignment(w http.ResponseWriter, r *http.Request) {
	a, err := s.Riders.Accept(r.Context(), chi.URLParam(r, "id"), identity(r).UserID)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) rejectAssignment(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := decode(r, &in); err != nil {
			writeError(w, r, s.Log, err)
			return
		}
	}
	a, err := s.Riders.Reject(r.Context(), chi.URLParam(r, "id"), identity(r).UserID, in.Reason)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) completeAssignment(w http.ResponseWriter, r *http.Request) {
	a, err := s.Riders.Complete(r.Context(), chi.URLParam(r, "id"), identity(r).UserID)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
