package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kigalimart/storefront/internal/catalog"
)

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ps, err := s.Catalog.List(r.Context(), catalog.ListFilter{
		Category:   q.Get("category"),
		Search:     q.Get("q"),
		ActiveOnly: true,
		Limit:      queryInt(r, "limit", 24),
		Offset:     queryInt(r, "offset", 0),
	})
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.Catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	// inactive products are hidden from the storefront
	if !p.Active {
		writeError(w, r, s.Log, catalog.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) mountAdminCatalog(r chi.Router) {
	r.Get("/products", s.adminListProducts)
	r.Post("/products", s.createProduct)
	r.Post("/products/bulk", s.bulkUpload)
	r.Get("/products/{id}", s.adminGetProduct)
	r.Put("/products/{id}", s.updateProduct)
	r.Patch("/products/{id}/active", s.setProductActive)
	r.Post("/products/{id}/images", s.addImage)
}

func (s *Server) adminListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ps, err := s.Catalog.List(r.Context(), catalog.ListFilter{
		Category: q.Get("category"),
		Search:   q.Get("q"),
		Limit:    queryInt(r, "limit", 50),
		Offset:   queryInt(r, "offset", 0),
	})
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (s *Server) adminGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.Catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if err := decode(r, &p); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	out, err := s.Catalog.Create(r.Context(), p)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if err := decode(r, &p); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	p.ID = chi.URLParam(r, "id")
	out, err := s.Catalog.Update(r.Context(), p)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) bulkUpload(w http.ResponseWriter, r *http.Request) {
	var rows []catalog.Product
	if err := decode(r, &rows); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	res, err := s.Catalog.BulkUpload(r.Context(), rows)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	code := http.StatusOK
	for _, x := range res {
		if x.Error != "" {
			code = http.StatusMultiStatus
			break
		}
	}
	writeJSON(w, code, res)
}

func (s *Server) setProductActive(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Active bool `json:"active"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.Catalog.SetActive(r.Context(), id, in.Active); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "active": in.Active})
}

func (s *Server) addImage(w http.ResponseWriter, r *http.Request) {
	var in struct {
		URL      string `json:"url"`
		Position int    `json:"position"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	im, err := s.Catalog.AddImage(r.Context(), chi.URLParam(r, "id"), in.URL, in.Position)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, im)
}
