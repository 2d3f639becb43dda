package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kigalimart/storefront/internal/catalog"
)

type cartLineReq struct {
	ProductID   string `json:"product_id"`
	VariationID string `json:"variation_id"`
	Qty         int    `json:"qty"`
}

func (c cartLineReq) ref() catalog.LineRef {
	return catalog.LineRef{ProductID: c.ProductID, VariationID: c.VariationID}
}

func (s *Server) mountCart(r chi.Router) {
	r.Get("/cart", s.viewCart)
	r.Delete("/cart", s.clearCart)
	r.Post("/cart/items", s.addToCart)
	r.Put("/cart/items", s.setCartQty)
	r.Delete("/cart/items", s.removeFromCart)
	r.Post("/checkout", s.checkout)
}

func (s *Server) viewCart(w http.ResponseWriter, r *http.Request) {
	c, err := s.Cart.View(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	var in cartLineReq
	if err := decode(r, &in); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	c, err := s.Cart.Add(r.Context(), identity(r).UserID, in.ref(), in.Qty)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) setCartQty(w http.ResponseWriter, r *http.Request) {
	var in cartLineReq
	if err := decode(r, &in); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	c, err := s.Cart.SetQty(r.Context(), identity(r).UserID, in.ref(), in.Qty)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) removeFromCart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := catalog.LineRef{ProductID: q.Get("product_id"), VariationID: q.Get("variation_id")}
	c, err := s.Cart.Remove(r.Context(), identity(r).UserID, ref)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := s.Cart.Clear(r.Context(), identity(r).UserID); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
