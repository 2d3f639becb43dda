package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kigalimart/storefront/internal/orders"
)

const headerIdempotencyKey = "Idempotency-Key"

type placeResp struct {
	Order      orders.Order `json:"order"`
	Idempotent bool         `json:"idempotent"`
}

func writePlaced(w http.ResponseWriter, o orders.Order, existed bool) {
	code := http.StatusCreated
	if existed {
		code = http.StatusOK
	}
	writeJSON(w, code, placeResp{Order: o, Idempotent: existed})
}

func (s *Server) mountOrders(r chi.Router) {
	r.Post("/orders", s.placeOrder)
	r.Get("/orders", s.myOrders)
	r.Get("/orders/{id}", s.getOrder)
	r.Get("/orders/{id}/status", s.orderStatus)
	r.Post("/orders/{id}/cancel", s.cancelOrder)
	r.Post("/orders/{id}/payment", s.linkPayment)
	r.Post("/orders/{id}/items/{itemID}/refund", s.requestRefund)
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	var in orders.PlaceInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	if in.ExternalID == "" {
		in.ExternalID = r.Header.Get(headerIdempotencyKey)
	}
	o, existed, err := s.Orders.Place(r.Context(), identity(r).UserID, in)
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writePlaced(w, o, existed)
}

// checkout turns the caller's cart into an order. Only the delivery
// details come from the body.
func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Address string `json:"address"`
		Phone   string `json:"phone"`
		Notes   string `json:"notes"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	o, existed, err := s.Orders.Checkout(r.Context(), identity(r).UserID, r.Header.Get(headerIdempotencyKey),
		orders.PlaceInput{Address: in.Address, Phone: in.Phone, Notes: in.Notes})
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writePlaced(w, o, existed)
}

func (s *Server) myOrders(w http.ResponseWriter, r *http.Request) {
	list, err := s.Orders.List(r.Context(), orders.ListFilter{
		UserID: identity(r).UserID,
		Status: orders.Status(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit", 20),
		Offset: queryInt(r, "offset", 0),
	})
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.Orders.Get(r.Context(), chi.URLParam(r, "id"), identity(r))
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) orderStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.Orders.Status(r.Context(), chi.URLParam(r, "id"), identity(r))
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.Orders.Cancel(r.Context(), chi.URLParam(r, "id"), identity(r))
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) linkPayment(w http.ResponseWriter, r *http.Request) {
	var in orders.PaymentInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	o, err := s.Orders.LinkPayment(r.Context(), chi.URLParam(r, "id"), in, identity(r))
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) requestRefund(w http.ResponseWriter, r *http.Request) {
	var in orders.RefundRequest
	if err := decode(r, &in); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	o, err := s.Orders.RequestRefund(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), in, identity(r))
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) mountAdminOrders(r chi.Router) {
	r.Get("/orders", s.adminOrders)
	r.Get("/orders/{id}", s.getOrder)
	r.Post("/orders/{id}/status", s.advanceOrder)
	r.Post("/orders/{id}/payment", s.linkPayment)
	r.Post("/orders/{id}/items/{itemID}/refund/decision", s.decideRefund)
	r.Post("/orders/{id}/items/{itemID}/refund/complete", s.completeRefund)
}

func (s *Server) adminOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.Orders.List(r.Context(), orders.ListFilter{
		UserID: q.Get("user_id"),
		Status: orders.Status(q.Get("status")),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	})
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) advanceOrder(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status orders.Status `json:"status"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	if !in.Status.Valid() {
		writeError(w, r, s.Log, orders.ErrInvalidInput)
		return
	}
	o, err := s.Orders.Advance(r.Context(), chi.URLParam(r, "id"), in.Status, identity(r))
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) decideRefund(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Approve bool `json:"approve"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	o, err := s.Orders.DecideRefund(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), in.Approve, identity(r))
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) completeRefund(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Restock bool `json:"restock"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	o, err := s.Orders.CompleteRefund(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), in.Restock, identity(r))
	if err != nil {
		writeError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
