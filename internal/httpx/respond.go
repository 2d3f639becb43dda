package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kigalimart/storefront/internal/auth"
	"github.com/kigalimart/storefront/internal/cart"
	"github.com/kigalimart/storefront/internal/catalog"
	"github.com/kigalimart/storefront/internal/notifications"
	"github.com/kigalimart/storefront/internal/orders"
	"github.com/kigalimart/storefront/internal/postgres"
	"github.com/kigalimart/storefront/internal/riders"
	"github.com/kigalimart/storefront/internal/settings"
	"github.com/kigalimart/storefront/internal/users"
)

var (
	errUnauthorized = errors.New("authentication required")
	errForbidden    = errors.New("forbidden")
	errBadJSON      = errors.New("invalid json")
	errMaintenance  = errors.New("store is under maintenance")
	errBadID        = errors.New("invalid identifier")
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

var errStatus = []struct {
	code int
	errs []error
}{
	{http.StatusUnauthorized, []error{errUnauthorized, auth.ErrInvalidToken, users.ErrInvalidCredentials}},
	{http.StatusForbidden, []error{errForbidden}},
	{http.StatusNotFound, []error{
		users.ErrNotFound, catalog.ErrNotFound, orders.ErrNotFound, riders.ErrNotFound,
		riders.ErrUnknownUser, notifications.ErrNotFound, settings.ErrUnknownSetting,
	}},
	{http.StatusBadRequest, []error{
		errBadJSON, users.ErrInvalidInput, catalog.ErrInvalidInput, orders.ErrInvalidInput,
		riders.ErrInvalidInput, notifications.ErrInvalidInput, cart.ErrInvalidQty,
	}},
	{http.StatusConflict, []error{
		users.ErrEmailTaken, catalog.ErrDuplicateSKU, orders.ErrInvalidTransition, orders.ErrConflict,
		riders.ErrRiderExists, riders.ErrAlreadyAssigned, riders.ErrRiderBusy, riders.ErrActiveWork,
		riders.ErrOrderNotReady, riders.ErrConflict,
	}},
	{http.StatusUnprocessableEntity, []error{
		orders.ErrInsufficientStock, orders.ErrUnavailable, orders.ErrAmountMismatch,
		cart.ErrInsufficientStock, cart.ErrUnavailable, cart.ErrEmpty,
	}},
	{http.StatusPaymentRequired, []error{orders.ErrPaymentRequired}},
	{http.StatusServiceUnavailable, []error{orders.ErrStoreClosed, errMaintenance}},
}

func codeFor(err error) int {
	if postgres.IsInvalidText(err) {
		return http.StatusBadRequest
	}
	for _, c := range errStatus {
		for _, target := range c.errs {
			if errors.Is(err, target) {
				return c.code
			}
		}
	}
	return http.StatusInternalServerError
}

// writeError maps domain errors to a status. Unmapped errors are logged
// and hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	code := codeFor(err)
	msg := err.Error()
	if postgres.IsInvalidText(err) {
		msg = errBadID.Error()
	}
	if code == http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	body := map[string]any{"error": msg}
	var short *orders.ShortageError
	if errors.As(err, &short) {
		body["shortages"] = short.Details
	}
	writeJSON(w, code, body)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errBadJSON
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
