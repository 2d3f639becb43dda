package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kigalimart/storefront/internal/auth"
	"github.com/kigalimart/storefront/internal/cart"
	"github.com/kigalimart/storefront/internal/events"
	"github.com/kigalimart/storefront/internal/settings"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("order changed concurrently")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnavailable       = errors.New("product unavailable")
	ErrInvalidInput      = errors.New("invalid order input")
	ErrStoreClosed       = errors.New("store is closed")
	ErrPaymentRequired   = errors.New("payment required")
	ErrAmountMismatch    = errors.New("payment amount does not match order total")
)

type Store interface {
	Create(ctx context.Context, o Order, lines []LineInput, fee func(int64) int64) (Order, bool, error)
	Get(ctx context.Context, id string) (Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, from, to Status, actorID string, restock bool) error
	LinkPayment(ctx context.Context, id, provider, ref string) error
	SetItemRefund(ctx context.Context, orderID, itemID string, from, to RefundState, qty int, reason string) error
	CompleteItemRefund(ctx context.Context, orderID, itemID, actorID string, restock bool) (int64, bool, error)
}

// Cache holds the hot order status and the external-id shortcut.
type Cache interface {
	Status(ctx context.Context, orderID string) (CachedStatus, bool, error)
	PutStatus(ctx context.Context, orderID string, st CachedStatus) error
	Invalidate(ctx context.Context, orderID string) error
	RememberExternalID(ctx context.Context, externalID, orderID string) error
	LookupExternalID(ctx context.Context, externalID string) (string, bool, error)
}

type Toggles interface {
	Enabled(ctx context.Context, key string) (bool, error)
}

type CartSource interface {
	View(ctx context.Context, userID string) (cart.Cart, error)
	Clear(ctx context.Context, userID string) error
}

// Releaser frees dispatch work still attached to an order.
type Releaser interface {
	ReleaseOrder(ctx context.Context, orderID, actorID string) error
}

type Service struct {
	Store    Store
	Cache    Cache
	Events   events.Emitter
	Settings Toggles
	Cart     CartSource
	Dispatch Releaser
	Fees     cart.Fees
	Log      *slog.Logger
}

func newNumber(now time.Time) string {
	return fmt.Sprintf("KM-%s-%s", now.Format("20060102"), strings.ToUpper(uuid.NewString()[:6]))
}

// Place creates an order from explicit lines. Calling it again with the
// same ExternalID returns the first order.
func (s *Service) Place(ctx context.Context, userID string, in PlaceInput) (Order, bool, error) {
	if strings.TrimSpace(in.ExternalID) == "" {
		return Order{}, false, fmt.Errorf("%w: external_id is required", ErrInvalidInput)
	}
	if id, ok, err := s.Cache.LookupExternalID(ctx, in.ExternalID); err == nil && ok {
		if o, err := s.Store.Get(ctx, id); err == nil && o.UserID == userID {
			return o, true, nil
		}
	}

	lines, err := MergeLines(in.Items)
	if err != nil {
		return Order{}, false, err
	}
	if err := s.requireOpen(ctx); err != nil {
		return Order{}, false, err
	}

	now := time.Now().UTC()
	o := Order{
		ID:            uuid.NewString(),
		Number:        newNumber(now),
		ExternalID:    in.ExternalID,
		UserID:        userID,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		RefundStatus:  RefundSummaryNone,
		Address:       strings.TrimSpace(in.Address),
		Phone:         strings.TrimSpace(in.Phone),
		Notes:         strings.TrimSpace(in.Notes),
	}
	created, existed, err := s.Store.Create(ctx, o, lines, s.Fees.For)
	if err != nil {
		return Order{}, false, err
	}
	if created.UserID != userID {
		// external id reused by another customer
		return Order{}, false, fmt.Errorf("%w: external_id already used", ErrConflict)
	}

	if err := s.Cache.RememberExternalID(ctx, created.ExternalID, created.ID); err != nil {
		s.Log.Warn("idempotency cache write failed", "order_id", created.ID, "error", err)
	}
	if existed {
		return created, true, nil
	}
	s.cacheStatus(ctx, created)

	lineEvents := make([]events.OrderLine, 0, len(created.Items))
	for _, it := range created.Items {
		lineEvents = append(lineEvents, events.OrderLine{ProductID: it.ProductID, VariationID: it.VariationID, Qty: it.Qty, UnitPrice: it.UnitPrice})
	}
	s.emit(ctx, events.TopicOrders, events.EventOrderCreated, created.ID, events.OrderCreatedPayload{
		OrderID: created.ID, Number: created.Number, UserID: created.UserID, Items: lineEvents, Total: created.Total,
	})
	return created, false, nil
}

// Checkout turns the caller's cart into an order and empties the cart.
func (s *Service) Checkout(ctx context.Context, userID, externalID string, in PlaceInput) (Order, bool, error) {
	c, err := s.Cart.View(ctx, userID)
	if err != nil {
		return Order{}, false, err
	}
	if len(c.Lines) == 0 {
		return Order{}, false, cart.ErrEmpty
	}
	if len(c.Unavailable) > 0 {
		return Order{}, false, fmt.Errorf("%w: %d cart line(s) no longer sold", ErrUnavailable, len(c.Unavailable))
	}
	if externalID == "" {
		externalID = "checkout:" + uuid.NewString()
	}
	in.ExternalID = externalID
	in.Items = make([]LineInput, 0, len(c.Lines))
	for _, l := range c.Lines {
		in.Items = append(in.Items, LineInput{ProductID: l.ProductID, VariationID: l.VariationID, Qty: l.Qty})
	}
	o, existed, err := s.Place(ctx, userID, in)
	if err != nil {
		return Order{}, false, err
	}
	if err := s.Cart.Clear(ctx, userID); err != nil {
		s.Log.Warn("cart clear after checkout failed", "user_id", userID, "error", err)
	}
	return o, existed, nil
}

func (s *Service) requireOpen(ctx context.Context) error {
	open, err := s.Settings.Enabled(ctx, settings.StoreOpen)
	if err != nil {
		return err
	}
	if !open {
		return ErrStoreClosed
	}
	return nil
}

// load reads an order; ids that are not uuids cannot exist.
func (s *Service) load(ctx context.Context, id string) (Order, error) {
	if uuid.Validate(id) != nil {
		return Order{}, ErrNotFound
	}
	return s.Store.Get(ctx, id)
}

// Get returns the order if the caller may see it.
func (s *Service) Get(ctx context.Context, id string, actor auth.Identity) (Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !actor.IsAdmin() && o.UserID != actor.UserID {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.Store.List(ctx, f)
}

// Status serves from the cache and falls back to the store.
func (s *Service) Status(ctx context.Context, id string, actor auth.Identity) (CachedStatus, error) {
	if st, ok, err := s.Cache.Status(ctx, id); err == nil && ok && st.UserID != "" {
		if !actor.IsAdmin() && st.UserID != actor.UserID {
			return CachedStatus{}, ErrNotFound
		}
		return st, nil
	}
	o, err := s.Get(ctx, id, actor)
	if err != nil {
		return CachedStatus{}, err
	}
	s.cacheStatus(ctx, o)
	return statusOf(o), nil
}

func statusOf(o Order) CachedStatus {
	return CachedStatus{UserID: o.UserID, Status: o.Status, PaymentStatus: o.PaymentStatus, RefundStatus: o.RefundStatus, UpdatedAt: o.UpdatedAt}
}

// Advance performs a forward lifecycle move. Cancellation goes through
// Cancel and refunds through the refund flow.
func (s *Service) Advance(ctx context.Context, id string, to Status, actor auth.Identity) (Order, error) {
	if to == StatusCancelled {
		return s.Cancel(ctx, id, actor)
	}
	if to == StatusRefunded {
		return Order{}, fmt.Errorf("%w: refunds complete through the refund flow", ErrInvalidTransition)
	}
	o, err := s.load(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !CanTransition(o.Status, to) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	if to == StatusProcessing && o.PaymentStatus != PaymentPaid {
		cod, err := s.Settings.Enabled(ctx, settings.CashOnDelivery)
		if err != nil {
			return Order{}, err
		}
		if !cod {
			return Order{}, ErrPaymentRequired
		}
	}
	return s.transition(ctx, o, to, actor.UserID, false)
}

// Cancel: customers may cancel their own pending orders, admins any
// pending or processing order. Stock is returned and any delivery offer
// on the order is withdrawn.
func (s *Service) Cancel(ctx context.Context, id string, actor auth.Identity) (Order, error) {
	o, err := s.Get(ctx, id, actor)
	if err != nil {
		return Order{}, err
	}
	if !actor.IsAdmin() && o.Status != StatusPending {
		return Order{}, fmt.Errorf("%w: only pending orders can be cancelled", ErrInvalidTransition)
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, StatusCancelled)
	}
	cancelled, err := s.transition(ctx, o, StatusCancelled, actor.UserID, true)
	if err != nil {
		return Order{}, err
	}
	if s.Dispatch != nil {
		if err := s.Dispatch.ReleaseOrder(ctx, o.ID, actor.UserID); err != nil {
			s.Log.Error("release dispatch failed", "order_id", o.ID, "error", err)
		}
	}
	return cancelled, nil
}

func (s *Service) transition(ctx context.Context, o Order, to Status, actorID string, restock bool) (Order, error) {
	if err := s.Store.UpdateStatus(ctx, o.ID, o.Status, to, actorID, restock); err != nil {
		return Order{}, err
	}
	from := o.Status
	s.invalidate(ctx, o.ID)
	s.emit(ctx, events.TopicOrders, events.EventOrderStatusChanged, o.ID, events.OrderStatusChangedPayload{
		OrderID: o.ID, Number: o.Number, UserID: o.UserID, From: string(from), To: string(to), ActorID: actorID,
	})
	return s.Store.Get(ctx, o.ID)
}

type PaymentInput struct {
	Provider string `json:"provider"`
	Ref      string `json:"ref"`
	Amount   int64  `json:"amount"`
}

// LinkPayment records an external payment reference. Repeating the same
// reference is a no-op; a different reference on a paid order conflicts.
func (s *Service) LinkPayment(ctx context.Context, id string, in PaymentInput, actor auth.Identity) (Order, error) {
	in.Provider = strings.TrimSpace(in.Provider)
	in.Ref = strings.TrimSpace(in.Ref)
	if in.Provider == "" || in.Ref == "" {
		return Order{}, fmt.Errorf("%w: provider and ref are required", ErrInvalidInput)
	}
	o, err := s.Get(ctx, id, actor)
	if err != nil {
		return Order{}, err
	}
	if o.PaymentStatus != PaymentUnpaid {
		if o.PaymentRef == in.Ref && o.PaymentProvider == in.Provider {
			return o, nil
		}
		return Order{}, fmt.Errorf("%w: order already has a payment", ErrConflict)
	}
	if o.Status == StatusCancelled || o.Status == StatusRefunded {
		return Order{}, fmt.Errorf("%w: order is %s", ErrInvalidTransition, o.Status)
	}
	if in.Amount != o.Total {
		return Order{}, ErrAmountMismatch
	}
	if err := s.Store.LinkPayment(ctx, o.ID, in.Provider, in.Ref); err != nil {
		return Order{}, err
	}
	s.invalidate(ctx, o.ID)
	s.emit(ctx, events.TopicPayments, events.EventPaymentLinked, o.ID, events.PaymentLinkedPayload{
		OrderID: o.ID, Number: o.Number, UserID: o.UserID, Provider: in.Provider, Ref: in.Ref, Amount: in.Amount,
	})
	return s.Store.Get(ctx, o.ID)
}

func findItem(o Order, itemID string) (Item, bool) {
	for _, it := range o.Items {
		if it.ID == itemID {
			return it, true
		}
	}
	return Item{}, false
}

type RefundRequest struct {
	Qty    int    `json:"qty"`
	Reason string `json:"reason"`
}

// RequestRefund opens a refund on one item of a delivered order, or of a
// cancelled order that was paid.
func (s *Service) RequestRefund(ctx context.Context, orderID, itemID string, in RefundRequest, actor auth.Identity) (Order, error) {
	o, err := s.Get(ctx, orderID, actor)
	if err != nil {
		return Order{}, err
	}
	refundable := o.Status == StatusDelivered || (o.Status == StatusCancelled && o.PaymentStatus == PaymentPaid)
	if !refundable {
		return Order{}, fmt.Errorf("%w: order is %s", ErrInvalidTransition, o.Status)
	}
	it, ok := findItem(o, itemID)
	if !ok {
		return Order{}, ErrNotFound
	}
	if !CanRefundTransition(it, RefundRequested) {
		return Order{}, fmt.Errorf("%w: item refund is %s", ErrInvalidTransition, it.RefundState)
	}
	if in.Qty <= 0 || in.Qty > it.Refundable() {
		return Order{}, fmt.Errorf("%w: refund qty must be between 1 and %d", ErrInvalidInput, it.Refundable())
	}
	if strings.TrimSpace(in.Reason) == "" {
		return Order{}, fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}
	if err := s.Store.SetItemRefund(ctx, o.ID, it.ID, it.RefundState, RefundRequested, in.Qty, strings.TrimSpace(in.Reason)); err != nil {
		return Order{}, err
	}
	s.invalidate(ctx, o.ID)
	s.emit(ctx, events.TopicOrders, events.EventRefundRequested, o.ID, events.RefundPayload{
		OrderID: o.ID, Number: o.Number, UserID: o.UserID, ItemID: it.ID, Qty: in.Qty, State: string(RefundRequested), Reason: in.Reason,
	})
	return s.Store.Get(ctx, o.ID)
}

func (s *Service) DecideRefund(ctx context.Context, orderID, itemID string, approve bool, actor auth.Identity) (Order, error) {
	o, err := s.load(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	it, ok := findItem(o, itemID)
	if !ok {
		return Order{}, ErrNotFound
	}
	to := RefundRejected
	if approve {
		to = RefundApproved
	}
	if !CanRefundTransition(it, to) {
		return Order{}, fmt.Errorf("%w: item refund is %s", ErrInvalidTransition, it.RefundState)
	}
	if err := s.Store.SetItemRefund(ctx, o.ID, it.ID, it.RefundState, to, it.RequestedQty, it.RefundReason); err != nil {
		return Order{}, err
	}
	s.invalidate(ctx, o.ID)
	s.emit(ctx, events.TopicOrders, events.EventRefundDecided, o.ID, events.RefundPayload{
		OrderID: o.ID, Number: o.Number, UserID: o.UserID, ItemID: it.ID, Qty: it.RequestedQty, State: string(to), Approved: approve,
	})
	return s.Store.Get(ctx, o.ID)
}

// CompleteRefund books an approved item refund. Stock is only returned for
// delivered orders; cancelled orders were restocked on cancellation.
func (s *Service) CompleteRefund(ctx context.Context, orderID, itemID string, restock bool, actor auth.Identity) (Order, error) {
	o, err := s.load(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	it, ok := findItem(o, itemID)
	if !ok {
		return Order{}, ErrNotFound
	}
	if !CanRefundTransition(it, RefundCompleted) {
		return Order{}, fmt.Errorf("%w: item refund is %s", ErrInvalidTransition, it.RefundState)
	}
	restock = restock && o.Status == StatusDelivered
	amount, finalized, err := s.Store.CompleteItemRefund(ctx, o.ID, it.ID, actor.UserID, restock)
	if err != nil {
		return Order{}, err
	}
	s.invalidate(ctx, o.ID)
	s.emit(ctx, events.TopicOrders, events.EventRefundCompleted, o.ID, events.RefundPayload{
		OrderID: o.ID, Number: o.Number, UserID: o.UserID, ItemID: it.ID, Qty: it.RequestedQty, State: string(RefundCompleted), Amount: amount,
	})
	if finalized {
		s.emit(ctx, events.TopicOrders, events.EventOrderStatusChanged, o.ID, events.OrderStatusChangedPayload{
			OrderID: o.ID, Number: o.Number, UserID: o.UserID, From: string(o.Status), To: string(StatusRefunded), ActorID: actor.UserID,
		})
	}
	return s.Store.Get(ctx, o.ID)
}

func (s *Service) cacheStatus(ctx context.Context, o Order) {
	if err := s.Cache.PutStatus(ctx, o.ID, statusOf(o)); err != nil {
		s.Log.Warn("status cache write failed", "order_id", o.ID, "error", err)
	}
}

func (s *Service) invalidate(ctx context.Context, orderID string) {
	if err := s.Cache.Invalidate(ctx, orderID); err != nil {
		s.Log.Warn("status cache invalidate failed", "order_id", orderID, "error", err)
	}
}

// emit is best effort: the database is the source of truth.
func (s *Service) emit(ctx context.Context, topic, eventType, orderID string, payload any) {
	if err := s.Events.Emit(ctx, topic, eventType, orderID, payload); err != nil {
		s.Log.Error("emit event failed", "event_type", eventType, "order_id", orderID, "error", err)
	}
}
