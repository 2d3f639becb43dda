package riders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kigalimart/storefront/internal/auth"
	"github.com/kigalimart/storefront/internal/events"
	"github.com/kigalimart/storefront/internal/orders"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrRiderExists     = errors.New("user is already a rider")
	ErrUnknownUser     = errors.New("unknown user")
	ErrAlreadyAssigned = errors.New("order already has an active assignment")
	ErrRiderBusy       = errors.New("rider is not available")
	ErrActiveWork      = errors.New("rider has an active assignment")
	ErrOrderNotReady   = errors.New("order is not ready for dispatch")
	ErrConflict        = errors.New("assignment changed concurrently")
	ErrInvalidInput    = errors.New("invalid rider input")
)

type Store interface {
	CreateRider(ctx context.Context, r Rider) error
	GetRider(ctx context.Context, id string) (Rider, error)
	RiderByUser(ctx context.Context, userID string) (Rider, error)
	ListRiders(ctx context.Context, status RiderStatus) ([]Rider, error)
	SetRiderStatus(ctx context.Context, id string, to RiderStatus) error

	CreateAssignment(ctx context.Context, a Assignment) error
	GetAssignment(ctx context.Context, id string) (Assignment, error)
	ActiveAssignmentForRider(ctx context.Context, riderID string) (Assignment, error)
	ActiveAssignmentForOrder(ctx context.Context, orderID string) (Assignment, error)
	UpdateAssignment(ctx context.Context, id string, from, to AssignmentStatus, note string, at time.Time) error
	ListAssignments(ctx context.Context, f AssignmentFilter) ([]Assignment, error)
	CountByStatus(ctx context.Context) (map[AssignmentStatus]int, error)
	ActiveOrderIDs(ctx context.Context) (map[string]bool, error)
}

// OrderFlow is the slice of the order service dispatch drives.
type OrderFlow interface {
	Get(ctx context.Context, id string, actor auth.Identity) (orders.Order, error)
	List(ctx context.Context, f orders.ListFilter) ([]orders.Order, error)
	Advance(ctx context.Context, id string, to orders.Status, actor auth.Identity) (orders.Order, error)
}

type Roles interface {
	SetRole(ctx context.Context, id, role string) error
}

type Service struct {
	Store  Store
	Orders OrderFlow
	Roles  Roles
	Events events.Emitter
	Log    *slog.Logger

	now func() time.Time
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

// dispatcher is the identity used to read and move orders on behalf of a
// rider or admin; ownership checks do not apply to dispatch.
func dispatcher(userID string) auth.Identity {
	return auth.Identity{UserID: userID, Role: auth.RoleAdmin}
}

type RiderInput struct {
	UserID       string `json:"user_id"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	VehiclePlate string `json:"vehicle_plate"`
	Zone         string `json:"zone"`
}

// CreateRider registers an existing user as a rider and grants the role.
func (s *Service) CreateRider(ctx context.Context, in RiderInput) (Rider, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.UserID == "" || in.Name == "" {
		return Rider{}, fmt.Errorf("%w: user_id and name are required", ErrInvalidInput)
	}
	r := Rider{
		ID:           uuid.NewString(),
		UserID:       in.UserID,
		Name:         in.Name,
		Phone:        strings.TrimSpace(in.Phone),
		VehiclePlate: strings.ToUpper(strings.TrimSpace(in.VehiclePlate)),
		Zone:         strings.TrimSpace(in.Zone),
		Status:       RiderOffline,
		CreatedAt:    s.clock(),
	}
	if err := s.Store.CreateRider(ctx, r); err != nil {
		return Rider{}, err
	}
	if err := s.Roles.SetRole(ctx, r.UserID, auth.RoleRider); err != nil {
		return Rider{}, fmt.Errorf("grant rider role: %w", err)
	}
	return r, nil
}

func (s *Service) ListRiders(ctx context.Context, status RiderStatus) ([]Rider, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return s.Store.ListRiders(ctx, status)
}

func (s *Service) Me(ctx context.Context, userID string) (Rider, error) {
	return s.Store.RiderByUser(ctx, userID)
}

// SetAvailability toggles a rider between available and offline. Busy
// riders and riders with pending work cannot change.
func (s *Service) SetAvailability(ctx context.Context, userID string, available bool) (Rider, error) {
	r, err := s.Store.RiderByUser(ctx, userID)
	if err != nil {
		return Rider{}, err
	}
	if _, err := s.Store.ActiveAssignmentForRider(ctx, r.ID); err == nil {
		return Rider{}, ErrActiveWork
	} else if !errors.Is(err, ErrNotFound) {
		return Rider{}, err
	}
	to := RiderOffline
	if available {
		to = RiderAvailable
	}
	if err := s.Store.SetRiderStatus(ctx, r.ID, to); err != nil {
		return Rider{}, err
	}
	r.Status = to
	return r, nil
}

type AssignInput struct {
	OrderID string `json:"order_id"`
	RiderID string `json:"rider_id"`
	Note    string `json:"note"`
}

// Assign offers an order to an available rider. The order must be
// processing, or shipped with its previous assignment cancelled.
func (s *Service) Assign(ctx context.Context, in AssignInput, actor auth.Identity) (Assignment, error) {
	if in.OrderID == "" || in.RiderID == "" {
		return Assignment{}, fmt.Errorf("%w: order_id and rider_id are required", ErrInvalidInput)
	}
	o, err := s.Orders.Get(ctx, in.OrderID, dispatcher(actor.UserID))
	if err != nil {
		return Assignment{}, err
	}
	if o.Status != orders.StatusProcessing && o.Status != orders.StatusShipped {
		return Assignment{}, fmt.Errorf("%w: order is %s", ErrOrderNotReady, o.Status)
	}
	if uuid.Validate(in.RiderID) != nil {
		return Assignment{}, ErrNotFound
	}
	r, err := s.Store.GetRider(ctx, in.RiderID)
	if err != nil {
		return Assignment{}, err
	}
	if r.Status != RiderAvailable {
		return Assignment{}, fmt.Errorf("%w: rider is %s", ErrRiderBusy, r.Status)
	}
	if _, err := s.Store.ActiveAssignmentForRider(ctx, r.ID); err == nil {
		return Assignment{}, ErrRiderBusy
	} else if !errors.Is(err, ErrNotFound) {
		return Assignment{}, err
	}

	a := Assignment{
		ID:         uuid.NewString(),
		OrderID:    o.ID,
		RiderID:    r.ID,
		Status:     AssignmentPending,
		AssignedBy: actor.UserID,
		Note:       strings.TrimSpace(in.Note),
		AssignedAt: s.clock(),
	}
	if err := s.Store.CreateAssignment(ctx, a); err != nil {
		return Assignment{}, err
	}
	s.emit(ctx, events.EventAssignmentCreated, a, r)
	return a, nil
}

// ownAssignment loads the assignment and checks it belongs to the rider
// behind userID.
func (s *Service) ownAssignment(ctx context.Context, id, userID string) (Assignment, Rider, error) {
	r, err := s.Store.RiderByUser(ctx, userID)
	if err != nil {
		return Assignment{}, Rider{}, err
	}
	if uuid.Validate(id) != nil {
		return Assignment{}, Rider{}, ErrNotFound
	}
	a, err := s.Store.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, Rider{}, err
	}
	if a.RiderID != r.ID {
		return Assignment{}, Rider{}, ErrNotFound
	}
	return a, r, nil
}

func (s *Service) move(ctx context.Context, a Assignment, to AssignmentStatus, note string) (Assignment, error) {
	if !CanAssignmentTransition(a.Status, to) {
		return Assignment{}, fmt.Errorf("%w: %s -> %s", ErrConflict, a.Status, to)
	}
	now := s.clock()
	if err := s.Store.UpdateAssignment(ctx, a.ID, a.Status, to, note, now); err != nil {
		return Assignment{}, err
	}
	prev := a.Status
	a.Status = to
	if note != "" {
		a.Note = note
	}
	switch to {
	case AssignmentAccepted, AssignmentRejected:
		a.RespondedAt = &now
	case AssignmentCompleted, AssignmentCancelled:
		a.CompletedAt = &now
	}
	s.Log.Info("assignment moved", "assignment_id", a.ID, "order_id", a.OrderID, "from", prev, "to", to)
	return a, nil
}

// Accept takes the delivery: the rider turns busy and the order ships.
// If the order cannot ship the assignment is put back to pending.
func (s *Service) Accept(ctx context.Context, id, userID string) (Assignment, error) {
	a, r, err := s.ownAssignment(ctx, id, userID)
	if err != nil {
		return Assignment{}, err
	}
	a, err = s.move(ctx, a, AssignmentAccepted, "")
	if err != nil {
		return Assignment{}, err
	}
	o, err := s.Orders.Get(ctx, a.OrderID, dispatcher(userID))
	if err == nil {
		switch o.Status {
		case orders.StatusProcessing:
			_, err = s.Orders.Advance(ctx, a.OrderID, orders.StatusShipped, dispatcher(userID))
		case orders.StatusShipped:
		default:
			err = fmt.Errorf("%w: order is %s", ErrOrderNotReady, o.Status)
		}
	}
	if err != nil {
		if rerr := s.Store.UpdateAssignment(ctx, a.ID, AssignmentAccepted, AssignmentPending, "", s.clock()); rerr != nil {
			s.Log.Error("accept rollback failed", "assignment_id", a.ID, "error", rerr)
		}
		return Assignment{}, err
	}
	if err := s.Store.SetRiderStatus(ctx, r.ID, RiderBusy); err != nil {
		return Assignment{}, err
	}
	s.emit(ctx, events.EventAssignmentAccepted, a, r)
	return a, nil
}

// Reject declines an offer. The rider returns to the available pool.
func (s *Service) Reject(ctx context.Context, id, userID, reason string) (Assignment, error) {
	a, r, err := s.ownAssignment(ctx, id, userID)
	if err != nil {
		return Assignment{}, err
	}
	a, err = s.move(ctx, a, AssignmentRejected, strings.TrimSpace(reason))
	if err != nil {
		return Assignment{}, err
	}
	if err := s.Store.SetRiderStatus(ctx, r.ID, RiderAvailable); err != nil {
		return Assignment{}, err
	}
	s.emit(ctx, events.EventAssignmentRejected, a, r)
	return a, nil
}

// Complete marks the delivery done and the order delivered.
func (s *Service) Complete(ctx context.Context, id, userID string) (Assignment, error) {
	a, r, err := s.ownAssignment(ctx, id, userID)
	if err != nil {
		return Assignment{}, err
	}
	if a.Status != AssignmentAccepted {
		return Assignment{}, fmt.Errorf("%w: %s -> %s", ErrConflict, a.Status, AssignmentCompleted)
	}
	if _, err := s.Orders.Advance(ctx, a.OrderID, orders.StatusDelivered, dispatcher(userID)); err != nil {
		return Assignment{}, err
	}
	a, err = s.move(ctx, a, AssignmentCompleted, "")
	if err != nil {
		return Assignment{}, err
	}
	if err := s.Store.SetRiderStatus(ctx, r.ID, RiderAvailable); err != nil {
		return Assignment{}, err
	}
	s.emit(ctx, events.EventAssignmentCompleted, a, r)
	return a, nil
}

// Unassign cancels an active assignment. The order keeps its status so
// it can be offered to another rider.
func (s *Service) Unassign(ctx context.Context, id string, actor auth.Identity) (Assignment, error) {
	if uuid.Validate(id) != nil {
		return Assignment{}, ErrNotFound
	}
	a, err := s.Store.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	return s.cancel(ctx, a, actor.UserID)
}

// ReleaseOrder cancels whatever assignment is still active on a cancelled
// order and puts its rider back in the pool. No active assignment is fine.
func (s *Service) ReleaseOrder(ctx context.Context, orderID, actorID string) error {
	a, err := s.Store.ActiveAssignmentForOrder(ctx, orderID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.cancel(ctx, a, actorID)
	return err
}

func (s *Service) cancel(ctx context.Context, a Assignment, actorID string) (Assignment, error) {
	r, err := s.Store.GetRider(ctx, a.RiderID)
	if err != nil {
		return Assignment{}, err
	}
	a, err = s.move(ctx, a, AssignmentCancelled, "")
	if err != nil {
		return Assignment{}, err
	}
	if r.Status == RiderBusy {
		if err := s.Store.SetRiderStatus(ctx, r.ID, RiderAvailable); err != nil {
			return Assignment{}, err
		}
	}
	s.Log.Info("assignment cancelled", "assignment_id", a.ID, "order_id", a.OrderID, "actor_id", actorID)
	s.emit(ctx, events.EventAssignmentCancelled, a, r)
	return a, nil
}

type Work struct {
	Rider      Rider         `json:"rider"`
	Assignment *Assignment   `json:"assignment,omitempty"`
	Order      *orders.Order `json:"order,omitempty"`
}

// CurrentWork returns the rider's active assignment with its order.
func (s *Service) CurrentWork(ctx context.Context, userID string) (Work, error) {
	r, err := s.Store.RiderByUser(ctx, userID)
	if err != nil {
		return Work{}, err
	}
	w := Work{Rider: r}
	a, err := s.Store.ActiveAssignmentForRider(ctx, r.ID)
	if errors.Is(err, ErrNotFound) {
		return w, nil
	}
	if err != nil {
		return Work{}, err
	}
	o, err := s.Orders.Get(ctx, a.OrderID, dispatcher(userID))
	if err != nil {
		return Work{}, err
	}
	w.Assignment = &a
	w.Order = &o
	return w, nil
}

func (s *Service) History(ctx context.Context, userID string, limit int) ([]Assignment, error) {
	r, err := s.Store.RiderByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.ListAssignments(ctx, AssignmentFilter{RiderID: r.ID, Limit: limit})
}

func (s *Service) ListAssignments(ctx context.Context, f AssignmentFilter) ([]Assignment, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	return s.Store.ListAssignments(ctx, f)
}

type Dashboard struct {
	Counts          map[AssignmentStatus]int `json:"counts"`
	AvailableRiders []Rider                  `json:"available_riders"`
	Unassigned      []orders.Order           `json:"unassigned_orders"`
}

// Dashboard summarises dispatch for the back office.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	counts, err := s.Store.CountByStatus(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	avail, err := s.Store.ListRiders(ctx, RiderAvailable)
	if err != nil {
		return Dashboard{}, err
	}
	active, err := s.Store.ActiveOrderIDs(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	processing, err := s.Orders.List(ctx, orders.ListFilter{Status: orders.StatusProcessing, Limit: 100})
	if err != nil {
		return Dashboard{}, err
	}
	d := Dashboard{Counts: counts, AvailableRiders: avail, Unassigned: []orders.Order{}}
	for _, o := range processing {
		if !active[o.ID] {
			d.Unassigned = append(d.Unassigned, o)
		}
	}
	if d.AvailableRiders == nil {
		d.AvailableRiders = []Rider{}
	}
	return d, nil
}

func (s *Service) emit(ctx context.Context, eventType string, a Assignment, r Rider) {
	p := events.AssignmentPayload{
		AssignmentID: a.ID,
		OrderID:      a.OrderID,
		RiderID:      r.ID,
		RiderUserID:  r.UserID,
		RiderName:    r.Name,
		Status:       string(a.Status),
		Note:         a.Note,
	}
	if err := s.Events.Emit(ctx, events.TopicAssignments, eventType, a.OrderID, p); err != nil {
		s.Log.Error("emit event failed", "event_type", eventType, "order_id", a.OrderID, "error", err)
	}
}
