package riders

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/kigalimart/storefront/internal/auth"
	"github.com/kigalimart/storefront/internal/events"
	"github.com/kigalimart/storefront/internal/events/eventstest"
	"github.com/kigalimart/storefront/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu          sync.Mutex
	riders      map[string]Rider
	assignments map[string]Assignment
}

func newMemStore() *memStore {
	return &memStore{riders: map[string]Rider{}, assignments: map[string]Assignment{}}
}

func (m *memStore) CreateRider(_ context.Context, r Rider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.riders {
		if x.UserID == r.UserID {
			return ErrRiderExists
		}
	}
	m.riders[r.ID] = r
	return nil
}

func (m *memStore) GetRider(_ context.Context, id string) (Rider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.riders[id]
	if !ok {
		return Rider{}, ErrNotFound
	}
	return r, nil
}

func (m *memStore) RiderByUser(_ context.Context, userID string) (Rider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.riders {
		if r.UserID == userID {
			return r, nil
		}
	}
	return Rider{}, ErrNotFound
}

func (m *memStore) ListRiders(_ context.Context, status RiderStatus) ([]Rider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Rider
	for _, r := range m.riders {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) SetRiderStatus(_ context.Context, id string, to RiderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.riders[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = to
	m.riders[id] = r
	return nil
}

func (m *memStore) CreateAssignment(_ context.Context, a Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.assignments {
		if !x.Status.Active() {
			continue
		}
		if x.OrderID == a.OrderID {
			return ErrAlreadyAssigned
		}
		if x.RiderID == a.RiderID {
			return ErrRiderBusy
		}
	}
	m.assignments[a.ID] = a
	return nil
}

func (m *memStore) GetAssignment(_ context.Context, id string) (Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return Assignment{}, ErrNotFound
	}
	return a, nil
}

func (m *memStore) ActiveAssignmentForRider(_ context.Context, riderID string) (Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assignments {
		if a.RiderID == riderID && a.Status.Active() {
			return a, nil
		}
	}
	return Assignment{}, ErrNotFound
}

func (m *memStore) ActiveAssignmentForOrder(_ context.Context, orderID string) (Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assignments {
		if a.OrderID == orderID && a.Status.Active() {
			return a, nil
		}
	}
	return Assignment{}, ErrNotFound
}

func (m *memStore) UpdateAssignment(_ context.Context, id string, from, to AssignmentStatus, note string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok || a.Status != from {
		return ErrConflict
	}
	a.Status = to
	if note != "" {
		a.Note = note
	}
	m.assignments[id] = a
	return nil
}

func (m *memStore) ListAssignments(_ context.Context, f AssignmentFilter) ([]Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Assignment
	for _, a := range m.assignments {
		if (f.RiderID == "" || a.RiderID == f.RiderID) && (f.Status == "" || a.Status == f.Status) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) CountByStatus(_ context.Context) (map[AssignmentStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[AssignmentStatus]int{}
	for _, a := range m.assignments {
		out[a.Status]++
	}
	return out, nil
}

func (m *memStore) ActiveOrderIDs(_ context.Context) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, a := range m.assignments {
		if a.Status.Active() {
			out[a.OrderID] = true
		}
	}
	return out, nil
}

// fakeOrders applies the order lifecycle rules without payments or stock.
type fakeOrders struct {
	mu     sync.Mutex
	orders map[string]orders.Order
}

func (f *fakeOrders) Get(_ context.Context, id string, _ auth.Identity) (orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrders) List(_ context.Context, lf orders.ListFilter) ([]orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []orders.Order
	for _, o := range f.orders {
		if lf.Status == "" || o.Status == lf.Status {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeOrders) Advance(_ context.Context, id string, to orders.Status, _ auth.Identity) (orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	if !orders.CanTransition(o.Status, to) {
		return orders.Order{}, fmt.Errorf("%w: %s -> %s", orders.ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	f.orders[id] = o
	return o, nil
}

type fakeRoles struct{ granted map[string]string }

func (f *fakeRoles) SetRole(_ context.Context, id, role string) error {
	f.granted[id] = role
	return nil
}

type fixture struct {
	svc    *Service
	store  *memStore
	orders *fakeOrders
	roles  *fakeRoles
	rec    *eventstest.Recorder
}

var admin = auth.Identity{UserID: "admin-1", Role: auth.RoleAdmin}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: newMemStore(),
		orders: &fakeOrders{orders: map[string]orders.Order{
			"o-proc":  {ID: "o-proc", Status: orders.StatusProcessing},
			"o-proc2": {ID: "o-proc2", Status: orders.StatusProcessing},
			"o-pend":  {ID: "o-pend", Status: orders.StatusPending},
		}},
		roles: &fakeRoles{granted: map[string]string{}},
		rec:   &eventstest.Recorder{},
	}
	f.svc = &Service{
		Store:  f.store,
		Orders: f.orders,
		Roles:  f.roles,
		Events: f.rec,
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) },
	}
	return f
}

func (f *fixture) onlineRider(t *testing.T, userID, name string) Rider {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.CreateRider(ctx, RiderInput{UserID: userID, Name: name, VehiclePlate: "rad 123 b"})
	require.NoError(t, err)
	r, err := f.svc.SetAvailability(ctx, userID, true)
	require.NoError(t, err)
	return r
}

func TestCreateRider_GrantsRoleAndStartsOffline(t *testing.T) {
	f := newFixture(t)
	r, err := f.svc.CreateRider(context.Background(), RiderInput{UserID: "u1", Name: " Jean ", VehiclePlate: "rad 123 b"})
	require.NoError(t, err)
	assert.Equal(t, RiderOffline, r.Status)
	assert.Equal(t, "Jean", r.Name)
	assert.Equal(t, "RAD 123 B", r.VehiclePlate)
	assert.Equal(t, auth.RoleRider, f.roles.granted["u1"])

	_, err = f.svc.CreateRider(context.Background(), RiderInput{UserID: "u1", Name: "Again"})
	assert.ErrorIs(t, err, ErrRiderExists)

	_, err = f.svc.CreateRider(context.Background(), RiderInput{UserID: "u2"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAssign_Rules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.onlineRider(t, "u1", "Jean")

	_, err := f.svc.Assign(ctx, AssignInput{OrderID: "o-pend", RiderID: r.ID}, admin)
	assert.ErrorIs(t, err, ErrOrderNotReady)

	a, err := f.svc.Assign(ctx, AssignInput{OrderID: "o-proc", RiderID: r.ID}, admin)
	require.NoError(t, err)
	assert.Equal(t, AssignmentPending, a.Status)
	assert.Equal(t, "admin-1", a.AssignedBy)
	assert.Equal(t, []string{events.EventAssignmentCreated}, f.rec.Types())
	assert.Equal(t, events.TopicAssignments, f.rec.Events[0].Topic)

	// the rider holds a pending offer
	_, err = f.svc.Assign(ctx, AssignInput{OrderID: "o-proc2", RiderID: r.ID}, admin)
	assert.ErrorIs(t, err, ErrRiderBusy)

	// the order is already offered
	other := f.onlineRider(t, "u2", "Alice")
	_, err = f.svc.Assign(ctx, AssignInput{OrderID: "o-proc", RiderID: other.ID}, admin)
	assert.ErrorIs(t, err, ErrAlreadyAssigned)
}

func TestAssign_OfflineRiderRefused(t *testing.T) {
	f := newFixture(t)
	r, err := f.svc.CreateRider(context.Background(), RiderInput{UserID: "u1", Name: "Jean"})
	require.NoError(t, err)
	_, err = f.svc.Assign(context.Background(), AssignInput{OrderID: "o-proc", RiderID: r.ID}, admin)
	assert.ErrorIs(t, err, ErrRiderBusy)
}

func TestDeliveryFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.onlineRider(t, "u1", "Jean")
	a, err := f.svc.Assign(ctx, AssignInput{OrderID: "o-proc", RiderID: r.ID}, admin)
	require.NoError(t, err)

	// another rider cannot act on it
	f.onlineRider(t, "u2", "Alice")
	_, err = f.svc.Accept(ctx, a.ID, "u2")
	assert.ErrorIs(t, err, ErrNotFound)

	a, err = f.svc.Accept(ctx, a.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, AssignmentAccepted, a.Status)
	require.NotNil(t, a.RespondedAt)
	assert.Equal(t, orders.StatusShipped, f.orders.orders["o-proc"].Status)
	rd, _ := f.store.GetRider(ctx, r.ID)
	assert.Equal(t, RiderBusy, rd.Status)

	_, err = f.svc.SetAvailability(ctx, "u1", false)
	assert.ErrorIs(t, err, ErrActiveWork)

	w, err := f.svc.CurrentWork(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, w.Order)
	assert.Equal(t, "o-proc", w.Order.ID)

	a, err = f.svc.Complete(ctx, a.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, AssignmentCompleted, a.Status)
	require.NotNil(t, a.CompletedAt)
	assert.Equal(t, orders.StatusDelivered, f.orders.orders["o-proc"].Status)
	rd, _ = f.store.GetRider(ctx, r.ID)
	assert.Equal(t, RiderAvailable, rd.Status)

	w, err = f.svc.CurrentWork(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, w.Assignment)

	assert.Equal(t, []string{
		events.EventAssignmentCreated,
		events.EventAssignmentAccepted,
		events.EventAssignmentCompleted,
	}, f.rec.Types())
}

func TestReject_FreesRider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.onlineRider(t, "u1", "Jean")
	a, err := f.svc.Assign(ctx, AssignInput{OrderID: "o-proc", RiderID: r.ID}, admin)
	require.NoError(t, err)

	a, err = f.svc.Reject(ctx, a.ID, "u1", " flat tyre ")
	require.NoError(t, err)
	assert.Equal(t, AssignmentRejected, a.Status)
	assert.Equal(t, "flat tyre", a.Note)
	assert.Equal(t, orders.StatusProcessing, f.orders.orders["o-proc"].Status)

	rejected := f.rec.Events[len(f.rec.Events)-1]
	assert.Equal(t, events.EventAssignmentRejected, rejected.EventType)
	assert.Equal(t, "flat tyre", rejected.Payload.(events.AssignmentPayload).Note)

	// a rejected offer cannot be accepted afterwards
	_, err = f.svc.Accept(ctx, a.ID, "u1")
	assert.ErrorIs(t, err, ErrConflict)

	// the order can be offered again
	_, err = f.svc.Assign(ctx, AssignInput{OrderID: "o-proc", RiderID: r.ID}, admin)
	require.NoError(t, err)
}

func TestComplete_RequiresAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.onlineRider(t, "u1", "Jean")
	a, err := f.svc.Assign(ctx, AssignInput{OrderID: "o-proc", RiderID: r.ID}, admin)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, a.ID, "u1")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, orders.StatusProcessing, f.orders.orders["o-proc"].Status)
}

func TestAccept_RollsBackWhenOrderCannotShip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.onlineRider(t, "u1", "Jean")
	a, err := f.svc.Assign(ctx, AssignInput{OrderID: "o-proc", RiderID: r.ID}, admin)
	require.NoError(t, err)

	// order cancelled by the back office in the meantime
	f.orders.orders["o-proc"] = orders.Order{ID: "o-proc", Status: orders.StatusCancelled}

	_, err = f.svc.Accept(ctx, a.ID, "u1")
	assert.ErrorIs(t, err, ErrOrderNotReady)
	got, _ := f.store.GetAssignment(ctx, a.ID)
	assert.Equal(t, AssignmentPending, got.Status)
	rd, _ := f.store.GetRider(ctx, r.ID)
	assert.Equal(t, RiderAvailable, rd.Status)
}

func TestUnassign_AllowsReassignOfShippedOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.onlineRider(t, "u1", "Jean")
	a, err := f.svc.Assign(ctx, AssignInput{OrderID: "o-proc", RiderID: r.ID}, admin)
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, a.ID, "u1")
	require.NoError(t, err)

	a, err = f.svc.Unassign(ctx, a.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, AssignmentCancelled, a.Status)
	rd, _ := f.store.GetRider(ctx, r.ID)
	assert.Equal(t, RiderAvailable, rd.Status)

	_, err = f.svc.Unassign(ctx, a.ID, admin)
	assert.ErrorIs(t, err, ErrConflict)

	other := f.onlineRider(t, "u2", "Alice")
	b, err := f.svc.Assign(ctx, AssignInput{OrderID: "o-proc", RiderID: other.ID}, admin)
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, b.ID, "u2")
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, b.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusDelivered, f.orders.orders["o-proc"].Status)
}

func TestReleaseOrder_FreesRiderOfCancelledOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.onlineRider(t, "u1", "Jean")
	a, err := f.svc.Assign(ctx, AssignInput{OrderID: "o-proc", RiderID: r.ID}, admin)
	require.NoError(t, err)

	f.orders.orders["o-proc"] = orders.Order{ID: "o-proc", Status: orders.StatusCancelled}
	require.NoError(t, f.svc.ReleaseOrder(ctx, "o-proc", admin.UserID))

	got, _ := f.store.GetAssignment(ctx, a.ID)
	assert.Equal(t, AssignmentCancelled, got.Status)
	assert.Equal(t, events.EventAssignmentCancelled, f.rec.Types()[len(f.rec.Types())-1])

	w, err := f.svc.CurrentWork(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, w.Assignment)
	_, err = f.svc.Assign(ctx, AssignInput{OrderID: "o-proc2", RiderID: r.ID}, admin)
	require.NoError(t, err, "the rider can take other work")

	// nothing active on the order any more
	require.NoError(t, f.svc.ReleaseOrder(ctx, "o-proc", admin.UserID))
}

func TestReleaseOrder_BusyRiderBecomesAvailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.onlineRider(t, "u1", "Jean")
	a, err := f.svc.Assign(ctx, AssignInput{OrderID: "o-proc", RiderID: r.ID}, admin)
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, a.ID, "u1")
	require.NoError(t, err)

	require.NoError(t, f.svc.ReleaseOrder(ctx, "o-proc", admin.UserID))
	rd, _ := f.store.GetRider(ctx, r.ID)
	assert.Equal(t, RiderAvailable, rd.Status)
	_, err = f.svc.SetAvailability(ctx, "u1", false)
	require.NoError(t, err)
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.onlineRider(t, "u1", "Jean")

	_, err := f.svc.Accept(ctx, "abc", "u1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Unassign(ctx, "abc", admin)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Assign(ctx, AssignInput{OrderID: "o-proc", RiderID: "abc"}, admin)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.onlineRider(t, "u1", "Jean")
	f.onlineRider(t, "u2", "Alice")
	_, err := f.svc.Assign(ctx, AssignInput{OrderID: "o-proc", RiderID: r.ID}, admin)
	require.NoError(t, err)

	d, err := f.svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Counts[AssignmentPending])
	require.Len(t, d.Unassigned, 1)
	assert.Equal(t, "o-proc2", d.Unassigned[0].ID)
	assert.Len(t, d.AvailableRiders, 2)
}

func TestListRiders_RejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ListRiders(context.Background(), "sleeping")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAssignmentTransitions(t *testing.T) {
	assert.True(t, CanAssignmentTransition(AssignmentPending, AssignmentAccepted))
	assert.True(t, CanAssignmentTransition(AssignmentAccepted, AssignmentCancelled))
	assert.False(t, CanAssignmentTransition(AssignmentPending, AssignmentCompleted))
	assert.False(t, CanAssignmentTransition(AssignmentRejected, AssignmentAccepted))
	assert.False(t, CanAssignmentTransition(AssignmentCompleted, AssignmentCancelled))
}
