package notifications

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kigalimart/storefront/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu   sync.Mutex
	rows []Notification
}

func (m *memStore) visible(n Notification, a Audience) bool {
	if n.RecipientID != "" {
		return n.RecipientID == a.UserID
	}
	return n.RecipientRole == a.Role
}

func (m *memStore) Create(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, n)
	return nil
}

func (m *memStore) List(_ context.Context, a Audience, f ListFilter) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Notification
	for _, n := range m.rows {
		if m.visible(n, a) && (!f.UnreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) UnreadCount(_ context.Context, a Audience) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := 0
	for _, n := range m.rows {
		if m.visible(n, a) && !n.Read {
			c++
		}
	}
	return c, nil
}

func (m *memStore) MarkRead(_ context.Context, id string, a Audience, at time.Time) (Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.rows {
		if n.ID == id && m.visible(n, a) {
			if !n.Read {
				m.rows[i].Read = true
				m.rows[i].ReadAt = &at
			}
			return m.rows[i], nil
		}
	}
	return Notification{}, ErrNotFound
}

func (m *memStore) MarkAllRead(_ context.Context, a Audience, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := 0
	for i, n := range m.rows {
		if m.visible(n, a) && !n.Read {
			m.rows[i].Read = true
			m.rows[i].ReadAt = &at
			c++
		}
	}
	return c, nil
}

type fakePub struct {
	sent []Notification
	err  error
}

func (p *fakePub) Publish(_ context.Context, n Notification) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, n)
	return nil
}

func newService() (*Service, *memStore, *fakePub) {
	st := &memStore{}
	pub := &fakePub{}
	t0 := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	tick := 0
	return &Service{
		Store: st,
		Pub:   pub,
		Log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now: func() time.Time {
			tick++
			return t0.Add(time.Duration(tick) * time.Minute)
		},
	}, st, pub
}

var (
	alice = Audience{UserID: uuid.NewString(), Role: auth.RoleCustomer}
	bob   = Audience{UserID: uuid.NewString(), Role: auth.RoleCustomer}
	boss  = Audience{UserID: uuid.NewString(), Role: auth.RoleAdmin}
)

func TestNotify_Validation(t *testing.T) {
	s, _, _ := newService()
	ctx := context.Background()

	_, err := s.Notify(ctx, Input{Title: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.Notify(ctx, Input{RecipientID: alice.UserID, RecipientRole: auth.RoleAdmin, Title: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.Notify(ctx, Input{RecipientID: alice.UserID, Title: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNotify_StoresAndPublishes(t *testing.T) {
	s, st, pub := newService()
	n, err := s.Notify(context.Background(), Input{RecipientID: alice.UserID, Title: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, TypeSystem, n.Type)
	assert.Len(t, st.rows, 1)
	require.Len(t, pub.sent, 1)
	assert.Equal(t, n.ID, pub.sent[0].ID)
}

func TestNotify_PublishFailureIsNotFatal(t *testing.T) {
	s, st, pub := newService()
	pub.err = errors.New("redis down")
	_, err := s.Notify(context.Background(), Input{RecipientRole: auth.RoleAdmin, Title: "New order"})
	require.NoError(t, err)
	assert.Len(t, st.rows, 1)
}

func TestListAndMarkRead_RespectsAddressing(t *testing.T) {
	s, _, _ := newService()
	ctx := context.Background()
	mine, err := s.Notify(ctx, Input{RecipientID: alice.UserID, Title: "For Alice"})
	require.NoError(t, err)
	_, err = s.Notify(ctx, Input{RecipientID: bob.UserID, Title: "For Bob"})
	require.NoError(t, err)
	adminNote, err := s.Notify(ctx, Input{RecipientRole: auth.RoleAdmin, Title: "For admins"})
	require.NoError(t, err)

	list, err := s.List(ctx, alice, ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "For Alice", list[0].Title)

	// bob cannot read alice's row, nor a customer an admin row
	_, err = s.MarkRead(ctx, mine.ID, bob)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.MarkRead(ctx, adminNote.ID, alice)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.MarkRead(ctx, "not-a-uuid", alice)
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.MarkRead(ctx, mine.ID, alice)
	require.NoError(t, err)
	assert.True(t, n.Read)
	require.NotNil(t, n.ReadAt)
	first := *n.ReadAt

	// marking again keeps the first timestamp
	n, err = s.MarkRead(ctx, mine.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, first, *n.ReadAt)

	c, err := s.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	// role rows are visible to any admin, with a shared read flag
	c, err = s.UnreadCount(ctx, boss)
	require.NoError(t, err)
	assert.Equal(t, 1, c)
	_, err = s.MarkRead(ctx, adminNote.ID, boss)
	require.NoError(t, err)
	other := Audience{UserID: uuid.NewString(), Role: auth.RoleAdmin}
	c, err = s.UnreadCount(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 0, c)
}

func TestList_UnreadOnlyNewestFirst(t *testing.T) {
	s, _, _ := newService()
	ctx := context.Background()
	for _, title := range []string{"one", "two", "three"} {
		_, err := s.Notify(ctx, Input{RecipientID: alice.UserID, Title: title})
		require.NoError(t, err)
	}
	list, err := s.List(ctx, alice, ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "three", list[0].Title)

	_, err = s.MarkRead(ctx, list[0].ID, alice)
	require.NoError(t, err)
	unread, err := s.List(ctx, alice, ListFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	n, err := s.MarkAllRead(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	unread, err = s.List(ctx, alice, ListFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.NotNil(t, unread)
	assert.Empty(t, unread)
}

func TestChannels(t *testing.T) {
	assert.Equal(t, []string{"notify:user:u1", "notify:role:rider"}, Channels(Audience{UserID: "u1", Role: "rider"}))
	assert.Equal(t, "notify:role:admin", channelFor(Notification{RecipientRole: "admin"}))
	assert.Equal(t, "notify:user:u1", channelFor(Notification{RecipientID: "u1"}))
}
