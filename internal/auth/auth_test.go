package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokensRoundTrip(t *testing.T) {
	tk := NewTokens("s3cret", time.Hour)
	s, exp, err := tk.Issue("u-1", RoleRider)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	c, err := tk.Parse(s)
	require.NoError(t, err)
	assert.Equal(t, "u-1", c.UserID)
	assert.Equal(t, RoleRider, c.Role)
}

func TestTokensRejectTamperedAndExpired(t *testing.T) {
	tk := NewTokens("s3cret", time.Hour)
	s, _, err := tk.Issue("u-1", RoleCustomer)
	require.NoError(t, err)

	_, err = NewTokens("other", time.Hour).Parse(s)
	assert.ErrorIs(t, err, ErrInvalidToken)

	tk.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = tk.Parse(s)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tk.Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPolicy(t *testing.T) {
	p, err := NewPolicy()
	require.NoError(t, err)

	cases := []struct {
		role, path, method string
		want               bool
	}{
		{RoleCustomer, "/cart", "GET", true},
		{RoleCustomer, "/cart/items", "DELETE", true},
		{RoleCustomer, "/orders/abc/cancel", "POST", true},
		{RoleCustomer, "/orders/abc/items/x/refund", "POST", true},
		{RoleCustomer, "/notifications/n1/read", "POST", true},
		{RoleRider, "/rider/work", "GET", true},
		{RoleRider, "/cart", "POST", true},
		{RoleAdmin, "/admin/settings/store_open/toggle", "POST", true},
		{RoleCustomer, "/admin/orders", "GET", false},
		{RoleCustomer, "/rider/work", "GET", false},
		{RoleCustomer, "/orders/abc", "DELETE", false},
		{RoleRider, "/admin/riders", "GET", false},
		{"", "/cart", "GET", false},
	}
	for _, c := range cases {
		ok, err := p.Allowed(c.role, c.path, c.method)
		require.NoError(t, err)
		assert.Equal(t, c.want, ok, "%s %s %s", c.role, c.method, c.path)
	}
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: "u", Role: RoleAdmin})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.True(t, id.IsAdmin())
}
