package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kigalimart/storefront/internal/auth"
	"github.com/kigalimart/storefront/internal/redisx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a running Redis on localhost; skipped otherwise.
func TestBroker_Integration(t *testing.T) {
	rdb := redisx.New("localhost:6379")
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b := &Broker{R: rdb}
	a := Audience{UserID: uuid.NewString(), Role: auth.RoleAdmin}
	ch, err := b.Subscribe(ctx, a)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, Notification{ID: "n1", RecipientID: a.UserID, Title: "mine"}))
	require.NoError(t, b.Publish(ctx, Notification{ID: "n2", RecipientID: uuid.NewString(), Title: "not mine"}))
	require.NoError(t, b.Publish(ctx, Notification{ID: "n3", RecipientRole: auth.RoleAdmin, Title: "admins"}))

	var got []string
	for len(got) < 2 {
		select {
		case raw := <-ch:
			var n Notification
			require.NoError(t, json.Unmarshal(raw, &n))
			got = append(got, n.ID)
		case <-ctx.Done():
			t.Fatalf("timed out, got %v", got)
		}
	}
	assert.ElementsMatch(t, []string{"n1", "n3"}, got)

	seen := &RedisSeen{R: rdb, Service: "test-" + uuid.NewString()}
	id := uuid.NewString()
	dup, err := seen.Mark(ctx, id)
	require.NoError(t, err)
	assert.False(t, dup)
	dup, err = seen.Mark(ctx, id)
	require.NoError(t, err)
	assert.True(t, dup)
	require.NoError(t, seen.Forget(ctx, id))
	dup, err = seen.Mark(ctx, id)
	require.NoError(t, err)
	assert.False(t, dup)
	require.NoError(t, seen.Forget(ctx, id))
}
