package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	ctx := WithTraceID(context.Background(), "req-42")
	env, err := NewEnvelope(ctx, EventOrderCreated, "storefront-api", "o-1", OrderCreatedPayload{
		OrderID: "o-1", Number: "KM-1", UserID: "u-1", Total: 3500,
		Items: []OrderLine{{ProductID: "p-1", Qty: 2, UnitPrice: 1000}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, CurrentVersion, env.EventVersion)
	assert.Equal(t, "req-42", env.TraceID)
	assert.Equal(t, "o-1", env.CorrelationID)

	p, err := Decode[OrderCreatedPayload](env)
	require.NoError(t, err)
	assert.Equal(t, int64(3500), p.Total)
	assert.Len(t, p.Items, 1)
}

func TestDecodeBadPayload(t *testing.T) {
	_, err := Decode[OrderCreatedPayload](Envelope{EventType: EventOrderCreated, Payload: []byte(`"nope"`)})
	assert.Error(t, err)
}
