package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/kigalimart/storefront/internal/events"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitterEnqueuesEnvelope(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, 4, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e := &Emitter{P: p, Service: "test"}

	err := e.Emit(context.Background(), events.TopicOrders, events.EventOrderCreated, "o-1",
		events.OrderCreatedPayload{OrderID: "o-1", Total: 100})
	require.NoError(t, err)

	m := <-p.inbox
	assert.Equal(t, events.TopicOrders, m.Topic)
	assert.Equal(t, []byte("o-1"), m.Key)
	assert.Equal(t, HeaderEventType, m.Headers[0].Key)

	env, err := DecodeEnvelope(m)
	require.NoError(t, err)
	assert.Equal(t, "test", env.Producer)
	p2, err := events.Decode[events.OrderCreatedPayload](env)
	require.NoError(t, err)
	assert.Equal(t, int64(100), p2.Total)
}

func TestPublishAfterCloseAndFullInbox(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, 1, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, p.Publish("t", nil, []byte("a")))
	assert.ErrorIs(t, p.Publish("t", nil, []byte("b")), ErrInboxFull)

	p.Close()
	p.Close()
	assert.ErrorIs(t, p.Publish("t", nil, []byte("c")), ErrProducerClosed)
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	_, err := DecodeEnvelope(kafka.Message{Topic: "t", Value: []byte("{")})
	assert.Error(t, err)

	b, _ := json.Marshal(events.Envelope{EventType: events.EventPaymentLinked})
	env, err := DecodeEnvelope(kafka.Message{Value: b})
	require.NoError(t, err)
	assert.Equal(t, events.EventPaymentLinked, env.EventType)
}
