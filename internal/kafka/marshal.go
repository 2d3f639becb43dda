package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kigalimart/storefront/internal/events"
	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
)

// Emitter wraps payloads in an envelope and hands them to the producer.
type Emitter struct {
	P       *Producer
	Service string
}

func (e *Emitter) Emit(ctx context.Context, topic, eventType, correlationID string, payload any) error {
	env, err := events.NewEnvelope(ctx, eventType, e.Service, correlationID, payload)
	if err != nil {
		return err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return e.P.Publish(topic, events.PartitionKey(correlationID), b,
		kafka.Header{Key: HeaderEventType, Value: []byte(eventType)},
		kafka.Header{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(events.CurrentVersion))},
	)
}

func DecodeEnvelope(m kafka.Message) (events.Envelope, error) {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return env, fmt.Errorf("decode envelope (topic=%s offset=%d): %w", m.Topic, m.Offset, err)
	}
	return env, nil
}
