// Package events defines the envelope and payloads exchanged over Kafka
// between the API and the notifier.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventRefundRequested    = "RefundRequested"
	EventRefundDecided      = "RefundDecided"
	EventRefundCompleted    = "RefundCompleted"
	EventPaymentLinked      = "PaymentLinked"

	EventAssignmentCreated   = "AssignmentCreated"
	EventAssignmentAccepted  = "AssignmentAccepted"
	EventAssignmentRejected  = "AssignmentRejected"
	EventAssignmentCompleted = "AssignmentCompleted"
	EventAssignmentCancelled = "AssignmentCancelled"
)

const CurrentVersion = 1

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually order_id
	Payload       json.RawMessage `json:"payload"`
}

func NewEnvelope(ctx context.Context, eventType, producer, correlationID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  CurrentVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       TraceID(ctx),
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// Decode unwraps the payload of an envelope.
func Decode[T any](env Envelope) (T, error) {
	var t T
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return t, fmt.Errorf("decode %s payload: %w", env.EventType, err)
	}
	return t, nil
}

// Emitter publishes domain events. Implementations must not block on the
// broker; delivery is best effort after the database commit.
type Emitter interface {
	Emit(ctx context.Context, topic, eventType, correlationID string, payload any) error
}

type traceKey struct{}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func TraceID(ctx context.Context) string {
	s, _ := ctx.Value(traceKey{}).(string)
	return s
}
