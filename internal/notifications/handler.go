package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kigalimart/storefront/internal/auth"
	"github.com/kigalimart/storefront/internal/events"
	kafkax "github.com/kigalimart/storefront/internal/kafka"
	"github.com/kigalimart/storefront/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type Notifier interface {
	Notify(ctx context.Context, in Input) (Notification, error)
}

// Seen remembers processed event ids so redelivered messages are skipped.
type Seen interface {
	Mark(ctx context.Context, eventID string) (seen bool, err error)
	Forget(ctx context.Context, eventID string) error
}

type RedisSeen struct {
	R       redis.Cmdable
	Service string
}

func (s *RedisSeen) key(eventID string) string {
	return fmt.Sprintf(redisx.KeyDedup, s.Service, eventID)
}

func (s *RedisSeen) Mark(ctx context.Context, eventID string) (bool, error) {
	return redisx.Dedup(ctx, s.R, s.key(eventID), redisx.TTLDedup)
}

func (s *RedisSeen) Forget(ctx context.Context, eventID string) error {
	return s.R.Del(ctx, s.key(eventID)).Err()
}

// EventHandler turns domain events into notifications.
type EventHandler struct {
	Notifier Notifier
	Seen     Seen
	Log      *slog.Logger
}

// HandleMessage is the Kafka consumer entry point.
func (h *EventHandler) HandleMessage(ctx context.Context, m kafka.Message) error {
	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		// poison message: log and commit
		h.Log.Error("drop undecodable message", "topic", m.Topic, "offset", m.Offset, "error", err)
		return nil
	}
	return h.Handle(events.WithTraceID(ctx, env.TraceID), env)
}

func (h *EventHandler) Handle(ctx context.Context, env events.Envelope) error {
	seen, err := h.Seen.Mark(ctx, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup: %w", err)
	}
	if seen {
		h.Log.Debug("duplicate event", "event_id", env.EventID, "event_type", env.EventType)
		return nil
	}
	start := time.Now()
	inputs, err := Render(env)
	if err != nil {
		h.Log.Error("drop malformed event", "event_id", env.EventID, "event_type", env.EventType, "error", err)
		return nil
	}
	for _, in := range inputs {
		if _, err := h.Notifier.Notify(ctx, in); err != nil {
			if ferr := h.Seen.Forget(ctx, env.EventID); ferr != nil {
				h.Log.Warn("dedup forget failed", "event_id", env.EventID, "error", ferr)
			}
			return fmt.Errorf("notify %s: %w", env.EventType, err)
		}
	}
	h.Log.Info("event handled", "event_id", env.EventID, "event_type", env.EventType,
		"notifications", len(inputs), "trace_id", env.TraceID, "took", time.Since(start))
	return nil
}

func admins(typ, title, body, orderID string) Input {
	return Input{RecipientRole: auth.RoleAdmin, Type: typ, Title: title, Body: body, OrderID: orderID}
}

func user(id, typ, title, body, orderID string) Input {
	return Input{RecipientID: id, Type: typ, Title: title, Body: body, OrderID: orderID}
}

var printer = message.NewPrinter(language.English)

// rwf formats whole francs with digit grouping, e.g. "7,500 RWF".
func rwf(v int64) string { return printer.Sprintf("%d RWF", v) }

// Render maps an event to the notifications it produces. Unknown event
// types produce none.
func Render(env events.Envelope) ([]Input, error) {
	switch env.EventType {
	case events.EventOrderCreated:
		p, err := events.Decode[events.OrderCreatedPayload](env)
		if err != nil {
			return nil, err
		}
		return []Input{admins(TypeOrder, "New order "+p.Number,
			fmt.Sprintf("%d item(s), total %s", len(p.Items), rwf(p.Total)), p.OrderID)}, nil

	case events.EventOrderStatusChanged:
		p, err := events.Decode[events.OrderStatusChangedPayload](env)
		if err != nil {
			return nil, err
		}
		return []Input{user(p.UserID, TypeOrder, "Order "+p.Number+" is "+p.To,
			fmt.Sprintf("Your order moved from %s to %s.", p.From, p.To), p.OrderID)}, nil

	case events.EventPaymentLinked:
		p, err := events.Decode[events.PaymentLinkedPayload](env)
		if err != nil {
			return nil, err
		}
		return []Input{admins(TypePayment, "Payment received for "+p.Number,
			fmt.Sprintf("%s %s via %s", rwf(p.Amount), p.Ref, p.Provider), p.OrderID)}, nil

	case events.EventRefundRequested:
		p, err := events.Decode[events.RefundPayload](env)
		if err != nil {
			return nil, err
		}
		return []Input{admins(TypeRefund, "Refund requested on "+p.Number,
			fmt.Sprintf("%d unit(s): %s", p.Qty, p.Reason), p.OrderID)}, nil

	case events.EventRefundDecided:
		p, err := events.Decode[events.RefundPayload](env)
		if err != nil {
			return nil, err
		}
		verdict := "rejected"
		if p.Approved {
			verdict = "approved"
		}
		return []Input{user(p.UserID, TypeRefund, "Refund "+verdict,
			fmt.Sprintf("Your refund request on order %s was %s.", p.Number, verdict), p.OrderID)}, nil

	case events.EventRefundCompleted:
		p, err := events.Decode[events.RefundPayload](env)
		if err != nil {
			return nil, err
		}
		return []Input{user(p.UserID, TypeRefund, "Refund completed",
			fmt.Sprintf("%s refunded on order %s.", rwf(p.Amount), p.Number), p.OrderID)}, nil

	case events.EventAssignmentCreated:
		p, err := events.Decode[events.AssignmentPayload](env)
		if err != nil {
			return nil, err
		}
		return []Input{user(p.RiderUserID, TypeAssignment, "New delivery assigned", p.Note, p.OrderID)}, nil

	case events.EventAssignmentCancelled:
		p, err := events.Decode[events.AssignmentPayload](env)
		if err != nil {
			return nil, err
		}
		return []Input{user(p.RiderUserID, TypeAssignment, "Delivery withdrawn", "", p.OrderID)}, nil

	case events.EventAssignmentAccepted, events.EventAssignmentRejected, events.EventAssignmentCompleted:
		p, err := events.Decode[events.AssignmentPayload](env)
		if err != nil {
			return nil, err
		}
		return []Input{admins(TypeAssignment, fmt.Sprintf("%s %s a delivery", p.RiderName, p.Status), p.Note, p.OrderID)}, nil
	}
	return nil, nil
}
