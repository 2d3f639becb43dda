package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("notification not found")
	ErrInvalidInput = errors.New("invalid notification")
)

type Store interface {
	Create(ctx context.Context, n Notification) error
	List(ctx context.Context, a Audience, f ListFilter) ([]Notification, error)
	UnreadCount(ctx context.Context, a Audience) (int, error)
	MarkRead(ctx context.Context, id string, a Audience, at time.Time) (Notification, error)
	MarkAllRead(ctx context.Context, a Audience, at time.Time) (int, error)
}

// Publisher pushes a stored notification to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

type Service struct {
	Store Store
	Pub   Publisher
	Log   *slog.Logger

	now func() time.Time
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

// Notify stores the notification and fans it out. A failed publish is
// logged; polling clients still see the row.
func (s *Service) Notify(ctx context.Context, in Input) (Notification, error) {
	if (in.RecipientID == "") == (in.RecipientRole == "") {
		return Notification{}, fmt.Errorf("%w: exactly one of recipient id or role", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Title) == "" {
		return Notification{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.Type == "" {
		in.Type = TypeSystem
	}
	n := Notification{
		ID:            uuid.NewString(),
		RecipientID:   in.RecipientID,
		RecipientRole: in.RecipientRole,
		Type:          in.Type,
		Title:         strings.TrimSpace(in.Title),
		Body:          in.Body,
		OrderID:       in.OrderID,
		CreatedAt:     s.clock(),
	}
	if err := s.Store.Create(ctx, n); err != nil {
		return Notification{}, err
	}
	if err := s.Pub.Publish(ctx, n); err != nil {
		s.Log.Warn("notification publish failed", "notification_id", n.ID, "error", err)
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, a Audience, f ListFilter) ([]Notification, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 30
	}
	out, err := s.Store.List(ctx, a, f)
	if out == nil && err == nil {
		out = []Notification{}
	}
	return out, err
}

func (s *Service) UnreadCount(ctx context.Context, a Audience) (int, error) {
	return s.Store.UnreadCount(ctx, a)
}

func (s *Service) MarkRead(ctx context.Context, id string, a Audience) (Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Notification{}, ErrNotFound
	}
	return s.Store.MarkRead(ctx, id, a, s.clock())
}

func (s *Service) MarkAllRead(ctx context.Context, a Audience) (int, error) {
	return s.Store.MarkAllRead(ctx, a, s.clock())
}
