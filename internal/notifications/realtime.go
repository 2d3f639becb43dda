package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kigalimart/storefront/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// Channels returns the pub/sub channels an audience listens on.
func Channels(a Audience) []string {
	out := make([]string, 0, 2)
	if a.UserID != "" {
		out = append(out, fmt.Sprintf(redisx.ChanNotifyUser, a.UserID))
	}
	if a.Role != "" {
		out = append(out, fmt.Sprintf(redisx.ChanNotifyRole, a.Role))
	}
	return out
}

func channelFor(n Notification) string {
	if n.RecipientID != "" {
		return fmt.Sprintf(redisx.ChanNotifyUser, n.RecipientID)
	}
	return fmt.Sprintf(redisx.ChanNotifyRole, n.RecipientRole)
}

// Broker carries notifications over Redis pub/sub between the process
// that stores them and the processes holding websocket connections.
type Broker struct {
	R *redis.Client
}

func (b *Broker) Publish(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return b.R.Publish(ctx, channelFor(n), payload).Err()
}

// Subscribe delivers raw notification JSON until ctx is done. The
// subscription is confirmed before Subscribe returns.
func (b *Broker) Subscribe(ctx context.Context, a Audience) (<-chan []byte, error) {
	ps := b.R.Subscribe(ctx, Channels(a)...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		defer ps.Close()
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(m.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
