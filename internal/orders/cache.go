package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kigalimart/storefront/internal/redisx"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct{ R redis.Cmdable }

func (c *RedisCache) Status(ctx context.Context, orderID string) (CachedStatus, bool, error) {
	var st CachedStatus
	s, err := c.R.Get(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return st, false, nil
	}
	if err != nil {
		return st, false, err
	}
	if err := json.Unmarshal([]byte(s), &st); err != nil {
		return st, false, err
	}
	return st, true, nil
}

func (c *RedisCache) PutStatus(ctx context.Context, orderID string, st CachedStatus) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID), b, redisx.TTLStatusCache).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, orderID string) error {
	return c.R.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err()
}

func (c *RedisCache) RememberExternalID(ctx context.Context, externalID, orderID string) error {
	return c.R.Set(ctx, fmt.Sprintf(redisx.KeyIdemOrderCreate, externalID), orderID, redisx.TTLIdempotency).Err()
}

func (c *RedisCache) LookupExternalID(ctx context.Context, externalID string) (string, bool, error) {
	id, err := c.R.Get(ctx, fmt.Sprintf(redisx.KeyIdemOrderCreate, externalID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}
