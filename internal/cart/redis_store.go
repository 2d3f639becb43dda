package cart

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kigalimart/storefront/internal/catalog"
	"github.com/kigalimart/storefront/internal/redisx"
	"github.com/redis/go-redis/v9"
)

type RedisStore struct{ R redis.Cmdable }

func key(userID string) string { return fmt.Sprintf(redisx.KeyCart, userID) }

func field(ref catalog.LineRef) string { return ref.ProductID + ":" + ref.VariationID }

func parseField(f string) catalog.LineRef {
	pid, vid, _ := strings.Cut(f, ":")
	return catalog.LineRef{ProductID: pid, VariationID: vid}
}

func (s *RedisStore) Lines(ctx context.Context, userID string) (map[catalog.LineRef]int, error) {
	m, err := s.R.HGetAll(ctx, key(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[catalog.LineRef]int, len(m))
	for f, v := range m {
		q, err := strconv.Atoi(v)
		if err != nil || q <= 0 {
			continue
		}
		out[parseField(f)] = q
	}
	return out, nil
}

func (s *RedisStore) Add(ctx context.Context, userID string, ref catalog.LineRef, qty int) error {
	pipe := s.R.TxPipeline()
	pipe.HIncrBy(ctx, key(userID), field(ref), int64(qty))
	pipe.Expire(ctx, key(userID), redisx.TTLCart)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Set(ctx context.Context, userID string, ref catalog.LineRef, qty int) error {
	pipe := s.R.TxPipeline()
	pipe.HSet(ctx, key(userID), field(ref), qty)
	pipe.Expire(ctx, key(userID), redisx.TTLCart)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Remove(ctx context.Context, userID string, ref catalog.LineRef) error {
	return s.R.HDel(ctx, key(userID), field(ref)).Err()
}

func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	return s.R.Del(ctx, key(userID)).Err()
}
