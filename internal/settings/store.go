package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kigalimart/storefront/internal/redisx"
	"github.com/redis/go-redis/v9"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) All(ctx context.Context) (map[string]bool, error) {
	rows, err := r.DB.Query(ctx, `SELECT key, enabled FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var k string
		var v bool
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (r *Repo) Set(ctx context.Context, key string, enabled bool) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO settings(key, enabled) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = now()`, key, enabled)
	return err
}

func (r *Repo) Toggle(ctx context.Context, key string) (bool, error) {
	var v bool
	err := r.DB.QueryRow(ctx, `
		UPDATE settings SET enabled = NOT enabled, updated_at = now()
		WHERE key=$1 RETURNING enabled`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrUnknownSetting
	}
	return v, err
}

type RedisCache struct{ R redis.Cmdable }

func (c *RedisCache) Get(ctx context.Context) (map[string]bool, bool, error) {
	m, err := c.R.HGetAll(ctx, redisx.KeySettings).Result()
	if err != nil {
		return nil, false, err
	}
	if len(m) == 0 {
		return nil, false, nil
	}
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v == "1"
	}
	return out, true, nil
}

func (c *RedisCache) Put(ctx context.Context, vals map[string]bool) error {
	fields := make(map[string]any, len(vals))
	for k, v := range vals {
		if v {
			fields[k] = "1"
		} else {
			fields[k] = "0"
		}
	}
	pipe := c.R.TxPipeline()
	pipe.Del(ctx, redisx.KeySettings)
	if len(fields) > 0 {
		pipe.HSet(ctx, redisx.KeySettings, fields)
		pipe.Expire(ctx, redisx.KeySettings, redisx.TTLSettings)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.R.Del(ctx, redisx.KeySettings).Err()
}
