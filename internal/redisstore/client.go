// Package redisstore wraps the Redis operations used by the flash message
// backend.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/mohammed-shakir/plot-editor/internal/core/observability"
)

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.ReadTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.WriteTimeout = d }
}

// Member is one scored entry of a sorted set.
type Member struct {
	Score float64
	Value []byte
}

type Client struct {
	rdb *redis.Client
}

func New(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     16,
		MinIdleConns: 1,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	for _, f := range opts {
		f(ro)
	}

	rdb := redis.NewClient(ro)

	c := &Client{rdb: rdb}
	if err := c.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) Ping(ctx context.Context) error {
	start := time.Now()
	err := c.rdb.Ping(ctx).Err()
	observability.ObserveRedisOp("ping", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// ZAddWithTTL adds m to the sorted set at key and pushes the key expiry out to
// ttl, in one pipeline.
func (c *Client) ZAddWithTTL(ctx context.Context, key string, m Member, ttl time.Duration) error {
	start := time.Now()
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, key, redis.Z{Score: m.Score, Member: m.Value})
		if ttl > 0 {
			p.PExpire(ctx, key, ttl)
		}
		return nil
	})
	observability.ObserveRedisOp("zadd", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis ZADD %q: %w", key, err)
	}
	return nil
}

// RangeFrom drops members scored below min and returns the rest in score
// order.
func (c *Client) RangeFrom(ctx context.Context, key string, min float64) ([]Member, error) {
	start := time.Now()
	lo := fmt.Sprintf("(%f", min)
	var res *redis.ZSliceCmd
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, key, "-inf", lo)
		res = p.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{Min: fmt.Sprintf("%f", min), Max: "+inf"})
		return nil
	})
	observability.ObserveRedisOp("zrange", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("redis ZRANGEBYSCORE %q: %w", key, err)
	}

	zs := res.Val()
	out := make([]Member, 0, len(zs))
	for _, z := range zs {
		var b []byte
		switch t := z.Member.(type) {
		case string:
			b = []byte(t)
		case []byte:
			b = t
		default:
			b = fmt.Append(nil, t)
		}
		out = append(out, Member{Score: z.Score, Value: b})
	}
	return out, nil
}

func (c *Client) ZRem(ctx context.Context, key string, values ...[]byte) error {
	if len(values) == 0 {
		return nil
	}
	start := time.Now()
	members := make([]any, len(values))
	for i, v := range values {
		members[i] = v
	}
	err := c.rdb.ZRem(ctx, key, members...).Err()
	observability.ObserveRedisOp("zrem", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis ZREM %q: %w", key, err)
	}
	return nil
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
