package flash

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mohammed-shakir/plot-editor/internal/redisstore"
)

// Redis keeps one sorted set per container at "flash:{container}", scored by
// expiry in unix milliseconds.
type Redis struct {
	client *redisstore.Client
	ttl    time.Duration
}

func NewRedis(client *redisstore.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func redisKey(container string) string {
	return "flash:" + container
}

func (r *Redis) Put(ctx context.Context, m Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode flash: %w", err)
	}
	return r.client.ZAddWithTTL(ctx, redisKey(m.Container), redisstore.Member{
		Score: float64(m.ExpiresAt.UnixMilli()),
		Value: b,
	}, r.ttl)
}

func (r *Redis) List(ctx context.Context, container string, now time.Time) ([]Message, error) {
	members, err := r.client.RangeFrom(ctx, redisKey(container), float64(now.UnixMilli()+1))
	if err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(members))
	for _, mb := range members {
		var m Message
		if err := json.Unmarshal(mb.Value, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	sortByExpiry(out)
	return out, nil
}

func (r *Redis) Delete(ctx context.Context, container, id string) error {
	members, err := r.client.RangeFrom(ctx, redisKey(container), 0)
	if err != nil {
		return err
	}
	for _, mb := range members {
		var m Message
		if err := json.Unmarshal(mb.Value, &m); err == nil && m.ID == id {
			return r.client.ZRem(ctx, redisKey(container), mb.Value)
		}
	}
	return nil
}

// Ready reports whether Redis answers a ping.
func (r *Redis) Ready(ctx context.Context) error {
	return r.client.Ping(ctx)
}
