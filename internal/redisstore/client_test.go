package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newMini(t *testing.T) (*miniredis.Miniredis, *Client) {
	t.Helper()
	mr := miniredis.RunT(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, err := New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestNew_RequiresAddr(t *testing.T) {
	if _, err := New(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty address")
	}
}

func TestZAddAndRange(t *testing.T) {
	mr, c := newMini(t)
	ctx := context.Background()

	for i, v := range []string{"old", "mid", "new"} {
		if err := c.ZAddWithTTL(ctx, "k", Member{Score: float64(10 * (i + 1)), Value: []byte(v)}, time.Minute); err != nil {
			t.Fatalf("zadd: %v", err)
		}
	}
	if ttl := mr.TTL("k"); ttl <= 0 {
		t.Fatalf("ttl=%v want >0", ttl)
	}

	got, err := c.RangeFrom(ctx, "k", 20)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(got) != 2 || string(got[0].Value) != "mid" || string(got[1].Value) != "new" {
		t.Fatalf("got=%+v", got)
	}
	// members below min are dropped from the set
	if members, _ := mr.SortedSet("k"); len(members) != 2 {
		t.Fatalf("set=%v want 2 members", members)
	}
}

func TestZRem(t *testing.T) {
	_, c := newMini(t)
	ctx := context.Background()

	_ = c.ZAddWithTTL(ctx, "k", Member{Score: 1, Value: []byte("a")}, 0)
	_ = c.ZAddWithTTL(ctx, "k", Member{Score: 2, Value: []byte("b")}, 0)
	if err := c.ZRem(ctx, "k", []byte("a")); err != nil {
		t.Fatalf("zrem: %v", err)
	}
	got, err := c.RangeFrom(ctx, "k", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || string(got[0].Value) != "b" {
		t.Fatalf("got=%+v", got)
	}
}

func TestPing_ServerDown(t *testing.T) {
	mr, c := newMini(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Ping(ctx); err == nil {
		t.Fatal("expected ping error after server close")
	}
}
