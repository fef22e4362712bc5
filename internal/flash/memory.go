package flash

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory keeps messages in a bounded expirable LRU. Entries are evicted by the
// LRU's own TTL; List also filters on ExpiresAt so an injected clock works.
type Memory struct {
	lru *expirable.LRU[string, Message]
}

func NewMemory(capacity int, ttl time.Duration) *Memory {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Memory{lru: expirable.NewLRU[string, Message](capacity, nil, ttl)}
}

func memKey(container, id string) string {
	return container + "\x00" + id
}

func (m *Memory) Put(_ context.Context, msg Message) error {
	m.lru.Add(memKey(msg.Container, msg.ID), msg)
	return nil
}

func (m *Memory) List(_ context.Context, container string, now time.Time) ([]Message, error) {
	var out []Message
	for _, msg := range m.lru.Values() {
		if msg.Container != container {
			continue
		}
		if !msg.ExpiresAt.After(now) {
			m.lru.Remove(memKey(msg.Container, msg.ID))
			continue
		}
		out = append(out, msg)
	}
	sortByExpiry(out)
	return out, nil
}

func (m *Memory) Delete(_ context.Context, container, id string) error {
	m.lru.Remove(memKey(container, id))
	return nil
}

func (m *Memory) Len() int { return m.lru.Len() }
