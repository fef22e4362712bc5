// Package flash holds short lived notifications shown in a UI container.
// Messages expire after a TTL; the backend is in-memory or Redis.
package flash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mohammed-shakir/plot-editor/internal/core/observability"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

// DefaultContainer is used when a caller does not name one.
const DefaultContainer = "map"

type Message struct {
	ID        string    `json:"id"`
	Container string    `json:"container"`
	Level     Level     `json:"level"`
	Text      string    `json:"text"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Backend stores messages per container. List returns only unexpired
// messages, oldest first.
type Backend interface {
	Put(ctx context.Context, m Message) error
	List(ctx context.Context, container string, now time.Time) ([]Message, error)
	Delete(ctx context.Context, container, id string) error
}

type Flasher struct {
	backend Backend
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Flasher)

func WithClock(now func() time.Time) Option {
	return func(f *Flasher) { f.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Flasher) { f.logger = l }
}

func New(backend Backend, ttl time.Duration, opts ...Option) (*Flasher, error) {
	if backend == nil {
		return nil, errors.New("flash backend is required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	f := &Flasher{
		backend: backend,
		ttl:     ttl,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(f)
	}
	return f, nil
}

// Handle refers to one flashed message so the caller can dismiss it early.
type Handle struct {
	f         *Flasher
	Container string
	ID        string
}

func (h Handle) Dismiss(ctx context.Context) error {
	if h.f == nil {
		return nil
	}
	return h.f.backend.Delete(ctx, h.Container, h.ID)
}

// Flash shows text in container at level until the TTL elapses.
func (f *Flasher) Flash(ctx context.Context, container string, level Level, text string) (Handle, error) {
	if container == "" {
		container = DefaultContainer
	}
	if level == "" {
		level = LevelInfo
	}
	m := Message{
		ID:        uuid.NewString(),
		Container: container,
		Level:     level,
		Text:      text,
		ExpiresAt: f.now().Add(f.ttl),
	}
	if err := f.backend.Put(ctx, m); err != nil {
		return Handle{}, fmt.Errorf("flash %s: %w", container, err)
	}
	observability.IncFlash(string(level))
	f.logger.DebugContext(ctx, "flash", "container", container, "level", string(level), "text", text)
	return Handle{f: f, Container: container, ID: m.ID}, nil
}

// Messages returns the visible messages for container.
func (f *Flasher) Messages(ctx context.Context, container string) ([]Message, error) {
	if container == "" {
		container = DefaultContainer
	}
	ms, err := f.backend.List(ctx, container, f.now())
	if err != nil {
		return nil, fmt.Errorf("flash list %s: %w", container, err)
	}
	return ms, nil
}

func sortByExpiry(ms []Message) {
	sort.SliceStable(ms, func(i, j int) bool {
		return ms[i].ExpiresAt.Before(ms[j].ExpiresAt)
	})
}
