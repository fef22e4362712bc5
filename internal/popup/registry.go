package popup

import (
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/plot-editor/internal/core/observability"
	"github.com/mohammed-shakir/plot-editor/internal/mode"
)

// Registry holds the open popups. The least recently used popup is dropped
// when capacity is reached.
type Registry struct {
	lru *lru.Cache[string, *Popup]
}

func NewRegistry(size int) *Registry {
	if size <= 0 {
		size = 256
	}
	c, _ := lru.New[string, *Popup](size)
	return &Registry{lru: c}
}

func (r *Registry) open(featureID int, m mode.Mode, f *geojson.Feature) *Popup {
	p := newPopup(uuid.NewString(), featureID, m, f)
	r.lru.Add(p.id, p)
	observability.SetPopupsOpen(r.lru.Len())
	return p
}

func (r *Registry) Get(id string) (*Popup, error) {
	p, ok := r.lru.Get(id)
	if !ok {
		return nil, fmt.Errorf("popup %q: %w", id, ErrPopupNotFound)
	}
	return p, nil
}

func (r *Registry) close(id string) {
	r.lru.Remove(id)
	observability.SetPopupsOpen(r.lru.Len())
}

func (r *Registry) Len() int { return r.lru.Len() }
