// Package store holds the working FeatureCollection. Features are addressed by
// their position in the collection; Set is the only change-notification path.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/plot-editor/internal/core/observability"
)

// Origin tags who produced a change so listeners can skip work on
// self-originated updates.
type Origin string

const (
	OriginPopup Origin = "popup"
	OriginLoad  Origin = "load"
	OriginAPI   Origin = "api"
	OriginTools Origin = "tools"
)

var ErrFeatureNotFound = errors.New("feature not found")

// Key names a part of the state for Get.
type Key string

const (
	KeyMap  Key = "map"
	KeyMeta Key = "meta"
)

// Meta is document level information kept beside the collection.
type Meta struct {
	Name string `json:"name,omitempty"`
	Path string `json:"path,omitempty"`
}

// State is a partial state for Set; nil fields are left untouched.
type State struct {
	Map  *geojson.FeatureCollection
	Meta *Meta
}

// Change is delivered to listeners after every commit. Map is a private copy.
type Change struct {
	Origin  Origin
	Version uint64
	Map     *geojson.FeatureCollection
	Meta    Meta
}

type Listener func(Change)

type Store struct {
	logger *slog.Logger

	// wmu serializes writers including their notification pass, so listeners
	// observe commits in order. Listeners must not write to the store.
	wmu sync.Mutex

	mu      sync.RWMutex
	fc      *geojson.FeatureCollection
	meta    Meta
	version uint64

	lmu       sync.RWMutex
	listeners []Listener
}

func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger: logger,
		fc:     geojson.NewFeatureCollection(),
	}
}

// Subscribe registers fn to be called after every commit, in registration order.
func (s *Store) Subscribe(fn Listener) {
	if fn == nil {
		return
	}
	s.lmu.Lock()
	s.listeners = append(s.listeners, fn)
	s.lmu.Unlock()
}

// Map returns a copy of the current collection.
func (s *Store) Map() *geojson.FeatureCollection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Clone(s.fc)
}

// Get returns a copy of the state part named by key, or nil for unknown keys.
func (s *Store) Get(key Key) any {
	switch key {
	case KeyMap:
		return s.Map()
	case KeyMeta:
		return s.Meta()
	default:
		return nil
	}
}

func (s *Store) Meta() Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fc.Features)
}

// Feature returns a copy of the feature at id.
func (s *Store) Feature(id int) (*geojson.Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || id >= len(s.fc.Features) {
		return nil, fmt.Errorf("feature %d of %d: %w", id, len(s.fc.Features), ErrFeatureNotFound)
	}
	return cloneFeature(s.fc.Features[id]), nil
}

// Set replaces the parts of the state present in st and notifies listeners.
// The store takes ownership of st.Map.
func (s *Store) Set(st State, origin Origin) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.Lock()
	if st.Map != nil {
		if st.Map.Features == nil {
			st.Map.Features = []*geojson.Feature{}
		}
		s.fc = st.Map
	}
	if st.Meta != nil {
		s.meta = *st.Meta
	}
	ch := s.commitLocked(origin)
	s.mu.Unlock()

	s.notify(ch)
}

// Update runs fn against a working copy of the collection and commits it with
// Set semantics when fn returns nil. On error nothing is committed.
func (s *Store) Update(origin Origin, fn func(fc *geojson.FeatureCollection) error) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.RLock()
	work := Clone(s.fc)
	s.mu.RUnlock()

	if err := fn(work); err != nil {
		return err
	}

	s.mu.Lock()
	s.fc = work
	ch := s.commitLocked(origin)
	s.mu.Unlock()

	s.notify(ch)
	return nil
}

func (s *Store) commitLocked(origin Origin) Change {
	s.version++
	observability.ObserveCommit(string(origin), len(s.fc.Features))
	return Change{
		Origin:  origin,
		Version: s.version,
		Map:     Clone(s.fc),
		Meta:    s.meta,
	}
}

func (s *Store) notify(ch Change) {
	s.lmu.RLock()
	ls := make([]Listener, len(s.listeners))
	copy(ls, s.listeners)
	s.lmu.RUnlock()

	s.logger.Debug("feature store commit",
		"origin", string(ch.Origin),
		"version", ch.Version,
		"features", len(ch.Map.Features))

	for _, fn := range ls {
		fn(ch)
	}
}

// Clone deep copies a collection including geometries and properties.
func Clone(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	if fc == nil {
		return nil
	}
	out := geojson.NewFeatureCollection()
	out.BBox = append(geojson.BBox(nil), fc.BBox...)
	out.Features = make([]*geojson.Feature, len(fc.Features))
	for i, f := range fc.Features {
		out.Features[i] = cloneFeature(f)
	}
	if fc.ExtraMembers != nil {
		out.ExtraMembers = fc.ExtraMembers.Clone()
	}
	return out
}

func cloneFeature(f *geojson.Feature) *geojson.Feature {
	if f == nil {
		return nil
	}
	cp := *f
	if f.Geometry != nil {
		cp.Geometry = orb.Clone(f.Geometry)
	}
	cp.Properties = f.Properties.Clone()
	cp.BBox = append(geojson.BBox(nil), f.BBox...)
	return &cp
}
