// Package surface is the map side of the editor: the data source the client
// draws, the marker set, the fitted viewport and pointer hit tests.
package surface

import (
	"log/slog"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	h3 "github.com/uber/h3-go/v4"

	h3mapper "github.com/mohammed-shakir/plot-editor/internal/mapper/h3"
	"github.com/mohammed-shakir/plot-editor/internal/markers"
	"github.com/mohammed-shakir/plot-editor/internal/store"
)

// Hit is the result of a pointer query.
type Hit struct {
	FeatureID int    `json:"feature_id"`
	Kind      string `json:"kind"` // marker|polygon
	// Marker is the index into the marker set for marker hits, else -1.
	Marker int `json:"marker"`
}

type Viewport struct {
	Bound   orb.Bound `json:"bound"`
	Fitted  bool      `json:"fitted"`
	Version uint64    `json:"version"`
}

type Surface struct {
	layer  *markers.Layer
	mapper *h3mapper.Mapper
	logger *slog.Logger

	// render serializes marker rebuilds from commits and style switches.
	render sync.Mutex

	mu       sync.RWMutex
	current  *geojson.FeatureCollection
	source   *geojson.FeatureCollection
	markers  []markers.Marker
	index    map[h3.Cell][]int
	viewport Viewport
	version  uint64
}

func New(layer *markers.Layer, mapper *h3mapper.Mapper, logger *slog.Logger) *Surface {
	if logger == nil {
		logger = slog.Default()
	}
	return &Surface{
		layer:  layer,
		mapper: mapper,
		logger: logger,
		source: geojson.NewFeatureCollection(),
		index:  map[h3.Cell][]int{},
	}
}

// Attach renders the store's current state and follows every later commit.
func (s *Surface) Attach(st *store.Store) {
	s.OnChange(store.Change{Origin: store.OriginLoad, Map: st.Map()})
	st.Subscribe(s.OnChange)
}

// OnChange replaces the data source and markers wholesale. The viewport is
// refit unless the change came from a popup.
func (s *Surface) OnChange(ch store.Change) {
	fc := ch.Map
	if fc == nil {
		return
	}
	s.render.Lock()
	defer s.render.Unlock()

	src := withIDs(fc)
	ms := s.layer.Render(fc)
	idx := s.buildIndex(ms)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = fc
	s.source = src
	s.markers = ms
	s.index = idx
	s.version = ch.Version
	if len(src.Features) > 0 && ch.Origin != store.OriginPopup {
		s.fitLocked()
	}
	s.logger.Debug("surface updated",
		"origin", string(ch.Origin),
		"features", len(src.Features),
		"markers", len(ms))
}

// SetStyle switches the base-map style and re-renders the markers of the
// current collection with its default colors. The viewport is left alone.
func (s *Surface) SetStyle(style string) []markers.Marker {
	s.render.Lock()
	defer s.render.Unlock()

	s.layer.SetStyle(style)
	s.mu.RLock()
	fc := s.current
	s.mu.RUnlock()

	ms := s.layer.Render(fc)
	idx := s.buildIndex(ms)

	s.mu.Lock()
	s.markers = ms
	s.index = idx
	s.mu.Unlock()
	s.logger.Info("base style switched", "style", style, "markers", len(ms))

	cp := make([]markers.Marker, len(ms))
	copy(cp, ms)
	return cp
}

func (s *Surface) Style() string { return s.layer.Style() }

// ZoomToFeatures refits the viewport to the current data source.
func (s *Surface) ZoomToFeatures() Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitLocked()
	return s.viewport
}

func (s *Surface) fitLocked() {
	var b orb.Bound
	first := true
	for _, f := range s.source.Features {
		fb := f.Geometry.Bound()
		if first {
			b = fb
			first = false
			continue
		}
		b = b.Union(fb)
	}
	if first {
		return
	}
	s.viewport = Viewport{Bound: b, Fitted: true, Version: s.version}
}

func (s *Surface) Viewport() Viewport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewport
}

// Source returns the data source: features with geometry, each with its
// collection index as id.
func (s *Surface) Source() *geojson.FeatureCollection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return store.Clone(s.source)
}

func (s *Surface) Markers() []markers.Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]markers.Marker, len(s.markers))
	copy(cp, s.markers)
	return cp
}

// Marker returns the marker at position n of the current set.
func (s *Surface) Marker(n int) (markers.Marker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n < 0 || n >= len(s.markers) {
		return markers.Marker{}, false
	}
	return s.markers[n], true
}

// QueryRenderedFeature returns the feature under pt: the nearest marker in
// the same or an adjacent cell, else the first polygon containing pt.
func (s *Surface) QueryRenderedFeature(pt orb.Point) (Hit, bool) {
	if h, ok := s.queryMarker(pt); ok {
		return h, true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.source.Features {
		if containsPoint(f.Geometry, pt) {
			id, _ := f.ID.(int)
			return Hit{FeatureID: id, Kind: "polygon", Marker: -1}, true
		}
	}
	return Hit{}, false
}

func (s *Surface) queryMarker(pt orb.Point) (Hit, bool) {
	if s.mapper == nil {
		return Hit{}, false
	}
	cells, err := s.mapper.Around(pt, 1)
	if err != nil {
		s.logger.Debug("marker query skipped", "err", err)
		return Hit{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	best, bestD := -1, 0.0
	var hit markers.Marker
	for _, c := range cells {
		for _, n := range s.index[c] {
			m := s.markers[n]
			d := planar.DistanceSquared(pt, m.Position)
			if best < 0 || d < bestD {
				best, bestD, hit = n, d, m
			}
		}
	}
	if best < 0 {
		return Hit{}, false
	}
	return Hit{FeatureID: hit.FeatureID, Kind: "marker", Marker: best}, true
}

func (s *Surface) buildIndex(ms []markers.Marker) map[h3.Cell][]int {
	idx := make(map[h3.Cell][]int, len(ms))
	if s.mapper == nil {
		return idx
	}
	for i, m := range ms {
		c, err := s.mapper.Cell(m.Position)
		if err != nil {
			continue
		}
		idx[c] = append(idx[c], i)
	}
	return idx
}

func containsPoint(g orb.Geometry, pt orb.Point) bool {
	switch t := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(t, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(t, pt)
	case orb.Collection:
		for _, m := range t {
			if containsPoint(m, pt) {
				return true
			}
		}
	}
	return false
}

// withIDs keeps the features that have geometry and sets each id to the
// feature's index in fc.
func withIDs(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		cp := *f
		cp.ID = i
		out.Append(&cp)
	}
	return out
}
