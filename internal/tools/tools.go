// Package tools implements the toolbar actions: zoom to features, clear,
// flatten multi features and save to project.
package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/plot-editor/internal/hostsync"
	"github.com/mohammed-shakir/plot-editor/internal/mode"
	"github.com/mohammed-shakir/plot-editor/internal/store"
	"github.com/mohammed-shakir/plot-editor/internal/surface"
)

// Host receives the collection on "Save to project".
type Host interface {
	SaveProject(ctx context.Context, u hostsync.ModelUpdate) error
}

type Tools struct {
	store   *store.Store
	surface *surface.Surface
	host    Host
	logger  *slog.Logger
}

// New wires the toolbar. host may be nil when no host integration is
// configured.
func New(st *store.Store, sf *surface.Surface, host Host, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{store: st, surface: sf, host: host, logger: logger}
}

func (t *Tools) Zoom() surface.Viewport {
	return t.surface.ZoomToFeatures()
}

// Clear removes every feature.
func (t *Tools) Clear() error {
	return t.store.Update(store.OriginTools, func(fc *geojson.FeatureCollection) error {
		fc.Features = []*geojson.Feature{}
		return nil
	})
}

// Flatten replaces multi geometries and collections with one feature per
// member, each carrying a copy of the parent's properties. It returns the
// resulting feature count.
func (t *Tools) Flatten() (int, error) {
	n := 0
	err := t.store.Update(store.OriginTools, func(fc *geojson.FeatureCollection) error {
		out := make([]*geojson.Feature, 0, len(fc.Features))
		for _, f := range fc.Features {
			out = append(out, FlattenFeature(f)...)
		}
		fc.Features = out
		n = len(out)
		return nil
	})
	return n, err
}

// SaveToProject hands the whole collection to the host.
func (t *Tools) SaveToProject(ctx context.Context) error {
	if t.host == nil {
		return fmt.Errorf("save to project: %w", hostsync.ErrHostUnavailable)
	}
	u := hostsync.ModelUpdate{
		GeoJSON: t.store.Map(),
		Name:    t.store.Meta().Name,
		Mode:    string(mode.FromContext(ctx)),
	}
	if err := t.host.SaveProject(ctx, u); err != nil {
		return fmt.Errorf("save to project: %w", err)
	}
	return nil
}

// FlattenFeature splits f into simple-geometry features. Features without
// geometry, simple features and empty multi-geometries are returned unchanged.
func FlattenFeature(f *geojson.Feature) []*geojson.Feature {
	if f == nil || f.Geometry == nil {
		return []*geojson.Feature{f}
	}
	parts := flattenGeometry(f.Geometry)
	if len(parts) == 0 || (len(parts) == 1 && parts[0] == nil) {
		return []*geojson.Feature{f}
	}
	out := make([]*geojson.Feature, 0, len(parts))
	for _, g := range parts {
		nf := geojson.NewFeature(g)
		nf.Properties = f.Properties.Clone()
		if nf.Properties == nil {
			nf.Properties = geojson.Properties{}
		}
		out = append(out, nf)
	}
	return out
}

// flattenGeometry returns the members of g, or [nil] when g is already simple.
func flattenGeometry(g orb.Geometry) []orb.Geometry {
	var out []orb.Geometry
	switch t := g.(type) {
	case orb.MultiPoint:
		for _, p := range t {
			out = append(out, p)
		}
	case orb.MultiLineString:
		for _, l := range t {
			out = append(out, l)
		}
	case orb.MultiPolygon:
		for _, p := range t {
			out = append(out, p)
		}
	case orb.Collection:
		for _, m := range t {
			sub := flattenGeometry(m)
			if len(sub) == 1 && sub[0] == nil {
				out = append(out, m)
				continue
			}
			out = append(out, sub...)
		}
	default:
		return []orb.Geometry{nil}
	}
	return out
}
