// Package markers derives the point markers drawn over the base map. Lines and
// polygons are rendered natively by the map client; only point bearing
// geometries become markers.
package markers

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/plot-editor/internal/core/config"
	"github.com/mohammed-shakir/plot-editor/internal/core/observability"
)

const (
	StyleSatelliteStreets = "Satellite Streets"
	StyleDark             = "Dark"

	defaultSymbolColor = "#fff"
)

// Marker is one rendered point. FeatureID is the index of the parent feature;
// all markers expanded from one MultiPoint share it.
type Marker struct {
	FeatureID   int                `json:"feature_id"`
	Position    orb.Point          `json:"position"`
	Color       string             `json:"color"`
	SymbolColor string             `json:"symbol_color"`
	Scale       float64            `json:"scale"`
	Symbol      string             `json:"symbol,omitempty"`
	Properties  geojson.Properties `json:"properties"`
}

// Layer holds the current marker set. Render replaces it entirely.
type Layer struct {
	palette config.Palette
	logger  *slog.Logger

	mu      sync.RWMutex
	style   string
	markers []Marker
}

func NewLayer(palette config.Palette, style string, logger *slog.Logger) *Layer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Layer{palette: palette, style: style, logger: logger}
}

// SetStyle switches the base-map style used for default colors. It takes
// effect on the next Render.
func (l *Layer) SetStyle(style string) {
	l.mu.Lock()
	l.style = style
	l.mu.Unlock()
}

func (l *Layer) Style() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.style
}

// Render drops every previously rendered marker and builds the set for fc.
// Features without geometry are skipped but keep their index.
func (l *Layer) Render(fc *geojson.FeatureCollection) []Marker {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.markers = nil
	color, symbolColor := l.defaultsLocked()

	var out []Marker
	if fc != nil {
		for i, f := range fc.Features {
			if f == nil || f.Geometry == nil {
				continue
			}
			for _, pt := range Expand(f.Geometry) {
				out = append(out, style(i, pt, f.Properties, color, symbolColor))
			}
		}
	}
	l.markers = out
	observability.SetMarkersRendered(len(out))
	l.logger.Debug("markers rendered", "count", len(out), "style", l.style)

	cp := make([]Marker, len(out))
	copy(cp, out)
	return cp
}

// Markers returns the last rendered set.
func (l *Layer) Markers() []Marker {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cp := make([]Marker, len(l.markers))
	copy(cp, l.markers)
	return cp
}

func (l *Layer) defaultsLocked() (color, symbolColor string) {
	switch l.style {
	case StyleSatelliteStreets:
		return l.palette.SatelliteFeature, defaultSymbolColor
	case StyleDark:
		return l.palette.LightFeature, l.palette.DarkFeature
	default:
		return l.palette.DarkFeature, defaultSymbolColor
	}
}

// Expand walks g and returns every point it carries: a Point yields itself,
// a MultiPoint each coordinate, a Collection the points of its members.
func Expand(g orb.Geometry) []orb.Point {
	switch t := g.(type) {
	case orb.Point:
		return []orb.Point{t}
	case orb.MultiPoint:
		out := make([]orb.Point, len(t))
		copy(out, t)
		return out
	case orb.Collection:
		var out []orb.Point
		for _, m := range t {
			out = append(out, Expand(m)...)
		}
		return out
	default:
		return nil
	}
}

func style(id int, pt orb.Point, props geojson.Properties, color, symbolColor string) Marker {
	if props == nil {
		props = geojson.Properties{}
	}
	m := Marker{
		FeatureID:   id,
		Position:    pt,
		Color:       color,
		SymbolColor: symbolColor,
		Scale:       Scale(prop(props, "marker-size")),
		Symbol:      prop(props, "marker-symbol"),
		Properties:  props,
	}
	if c := hexColor(prop(props, "marker-color")); c != "" {
		m.Color = c
	}
	if c := hexColor(prop(props, "symbol-color")); c != "" {
		m.SymbolColor = c
	}
	return m
}

// prop reads key or its saved snake case form.
func prop(props geojson.Properties, key string) string {
	if v, ok := props[key].(string); ok && v != "" {
		return v
	}
	if v, ok := props[strings.ReplaceAll(key, "-", "_")].(string); ok {
		return v
	}
	return ""
}

// Scale maps a marker-size to the marker scale factor.
func Scale(size string) float64 {
	switch size {
	case "small":
		return 0.6
	case "large":
		return 1.2
	default:
		return 1
	}
}

// hexColor canonicalizes "#rgb"/"#rrggbb" and the bare hex form left by
// saving to lower case "#rrggbb". Anything else, such as a CSS color name, is
// passed through for the client to resolve.
func hexColor(s string) string {
	if s == "" {
		return ""
	}
	in := s
	if !strings.HasPrefix(in, "#") {
		in = "#" + in
	}
	c, err := colorful.Hex(in)
	if err != nil {
		return s
	}
	return c.Hex()
}
