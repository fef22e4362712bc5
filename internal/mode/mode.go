// Package mode resolves the active editing mode and the predicates that gate
// schemas and editing controls.
package mode

import (
	"context"
	"net/url"
	"strings"

	"github.com/paulmach/orb/geojson"
)

type Mode string

const (
	Task          Mode = "task"
	ProjectBounds Mode = "project_bounds"
	Checkpoint    Mode = "checkpoint"
	Default       Mode = "default"
)

// Param is the request parameter carrying the mode.
const Param = "mode"

// Family selects the category discriminator and schema set.
type Family int

const (
	// ProjectFamily keys on location_category (land_plot, project_bounds).
	ProjectFamily Family = iota
	// FeatureCategoryFamily keys on feat_cat (survey and boundary categories).
	FeatureCategoryFamily
)

// Parse maps a raw parameter to a Mode. Absent means project_bounds; anything
// unrecognised is treated as default.
func Parse(raw string) Mode {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch Mode(s) {
	case "":
		return ProjectBounds
	case Task, ProjectBounds, Checkpoint, Default:
		return Mode(s)
	default:
		return Default
	}
}

// FromQuery reads the mode parameter, falling back to def when it is absent.
func FromQuery(q url.Values, def Mode) Mode {
	if v := q.Get(Param); v != "" {
		return Parse(v)
	}
	if def == "" {
		return ProjectBounds
	}
	return def
}

func (m Mode) IsTaskMode() bool       { return m == Task }
func (m Mode) IsProjectMode() bool    { return m == ProjectBounds }
func (m Mode) IsCheckpointMode() bool { return m == Checkpoint }

func (m Mode) Family() Family {
	if m.IsCheckpointMode() || m == Default {
		return FeatureCategoryFamily
	}
	return ProjectFamily
}

// IsCheckpoint reports whether f is a survey checkpoint.
func IsCheckpoint(f *geojson.Feature) bool {
	if f == nil {
		return false
	}
	v, _ := f.Properties["feat_cat"].(string)
	return strings.HasPrefix(v, "metric_")
}

// CanEdit reports whether the popup for f exposes save/delete and editable values.
func (m Mode) CanEdit(f *geojson.Feature) bool {
	switch {
	case m.IsTaskMode():
		return false
	case m.IsProjectMode(), m == Default:
		return true
	case m.IsCheckpointMode():
		if f == nil {
			return false
		}
		if v, _ := f.Properties["feat_cat"].(string); v == "" {
			return true
		}
		return IsCheckpoint(f)
	default:
		return false
	}
}

func (m Mode) String() string { return string(m) }

type ctxKey struct{}

func WithMode(ctx context.Context, m Mode) context.Context {
	return context.WithValue(ctx, ctxKey{}, m)
}

// FromContext returns the mode stored by WithMode, or project_bounds.
func FromContext(ctx context.Context) Mode {
	if m, ok := ctx.Value(ctxKey{}).(Mode); ok && m != "" {
		return m
	}
	return ProjectBounds
}
