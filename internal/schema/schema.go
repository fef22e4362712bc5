// Package schema defines the property schemas selected by the category
// discriminator and the cartographic styling defaults per geometry class.
package schema

import (
	"slices"

	"github.com/mohammed-shakir/plot-editor/internal/mode"
)

const (
	LocationCategoryKey = "location_category"
	FeatCatKey          = "feat_cat"

	LandPlot      = "land_plot"
	ProjectBounds = "project_bounds"
)

// FeatureCategories is the fixed enumeration offered by the feat_cat select.
var FeatureCategories = []string{
	"project_boundary",
	"habitat_boundary",
	"metric_plant_survey",
	"metric_acoustic_survey",
	"metric_invertebrate_survey",
	"metric_habitat_survey",
}

// Schema describes one property table layout.
type Schema struct {
	// Category is the discriminator value that selected this schema; empty
	// when nothing is selected yet.
	Category      string
	Discriminator string
	Options       []string
	Required      []string
	// Message is flashed when a required key is missing on save.
	Message string
}

// Reserved reports whether key is placed by the schema itself.
func (s Schema) Reserved(key string) bool {
	return key == s.Discriminator || slices.Contains(s.Required, key)
}

// Discriminator returns the category key used by family f.
func Discriminator(f mode.Family) string {
	if f == mode.FeatureCategoryFamily {
		return FeatCatKey
	}
	return LocationCategoryKey
}

// For returns the schema for the given family and discriminator value.
func For(f mode.Family, category string) Schema {
	if f == mode.FeatureCategoryFamily {
		return Schema{
			Category:      category,
			Discriminator: FeatCatKey,
			Options:       FeatureCategories,
			Required:      []string{"plot_id"},
			Message:       "Please enter both a plot_id and feat_cat for this feature.",
		}
	}
	opts := []string{LandPlot, ProjectBounds}
	if category == LandPlot {
		return Schema{
			Category:      category,
			Discriminator: LocationCategoryKey,
			Options:       opts,
			Required:      []string{"name", "type"},
			Message:       "Please enter both a name and type for this plot.",
		}
	}
	return Schema{
		Category:      category,
		Discriminator: LocationCategoryKey,
		Options:       opts,
		Required:      []string{"name"},
		Message:       "Please enter a name for this project boundary.",
	}
}

// Missing returns the keys the schema needs before a save can commit. The
// feature-category family also needs the discriminator itself.
func (s Schema) Missing(props map[string]any) []string {
	need := s.Required
	if s.Discriminator == FeatCatKey {
		need = append([]string{FeatCatKey}, s.Required...)
	}
	var out []string
	for _, k := range need {
		if !present(props[k]) {
			out = append(out, k)
		}
	}
	return out
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	default:
		return true
	}
}
