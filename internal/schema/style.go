package schema

import "github.com/paulmach/orb"

// InputKind hints how a client renders the value control of a row.
type InputKind string

const (
	InputText   InputKind = "text"
	InputColor  InputKind = "color"
	InputNumber InputKind = "number"
	InputSelect InputKind = "select"
)

// StyleProperty is one cartographic styling key with its default value.
type StyleProperty struct {
	Key     string
	Default string
	Kind    InputKind
	Min     string
	Max     string
	Step    string
	// List names the suggestion list offered for the value, if any.
	List []string
}

// MarkerSizes are the accepted marker-size values.
var MarkerSizes = []string{"small", "medium", "large"}

var pointStyle = []StyleProperty{
	{Key: "marker-color", Default: "#7E7E7E", Kind: InputColor},
	{Key: "marker-size", Default: "medium", Kind: InputText, List: MarkerSizes},
	{Key: "marker-symbol", Default: "circle", Kind: InputText},
}

var strokeStyle = []StyleProperty{
	{Key: "stroke", Default: "#555555", Kind: InputColor},
	{Key: "stroke-width", Default: "2", Kind: InputNumber, Min: "0", Step: "0.1"},
	{Key: "stroke-opacity", Default: "1", Kind: InputNumber, Min: "0", Max: "1", Step: "0.1"},
}

var fillStyle = []StyleProperty{
	{Key: "fill", Default: "#555555", Kind: InputColor},
	{Key: "fill-opacity", Default: "0.5", Kind: InputNumber, Min: "0", Max: "1", Step: "0.1"},
}

// StyleFor returns the styling keys applicable to geometry g, in display
// order. Collections get nothing.
func StyleFor(g orb.Geometry) []StyleProperty {
	if g == nil {
		return nil
	}
	switch g.GeoJSONType() {
	case "Point", "MultiPoint":
		return pointStyle
	case "LineString", "MultiLineString":
		return strokeStyle
	case "Polygon", "MultiPolygon":
		out := make([]StyleProperty, 0, len(strokeStyle)+len(fillStyle))
		out = append(out, strokeStyle...)
		return append(out, fillStyle...)
	default:
		return nil
	}
}
