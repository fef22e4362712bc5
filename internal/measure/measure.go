// Package measure builds the read-only info panel shown in every popup.
package measure

import (
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Row is one label/value line of the info panel.
type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Length returns the geodesic length of g in meters.
func Length(g orb.Geometry) float64 {
	if g == nil {
		return 0
	}
	return geo.Length(g)
}

// Area returns the geodesic area of g in square meters.
func Area(g orb.Geometry) float64 {
	if g == nil {
		return 0
	}
	return geo.Area(g)
}

// Info returns the panel rows for g: lengths for lines, areas for polygons,
// coordinates for points. Other geometries yield no rows.
func Info(g orb.Geometry) []Row {
	if g == nil {
		return nil
	}
	switch t := g.(type) {
	case orb.Point:
		return []Row{
			{Label: "Latitude", Value: fixed(t.Lat(), 4)},
			{Label: "Longitude", Value: fixed(t.Lon(), 4)},
		}
	case orb.LineString, orb.MultiLineString:
		m := Length(g)
		return []Row{
			{Label: "Meters", Value: fixed(m, 2)},
			{Label: "Kilometers", Value: fixed(m/1000, 2)},
			{Label: "Feet", Value: fixed(m/0.3048, 2)},
			{Label: "Yards", Value: fixed(m/0.9144, 2)},
			{Label: "Miles", Value: fixed(m/1609.34, 2)},
		}
	case orb.Polygon, orb.MultiPolygon:
		a := Area(g)
		return []Row{
			{Label: "Sq. Meters", Value: fixed(a, 2)},
			{Label: "Sq. Kilometers", Value: fixed(a/1e6, 2)},
			{Label: "Sq. Feet", Value: fixed(a/0.092903, 2)},
			{Label: "Acres", Value: fixed(a/4046.86, 2)},
			{Label: "Sq. Miles", Value: fixed(a/2589990, 2)},
		}
	default:
		return nil
	}
}

func fixed(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
