package h3mapper

import (
	"slices"
	"testing"

	"github.com/paulmach/orb"
)

func TestNew_ValidatesResolution(t *testing.T) {
	for _, res := range []int{-1, 16} {
		if _, err := New(res); err == nil {
			t.Fatalf("expected error for res=%d", res)
		}
	}
	m, err := New(9)
	if err != nil || m.Resolution() != 9 {
		t.Fatalf("New(9)=%v, %v", m, err)
	}
}

func TestCell_SameForNearbyPoints(t *testing.T) {
	m, _ := New(7)
	a, err := m.Cell(orb.Point{18.0686, 59.3293})
	if err != nil {
		t.Fatalf("cell: %v", err)
	}
	b, _ := m.Cell(orb.Point{18.06861, 59.32931})
	if a != b {
		t.Fatalf("nearby points in different res 7 cells: %v %v", a, b)
	}
	if a.Resolution() != 7 {
		t.Fatalf("resolution=%d", a.Resolution())
	}
}

func TestAround_IncludesCenterAndIsSorted(t *testing.T) {
	m, _ := New(9)
	pt := orb.Point{13.0038, 55.6050}
	c, _ := m.Cell(pt)

	cells, err := m.Around(pt, 1)
	if err != nil {
		t.Fatalf("around: %v", err)
	}
	// a hexagon plus its six neighbours
	if len(cells) != 7 {
		t.Fatalf("cells=%d want 7", len(cells))
	}
	if !slices.Contains(cells, c) {
		t.Fatal("center cell missing")
	}
	if !slices.IsSorted(cells) {
		t.Fatal("cells must be sorted")
	}

	only, _ := m.Around(pt, 0)
	if len(only) != 1 || only[0] != c {
		t.Fatalf("k=0 cells=%v", only)
	}
}
