// Package h3mapper maps map positions onto H3 cells for pointer hit tests.
package h3mapper

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	h3 "github.com/uber/h3-go/v4"
)

type Mapper struct {
	res int
}

func New(res int) (*Mapper, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	return &Mapper{res: res}, nil
}

func (m *Mapper) Resolution() int { return m.res }

// Cell returns the cell containing pt (lon, lat in degrees).
func (m *Mapper) Cell(pt orb.Point) (h3.Cell, error) {
	c, err := h3.LatLngToCell(h3.LatLng{Lat: pt.Lat(), Lng: pt.Lon()}, m.res)
	if err != nil {
		return 0, fmt.Errorf("h3 cell for %v: %w", pt, err)
	}
	return c, nil
}

// Around returns the cell containing pt and every cell within k steps of it,
// sorted for determinism.
func (m *Mapper) Around(pt orb.Point, k int) ([]h3.Cell, error) {
	c, err := m.Cell(pt)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		return []h3.Cell{c}, nil
	}
	disk, err := h3.GridDisk(c, k)
	if err != nil {
		return nil, fmt.Errorf("h3 grid disk: %w", err)
	}
	seen := make(map[h3.Cell]struct{}, len(disk))
	out := make([]h3.Cell, 0, len(disk))
	for _, d := range disk {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}
