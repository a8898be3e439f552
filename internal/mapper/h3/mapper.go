package h3mapper

import (
	"fmt"
	"math"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/pluscode-grid/internal/core/model"
)

// DefaultResolution gives hexagons of roughly 0.1 km², well inside any municipality.
const DefaultResolution = 9

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

// CellFor returns the H3 index holding a lon/lat point.
func (m *Mapper) CellFor(p model.GeoPoint) (string, error) {
	if !p.Finite() || math.Abs(p.Y) > 90 {
		return "", fmt.Errorf("point (%v, %v) is not a valid lon/lat pair", p.X, p.Y)
	}
	c, err := h3.LatLngToCell(h3.NewLatLng(p.Y, p.X), m.res)
	if err != nil {
		return "", fmt.Errorf("h3 cell: %w", err)
	}
	return c.String(), nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}
