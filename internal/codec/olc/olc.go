// Package olccodec adapts the Open Location Code library to codec.Interface.
package olccodec

import (
	"errors"
	"fmt"
	"math"
	"strings"

	olc "github.com/google/open-location-code/go"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/mohammed-shakir/pluscode-grid/internal/core/model"
)

const (
	Separator = '+'
	Padding   = '0'

	// DefaultLength is the code length used when encoding a point query.
	DefaultLength = 10

	pairCodeLength = 10

	// cornerDecimals trims binary noise from decoded cell corners so that
	// adjacent cells share their edges exactly.
	cornerDecimals = 14
)

var (
	ErrInvalidLength = errors.New("invalid code length")
	ErrInvalidCoord  = errors.New("coordinates must be finite")
	ErrNotFull       = errors.New("not a valid full code")
	ErrNotShort      = errors.New("not a valid short code")
	ErrShorten       = errors.New("code cannot be shortened")
)

// Codec is the Open Location Code implementation of codec.Interface.
type Codec struct{}

func New() *Codec { return &Codec{} }

// Encode rejects lengths the library would silently round up, so a caller
// asking for level n always gets 2n digits back.
func (c *Codec) Encode(lat, lng float64, length int) (string, error) {
	if length < 2 || (length < pairCodeLength && length%2 == 1) {
		return "", fmt.Errorf("%w: %d", ErrInvalidLength, length)
	}
	if !finite(lat) || !finite(lng) {
		return "", ErrInvalidCoord
	}
	return olc.Encode(lat, lng, length), nil
}

func (c *Codec) Decode(code string) (model.Cell, error) {
	code = strings.ToUpper(code)
	if err := olc.CheckFull(code); err != nil {
		return model.Cell{}, fmt.Errorf("%w: %q: %w", ErrNotFull, code, err)
	}
	area, err := olc.Decode(code)
	if err != nil {
		return model.Cell{}, fmt.Errorf("%w: %q: %w", ErrNotFull, code, err)
	}
	lat, lng := area.Center()
	return model.Cell{
		SW:     model.GeoPoint{X: scalar.Round(area.LngLo, cornerDecimals), Y: scalar.Round(area.LatLo, cornerDecimals)},
		NE:     model.GeoPoint{X: scalar.Round(area.LngHi, cornerDecimals), Y: scalar.Round(area.LatHi, cornerDecimals)},
		Center: model.GeoPoint{X: scalar.Round(lng, cornerDecimals), Y: scalar.Round(lat, cornerDecimals)},
		Length: area.Len,
	}, nil
}

// IsValid reports whether code is a syntactically valid short or full code.
func (c *Codec) IsValid(code string) bool {
	return olc.Check(strings.ToUpper(code)) == nil
}

func (c *Codec) IsShort(code string) bool {
	return olc.CheckShort(strings.ToUpper(code)) == nil
}

func (c *Codec) IsFull(code string) bool {
	return olc.CheckFull(strings.ToUpper(code)) == nil
}

// Shorten removes leading pairs from a full code that can be recovered from
// a reference location close enough to the code's center.
func (c *Codec) Shorten(code string, lat, lng float64) (string, error) {
	if !c.IsFull(code) {
		return "", fmt.Errorf("%w: %q", ErrNotFull, code)
	}
	if strings.IndexByte(code, Padding) != -1 {
		return "", fmt.Errorf("%w: padded code %q", ErrShorten, code)
	}
	short, err := olc.Shorten(strings.ToUpper(code), lat, lng)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrShorten, err)
	}
	return short, nil
}

// RecoverNearest expands a short code to the full code closest to the
// reference location. Full codes are returned upper-cased.
func (c *Codec) RecoverNearest(code string, lat, lng float64) (string, error) {
	code = strings.ToUpper(code)
	if c.IsFull(code) {
		return code, nil
	}
	if !c.IsShort(code) {
		return "", fmt.Errorf("%w: %q", ErrNotShort, code)
	}
	if !finite(lat) || !finite(lng) {
		return "", ErrInvalidCoord
	}
	full, err := olc.RecoverNearest(code, lat, lng)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrNotShort, code, err)
	}
	return full, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
