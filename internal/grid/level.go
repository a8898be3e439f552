package grid

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	MinLevel = 1
	MaxLevel = 5
)

// Resolutions is the cell edge length in degrees per level; index 0 is level 1.
//
// Level selection breakpoints (maximum southwest-northeast distance per level):
//
//	level  resolution   standard   wide
//	5      0.000125°    0.8 km     0.75 km
//	4      0.0025°      10 km      7.5 km
//	3      0.05°        100 km     150 km
//	2      1°           1000 km    1500 km
//	1      20°          beyond     beyond
var Resolutions = [MaxLevel]float64{20.0, 1.0, 0.05, 0.0025, 0.000125}

// NativePrecision is the number of decimals native output coordinates are rounded to.
var NativePrecision = decimals(Resolutions[MaxLevel-1])

func Resolution(level int) (float64, error) {
	if level < MinLevel || level > MaxLevel {
		return 0, fmt.Errorf("%w: %d (must be %d..%d)", ErrInvalidLevel, level, MinLevel, MaxLevel)
	}
	return Resolutions[level-1], nil
}

// LevelPolicy maps a distance in kilometres to a level.
type LevelPolicy struct {
	Name string
	// Breakpoints[i] is the largest distance served by level MaxLevel-i.
	Breakpoints [MaxLevel - 1]float64
}

var (
	PolicyStandard = LevelPolicy{Name: "standard", Breakpoints: [MaxLevel - 1]float64{0.8, 10, 100, 1000}}
	PolicyWide     = LevelPolicy{Name: "wide", Breakpoints: [MaxLevel - 1]float64{0.75, 7.5, 150, 1500}}
)

func ParsePolicy(name string) (LevelPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyStandard.Name:
		return PolicyStandard, nil
	case PolicyWide.Name:
		return PolicyWide, nil
	default:
		return LevelPolicy{}, fmt.Errorf("unknown level policy %q (want standard|wide)", name)
	}
}

// Validate checks that breakpoints are positive and strictly ascending.
func (p LevelPolicy) Validate() error {
	prev := 0.0
	for i, b := range p.Breakpoints {
		if math.IsNaN(b) || b <= prev {
			return fmt.Errorf("level policy %q: breakpoint %d (%v) must exceed %v", p.Name, i, b, prev)
		}
		prev = b
	}
	if p.Name == "" {
		return errors.New("level policy needs a name")
	}
	return nil
}

// Select returns the finest level whose breakpoint covers km.
func (p LevelPolicy) Select(km float64) int {
	if math.IsNaN(km) {
		return MinLevel
	}
	for i, limit := range p.Breakpoints {
		if km <= limit {
			return MaxLevel - i
		}
	}
	return MinLevel
}

// decimals counts the decimal digits of v's fractional part; whole numbers count as one.
func decimals(v float64) int {
	s := strconv.FormatFloat(math.Abs(v-math.Trunc(v)), 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 1
}
