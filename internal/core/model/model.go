// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"math"
)

// EPSG identifies a coordinate reference system by its EPSG code.
type EPSG int

// NativeEPSG is the working CRS of the grid engine (WGS84 lon/lat degrees).
const NativeEPSG EPSG = 4326

func (e EPSG) String() string { return fmt.Sprintf("EPSG:%d", int(e)) }

// GeoPoint is X (longitude/easting), Y (latitude/northing) in some CRS.
type GeoPoint struct {
	X, Y float64
}

func (p GeoPoint) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

type BBox struct {
	SW, NE GeoPoint
}

// Valid reports whether the corners are finite and ordered southwest to northeast.
func (b BBox) Valid() bool {
	if !b.SW.Finite() || !b.NE.Finite() {
		return false
	}
	return b.NE.X >= b.SW.X && b.NE.Y >= b.SW.Y
}

// String representation matching the bbox request parameter
func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.SW.X, b.SW.Y, b.NE.X, b.NE.Y)
}

// Cell is the rectangular area a grid code denotes.
type Cell struct {
	Center GeoPoint
	SW, NE GeoPoint
	// Length is the number of significant code digits.
	Length int
}

// Contains reports whether p lies inside the cell (south/west edges inclusive).
func (c Cell) Contains(p GeoPoint) bool {
	return p.X >= c.SW.X && p.X < c.NE.X && p.Y >= c.SW.Y && p.Y < c.NE.Y
}

// Ring returns the closed cell outline: SW, SE, NE, NW, SW.
func (c Cell) Ring() [5]GeoPoint {
	return RingOf(c.SW, c.NE)
}

func RingOf(sw, ne GeoPoint) [5]GeoPoint {
	return [5]GeoPoint{
		sw,
		{X: ne.X, Y: sw.Y},
		ne,
		{X: sw.X, Y: ne.Y},
		sw,
	}
}

type Mode string

const (
	ModeLabels   Mode = "labels"
	ModePolygons Mode = "polygons"
)

func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeLabels, ModePolygons:
		return Mode(s), true
	default:
		return "", false
	}
}

// Tile is one grid cell emitted while covering a bounding box.
type Tile struct {
	Code   string
	Level  int
	Label  string
	Center GeoPoint
	Ring   [5]GeoPoint
}
