// Package feature turns resolved cells and tiles into GeoJSON.
package feature

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/pluscode-grid/internal/core/model"
	"github.com/mohammed-shakir/pluscode-grid/internal/grid"
)

func point(p model.GeoPoint) orb.Point { return orb.Point{p.X, p.Y} }

func polygon(ring [5]model.GeoPoint) orb.Polygon {
	r := make(orb.Ring, 0, len(ring))
	for _, p := range ring {
		r = append(r, point(p))
	}
	return orb.Polygon{r}
}

// Location renders a resolved cell as a Polygon feature carrying its code family.
func Location(loc grid.Location) *geojson.Feature {
	f := geojson.NewFeature(polygon(loc.Ring))
	f.Properties["center_x"] = loc.Center.X
	f.Properties["center_y"] = loc.Center.Y
	f.Properties["epsg_in"] = int(loc.InputEPSG)
	f.Properties["epsg_out"] = int(loc.OutputEPSG)
	f.Properties["level"] = loc.Level
	for l := grid.MinLevel; l <= loc.Level; l++ {
		f.Properties["code_level_"+strconv.Itoa(l)] = loc.Ancestor(l)
	}
	if loc.Local != "" {
		f.Properties["code_local"] = loc.Local
	}
	if loc.Short != "" {
		f.Properties["code_short"] = loc.Short
	}
	if loc.Regional != "" {
		f.Properties["code_regional"] = loc.Regional
	}
	return f
}

// Tile renders one tile: a labelled center Point in labels mode, the bare cell
// Polygon in polygons mode.
func Tile(t model.Tile, mode model.Mode) *geojson.Feature {
	if mode == model.ModePolygons {
		f := geojson.NewFeature(polygon(t.Ring))
		f.Properties["code"] = t.Code
		f.Properties["level"] = t.Level
		return f
	}
	f := geojson.NewFeature(point(t.Center))
	f.Properties["code"] = t.Code
	f.Properties["label"] = t.Label
	f.Properties["level"] = t.Level
	return f
}

func Tiles(tiles []model.Tile, mode model.Mode) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = make([]*geojson.Feature, 0, len(tiles))
	for _, t := range tiles {
		fc.Append(Tile(t, mode))
	}
	return fc
}

// Map renders tiles the way the /map route answers: a single tile stands
// alone, anything else is a FeatureCollection.
func Map(tiles []model.Tile, mode model.Mode) any {
	if len(tiles) == 1 {
		return Tile(tiles[0], mode)
	}
	return Tiles(tiles, mode)
}

// CRSLink is the pre-RFC 7946 named CRS member.
type CRSLink struct {
	Type       string `json:"type"`
	Properties struct {
		Type string `json:"type"`
		Href string `json:"href"`
	} `json:"properties"`
}

func CRS(epsg model.EPSG) CRSLink {
	var c CRSLink
	c.Type = "link"
	c.Properties.Type = "proj4"
	c.Properties.Href = fmt.Sprintf("https://spatialreference.org/ref/epsg/%d/proj4/", int(epsg))
	return c
}

// Marshal encodes v with sorted top-level members, adding the legacy crs link
// when out is not the native CRS.
func Marshal(v any, out model.EPSG, pretty bool) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal geojson: %w", err)
	}
	if out != 0 && out != model.NativeEPSG {
		var members map[string]json.RawMessage
		if err := json.Unmarshal(raw, &members); err != nil {
			return nil, fmt.Errorf("geojson members: %w", err)
		}
		link, err := json.Marshal(CRS(out))
		if err != nil {
			return nil, fmt.Errorf("marshal crs: %w", err)
		}
		members["crs"] = link
		if raw, err = json.Marshal(members); err != nil {
			return nil, fmt.Errorf("marshal geojson: %w", err)
		}
	}
	if !pretty {
		return raw, nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("indent geojson: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
