package feature

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/pluscode-grid/internal/core/model"
	"github.com/mohammed-shakir/pluscode-grid/internal/grid"
)

func sampleTile() model.Tile {
	sw := model.GeoPoint{X: 12.0, Y: 54.0}
	ne := model.GeoPoint{X: 12.000125, Y: 54.000125}
	return model.Tile{
		Code:   "9F6J2222+22",
		Level:  5,
		Label:  "9F6J\n2222+\n22",
		Center: model.GeoPoint{X: 12.000063, Y: 54.000063},
		Ring:   model.RingOf(sw, ne),
	}
}

func TestTile_Modes(t *testing.T) {
	tile := sampleTile()

	labels := Tile(tile, model.ModeLabels)
	pt, ok := labels.Geometry.(orb.Point)
	if !ok || pt != (orb.Point{12.000063, 54.000063}) {
		t.Fatalf("labels geometry=%#v", labels.Geometry)
	}
	want := geojson.Properties{"code": "9F6J2222+22", "label": "9F6J\n2222+\n22", "level": 5}
	if diff := cmp.Diff(want, labels.Properties); diff != "" {
		t.Fatalf("labels properties (-want +got):\n%s", diff)
	}

	polys := Tile(tile, model.ModePolygons)
	poly, ok := polys.Geometry.(orb.Polygon)
	if !ok || len(poly) != 1 || len(poly[0]) != 5 || poly[0][0] != poly[0][4] {
		t.Fatalf("polygons geometry=%#v", polys.Geometry)
	}
	if _, ok := polys.Properties["label"]; ok {
		t.Fatal("polygons mode must not carry a label")
	}
}

func TestMap_SingleTileIsFeature(t *testing.T) {
	if _, ok := Map([]model.Tile{sampleTile()}, model.ModeLabels).(*geojson.Feature); !ok {
		t.Fatal("one tile should render as a Feature")
	}
	fc, ok := Map([]model.Tile{sampleTile(), sampleTile()}, model.ModeLabels).(*geojson.FeatureCollection)
	if !ok || len(fc.Features) != 2 {
		t.Fatalf("two tiles should render as a FeatureCollection, got %#v", fc)
	}
}

func TestLocation_Properties(t *testing.T) {
	loc := grid.Location{
		Derived: grid.Derived{
			Level:     5,
			Full:      "7FG49QCJ+2V",
			Ancestors: []string{"7F000000+", "7FG40000+", "7FG49Q00+", "7FG49QCJ+", "7FG49QCJ+2V"},
			Local:     "9QCJ+2V",
			Short:     "+2V",
		},
		Center:     model.GeoPoint{X: 2.782188, Y: 20.370063},
		Ring:       model.RingOf(model.GeoPoint{X: 2.782125, Y: 20.37}, model.GeoPoint{X: 2.78225, Y: 20.370125}),
		InputEPSG:  4326,
		OutputEPSG: 4326,
		Regional:   "9QCJ+2V, Testtown",
	}
	f := Location(loc)
	want := geojson.Properties{
		"center_x":      2.782188,
		"center_y":      20.370063,
		"code_level_1":  "7F000000+",
		"code_level_2":  "7FG40000+",
		"code_level_3":  "7FG49Q00+",
		"code_level_4":  "7FG49QCJ+",
		"code_level_5":  "7FG49QCJ+2V",
		"code_local":    "9QCJ+2V",
		"code_short":    "+2V",
		"code_regional": "9QCJ+2V, Testtown",
		"epsg_in":       4326,
		"epsg_out":      4326,
		"level":         5,
	}
	if diff := cmp.Diff(want, f.Properties); diff != "" {
		t.Fatalf("properties (-want +got):\n%s", diff)
	}

	loc.Derived = grid.Derived{Level: 2, Full: "7FG40000+", Ancestors: []string{"7F000000+", "7FG40000+"}}
	loc.Regional = ""
	f = Location(loc)
	for _, k := range []string{"code_level_3", "code_local", "code_short", "code_regional"} {
		if _, ok := f.Properties[k]; ok {
			t.Fatalf("level 2 location has %s", k)
		}
	}
}

func TestMarshal_CRSMember(t *testing.T) {
	f := Tile(sampleTile(), model.ModeLabels)

	native, err := Marshal(f, model.NativeEPSG, false)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(native), `"crs"`) {
		t.Fatalf("native output carries crs: %s", native)
	}

	out, err := Marshal(f, 25833, true)
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Type string  `json:"type"`
		CRS  CRSLink `json:"crs"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, out)
	}
	if doc.Type != "Feature" || doc.CRS.Type != "link" || doc.CRS.Properties.Href != "https://spatialreference.org/ref/epsg/25833/proj4/" {
		t.Fatalf("unexpected document %+v", doc)
	}
	if !strings.Contains(string(out), "\n  \"crs\"") {
		t.Fatalf("pretty output not indented:\n%s", out)
	}
}
