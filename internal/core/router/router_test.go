package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/pluscode-grid/internal/cache/redisstore"
	"github.com/mohammed-shakir/pluscode-grid/internal/cache/tilecache"
	olccodec "github.com/mohammed-shakir/pluscode-grid/internal/codec/olc"
	"github.com/mohammed-shakir/pluscode-grid/internal/core/config"
	"github.com/mohammed-shakir/pluscode-grid/internal/core/model"
	"github.com/mohammed-shakir/pluscode-grid/internal/geodesy/proj"
	"github.com/mohammed-shakir/pluscode-grid/internal/grid"
)

type countingEngine struct {
	*grid.Engine
	plans atomic.Int32
}

func (c *countingEngine) Plan(ctx context.Context, req grid.TileRequest) (grid.Plan, error) {
	c.plans.Add(1)
	return c.Engine.Plan(ctx, req)
}

type stubGeocoder struct{}

func (stubGeocoder) Forward(_ context.Context, name string) (model.GeoPoint, bool, error) {
	if name == "Testtown" {
		return model.GeoPoint{X: 2.78, Y: 20.37}, true, nil
	}
	return model.GeoPoint{}, false, nil
}

func (stubGeocoder) Reverse(context.Context, model.GeoPoint) (string, error) { return "Testtown", nil }

func testConfig() config.Config {
	return config.Config{
		DefaultEPSGIn:     4326,
		DefaultEPSGOut:    25833,
		DefaultMapEPSGIn:  4326,
		DefaultMapEPSGOut: 4326,
		DefaultMapMode:    "labels",
		MapMaxTiles:       1000,
	}
}

func newEngine(t *testing.T, cfg grid.Config, opts ...grid.Option) *countingEngine {
	t.Helper()
	e, err := grid.New(cfg, olccodec.New(), proj.New(), opts...)
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}
	return &countingEngine{Engine: e}
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.HandleFunc("/", h.Location())
	r.HandleFunc("/map", h.Map())
	return r
}

type document struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   struct {
		Type string `json:"type"`
	} `json:"geometry"`
	Features []document `json:"features"`
	CRS      *struct {
		Type string `json:"type"`
	} `json:"crs"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func do(t *testing.T, h http.Handler, req *http.Request) (int, document, string) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var doc document
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("%s: response is not JSON: %v\n%s", req.URL, err, rr.Body)
	}
	return rr.Code, doc, rr.Body.String()
}

func get(t *testing.T, h http.Handler, target string) (int, document, string) {
	t.Helper()
	return do(t, h, httptest.NewRequest(http.MethodGet, target, nil))
}

func TestLocation_Point(t *testing.T) {
	h := newRouter(New(testConfig(), newEngine(t, grid.Config{}), nil, nil))

	code, doc, _ := get(t, h, "/?query=2.7821875,20.3700625&epsg_out=EPSG:4326")
	if code != http.StatusOK {
		t.Fatalf("status=%d body=%+v", code, doc)
	}
	if doc.Type != "Feature" || doc.Geometry.Type != "Polygon" {
		t.Fatalf("unexpected document %+v", doc)
	}
	if doc.Properties["code_level_5"] != "7FG49QCJ+2V" || doc.Properties["code_short"] != "+2V" {
		t.Fatalf("properties=%v", doc.Properties)
	}
	if doc.CRS != nil {
		t.Fatal("native output must not carry crs")
	}
}

func TestLocation_DefaultOutputCarriesCRS(t *testing.T) {
	h := newRouter(New(testConfig(), newEngine(t, grid.Config{}), nil, nil))
	code, doc, _ := get(t, h, "/?query=13.40495+52.52006")
	if code != http.StatusOK {
		t.Fatalf("status=%d body=%+v", code, doc)
	}
	if doc.CRS == nil || doc.CRS.Type != "link" || doc.Properties["epsg_out"] != float64(25833) {
		t.Fatalf("expected EPSG:25833 output with crs link, got %+v", doc)
	}
}

func TestLocation_CodeWithDecodedPlus(t *testing.T) {
	h := newRouter(New(testConfig(), newEngine(t, grid.Config{}), nil, nil))
	// "+" in a query string arrives as a space
	for _, target := range []string{"/?query=7FG49QCJ+2V&epsg_out=4326", "/?query=7fg49qcj%2B2v&epsg_out=4326"} {
		code, doc, _ := get(t, h, target)
		if code != http.StatusOK || doc.Properties["code_level_5"] != "7FG49QCJ+2V" {
			t.Fatalf("%s: status=%d properties=%v", target, code, doc.Properties)
		}
	}
}

func TestLocation_Errors(t *testing.T) {
	h := newRouter(New(testConfig(), newEngine(t, grid.Config{}), nil, nil))
	cases := []struct {
		target string
		want   string
	}{
		{"/", "missing required 'query'"},
		{"/?query=", "missing required 'query'"},
		{"/?query=nonsense", msgQuery},
		{"/?query=1,2,3", msgQuery},
		{"/?query=12,54&epsg_in=abc", "'epsg_in' parameter is not a number"},
		{"/?query=12,54&epsg_in=9999", "unsupported"},
		{"/?query=NaN,NaN&epsg_out=4326", msgQuery},
		{"/?query=Inf,54", msgQuery},
		{"/?query=12,-Inf&epsg_in=25833", msgQuery},
	}
	for _, tc := range cases {
		code, doc, _ := get(t, h, tc.target)
		if code != http.StatusBadRequest || doc.Status != http.StatusBadRequest || !strings.Contains(doc.Message, tc.want) {
			t.Fatalf("%s: status=%d doc=%+v want message containing %q", tc.target, code, doc, tc.want)
		}
	}
}

func TestLocation_PostBodies(t *testing.T) {
	h := newRouter(New(testConfig(), newEngine(t, grid.Config{}), nil, nil))

	form := url.Values{"query": {"2.7821875,20.3700625"}, "epsg_out": {"4326"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if code, doc, _ := do(t, h, req); code != http.StatusOK || doc.Properties["code_level_5"] != "7FG49QCJ+2V" {
		t.Fatalf("form: status=%d doc=%+v", code, doc)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"query":"7FG49QCJ+2V","epsg_out":4326}`))
	req.Header.Set("Content-Type", "application/json")
	if code, doc, _ := do(t, h, req); code != http.StatusOK || doc.Properties["epsg_out"] != float64(4326) {
		t.Fatalf("json: status=%d doc=%+v", code, doc)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"query":`))
	req.Header.Set("Content-Type", "application/json")
	if code, _, _ := do(t, h, req); code != http.StatusBadRequest {
		t.Fatalf("malformed json: status=%d", code)
	}
}

func TestLocation_Regional(t *testing.T) {
	cfg := testConfig()
	cfg.RegionalIn = true
	cfg.RegionalOut = true
	e := newEngine(t, grid.Config{RegionalOut: true}, grid.WithGeocoder(stubGeocoder{}))
	h := newRouter(New(cfg, e, nil, nil))

	code, doc, _ := get(t, h, "/?query="+url.QueryEscape("Testtown, 9QCJ+2V")+"&epsg_out=4326")
	if code != http.StatusOK {
		t.Fatalf("status=%d doc=%+v", code, doc)
	}
	if doc.Properties["code_level_5"] != "7FG49QCJ+2V" || doc.Properties["code_regional"] != "9QCJ+2V, Testtown" {
		t.Fatalf("properties=%v", doc.Properties)
	}

	code, doc, _ = get(t, h, "/?query="+url.QueryEscape("9QCJ+2V,Nowhere"))
	if code != http.StatusBadRequest || doc.Message != msgQuery {
		t.Fatalf("unknown locality: status=%d doc=%+v", code, doc)
	}
}

func TestMap_Collection(t *testing.T) {
	h := newRouter(New(testConfig(), newEngine(t, grid.Config{}), nil, nil))

	code, doc, body := get(t, h, "/map?bbox=12,54,12.3,54.3&level=3&pretty=yes")
	if code != http.StatusOK {
		t.Fatalf("status=%d doc=%+v", code, doc)
	}
	if doc.Type != "FeatureCollection" || len(doc.Features) != 36 {
		t.Fatalf("type=%s features=%d", doc.Type, len(doc.Features))
	}
	first := doc.Features[0]
	if first.Geometry.Type != "Point" || first.Properties["level"] != float64(3) || first.Properties["label"] == nil {
		t.Fatalf("first feature %+v", first)
	}
	if !strings.Contains(body, "\n  ") {
		t.Fatal("pretty output not indented")
	}

	_, doc, _ = get(t, h, "/map?bbox=12,54,12.3,54.3&level=3&mode=polygons")
	if doc.Features[0].Geometry.Type != "Polygon" || doc.Features[0].Properties["label"] != nil {
		t.Fatalf("polygons mode feature %+v", doc.Features[0])
	}
}

func TestMap_SingleTileIsFeature(t *testing.T) {
	h := newRouter(New(testConfig(), newEngine(t, grid.Config{}), nil, nil))
	code, doc, _ := get(t, h, "/map?bbox=12.0001,54.0001,12.0001,54.0001")
	if code != http.StatusOK || doc.Type != "Feature" || doc.Properties["code"] != "9F6J2222+22" {
		t.Fatalf("status=%d doc=%+v", code, doc)
	}
}

func TestMap_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.MapMaxTiles = 100
	h := newRouter(New(cfg, newEngine(t, grid.Config{}), nil, nil))
	cases := []struct {
		target string
		want   string
	}{
		{"/map", "missing required 'bbox'"},
		{"/map?bbox=1,2,3", msgBBox},
		{"/map?bbox=a,b,c,d", msgBBox},
		{"/map?bbox=13,54,12,55", msgBBox},
		{"/map?bbox=12,54,13,55&level=9", msgLevel},
		{"/map?bbox=12,54,13,55&epsg_out=x", "'epsg_out' parameter is not a number"},
		{"/map?bbox=12,54,12.004,54.0035", "more than the allowed 100"},
		{"/map?bbox=12,54,13,55&epsg_in=1234", "unsupported"},
		{"/map?bbox=0,0,1e300,0", msgGridTooLarge},
		{"/map?bbox=0,0,1e300,1e300", msgGridTooLarge},
		{"/map?bbox=0,0,1e300,1e300&level=5", msgGridTooLarge},
		{"/map?bbox=NaN,0,1,1", msgBBox},
	}
	for _, tc := range cases {
		code, doc, _ := get(t, h, tc.target)
		if code != http.StatusBadRequest || !strings.Contains(doc.Message, tc.want) {
			t.Fatalf("%s: status=%d doc=%+v want message containing %q", tc.target, code, doc, tc.want)
		}
	}
}

func TestMap_ServedFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	rc, err := redisstore.New(ctx, mr.Addr())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	e := newEngine(t, grid.Config{})
	h := newRouter(New(testConfig(), e, tilecache.New(rc, tilecache.Config{}, nil), nil))

	_, first, _ := get(t, h, "/map?bbox=12,54,12.3,54.3&level=3")
	_, second, _ := get(t, h, "/map?bbox=12,54,12.3,54.3&level=3")
	if e.plans.Load() != 1 {
		t.Fatalf("engine planned %d times, want 1", e.plans.Load())
	}
	if len(first.Features) != 36 || len(second.Features) != 36 {
		t.Fatalf("features %d/%d", len(first.Features), len(second.Features))
	}
	if len(mr.Keys()) != 1 {
		t.Fatalf("redis keys=%v", mr.Keys())
	}

	// errors are never cached
	get(t, h, "/map?bbox=13,54,12,55")
	get(t, h, "/map?bbox=13,54,12,55")
	if e.plans.Load() != 3 {
		t.Fatalf("failed requests should reach the engine every time, plans=%d", e.plans.Load())
	}
}
