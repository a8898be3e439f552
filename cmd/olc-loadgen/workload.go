package main

import (
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"strconv"

	"github.com/mohammed-shakir/pluscode-grid/internal/core/model"
)

// request is one precomputed API call of the workload pool.
type request struct {
	Route string
	Query url.Values
}

func (r request) String() string { return r.Route + "?" + r.Query.Encode() }

var centers = [][2]float64{
	{12.1286, 54.0924}, // Rostock
	{13.4050, 52.5200}, // Berlin
	{9.9937, 53.5511},  // Hamburg
	{11.4148, 53.6355}, // Schwerin
}

// makeWorkload builds count requests: hot boxes around a few cities sized
// for level 4 and 5 tiling, cold boxes scattered over northern Germany, and
// every locationEvery-th slot a point lookup instead of a map.
func makeWorkload(count, locationEvery int, r *rand.Rand) []request {
	out := make([]request, 0, count)
	hot := int(math.Max(8, float64(count/4)))
	for i := range count {
		var lon, lat, w, h float64
		if i < hot {
			c := centers[i%len(centers)]
			lon = c[0] + (r.Float64()-0.5)*0.05
			lat = c[1] + (r.Float64()-0.5)*0.05
			w, h = 0.002+r.Float64()*0.02, 0.002+r.Float64()*0.02
		} else {
			lon = 8 + r.Float64()*(14.5-8)
			lat = 51.5 + r.Float64()*(54.5-51.5)
			w, h = 0.01+r.Float64()*0.2, 0.01+r.Float64()*0.2
		}

		if locationEvery > 0 && i%locationEvery == locationEvery-1 {
			out = append(out, request{Route: "/", Query: url.Values{
				"query":    {fmt.Sprintf("%.7f,%.7f", lon, lat)},
				"epsg_out": {"4326"},
			}})
			continue
		}
		box := model.BBox{
			SW: model.GeoPoint{X: lon - w/2, Y: lat - h/2},
			NE: model.GeoPoint{X: lon + w/2, Y: lat + h/2},
		}
		out = append(out, request{Route: "/map", Query: url.Values{
			"bbox": {box.String()},
			"mode": {modeFor(i)},
		}})
	}
	return out
}

func modeFor(i int) string {
	if i%3 == 0 {
		return string(model.ModePolygons)
	}
	return string(model.ModeLabels)
}

// zipfIndex draws pool indexes so low indexes (the hot boxes) dominate.
type zipfIndex struct {
	z *rand.Zipf
	n int
}

func newZipfIndex(r *rand.Rand, s, v float64, n int) (*zipfIndex, error) {
	if n < 1 {
		return nil, fmt.Errorf("empty workload")
	}
	z := rand.NewZipf(r, s, v, uint64(n-1))
	if z == nil {
		return nil, fmt.Errorf("invalid zipf parameters s=%s v=%s", strconv.FormatFloat(s, 'g', -1, 64), strconv.FormatFloat(v, 'g', -1, 64))
	}
	return &zipfIndex{z: z, n: n}, nil
}

func (z *zipfIndex) Next() int { return int(z.z.Uint64()) }
