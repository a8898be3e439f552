// Package proj implements geodesy.Interface for the CRSs the service
// publishes: geographic WGS84/ETRS89, Web Mercator and the UTM families.
package proj

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/wroge/wgs84"

	"github.com/mohammed-shakir/pluscode-grid/internal/core/model"
)

var (
	ErrUnsupportedCRS = errors.New("unsupported coordinate reference system")
	ErrOutOfDomain    = errors.New("point outside projection domain")
)

// projection converts between geographic lon/lat degrees and its own CRS.
type projection interface {
	forward(lon, lat float64) (x, y float64, err error)
	inverse(x, y float64) (lon, lat float64, err error)
}

type geographic struct{}

func (geographic) forward(lon, lat float64) (float64, float64, error) { return lon, lat, nil }
func (geographic) inverse(x, y float64) (float64, float64, error)     { return x, y, nil }

// mercatorMaxLat is the latitude at which Web Mercator becomes square.
const mercatorMaxLat = 85.05112878

type webMercator struct{}

func (webMercator) forward(lon, lat float64) (float64, float64, error) {
	if math.Abs(lat) > mercatorMaxLat {
		return 0, 0, fmt.Errorf("%w: latitude %v beyond web mercator limit", ErrOutOfDomain, lat)
	}
	p := project.WGS84.ToMercator(orb.Point{lon, lat})
	return p.X(), p.Y(), nil
}

func (webMercator) inverse(x, y float64) (float64, float64, error) {
	p := project.Mercator.ToWGS84(orb.Point{x, y})
	return p.X(), p.Y(), nil
}

// lonLatFunc has the shape of wgs84.Func.
type lonLatFunc = func(a, b, c float64) (float64, float64, float64)

// maxLonOffset bounds how far from its central meridian a transverse
// Mercator zone is evaluated.
const maxLonOffset = 60.0

// transverseMercator delegates the projection to an EPSG definition from
// github.com/wroge/wgs84. prefix is added to the easting of the zone-prefixed
// variants (EPSG:4647, EPSG:5650).
type transverseMercator struct {
	lon0   float64
	prefix float64
	fwd    lonLatFunc
	inv    lonLatFunc
}

func (t transverseMercator) forward(lon, lat float64) (float64, float64, error) {
	if lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("%w: latitude %v", ErrOutOfDomain, lat)
	}
	if d := normalizeLon(lon - t.lon0); math.Abs(d) > maxLonOffset {
		return 0, 0, fmt.Errorf("%w: longitude %v is %.1f° from central meridian %v", ErrOutOfDomain, lon, d, t.lon0)
	}
	x, y, _ := t.fwd(lon, lat, 0)
	if !finite(x) || !finite(y) {
		return 0, 0, fmt.Errorf("%w: (%v, %v)", ErrOutOfDomain, lon, lat)
	}
	return x + t.prefix, y, nil
}

func (t transverseMercator) inverse(x, y float64) (float64, float64, error) {
	lon, lat, _ := t.inv(x-t.prefix, y, 0)
	if !finite(lon) || !finite(lat) || lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("%w: (%v, %v)", ErrOutOfDomain, x, y)
	}
	return normalizeLon(lon), lat, nil
}

func normalizeLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Reprojector transforms points through geographic WGS84 as the pivot CRS.
type Reprojector struct {
	crs map[model.EPSG]projection
}

func New() *Reprojector {
	r := &Reprojector{crs: map[model.EPSG]projection{
		4326:   geographic{},
		4258:   geographic{}, // ETRS89, coincident with WGS84 at grid precision
		3857:   webMercator{},
		900913: webMercator{},
	}}
	repo := wgs84.EPSG()
	geo := repo.Code(4326)
	newTransverseMercator := func(code, zone int, prefix float64) transverseMercator {
		crs := repo.Code(code)
		return transverseMercator{
			lon0:   float64(zone*6 - 183),
			prefix: prefix,
			fwd:    wgs84.Transform(geo, crs),
			inv:    wgs84.Transform(crs, geo),
		}
	}
	// ETRS89 / UTM zones 28N-38N
	for zone := 28; zone <= 38; zone++ {
		r.crs[model.EPSG(25800+zone)] = newTransverseMercator(25800+zone, zone, 0)
	}
	// ETRS89 / UTM zones 32N and 33N with zone-prefixed easting (E-N)
	r.crs[4647] = newTransverseMercator(25832, 32, 32000000)
	r.crs[5650] = newTransverseMercator(25833, 33, 33000000)
	// WGS84 / UTM north and south
	for zone := 1; zone <= 60; zone++ {
		r.crs[model.EPSG(32600+zone)] = newTransverseMercator(32600+zone, zone, 0)
		r.crs[model.EPSG(32700+zone)] = newTransverseMercator(32700+zone, zone, 0)
	}
	return r
}

func (r *Reprojector) Supports(e model.EPSG) bool {
	_, ok := r.crs[e]
	return ok
}

// Supported lists the registered EPSG codes in ascending order.
func (r *Reprojector) Supported() []model.EPSG {
	out := make([]model.EPSG, 0, len(r.crs))
	for e := range r.crs {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Reprojector) Transform(ctx context.Context, from, to model.EPSG, p model.GeoPoint) (model.GeoPoint, error) {
	if err := ctx.Err(); err != nil {
		return model.GeoPoint{}, err
	}
	src, ok := r.crs[from]
	if !ok {
		return model.GeoPoint{}, fmt.Errorf("%w: %s", ErrUnsupportedCRS, from)
	}
	dst, ok := r.crs[to]
	if !ok {
		return model.GeoPoint{}, fmt.Errorf("%w: %s", ErrUnsupportedCRS, to)
	}
	if !p.Finite() {
		return model.GeoPoint{}, fmt.Errorf("%w: non-finite coordinates", ErrOutOfDomain)
	}
	if from == to {
		return p, nil
	}

	lon, lat, err := src.inverse(p.X, p.Y)
	if err != nil {
		return model.GeoPoint{}, fmt.Errorf("%s to geographic: %w", from, err)
	}
	x, y, err := dst.forward(lon, lat)
	if err != nil {
		return model.GeoPoint{}, fmt.Errorf("geographic to %s: %w", to, err)
	}
	return model.GeoPoint{X: x, Y: y}, nil
}
