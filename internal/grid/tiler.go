package grid

import (
	"context"
	"fmt"
	"iter"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/mohammed-shakir/pluscode-grid/internal/core/model"
	"github.com/mohammed-shakir/pluscode-grid/internal/core/observability"
)

// sampleDecimals bounds the binary noise of generated sample coordinates so a
// sample sitting on a cell edge always encodes to the same side.
const sampleDecimals = 10

// quotientDecimals is applied to extent/resolution before ceil so exact
// multiples (0.3/0.05 = 5.999999999999999) do not grow an extra line.
const quotientDecimals = 9

// maxAxisSteps bounds the lines or rows of a single plan.
const maxAxisSteps = math.MaxInt32

type TileRequest struct {
	BBox       model.BBox
	InputEPSG  model.EPSG
	OutputEPSG model.EPSG
	Mode       model.Mode
	// Level pins the grid level; zero selects it from the box extent.
	Level int
}

func (r TileRequest) withDefaults() TileRequest {
	if r.InputEPSG == 0 {
		r.InputEPSG = model.NativeEPSG
	}
	if r.OutputEPSG == 0 {
		r.OutputEPSG = model.NativeEPSG
	}
	if r.Mode == "" {
		r.Mode = model.ModeLabels
	}
	return r
}

// Plan is a resolved tiling request. It is cheap to compute, so callers can
// bound Count before materialising any tile.
type Plan struct {
	Request TileRequest
	// BBox is the request box in the native CRS.
	BBox       model.BBox
	Distance   float64
	Level      int
	Pinned     bool
	CodeLength int
	Resolution float64
	Precision  int
	Buffer     float64
	NumLines   int
	NumRows    int
}

// Count is NumLines*NumRows, saturating at math.MaxInt.
func (p Plan) Count() int {
	if p.NumLines <= 0 || p.NumRows <= 0 {
		return 0
	}
	if p.NumRows > math.MaxInt/p.NumLines {
		return math.MaxInt
	}
	return p.NumLines * p.NumRows
}

// Plan validates the request, brings the box into the native CRS and sizes the grid.
func (e *Engine) Plan(ctx context.Context, req TileRequest) (Plan, error) {
	req = req.withDefaults()
	if !req.BBox.Valid() {
		return Plan{}, &BBoxError{BBox: req.BBox, EPSG: req.InputEPSG}
	}
	if _, ok := model.ParseMode(string(req.Mode)); !ok {
		return Plan{}, fmt.Errorf("unknown mode %q", req.Mode)
	}
	if err := ctx.Err(); err != nil {
		return Plan{}, err
	}

	box := req.BBox
	if req.InputEPSG != model.NativeEPSG {
		sw, err := e.transform(ctx, req.InputEPSG, model.NativeEPSG, box.SW, stageInput)
		if err != nil {
			return Plan{}, err
		}
		ne, err := e.transform(ctx, req.InputEPSG, model.NativeEPSG, box.NE, stageInput)
		if err != nil {
			return Plan{}, err
		}
		box = model.BBox{SW: sw, NE: ne}
		if !box.Valid() {
			return Plan{}, &BBoxError{BBox: box, EPSG: model.NativeEPSG}
		}
	}

	p := Plan{Request: req, BBox: box, Distance: Distance(box.SW, box.NE)}
	if req.Level != 0 {
		p.Level = req.Level
		p.Pinned = true
	} else {
		p.Level = e.cfg.Policy.Select(p.Distance)
	}
	res, err := Resolution(p.Level)
	if err != nil {
		return Plan{}, err
	}
	p.Resolution = res
	p.CodeLength = 2 * p.Level
	p.Precision = decimals(res)
	p.Buffer = math.Pow10(-p.Precision)
	if p.Precision <= 1 {
		p.Buffer = math.Min(1, res/10)
	}
	lines, okLines := steps(box.SW.Y, box.NE.Y, res, p.Precision)
	rows, okRows := steps(box.SW.X, box.NE.X, res, p.Precision)
	if !okLines || !okRows {
		return Plan{}, fmt.Errorf("%w: %s at level %d needs more than %d cells per axis",
			ErrGridTooLarge, box, p.Level, maxAxisSteps)
	}
	p.NumLines, p.NumRows = lines, rows

	e.log.DebugContext(ctx, "tiling plan",
		"bbox", box.String(),
		"distance_km", p.Distance,
		"level", p.Level,
		"pinned", p.Pinned,
		"lines", p.NumLines,
		"rows", p.NumRows)
	return p, nil
}

// steps counts the cells of size res needed from lo to hi. A zero extent
// still needs the one cell holding the point. ok is false when the count
// exceeds maxAxisSteps.
func steps(lo, hi, res float64, precision int) (n int, ok bool) {
	extent := scalar.Round(scalar.Round(hi, precision)-scalar.Round(lo, precision), precision)
	if extent <= 0 {
		return 1, true
	}
	q := math.Ceil(scalar.Round(extent/res, quotientDecimals))
	if !(q <= maxAxisSteps) {
		return 0, false
	}
	return int(q), true
}

// Tiles lazily yields the tiles of req in row-major order, south to north and
// west to east. Iteration stops at the first error, which is yielded once.
// The sequence holds no state between runs and can be ranged over again.
func (e *Engine) Tiles(ctx context.Context, req TileRequest) iter.Seq2[model.Tile, error] {
	return func(yield func(model.Tile, error) bool) {
		p, err := e.Plan(ctx, req)
		if err != nil {
			yield(model.Tile{}, err)
			return
		}
		for t, err := range e.sequence(ctx, p) {
			if !yield(t, err) || err != nil {
				return
			}
		}
	}
}

// TileBoundingBox plans and materialises req.
func (e *Engine) TileBoundingBox(ctx context.Context, req TileRequest) ([]model.Tile, error) {
	p, err := e.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.Materialize(ctx, p)
}

// Materialize produces every tile of p. With more than one worker configured,
// lines are tiled concurrently and reassembled in row-major order. Any error
// discards all tiles.
func (e *Engine) Materialize(ctx context.Context, p Plan) ([]model.Tile, error) {
	var (
		tiles []model.Tile
		err   error
	)
	if e.cfg.Workers > 1 && p.NumLines > 1 {
		tiles, err = e.parallel(ctx, p)
	} else {
		tiles = make([]model.Tile, 0, p.Count())
		for t, terr := range e.sequence(ctx, p) {
			if terr != nil {
				err = terr
				break
			}
			tiles = append(tiles, t)
		}
	}
	if err != nil {
		return nil, err
	}
	observability.IncLevelSelected(p.Level, p.Pinned)
	observability.ObserveTiles(p.Level, len(tiles))
	return tiles, nil
}

func (e *Engine) sequence(ctx context.Context, p Plan) iter.Seq2[model.Tile, error] {
	return func(yield func(model.Tile, error) bool) {
		for line := range p.NumLines {
			if err := ctx.Err(); err != nil {
				yield(model.Tile{}, err)
				return
			}
			for row := range p.NumRows {
				t, err := e.tile(ctx, p, line, row)
				if err != nil {
					yield(model.Tile{}, err)
					return
				}
				if !yield(t, nil) {
					return
				}
			}
		}
	}
}

func (e *Engine) parallel(ctx context.Context, p Plan) ([]model.Tile, error) {
	tiles := make([]model.Tile, p.Count())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for line := range p.NumLines {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			base := line * p.NumRows
			for row := range p.NumRows {
				t, err := e.tile(gctx, p, line, row)
				if err != nil {
					return err
				}
				tiles[base+row] = t
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tiles, nil
}

func (e *Engine) tile(ctx context.Context, p Plan, line, row int) (model.Tile, error) {
	y := scalar.Round(p.BBox.SW.Y+p.Resolution*float64(line)+p.Buffer, sampleDecimals)
	x := scalar.Round(p.BBox.SW.X+p.Resolution*float64(row)+p.Buffer, sampleDecimals)

	s, err := e.codec.Encode(y, x, p.CodeLength)
	if err != nil {
		return model.Tile{}, fmt.Errorf("encode (%v, %v): %w", x, y, err)
	}
	cell, err := e.codec.Decode(s)
	if err != nil {
		return model.Tile{}, &CodeError{Code: s, Err: err}
	}
	center, ring, err := e.place(ctx, p.Request.OutputEPSG, cell)
	if err != nil {
		return model.Tile{}, err
	}

	t := model.Tile{Code: s, Level: p.Level, Center: center, Ring: ring}
	if p.Request.Mode == model.ModeLabels {
		code, err := ParseCode(s)
		if err != nil {
			return model.Tile{}, err
		}
		t.Label = code.Label()
	}
	return t, nil
}
