package grid

import (
	"context"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/mohammed-shakir/pluscode-grid/internal/core/model"
	"github.com/mohammed-shakir/pluscode-grid/internal/core/observability"
)

const (
	stageInput  = "input"
	stageOutput = "output"
)

func (e *Engine) transform(ctx context.Context, from, to model.EPSG, p model.GeoPoint, stage string) (model.GeoPoint, error) {
	if from == to {
		return p, nil
	}
	q, err := e.geo.Transform(ctx, from, to, p)
	if err != nil {
		observability.IncReprojectionFailure(stage)
		return model.GeoPoint{}, &ReprojectionError{From: from, To: to, Point: p, Err: err}
	}
	return q, nil
}

// place converts a native cell into output coordinates: rounded to
// NativePrecision for the native CRS, reprojected otherwise.
func (e *Engine) place(ctx context.Context, to model.EPSG, cell model.Cell) (model.GeoPoint, [5]model.GeoPoint, error) {
	if to == model.NativeEPSG {
		sw, ne := roundPoint(cell.SW), roundPoint(cell.NE)
		return roundPoint(cell.Center), model.RingOf(sw, ne), nil
	}
	center, err := e.transform(ctx, model.NativeEPSG, to, cell.Center, stageOutput)
	if err != nil {
		return model.GeoPoint{}, [5]model.GeoPoint{}, err
	}
	sw, err := e.transform(ctx, model.NativeEPSG, to, cell.SW, stageOutput)
	if err != nil {
		return model.GeoPoint{}, [5]model.GeoPoint{}, err
	}
	ne, err := e.transform(ctx, model.NativeEPSG, to, cell.NE, stageOutput)
	if err != nil {
		return model.GeoPoint{}, [5]model.GeoPoint{}, err
	}
	return center, model.RingOf(sw, ne), nil
}

func roundPoint(p model.GeoPoint) model.GeoPoint {
	return model.GeoPoint{X: scalar.Round(p.X, NativePrecision), Y: scalar.Round(p.Y, NativePrecision)}
}
