// Package geodesy converts points between coordinate reference systems.
package geodesy

import (
	"context"

	"github.com/mohammed-shakir/pluscode-grid/internal/core/model"
)

type Interface interface {
	Transform(ctx context.Context, from, to model.EPSG, p model.GeoPoint) (model.GeoPoint, error)
}
