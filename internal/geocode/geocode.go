// Package geocode resolves place names to points and points to place names.
package geocode

import (
	"context"

	"github.com/mohammed-shakir/pluscode-grid/internal/core/model"
)

// NotDefinable is reported when a reverse lookup yields no municipality.
const NotDefinable = "not definable"

type Interface interface {
	// Forward returns the centroid of the first municipality matching name;
	// found is false when nothing matched.
	Forward(ctx context.Context, name string) (p model.GeoPoint, found bool, err error)
	Reverse(ctx context.Context, p model.GeoPoint) (string, error)
}
