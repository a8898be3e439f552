// Package mapper quantises points onto a spatial index so nearby lookups can
// share cache entries.
package mapper

import (
	"github.com/mohammed-shakir/pluscode-grid/internal/core/model"
)

type Interface interface {
	CellFor(p model.GeoPoint) (string, error)
}
