// Package codec converts between coordinates and Plus Code grid codes.
package codec

import (
	"github.com/mohammed-shakir/pluscode-grid/internal/core/model"
)

type Interface interface {
	Encode(lat, lng float64, length int) (string, error)
	Decode(code string) (model.Cell, error)
	IsShort(code string) bool
	IsFull(code string) bool
	Shorten(code string, lat, lng float64) (string, error)
	RecoverNearest(code string, lat, lng float64) (string, error)
}
