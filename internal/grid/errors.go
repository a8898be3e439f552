package grid

import (
	"errors"
	"fmt"

	"github.com/mohammed-shakir/pluscode-grid/internal/core/model"
)

var (
	ErrInvalidBoundingBox     = errors.New("invalid bounding box")
	ErrReprojection           = errors.New("reprojection failed")
	ErrInvalidCode            = errors.New("invalid code")
	ErrRegionalCodeUnresolved = errors.New("regional code unresolved")
	ErrInvalidLevel           = errors.New("invalid level")
	ErrGridTooLarge           = errors.New("grid too large")
	ErrInvalidPoint           = errors.New("point coordinates must be finite")
)

type BBoxError struct {
	BBox model.BBox
	EPSG model.EPSG
}

func (e *BBoxError) Error() string {
	return fmt.Sprintf("invalid bounding box %s (%s): corners must be finite and ordered southwest to northeast", e.BBox, e.EPSG)
}

func (e *BBoxError) Unwrap() error { return ErrInvalidBoundingBox }

// ReprojectionError carries the point the reprojector refused and its message.
type ReprojectionError struct {
	From, To model.EPSG
	Point    model.GeoPoint
	Err      error
}

func (e *ReprojectionError) Error() string {
	return fmt.Sprintf("transform (%v, %v) from %s to %s: %v", e.Point.X, e.Point.Y, e.From, e.To, e.Err)
}

func (e *ReprojectionError) Unwrap() []error { return causes(ErrReprojection, e.Err) }

type CodeError struct {
	Code string
	Err  error
}

func (e *CodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid code %q", e.Code)
	}
	return fmt.Sprintf("invalid code %q: %v", e.Code, e.Err)
}

func (e *CodeError) Unwrap() []error { return causes(ErrInvalidCode, e.Err) }

type RegionalError struct {
	Code     string
	Locality string
	Err      error
}

func (e *RegionalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("regional code %q could not be resolved near %q", e.Code, e.Locality)
	}
	return fmt.Sprintf("regional code %q could not be resolved near %q: %v", e.Code, e.Locality, e.Err)
}

func (e *RegionalError) Unwrap() []error { return causes(ErrRegionalCodeUnresolved, e.Err) }

func causes(kind, cause error) []error {
	if cause == nil {
		return []error{kind}
	}
	return []error{kind, cause}
}
