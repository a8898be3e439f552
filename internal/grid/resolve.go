package grid

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mohammed-shakir/pluscode-grid/internal/core/model"
	"github.com/mohammed-shakir/pluscode-grid/internal/geocode"
)

// LocationQuery asks for one cell: either Point, or Code (optionally short and
// anchored at the municipality named by Locality).
type LocationQuery struct {
	Point      *model.GeoPoint
	Code       string
	Locality   string
	InputEPSG  model.EPSG
	OutputEPSG model.EPSG
}

// Location is a resolved cell with its code family and output geometry.
type Location struct {
	Derived
	// Cell is the decoded cell in the native CRS.
	Cell       model.Cell
	Center     model.GeoPoint
	Ring       [5]model.GeoPoint
	InputEPSG  model.EPSG
	OutputEPSG model.EPSG
	// Regional is "<local code>, <municipality>" when regional output is on.
	Regional string
}

func (e *Engine) ResolveLocation(ctx context.Context, q LocationQuery) (Location, error) {
	if q.InputEPSG == 0 {
		q.InputEPSG = model.NativeEPSG
	}
	if q.OutputEPSG == 0 {
		q.OutputEPSG = model.NativeEPSG
	}
	if err := ctx.Err(); err != nil {
		return Location{}, err
	}

	var (
		ref  *model.GeoPoint
		code string
	)
	switch {
	case q.Point != nil:
		if !q.Point.Finite() {
			return Location{}, fmt.Errorf("%w: (%v, %v)", ErrInvalidPoint, q.Point.X, q.Point.Y)
		}
		p, err := e.transform(ctx, q.InputEPSG, model.NativeEPSG, *q.Point, stageInput)
		if err != nil {
			return Location{}, err
		}
		code, err = e.codec.Encode(p.Y, p.X, FullCodeLength)
		if err != nil {
			return Location{}, fmt.Errorf("encode (%v, %v): %w: %w", p.X, p.Y, ErrInvalidPoint, err)
		}
		ref = &p
	case q.Locality != "":
		full, err := e.recoverRegional(ctx, q.Code, q.Locality)
		if err != nil {
			return Location{}, err
		}
		code = full
	case q.Code != "":
		code = strings.ToUpper(strings.TrimSpace(q.Code))
		if e.codec.IsShort(code) {
			code = padShort(code)
		}
	default:
		return Location{}, &CodeError{Err: errors.New("query carries neither a point nor a code")}
	}

	if !e.codec.IsFull(code) {
		return Location{}, &CodeError{Code: code}
	}
	cell, err := e.codec.Decode(code)
	if err != nil {
		return Location{}, &CodeError{Code: code, Err: err}
	}
	d, err := Derive(e.codec, cell, ref)
	if err != nil {
		return Location{}, err
	}
	center, ring, err := e.place(ctx, q.OutputEPSG, cell)
	if err != nil {
		return Location{}, err
	}

	loc := Location{
		Derived:    d,
		Cell:       cell,
		Center:     center,
		Ring:       ring,
		InputEPSG:  q.InputEPSG,
		OutputEPSG: q.OutputEPSG,
	}
	if e.cfg.RegionalOut && d.Level == MaxLevel && e.geocoder != nil {
		loc.Regional = e.regional(ctx, d.Local, cell.Center)
	}
	return loc, nil
}

// padShort keeps the leading digits of a short code and pads them into a full
// code shape ("GMQJ+QJ" -> "GMQJ0000+"). The result only decodes when those
// digits happen to form a valid full code prefix.
func padShort(code string) string {
	head, _, _ := strings.Cut(code, string(codeSeparator))
	if len(head) < codeSeparatorPos {
		head += strings.Repeat(string(codePadding), codeSeparatorPos-len(head))
	}
	return head + string(codeSeparator)
}

func (e *Engine) recoverRegional(ctx context.Context, short, locality string) (string, error) {
	short = strings.ToUpper(strings.TrimSpace(short))
	locality = strings.TrimSpace(locality)
	if e.geocoder == nil {
		return "", &RegionalError{Code: short, Locality: locality, Err: errors.New("no geocoder configured")}
	}
	anchor, found, err := e.geocoder.Forward(ctx, locality)
	if err != nil {
		return "", &RegionalError{Code: short, Locality: locality, Err: err}
	}
	if !found {
		return "", &RegionalError{Code: short, Locality: locality}
	}
	full, err := e.codec.RecoverNearest(short, anchor.Y, anchor.X)
	if err != nil {
		return "", &RegionalError{Code: short, Locality: locality, Err: err}
	}
	return full, nil
}

// regional never fails; lookup problems degrade to geocode.NotDefinable.
func (e *Engine) regional(ctx context.Context, local string, at model.GeoPoint) string {
	name, err := e.geocoder.Reverse(ctx, at)
	if err != nil {
		e.log.WarnContext(ctx, "reverse geocoding failed", "x", at.X, "y", at.Y, "err", err)
		return geocode.NotDefinable
	}
	if name == "" || name == geocode.NotDefinable {
		return geocode.NotDefinable
	}
	return local + ", " + name
}
