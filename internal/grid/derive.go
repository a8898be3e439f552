package grid

import (
	"fmt"

	"github.com/mohammed-shakir/pluscode-grid/internal/codec"
	"github.com/mohammed-shakir/pluscode-grid/internal/core/model"
)

// Derived holds the code family of one decoded cell.
type Derived struct {
	Level int
	Full  string
	// Ancestors[i] is the code at level i+1; the last entry equals Full.
	Ancestors []string
	// Local and Short are only set for level 5 cells.
	Local string
	Short string
}

// Ancestor returns the code at level, or "" when level is outside 1..d.Level.
func (d Derived) Ancestor(level int) string {
	if level < MinLevel || level > len(d.Ancestors) {
		return ""
	}
	return d.Ancestors[level-1]
}

// Derive re-encodes the cell center at every level up to the cell's own. ref
// is the point the caller originally asked about; without it the short code
// is taken relative to the cell center.
func Derive(c codec.Interface, cell model.Cell, ref *model.GeoPoint) (Derived, error) {
	level := min(cell.Length/2, MaxLevel)
	if level < MinLevel {
		return Derived{}, fmt.Errorf("%w: cell of %d digits", ErrInvalidLevel, cell.Length)
	}

	d := Derived{Level: level, Ancestors: make([]string, 0, level)}
	var prev Code
	for l := MinLevel; l <= level; l++ {
		s, err := c.Encode(cell.Center.Y, cell.Center.X, 2*l)
		if err != nil {
			return Derived{}, fmt.Errorf("encode level %d: %w", l, err)
		}
		code, err := ParseCode(s)
		if err != nil {
			return Derived{}, err
		}
		if l > MinLevel && !prev.IsPrefixOf(code) {
			return Derived{}, fmt.Errorf("%w: %s is not an ancestor of %s", ErrInvalidCode, prev, code)
		}
		d.Ancestors = append(d.Ancestors, code.String())
		prev = code
	}
	d.Full = prev.String()

	if level < MaxLevel {
		return d, nil
	}
	d.Local = prev.Local()
	at := cell.Center
	if ref != nil {
		at = *ref
	}
	short, err := c.Shorten(d.Full, at.Y, at.X)
	if err != nil {
		return Derived{}, &CodeError{Code: d.Full, Err: err}
	}
	d.Short = short
	return d, nil
}
