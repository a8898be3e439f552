// Package grid is the Plus Code grid engine: level selection, bounding box
// tiling and hierarchical code derivation on top of an injected codec,
// reprojector and optional geocoder.
package grid

import (
	"errors"
	"log/slog"

	"github.com/mohammed-shakir/pluscode-grid/internal/codec"
	"github.com/mohammed-shakir/pluscode-grid/internal/geocode"
	"github.com/mohammed-shakir/pluscode-grid/internal/geodesy"
)

type Config struct {
	Policy LevelPolicy
	// Workers > 1 tiles lines concurrently in TileBoundingBox.
	Workers int
	// RegionalOut adds "<local code>, <municipality>" to level 5 locations.
	RegionalOut bool
}

// Engine is stateless and safe for concurrent use.
type Engine struct {
	cfg      Config
	codec    codec.Interface
	geo      geodesy.Interface
	geocoder geocode.Interface
	log      *slog.Logger
}

type Option func(*Engine)

func WithGeocoder(g geocode.Interface) Option {
	return func(e *Engine) { e.geocoder = g }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func New(cfg Config, c codec.Interface, g geodesy.Interface, opts ...Option) (*Engine, error) {
	if c == nil {
		return nil, errors.New("grid: codec is required")
	}
	if g == nil {
		return nil, errors.New("grid: reprojector is required")
	}
	if cfg.Policy.Name == "" {
		cfg.Policy = PolicyStandard
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:   cfg,
		codec: c,
		geo:   g,
		log:   slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

func (e *Engine) Policy() LevelPolicy { return e.cfg.Policy }
