// Package router serves the location (/) and map (/map) endpoints.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/pluscode-grid/internal/cache/keys"
	"github.com/mohammed-shakir/pluscode-grid/internal/core/config"
	"github.com/mohammed-shakir/pluscode-grid/internal/core/model"
	"github.com/mohammed-shakir/pluscode-grid/internal/feature"
	"github.com/mohammed-shakir/pluscode-grid/internal/grid"
	mylog "github.com/mohammed-shakir/pluscode-grid/internal/logger"
)

const (
	msgQuery = "value of required 'query' parameter is neither a valid pair of coordinates " +
		"(required order: longitude/x,latitude/y) nor a valid Plus code"
	msgBBox = "value of required 'bbox' parameter is not a valid quadruple of coordinates " +
		"(required order: southwest longitude/x,southwest latitude/y,northeast longitude/x,northeast latitude/y)"
	msgLevel = "value of optional 'level' parameter is not a grid level between 1 and 5"

	msgGridTooLarge = "value of required 'bbox' parameter covers too many cells; " +
		"request a smaller box or a coarser 'level'"
)

// Engine is the grid functionality the handlers need.
type Engine interface {
	ResolveLocation(ctx context.Context, q grid.LocationQuery) (grid.Location, error)
	Plan(ctx context.Context, req grid.TileRequest) (grid.Plan, error)
	Materialize(ctx context.Context, p grid.Plan) ([]model.Tile, error)
}

// Cache serves rendered bodies by key, computing them on a miss.
type Cache interface {
	GetOrCompute(ctx context.Context, key string, compute func(context.Context) ([]byte, error)) ([]byte, bool, error)
}

type Handler struct {
	cfg    config.Config
	engine Engine
	cache  Cache
	log    *slog.Logger
}

// New wires the handlers; cache may be nil.
func New(cfg config.Config, engine Engine, cache Cache, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Handler{cfg: cfg, engine: engine, cache: cache, log: log}
}

// apiError is an error answered to the client verbatim.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string { return e.message }

func badRequest(format string, args ...any) error {
	return &apiError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

// Location resolves a point, a full code or a regional code to one cell.
func (h *Handler) Location() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := mylog.WithRoute(r.Context(), "/")
		p, err := readParams(r)
		if err != nil {
			h.fail(ctx, w, badRequest("%s", err.Error()))
			return
		}

		raw, ok := p.get("query")
		query := normalizeQuery(raw)
		if !ok || query == "" {
			h.fail(ctx, w, badRequest("missing required 'query' parameter or parameter empty"))
			return
		}
		in, err := parseEPSG(p, "epsg_in", h.cfg.DefaultEPSGIn)
		if err != nil {
			h.fail(ctx, w, badRequest("%s", err.Error()))
			return
		}
		out, err := parseEPSG(p, "epsg_out", h.cfg.DefaultEPSGOut)
		if err != nil {
			h.fail(ctx, w, badRequest("%s", err.Error()))
			return
		}

		q := grid.LocationQuery{InputEPSG: model.EPSG(in), OutputEPSG: model.EPSG(out)}
		switch {
		case !strings.Contains(query, ","):
			q.Code = query
		case h.cfg.RegionalIn && strings.Contains(query, "+"):
			code, locality, ok := splitRegional(query)
			if !ok {
				h.fail(ctx, w, badRequest(msgQuery))
				return
			}
			q.Code, q.Locality = code, locality
		default:
			xy, ok := parseFloats(query, 2)
			if !ok {
				h.fail(ctx, w, badRequest(msgQuery))
				return
			}
			q.Point = &model.GeoPoint{X: xy[0], Y: xy[1]}
		}

		key := keys.Location(query, q.InputEPSG, q.OutputEPSG, h.cfg.RegionalOut)
		h.serve(ctx, w, key, func(ctx context.Context) ([]byte, error) {
			loc, err := h.engine.ResolveLocation(ctx, q)
			if err != nil {
				return nil, locationError(err)
			}
			return feature.Marshal(feature.Location(loc), q.OutputEPSG, h.cfg.Pretty)
		})
	}
}

// Map tiles a bounding box into grid cells.
func (h *Handler) Map() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := mylog.WithRoute(r.Context(), "/map")
		p, err := readParams(r)
		if err != nil {
			h.fail(ctx, w, badRequest("%s", err.Error()))
			return
		}

		raw, ok := p.get("bbox")
		if !ok || strings.TrimSpace(raw) == "" {
			h.fail(ctx, w, badRequest("missing required 'bbox' parameter or parameter empty"))
			return
		}
		mode := model.Mode(h.cfg.DefaultMapMode)
		if v, ok := p.get("mode"); ok {
			if m, valid := model.ParseMode(strings.TrimSpace(v)); valid {
				mode = m
			}
		}
		in, err := parseEPSG(p, "epsg_in", h.cfg.DefaultMapEPSGIn)
		if err != nil {
			h.fail(ctx, w, badRequest("%s", err.Error()))
			return
		}
		out, err := parseEPSG(p, "epsg_out", h.cfg.DefaultMapEPSGOut)
		if err != nil {
			h.fail(ctx, w, badRequest("%s", err.Error()))
			return
		}
		pretty := h.cfg.DefaultMapPretty
		if v, ok := p.get("pretty"); ok {
			if b, valid := parseBool(v); valid {
				pretty = b
			}
		}
		level := 0
		if v, ok := p.get("level"); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n < grid.MinLevel || n > grid.MaxLevel {
				h.fail(ctx, w, badRequest(msgLevel))
				return
			}
			level = n
		}
		corners, ok := parseFloats(raw, 4)
		if !ok {
			h.fail(ctx, w, badRequest(msgBBox))
			return
		}

		req := grid.TileRequest{
			BBox: model.BBox{
				SW: model.GeoPoint{X: corners[0], Y: corners[1]},
				NE: model.GeoPoint{X: corners[2], Y: corners[3]},
			},
			InputEPSG:  model.EPSG(in),
			OutputEPSG: model.EPSG(out),
			Mode:       mode,
			Level:      level,
		}
		key := keys.Map(req.BBox, req.InputEPSG, req.OutputEPSG, mode, level, pretty)
		h.serve(ctx, w, key, func(ctx context.Context) ([]byte, error) {
			plan, err := h.engine.Plan(ctx, req)
			if err != nil {
				return nil, mapError(err)
			}
			if n := plan.Count(); n < 0 || n > h.cfg.MapMaxTiles {
				return nil, badRequest("'bbox' covers %d cells at grid level %d, more than the allowed %d; "+
					"request a smaller box or a coarser 'level'", n, plan.Level, h.cfg.MapMaxTiles)
			}
			tiles, err := h.engine.Materialize(ctx, plan)
			if err != nil {
				return nil, mapError(err)
			}
			return feature.Marshal(feature.Map(tiles, mode), req.OutputEPSG, pretty)
		})
	}
}

// serve answers from the response cache when one is configured.
func (h *Handler) serve(ctx context.Context, w http.ResponseWriter, key string, compute func(context.Context) ([]byte, error)) {
	var (
		body []byte
		err  error
	)
	if h.cache == nil {
		ctx = mylog.WithCacheOutcome(ctx, "bypass")
		body, err = compute(ctx)
	} else {
		var hit bool
		body, hit, err = h.cache.GetOrCompute(ctx, key, compute)
		outcome := "miss"
		if hit {
			outcome = "hit"
		}
		ctx = mylog.WithCacheOutcome(ctx, outcome)
		w.Header().Set("X-Cache", outcome)
	}
	if err != nil {
		h.fail(ctx, w, err)
		return
	}
	h.log.DebugContext(ctx, "response served", "key", key, "bytes", len(body))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func locationError(err error) error {
	var re *grid.ReprojectionError
	switch {
	case errors.As(err, &re):
		return badRequest("%s", re.Err.Error())
	case errors.Is(err, grid.ErrInvalidCode), errors.Is(err, grid.ErrRegionalCodeUnresolved),
		errors.Is(err, grid.ErrInvalidPoint):
		return &apiError{status: http.StatusBadRequest, message: msgQuery}
	}
	return err
}

func mapError(err error) error {
	var re *grid.ReprojectionError
	switch {
	case errors.As(err, &re):
		return badRequest("%s", re.Err.Error())
	case errors.Is(err, grid.ErrInvalidBoundingBox):
		return &apiError{status: http.StatusBadRequest, message: msgBBox}
	case errors.Is(err, grid.ErrInvalidLevel):
		return &apiError{status: http.StatusBadRequest, message: msgLevel}
	case errors.Is(err, grid.ErrGridTooLarge):
		return &apiError{status: http.StatusBadRequest, message: msgGridTooLarge}
	}
	return err
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error) {
	var ae *apiError
	if !errors.As(err, &ae) {
		status := http.StatusInternalServerError
		msg := "internal server error"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status, msg = http.StatusServiceUnavailable, "request cancelled"
		}
		h.log.ErrorContext(ctx, "request failed", "err", err)
		ae = &apiError{status: status, message: msg}
	} else {
		h.log.DebugContext(ctx, "request rejected", "status", ae.status, "err", ae.message)
	}
	WriteError(w, ae.status, ae.message)
}

// WriteError writes the {"message","status"} error envelope.
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"message": message, "status": status})
}
