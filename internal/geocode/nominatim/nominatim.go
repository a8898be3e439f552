// Package nominatim resolves municipalities through an OSM Nominatim server.
package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/mohammed-shakir/pluscode-grid/internal/cache/keys"
	"github.com/mohammed-shakir/pluscode-grid/internal/core/model"
	"github.com/mohammed-shakir/pluscode-grid/internal/core/observability"
	"github.com/mohammed-shakir/pluscode-grid/internal/geocode"
	"github.com/mohammed-shakir/pluscode-grid/internal/mapper"
)

const (
	DefaultForwardURL = "https://nominatim.openstreetmap.org/search?format=json&limit=10"
	DefaultReverseURL = "https://nominatim.openstreetmap.org/reverse?format=json&zoom=10"

	upstreamForward = "nominatim_forward"
	upstreamReverse = "nominatim_reverse"
)

// municipalityTypes are the result types accepted as a municipality centroid.
var municipalityTypes = map[string]bool{
	"administrative": true,
	"city":           true,
	"town":           true,
}

type Config struct {
	ForwardURL     string
	ReverseURL     string
	UserAgent      string
	RequestsPerSec float64
	// CacheSize bounds each in-process LRU (forward and reverse).
	CacheSize int
	// SharedTTL is the lifetime of entries written to the shared cache.
	SharedTTL time.Duration
}

// Shared is a cross-instance cache, typically redisstore.Client.
type Shared interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithShared(s Shared) Option { return func(c *Client) { c.shared = s } }

// WithCells keys reverse lookups by the cell a point falls in, so every point
// of one cell shares a cache entry.
func WithCells(m mapper.Interface) Option { return func(c *Client) { c.cells = m } }

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	forward *lru.Cache[string, forwardResult]
	reverse *lru.Cache[string, string]
	shared  Shared
	cells   mapper.Interface
	log     *slog.Logger
}

type forwardResult struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Found bool    `json:"found"`
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.ForwardURL == "" {
		cfg.ForwardURL = DefaultForwardURL
	}
	if cfg.ReverseURL == "" {
		cfg.ReverseURL = DefaultReverseURL
	}
	for _, raw := range []string{cfg.ForwardURL, cfg.ReverseURL} {
		if _, err := url.Parse(raw); err != nil {
			return nil, fmt.Errorf("nominatim url %q: %w", raw, err)
		}
	}
	if cfg.UserAgent == "" {
		return nil, errors.New("nominatim requires a User-Agent identifying the application")
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 1
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	if cfg.SharedTTL <= 0 {
		cfg.SharedTTL = 24 * time.Hour
	}

	fwd, err := lru.New[string, forwardResult](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("forward cache: %w", err)
	}
	rev, err := lru.New[string, string](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("reverse cache: %w", err)
	}
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		forward: fwd,
		reverse: rev,
		log:     slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With("component", "nominatim")
	return c, nil
}

var _ geocode.Interface = (*Client)(nil)

// Forward returns the centroid of the first municipality named name.
func (c *Client) Forward(ctx context.Context, name string) (model.GeoPoint, bool, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return model.GeoPoint{}, false, nil
	}
	lkey := strings.ToLower(name)
	if r, ok := c.forward.Get(lkey); ok {
		return model.GeoPoint{X: r.X, Y: r.Y}, r.Found, nil
	}
	skey := keys.Forward(name)
	if raw, ok := c.sharedGet(ctx, skey); ok {
		var r forwardResult
		if err := json.Unmarshal(raw, &r); err == nil {
			c.forward.Add(lkey, r)
			return model.GeoPoint{X: r.X, Y: r.Y}, r.Found, nil
		}
	}

	var results []struct {
		Lat  string `json:"lat"`
		Lon  string `json:"lon"`
		Type string `json:"type"`
	}
	if err := c.get(ctx, upstreamForward, c.cfg.ForwardURL, url.Values{"city": {name}}, &results); err != nil {
		return model.GeoPoint{}, false, err
	}

	var r forwardResult
	for _, item := range results {
		if !municipalityTypes[item.Type] {
			continue
		}
		lat, err1 := strconv.ParseFloat(item.Lat, 64)
		lon, err2 := strconv.ParseFloat(item.Lon, 64)
		if err1 != nil || err2 != nil {
			c.log.WarnContext(ctx, "skipping result with malformed coordinates", "lat", item.Lat, "lon", item.Lon)
			continue
		}
		r = forwardResult{X: lon, Y: lat, Found: true}
		break
	}

	c.forward.Add(lkey, r)
	if raw, err := json.Marshal(r); err == nil {
		c.sharedSet(ctx, skey, raw)
	}
	return model.GeoPoint{X: r.X, Y: r.Y}, r.Found, nil
}

// Reverse returns the municipality name at p, or geocode.NotDefinable when
// the server knows none.
func (c *Client) Reverse(ctx context.Context, p model.GeoPoint) (string, error) {
	var cell string
	if c.cells != nil {
		var err error
		if cell, err = c.cells.CellFor(p); err != nil {
			c.log.DebugContext(ctx, "reverse lookup not cacheable", "err", err)
			cell = ""
		}
	}
	if cell != "" {
		if name, ok := c.reverse.Get(cell); ok {
			return name, nil
		}
		if raw, ok := c.sharedGet(ctx, keys.Reverse(cell)); ok {
			name := string(raw)
			c.reverse.Add(cell, name)
			return name, nil
		}
	}

	var resp struct {
		Name    string `json:"name"`
		Error   string `json:"error"`
		Address struct {
			City         string `json:"city"`
			Town         string `json:"town"`
			Village      string `json:"village"`
			Municipality string `json:"municipality"`
		} `json:"address"`
	}
	params := url.Values{
		"lon": {strconv.FormatFloat(p.X, 'f', -1, 64)},
		"lat": {strconv.FormatFloat(p.Y, 'f', -1, 64)},
	}
	if err := c.get(ctx, upstreamReverse, c.cfg.ReverseURL, params, &resp); err != nil {
		return "", err
	}

	name := geocode.NotDefinable
	if resp.Error == "" {
		for _, n := range []string{resp.Name, resp.Address.City, resp.Address.Town, resp.Address.Village, resp.Address.Municipality} {
			if n = strings.TrimSpace(n); n != "" {
				name = n
				break
			}
		}
	}
	if cell != "" {
		c.reverse.Add(cell, name)
		c.sharedSet(ctx, keys.Reverse(cell), []byte(name))
	}
	return name, nil
}

func (c *Client) get(ctx context.Context, upstream, base string, params url.Values, out any) error {
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("%s url: %w", upstream, err)
	}
	q := u.Query()
	for k, vs := range params {
		q[k] = vs
	}
	if q.Get("format") == "" {
		q.Set("format", "json")
	}
	u.RawQuery = q.Encode()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit: %w", upstream, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("%s request: %w", upstream, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	observability.ObserveUpstreamLatency(upstream, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%s: %w", upstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: upstream status %d", upstream, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", upstream, err)
	}
	return nil
}

func (c *Client) sharedGet(ctx context.Context, key string) ([]byte, bool) {
	if c.shared == nil {
		return nil, false
	}
	raw, ok, err := c.shared.Get(ctx, key)
	if err != nil {
		c.log.WarnContext(ctx, "shared cache get failed", "key", key, "err", err)
		return nil, false
	}
	return raw, ok
}

func (c *Client) sharedSet(ctx context.Context, key string, val []byte) {
	if c.shared == nil {
		return
	}
	if err := c.shared.Set(ctx, key, val, c.cfg.SharedTTL); err != nil {
		c.log.WarnContext(ctx, "shared cache set failed", "key", key, "err", err)
	}
}
