package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/pluscode-grid/internal/cache/redisstore"
	"github.com/mohammed-shakir/pluscode-grid/internal/cache/tilecache"
	olccodec "github.com/mohammed-shakir/pluscode-grid/internal/codec/olc"
	"github.com/mohammed-shakir/pluscode-grid/internal/core/config"
	"github.com/mohammed-shakir/pluscode-grid/internal/core/health"
	"github.com/mohammed-shakir/pluscode-grid/internal/core/httpclient"
	"github.com/mohammed-shakir/pluscode-grid/internal/core/model"
	"github.com/mohammed-shakir/pluscode-grid/internal/core/observability"
	"github.com/mohammed-shakir/pluscode-grid/internal/core/router"
	"github.com/mohammed-shakir/pluscode-grid/internal/core/server"
	"github.com/mohammed-shakir/pluscode-grid/internal/geocode/nominatim"
	"github.com/mohammed-shakir/pluscode-grid/internal/geodesy/proj"
	"github.com/mohammed-shakir/pluscode-grid/internal/grid"
	"github.com/mohammed-shakir/pluscode-grid/internal/logger"
	h3mapper "github.com/mohammed-shakir/pluscode-grid/internal/mapper/h3"
	"github.com/mohammed-shakir/pluscode-grid/internal/metrics"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func run() int {
	addrFlag := flag.String("addr", "", "listen address (overrides ADDR)")
	policyFlag := flag.String("policy", "", "level policy: standard|wide (overrides LEVEL_POLICY)")
	flag.Parse()

	cfg := config.FromEnv()
	if *addrFlag != "" {
		cfg.Addr = strings.TrimSpace(*addrFlag)
	}
	if *policyFlag != "" {
		cfg.LevelPolicy = strings.TrimSpace(*policyFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		SampleN:   envInt("LOG_SAMPLE_N", 0),
		Component: "olc-api",
		Version:   Version,
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := start(ctx, cfg, appLog); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func start(ctx context.Context, cfg config.Config, appLog *slog.Logger) error {
	if _, ok := model.ParseMode(cfg.DefaultMapMode); !ok {
		return fmt.Errorf("DEFAULT_MAP_MODE %q: want labels or polygons", cfg.DefaultMapMode)
	}
	policy, err := grid.ParsePolicy(cfg.LevelPolicy)
	if err != nil {
		return fmt.Errorf("LEVEL_POLICY: %w", err)
	}

	mcfg := metrics.Config{
		Enabled: os.Getenv("METRICS_ENABLED") == "true",
		Addr:    os.Getenv("METRICS_ADDR"),
		Path:    os.Getenv("METRICS_PATH"),
		Build: metrics.BuildInfo{
			Version:   os.Getenv("BUILD_VERSION"),
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	}
	var deps server.Deps
	g, gctx := errgroup.WithContext(ctx)
	if mcfg.Enabled {
		p := metrics.Init(mcfg)
		observability.Init(p.Registerer(), true)
		observability.ExposeBuildInfo(Version)
		if mcfg.Addr != "" {
			g.Go(func() error { return p.Serve(gctx, mcfg, appLog) })
		} else {
			deps.Metrics = p.Handler()
		}
	} else {
		observability.Init(nil, false)
	}

	appLog.Info("starting olc-api",
		"addr", cfg.Addr,
		"version", Version,
		"policy", policy.Name,
		"workers", cfg.TileWorkers,
		"cache", cfg.Cache.Enabled,
		"regional_in", cfg.RegionalIn,
		"regional_out", cfg.RegionalOut)

	var (
		rc    *redisstore.Client
		cache router.Cache
	)
	if cfg.Cache.Enabled {
		rc, err = redisstore.New(ctx, cfg.Cache.RedisAddr)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer func() { _ = rc.Close() }()
		cache = tilecache.New(rc, tilecache.Config{TTL: cfg.Cache.TTL, OpTimeout: cfg.Cache.OpTimeout}, appLog)
		deps.Ready = map[string]health.Pinger{"redis": rc}
	}

	opts := []grid.Option{grid.WithLogger(appLog.With("component", "grid"))}
	if cfg.GeocoderEnabled() {
		gc, err := newGeocoder(cfg, rc, appLog)
		if err != nil {
			return err
		}
		opts = append(opts, grid.WithGeocoder(gc))
	}

	engine, err := grid.New(grid.Config{
		Policy:      policy,
		Workers:     cfg.TileWorkers,
		RegionalOut: cfg.RegionalOut,
	}, olccodec.New(), proj.New(), opts...)
	if err != nil {
		return fmt.Errorf("grid engine: %w", err)
	}
	deps.API = router.New(cfg, engine, cache, appLog)

	g.Go(func() error { return server.Run(gctx, cfg, appLog, deps) })
	return g.Wait()
}

func newGeocoder(cfg config.Config, rc *redisstore.Client, log *slog.Logger) (*nominatim.Client, error) {
	hc, err := httpclient.NewOutbound(httpclient.Options{Timeout: cfg.Geocoder.Timeout, Proxy: cfg.Geocoder.Proxy})
	if err != nil {
		return nil, fmt.Errorf("geocoder http client: %w", err)
	}
	cells, err := h3mapper.New(h3mapper.DefaultResolution)
	if err != nil {
		return nil, err
	}
	opts := []nominatim.Option{
		nominatim.WithHTTPClient(hc),
		nominatim.WithCells(cells),
		nominatim.WithLogger(log),
	}
	if rc != nil {
		opts = append(opts, nominatim.WithShared(rc))
	}
	gc, err := nominatim.New(nominatim.Config{
		ForwardURL:     cfg.Geocoder.ForwardURL,
		ReverseURL:     cfg.Geocoder.ReverseURL,
		UserAgent:      cfg.Geocoder.UserAgent,
		RequestsPerSec: cfg.Geocoder.RPS,
		CacheSize:      cfg.Geocoder.CacheSize,
		SharedTTL:      cfg.Geocoder.CacheTTL,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("geocoder: %w", err)
	}
	return gc, nil
}
