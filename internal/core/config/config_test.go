package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("REDIRECT_URL_404", "")
	cfg := FromEnv()
	if cfg.Addr != ":8090" || cfg.DefaultEPSGIn != 4326 || cfg.DefaultEPSGOut != 25833 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.DefaultMapEPSGOut != 4326 || cfg.DefaultMapMode != "labels" || cfg.MapMaxTiles != 10000 {
		t.Fatalf("unexpected map defaults %+v", cfg)
	}
	if cfg.CORSAllowOrigin != "*" || cfg.LevelPolicy != "standard" || cfg.TileWorkers != 1 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.GeocoderEnabled() || cfg.Cache.Enabled || len(cfg.Redirects) != 0 {
		t.Fatalf("optional features should be off by default: %+v", cfg)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DEFAULT_EPSG_OUT", "3857")
	t.Setenv("MAP_MAX_TILES", "-3")
	t.Setenv("TILE_WORKERS", "4")
	t.Setenv("REGIONAL_OUT", "yes")
	t.Setenv("CACHE_ENABLED", "true")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("GEOCODER_RPS", "0.5")
	t.Setenv("REDIRECT_URL_404", "https://example.org/404.html")
	t.Setenv("REDIRECT_URL_418", "https://example.org/teapot.html")

	cfg := FromEnv()
	if cfg.DefaultEPSGOut != 3857 || cfg.TileWorkers != 4 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.MapMaxTiles != 10000 {
		t.Fatalf("non-positive MAP_MAX_TILES should keep the default, got %d", cfg.MapMaxTiles)
	}
	if !cfg.GeocoderEnabled() || cfg.Geocoder.RPS != 0.5 {
		t.Fatalf("geocoder settings: %+v", cfg.Geocoder)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTL != 90*time.Second {
		t.Fatalf("cache settings: %+v", cfg.Cache)
	}
	if len(cfg.Redirects) != 1 || cfg.Redirects[404] != "https://example.org/404.html" {
		t.Fatalf("redirects=%v", cfg.Redirects)
	}
}
