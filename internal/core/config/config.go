package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type GeocoderCfg struct {
	ForwardURL string
	ReverseURL string
	UserAgent  string
	RPS        float64
	CacheSize  int
	Timeout    time.Duration
	// Proxy is an explicit outbound proxy; empty falls back to the environment.
	Proxy    string
	CacheTTL time.Duration
}

type CacheCfg struct {
	Enabled   bool
	RedisAddr string
	TTL       time.Duration
	OpTimeout time.Duration
}

type Config struct {
	Addr     string
	LogLevel string

	DefaultEPSGIn     int
	DefaultEPSGOut    int
	DefaultMapEPSGIn  int
	DefaultMapEPSGOut int
	DefaultMapMode    string
	DefaultMapPretty  bool
	// Pretty indents / responses.
	Pretty      bool
	MapMaxTiles int
	LevelPolicy string
	TileWorkers int
	RegionalIn  bool
	RegionalOut bool

	Geocoder GeocoderCfg
	Cache    CacheCfg

	CORSAllowOrigin string
	// Redirects maps an HTTP status to the page errors of that status go to.
	Redirects map[int]string
}

var redirectStatuses = []int{403, 404, 405, 410, 500, 501, 502, 503}

func FromEnv() Config {
	redirects := map[int]string{}
	for _, st := range redirectStatuses {
		if u := strings.TrimSpace(os.Getenv("REDIRECT_URL_" + strconv.Itoa(st))); u != "" {
			redirects[st] = u
		}
	}

	workers := getint("TILE_WORKERS", 1)
	if workers < 1 {
		workers = 1
	}
	maxTiles := getint("MAP_MAX_TILES", 10000)
	if maxTiles < 1 {
		maxTiles = 10000
	}

	return Config{
		Addr:     getenv("ADDR", ":8090"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		DefaultEPSGIn:     getint("DEFAULT_EPSG_IN", 4326),
		DefaultEPSGOut:    getint("DEFAULT_EPSG_OUT", 25833),
		DefaultMapEPSGIn:  getint("DEFAULT_MAP_EPSG_IN", 4326),
		DefaultMapEPSGOut: getint("DEFAULT_MAP_EPSG_OUT", 4326),
		DefaultMapMode:    strings.ToLower(getenv("DEFAULT_MAP_MODE", "labels")),
		DefaultMapPretty:  getbool("DEFAULT_MAP_PRETTY", false),
		Pretty:            getbool("JSON_PRETTY", true),
		MapMaxTiles:       maxTiles,
		LevelPolicy:       getenv("LEVEL_POLICY", "standard"),
		TileWorkers:       workers,
		RegionalIn:        getbool("REGIONAL_IN", false),
		RegionalOut:       getbool("REGIONAL_OUT", false),

		Geocoder: GeocoderCfg{
			ForwardURL: getenv("MUNICIPALITY_FORWARD_URL", ""),
			ReverseURL: getenv("MUNICIPALITY_REVERSE_URL", ""),
			UserAgent:  getenv("GEOCODER_USER_AGENT", "olc-api/1.0"),
			RPS:        getfloat("GEOCODER_RPS", 1),
			CacheSize:  getint("GEOCODER_CACHE_SIZE", 1024),
			Timeout:    getduration("GEOCODER_TIMEOUT", 10*time.Second),
			Proxy:      getenv("MUNICIPALITY_PROXY", ""),
			CacheTTL:   getduration("GEOCODER_CACHE_TTL", 24*time.Hour),
		},
		Cache: CacheCfg{
			Enabled:   getbool("CACHE_ENABLED", false),
			RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),
			TTL:       getduration("CACHE_TTL", 10*time.Minute),
			OpTimeout: getduration("CACHE_OP_TIMEOUT", 50*time.Millisecond),
		},

		CORSAllowOrigin: getenv("CORS_ALLOW_ORIGIN", "*"),
		Redirects:       redirects,
	}
}

// GeocoderEnabled reports whether any regional feature needs a geocoder.
func (c Config) GeocoderEnabled() bool { return c.RegionalIn || c.RegionalOut }

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
