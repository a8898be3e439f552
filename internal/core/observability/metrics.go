// Package observability holds the service's Prometheus collectors and the
// helpers the HTTP layer, the grid engine and the cache call to record into them.
package observability

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	tilesEmitted = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grid_tiles_emitted",
			Help:    "Tiles produced per bounding box request.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 9), // 1 to 65536
		},
		[]string{"level"},
	)

	levelSelected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_level_selected_total",
			Help: "Grid levels chosen for tiling, by whether the caller pinned the level.",
		},
		[]string{"level", "pinned"},
	)

	reprojectionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_reprojection_failures_total",
			Help: "Reprojection failures that aborted a request, by stage (input|output).",
		},
		[]string{"stage"},
	)

	cacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Redis operations by op and result (ok|error).",
		},
		[]string{"op", "result"},
	)

	redisOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Latency of Redis operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
		[]string{"op"},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Response cache results by outcome.",
		},
		[]string{"outcome"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "olc_api_build_info",
			Help: "Version of the olc-api binary (value is always 1).",
		},
		[]string{"version"},
	)
)

var registerOnce sync.Once

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDurationSeconds,
		upstreamLatencySeconds,
		tilesEmitted,
		levelSelected,
		reprojectionFailures,
		cacheOps,
		redisOpDuration,
		cacheResults,
		buildInfo,
	}
}

// Init registers the collectors on reg (the default registerer when nil) and
// switches recording on. With on=false every Observe/Inc helper is a no-op.
func Init(reg prometheus.Registerer, on bool) {
	enabled.Store(on)
	if !on {
		return
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	registerOnce.Do(func() {
		for _, c := range collectors() {
			if err := reg.Register(c); err != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					panic(err)
				}
			}
		}
	})
}

func Enabled() bool { return enabled.Load() }

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

func ObserveTiles(level, count int) {
	if !enabled.Load() {
		return
	}
	tilesEmitted.WithLabelValues(strconv.Itoa(level)).Observe(float64(count))
}

func IncLevelSelected(level int, pinned bool) {
	if !enabled.Load() {
		return
	}
	levelSelected.WithLabelValues(strconv.Itoa(level), strconv.FormatBool(pinned)).Inc()
}

func IncReprojectionFailure(stage string) {
	if !enabled.Load() {
		return
	}
	reprojectionFailures.WithLabelValues(stage).Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	if !enabled.Load() {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	cacheOps.WithLabelValues(op, result).Inc()
	redisOpDuration.WithLabelValues(op).Observe(durationSeconds)
}

func AddCacheHits(n int) {
	if enabled.Load() && n > 0 {
		cacheResults.WithLabelValues("hit").Add(float64(n))
	}
}

func AddCacheMisses(n int) {
	if enabled.Load() && n > 0 {
		cacheResults.WithLabelValues("miss").Add(float64(n))
	}
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
