// Command olc-loadgen replays a zipf-skewed mix of /map and / requests
// against a running olc-api and reports latency percentiles.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/mohammed-shakir/pluscode-grid/internal/core/httpclient"
)

type Config struct {
	BaseURL        string
	Concurrency    int
	Duration       time.Duration
	ZipfS          float64
	ZipfV          float64
	PoolSize       int
	LocationEvery  int
	OutputPrefix   string
	RequestTimeout time.Duration
	Seed           int64
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "target", "http://localhost:8090", "olc-api base URL")
	flag.IntVar(&cfg.Concurrency, "concurrency", 16, "Concurrent workers")
	flag.DurationVar(&cfg.Duration, "duration", 30*time.Second, "Test duration")
	flag.Float64Var(&cfg.ZipfS, "zipf-s", 1.3, "Zipf parameter s (>1)")
	flag.Float64Var(&cfg.ZipfV, "zipf-v", 1.0, "Zipf parameter v (>=1)")
	flag.IntVar(&cfg.PoolSize, "pool", 256, "Distinct requests in the pool")
	flag.IntVar(&cfg.LocationEvery, "location-every", 4, "Every n-th pool entry is a / lookup (0 disables)")
	flag.StringVar(&cfg.OutputPrefix, "out", "results/olc", "Output file prefix (JSON/CSV)")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", 10*time.Second, "Per-request timeout")
	flag.Int64Var(&cfg.Seed, "seed", 0, "Workload seed (0 = time based)")
	flag.Parse()
	return cfg
}

// sample is one request result.
type sample struct {
	Timestamp time.Time
	Latency   time.Duration
	Status    int
	Cache     string
	Err       string
	Request   string
}

func (s sample) ok() bool { return s.Err == "" && s.Status >= 200 && s.Status < 300 }

type summary struct {
	StartTime     time.Time `json:"start"`
	EndTime       time.Time `json:"end"`
	DurationSec   float64   `json:"duration_sec"`
	TotalRequests int64     `json:"total"`
	SuccessCount  int64     `json:"success"`
	ErrorCount    int64     `json:"errors"`
	ThroughputRPS float64   `json:"throughput_rps"`
	P50Ms         float64   `json:"p50_ms"`
	P95Ms         float64   `json:"p95_ms"`
	P99Ms         float64   `json:"p99_ms"`
	Concurrency   int       `json:"concurrency"`
	PoolSize      int       `json:"pool"`
	Target        string    `json:"target"`
}

// percentiles returns the p-quantiles (0..1) of latencies in milliseconds.
func percentiles(latMs []float64, ps ...float64) []float64 {
	out := make([]float64, len(ps))
	if len(latMs) == 0 {
		return out
	}
	sorted := append([]float64(nil), latMs...)
	sort.Float64s(sorted)
	for i, p := range ps {
		out[i] = stat.Quantile(p, stat.Empirical, sorted, nil)
	}
	return out
}

func main() {
	if err := run(loadConfig()); err != nil {
		log.Fatalf("loadgen: %v", err)
	}
}

func run(cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPrefix), 0o750); err != nil {
		return fmt.Errorf("mkdir results: %w", err)
	}
	prefix := fmt.Sprintf("%s_%s", cfg.OutputPrefix, time.Now().UTC().Format("20060102_150405Z"))

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	pool := makeWorkload(cfg.PoolSize, cfg.LocationEvery, rand.New(rand.NewSource(seed)))
	base := strings.TrimRight(cfg.BaseURL, "/")

	client, err := httpclient.NewOutbound(httpclient.Options{Timeout: cfg.RequestTimeout})
	if err != nil {
		return err
	}

	csvPath, jsonPath := prefix+"_samples.csv", prefix+"_summary.json"
	csvFile, err := os.Create(filepath.Clean(csvPath))
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = csvFile.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	samples := make(chan sample, 4096)
	var total, success atomic.Int64
	latMs := make([]float64, 0, 1<<16)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		w := csv.NewWriter(csvFile)
		_ = w.Write([]string{"timestamp", "latency_ms", "status", "cache", "error", "request"})
		for s := range samples {
			total.Add(1)
			ms := float64(s.Latency.Microseconds()) / 1000.0
			if s.ok() {
				success.Add(1)
				latMs = append(latMs, ms)
			}
			_ = w.Write([]string{
				s.Timestamp.UTC().Format(time.RFC3339Nano),
				strconv.FormatFloat(ms, 'f', 3, 64),
				strconv.Itoa(s.Status),
				s.Cache,
				s.Err,
				s.Request,
			})
		}
		w.Flush()
		if err := w.Error(); err != nil {
			log.Printf("csv flush error: %v", err)
		}
	}()

	start := time.Now()
	log.Printf("loadgen start target=%s dur=%s conc=%d zipf(s=%.2f,v=%.2f) pool=%d seed=%d",
		base, cfg.Duration, cfg.Concurrency, cfg.ZipfS, cfg.ZipfV, len(pool), seed)

	indexes := make([]*zipfIndex, cfg.Concurrency)
	for id := range indexes {
		if indexes[id], err = newZipfIndex(rand.New(rand.NewSource(seed+int64(id)+1)), cfg.ZipfS, cfg.ZipfV, len(pool)); err != nil {
			close(samples)
			return err
		}
	}

	g := new(errgroup.Group)
	for _, idx := range indexes {
		g.Go(func() error {
			for ctx.Err() == nil {
				s := fire(ctx, client, base, pool[idx.Next()])
				if ctx.Err() != nil {
					return nil
				}
				samples <- s
			}
			return nil
		})
	}
	_ = g.Wait()
	close(samples)
	<-collected

	end := time.Now()
	elapsed := end.Sub(start).Seconds()
	p := percentiles(latMs, 0.50, 0.95, 0.99)
	sum := summary{
		StartTime:     start.UTC(),
		EndTime:       end.UTC(),
		DurationSec:   elapsed,
		TotalRequests: total.Load(),
		SuccessCount:  success.Load(),
		ErrorCount:    total.Load() - success.Load(),
		ThroughputRPS: float64(total.Load()) / elapsed,
		P50Ms:         p[0],
		P95Ms:         p[1],
		P99Ms:         p[2],
		Concurrency:   cfg.Concurrency,
		PoolSize:      len(pool),
		Target:        base,
	}
	if f, err := os.Create(filepath.Clean(jsonPath)); err == nil {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		_ = enc.Encode(sum)
		_ = f.Close()
	}

	log.Printf("done: total=%d succ=%d err=%d thr=%.2f rps p50=%.1fms p95=%.1fms p99=%.1fms",
		sum.TotalRequests, sum.SuccessCount, sum.ErrorCount, sum.ThroughputRPS, sum.P50Ms, sum.P95Ms, sum.P99Ms)
	log.Printf("wrote %s and %s", jsonPath, csvPath)
	return nil
}

func fire(ctx context.Context, client *http.Client, base string, r request) sample {
	s := sample{Timestamp: time.Now(), Request: r.String()}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+r.String(), nil)
	if err != nil {
		s.Err = err.Error()
		return s
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	s.Latency = time.Since(s.Timestamp)
	if err != nil {
		s.Err = err.Error()
		return s
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	s.Status = resp.StatusCode
	s.Cache = resp.Header.Get("X-Cache")
	if !s.ok() {
		s.Err = fmt.Sprintf("status=%d", resp.StatusCode)
	}
	return s
}
