package exporter

import (
	"context"
	"fmt"
	"time"

	"prefork/core/server"
	"prefork/core/supervisor"
	"prefork/feature/control"
	"prefork/feature/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// GCKeys are the /gc-stats fields exported as puma_gc_<key>. The list covers
// both Ruby servers and prefork itself; missing keys keep their last value.
var GCKeys = []string{
	// Ruby
	"count", "minor_gc_count", "major_gc_count",
	"heap_allocated_pages", "heap_sorted_length", "heap_allocatable_pages",
	"heap_available_slots", "heap_live_slots", "heap_free_slots", "heap_final_slots",
	"heap_marked_slots", "heap_swept_slots", "heap_eden_pages", "heap_tomb_pages",
	"total_allocated_pages", "total_freed_pages", "total_allocated_objects", "total_freed_objects",
	"malloc_increase_bytes", "malloc_increase_bytes_limit",
	"remembered_wb_unprotected_objects", "remembered_wb_unprotected_objects_limit",
	"old_objects", "old_objects_limit", "oldmalloc_increase_bytes", "oldmalloc_increase_bytes_limit",
	// Go
	"heap_alloc", "heap_sys", "heap_objects", "total_alloc",
	"mallocs", "frees", "pause_total_ns", "next_gc", "goroutines",
}

// Source is the control app surface the exporter polls.
type Source interface {
	Stats() (supervisor.Stats, error)
	GCStats() (map[string]float64, error)
}

// Exporter polls a control app and mirrors it into a registry.
type Exporter struct {
	cfg    Config
	src    Source
	logger *zap.Logger

	registry *prometheus.Registry
	up       prometheus.Gauge
	stats    map[string]prometheus.Gauge
	gc       map[string]prometheus.Gauge
}

// New creates an exporter polling src.
func New(cfg Config, src Source, logger *zap.Logger) *Exporter {
	e := &Exporter{
		cfg:      cfg,
		src:      src,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		up: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "puma_up",
			Help: "Whether the last poll of the control app succeeded",
		}),
		stats: make(map[string]prometheus.Gauge),
		gc:    make(map[string]prometheus.Gauge, len(GCKeys)),
	}
	e.registry.MustRegister(e.up)

	for name, help := range map[string]string{
		"request_backlog": "Number of requests waiting to be processed by a thread",
		"thread_count":    "Number of threads currently running",
		"pool_capacity":   "Number of requests that can be accepted right now",
		"max_threads":     "Maximum number of threads",
		"requests_count":  "Requests served by the current workers",
		"workers":         "Number of configured workers",
		"booted_workers":  "Number of booted workers",
		"old_workers":     "Number of workers running a previous phase",
		"phase":           "Current restart phase",
	} {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "puma", Name: name, Help: help})
		e.registry.MustRegister(g)
		e.stats[name] = g
	}

	for _, key := range GCKeys {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "puma",
			Subsystem: "gc",
			Name:      key,
			Help:      "GC statistic " + key + " reported by the control app",
		})
		e.registry.MustRegister(g)
		e.gc[key] = g
	}
	return e
}

// Registry exposes the exporter registry.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Poll fetches /stats and /gc-stats once.
func (e *Exporter) Poll() error {
	st, err := e.src.Stats()
	if err != nil {
		e.up.Set(0)
		return fmt.Errorf("failed to fetch stats: %w", err)
	}
	e.up.Set(1)

	totals := st.Totals()
	e.stats["request_backlog"].Set(float64(totals.Backlog))
	e.stats["thread_count"].Set(float64(totals.Running))
	e.stats["pool_capacity"].Set(float64(totals.PoolCapacity))
	e.stats["max_threads"].Set(float64(totals.MaxThreads))
	e.stats["requests_count"].Set(float64(totals.RequestsCount))
	if c := st.ClusterStats; c != nil {
		e.stats["workers"].Set(float64(c.Workers))
		e.stats["booted_workers"].Set(float64(c.BootedWorkers))
		e.stats["old_workers"].Set(float64(c.OldWorkers))
		e.stats["phase"].Set(float64(c.Phase))
	} else {
		e.stats["workers"].Set(0)
	}

	gc, err := e.src.GCStats()
	if err != nil {
		return fmt.Errorf("failed to fetch gc stats: %w", err)
	}
	for key, v := range gc {
		if g, ok := e.gc[key]; ok {
			g.Set(v)
		}
	}
	return nil
}

// Run polls every cfg.Interval and serves /metrics on cfg.BindAddress
// until ctx is cancelled.
func (e *Exporter) Run(ctx context.Context, srv server.Config) error {
	ln, err := server.Bind(e.cfg.BindAddress)
	if err != nil {
		return err
	}
	app := metrics.NewApp(e.registry, srv, e.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e.logger.Info("Exporter listening",
			zap.String("addr", ln.Addr().String()),
			zap.String("control_url", e.cfg.ControlURL),
		)
		return server.Serve(ctx, app, ln, srv)
	})
	g.Go(func() error {
		e.loop(ctx)
		return nil
	})
	return g.Wait()
}

func (e *Exporter) loop(ctx context.Context) {
	interval := e.cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := e.Poll(); err != nil {
			e.logger.Warn("Poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// NewClientSource adapts a control client into a Source.
func NewClientSource(cfg Config) (Source, error) {
	c, err := control.NewClient(cfg.ControlURL, cfg.AuthToken, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return c, nil
}
