package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"

	"prefork/core/loader"
	"prefork/core/server"
	"prefork/core/settings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const landingPage = `<html>
<head><title>prefork metrics</title></head>
<body>
<h1>prefork metrics</h1>
<p><a href='/metrics'>Metrics</a></p>
</body>
</html>
`

var errNotLoaded = errors.New("metrics plugin not loaded")

// Plugin serves Prometheus metrics on the metrics_url address.
type Plugin struct {
	mem MemoryReader

	registry *prometheus.Registry
	app      *fiber.App
	ln       net.Listener
	cfg      server.Config
	logger   *zap.Logger
}

var _ loader.Plugin = (*Plugin)(nil)

// New creates the plugin. A nil reader falls back to ProcessMemory.
func New(mem MemoryReader) *Plugin {
	if mem == nil {
		mem = ProcessMemory{}
	}
	return &Plugin{mem: mem}
}

func (p *Plugin) Name() string { return settings.PluginMetrics }

// Load registers the collectors and binds the metrics listener.
func (p *Plugin) Load(host loader.Host) error {
	p.registry = prometheus.NewRegistry()
	if err := p.registry.Register(NewCollector(host.Controller, p.mem)); err != nil {
		return fmt.Errorf("failed to register stats collector: %w", err)
	}
	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	addr, err := server.HostPort(host.Settings.MetricsURL())
	if err != nil {
		return err
	}
	ln, err := server.Bind(addr)
	if err != nil {
		return err
	}

	p.cfg = host.Server
	p.logger = host.Logger
	p.ln = ln
	p.app = NewApp(p.registry, host.Server, host.Logger)
	return nil
}

// Run serves the metrics app until ctx is cancelled.
func (p *Plugin) Run(ctx context.Context) error {
	if p.app == nil {
		return errNotLoaded
	}
	p.logger.Info("Metrics listening", zap.String("addr", p.ln.Addr().String()))
	return server.Serve(ctx, p.app, p.ln, p.cfg)
}

// Registry is the plugin's registry, nil before Load.
func (p *Plugin) Registry() *prometheus.Registry { return p.registry }

// NewApp serves reg on /metrics with a landing page on /.
func NewApp(reg prometheus.Gatherer, cfg server.Config, logger *zap.Logger) *fiber.App {
	app := server.New("prefork-metrics", cfg, logger)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	app.Get("/", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(landingPage)
	})
	return app
}
