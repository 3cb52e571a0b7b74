package app

import (
	"context"
	"errors"
	"net"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"prefork/core/server"
	"prefork/core/settings"
	"prefork/core/supervisor"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// MaxSleep caps the /sleep endpoint.
const MaxSleep = 10 * time.Second

// Identity tells the responder which worker it runs in.
type Identity struct {
	Worker bool
	Index  int
	Phase  int
}

// Responder is the built-in application served by workers. Concurrency is
// bounded by max_threads; requests waiting for a slot count as backlog.
type Responder struct {
	settings *settings.ServerSettings
	cfg      server.Config
	logger   *zap.Logger
	id       Identity

	slots    *semaphore.Weighted
	capacity int64
	waiting  atomic.Int64
	running  atomic.Int64
	requests atomic.Uint64
	loadedAt atomic.Pointer[time.Time]
}

var _ supervisor.App = (*Responder)(nil)

// New creates a responder sized from the thread directives.
func New(st *settings.ServerSettings, cfg server.Config, logger *zap.Logger, id Identity) *Responder {
	capacity := int64(st.MaxThreads())
	return &Responder{
		settings: st,
		cfg:      cfg,
		logger:   logger,
		id:       id,
		slots:    semaphore.NewWeighted(capacity),
		capacity: capacity,
	}
}

// Preload records the load time. The responder has nothing else to load.
func (r *Responder) Preload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now()
	r.loadedAt.Store(&now)
	r.logger.Debug("Application loaded", zap.String("environment", r.settings.Environment()))
	return nil
}

// MarkLoaded flags the application as loaded by the parent process.
func (r *Responder) MarkLoaded() {
	now := time.Now()
	r.loadedAt.Store(&now)
}

// Serve answers requests on ln until ctx is cancelled. ready is called
// once the server is listening.
func (r *Responder) Serve(ctx context.Context, ln net.Listener, ready func()) error {
	if r.loadedAt.Load() == nil {
		return errors.New("application was not loaded")
	}
	app := r.Router()
	app.Hooks().OnListen(func(fiber.ListenData) error {
		ready()
		return nil
	})
	return server.Serve(ctx, app, ln, r.cfg)
}

// Status reports the pool the way workers check in.
func (r *Responder) Status() supervisor.Status {
	running := r.running.Load()
	return supervisor.Status{
		Backlog:       int(r.waiting.Load()),
		Running:       int(running),
		PoolCapacity:  int(r.capacity - running),
		MaxThreads:    int(r.capacity),
		RequestsCount: r.requests.Load(),
	}
}

// Router builds the fiber app.
func (r *Responder) Router() *fiber.App {
	app := server.New("prefork", r.cfg, r.logger)
	app.Use(r.limit)
	app.Get("/", r.handleIndex)
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/sleep", r.handleSleep)
	return app
}

func (r *Responder) limit(c *fiber.Ctx) error {
	r.waiting.Add(1)
	err := r.slots.Acquire(c.Context(), 1)
	r.waiting.Add(-1)
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "server is shutting down")
	}

	r.running.Add(1)
	defer func() {
		r.running.Add(-1)
		r.slots.Release(1)
		r.requests.Add(1)
	}()
	return c.Next()
}

func (r *Responder) handleIndex(c *fiber.Ctx) error {
	body := fiber.Map{
		"pid":         os.Getpid(),
		"environment": r.settings.Environment(),
		"mode":        "single",
	}
	if r.id.Worker {
		body["mode"] = "cluster"
		body["worker"] = r.id.Index
		body["phase"] = r.id.Phase
	}
	if tag := r.settings.Tag(); tag != "" {
		body["tag"] = tag
	}
	return c.JSON(body)
}

func (r *Responder) handleSleep(c *fiber.Ctx) error {
	ms, err := strconv.Atoi(c.Query("ms", "0"))
	if err != nil || ms < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "ms must be a non-negative integer")
	}
	d := time.Duration(ms) * time.Millisecond
	if d > MaxSleep {
		d = MaxSleep
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-c.Context().Done():
	}
	return c.JSON(fiber.Map{"slept_ms": d.Milliseconds()})
}
