package control

import (
	"context"
	"errors"
	"strconv"

	"prefork/core/logger"
	"prefork/core/supervisor"
	"prefork/feature/journal"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// EventSource serves the /events command.
type EventSource interface {
	Recent(ctx context.Context, limit int) ([]journal.WorkerEvent, error)
}

// Handler maps control commands onto a supervisor.Controller.
type Handler struct {
	ctl      supervisor.Controller
	events   EventSource
	logger   *zap.Logger
	dataOnly bool
}

// NewHandler creates a control handler. events may be nil.
func NewHandler(ctl supervisor.Controller, events EventSource, logger *zap.Logger, dataOnly bool) *Handler {
	return &Handler{ctl: ctl, events: events, logger: logger, dataOnly: dataOnly}
}

// RegisterRoutes registers the control routes. Lifecycle commands are left
// out in data-only mode.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Get("/stats", h.HandleStats)
	app.Get("/gc-stats", h.HandleGCStats)
	app.Get("/events", h.HandleEvents)

	if h.dataOnly {
		return
	}
	app.Get("/restart", h.command("restart", h.ctl.Restart))
	app.Get("/phased-restart", h.command("phased-restart", h.ctl.PhasedRestart))
	app.Get("/stop", h.command("stop", h.ctl.Stop))
	app.Get("/halt", h.command("halt", h.ctl.Halt))
}

// HandleStats returns the supervisor stats.
func (h *Handler) HandleStats(c *fiber.Ctx) error {
	return c.JSON(h.ctl.Stats())
}

// HandleGCStats returns runtime memory statistics of the parent.
func (h *Handler) HandleGCStats(c *fiber.Ctx) error {
	return c.JSON(h.ctl.GCStats())
}

// HandleEvents returns recent lifecycle events, newest first.
func (h *Handler) HandleEvents(c *fiber.Ctx) error {
	if h.events == nil {
		return fiber.NewError(fiber.StatusNotFound, journal.ErrDisabled.Error())
	}

	limit := journal.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	events, err := h.events.Recent(c.UserContext(), limit)
	if errors.Is(err, journal.ErrDisabled) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"events": events})
}

func (h *Handler) command(name string, fn func(context.Context) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		l := logger.WithRequestID(h.logger, c)
		l.Info("Control command received", zap.String("command", name))

		if err := fn(c.UserContext()); err != nil {
			l.Warn("Control command rejected", zap.String("command", name), zap.Error(err))
			return fiber.NewError(statusFor(err), err.Error())
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, supervisor.ErrSingleMode), errors.Is(err, supervisor.ErrRestartInProgress):
		return fiber.StatusConflict
	case errors.Is(err, supervisor.ErrNotRunning), errors.Is(err, supervisor.ErrStopping):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
