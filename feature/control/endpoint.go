package control

import (
	"context"
	"net"

	"prefork/core/middleware/auth"
	"prefork/core/server"
	"prefork/core/settings"
	"prefork/core/supervisor"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Endpoint is the control app bound to the activate_control_app URL.
type Endpoint struct {
	app    *fiber.App
	ln     net.Listener
	cfg    server.Config
	logger *zap.Logger
}

// NewApp builds the control fiber app: shared middleware, the auth policy
// and the command routes.
func NewApp(st *settings.ServerSettings, ctl supervisor.Controller, events EventSource, cfg server.Config, logger *zap.Logger) *fiber.App {
	app := server.New("prefork-control", cfg, logger)
	app.Use(auth.New(auth.Config{Mode: st.ControlAuth(), Token: st.ControlToken()}))
	NewHandler(ctl, events, logger, st.ControlDataOnly()).RegisterRoutes(app)
	return app
}

// Listen binds the control URL. It fails if the control app is not activated.
func Listen(st *settings.ServerSettings, ctl supervisor.Controller, events EventSource, cfg server.Config, logger *zap.Logger) (*Endpoint, error) {
	addr, err := server.HostPort(st.ControlURL())
	if err != nil {
		return nil, err
	}
	ln, err := server.Bind(addr)
	if err != nil {
		return nil, err
	}

	return &Endpoint{
		app:    NewApp(st, ctl, events, cfg, logger),
		ln:     ln,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Addr is the bound address.
func (e *Endpoint) Addr() net.Addr {
	return e.ln.Addr()
}

// Run serves until ctx is cancelled.
func (e *Endpoint) Run(ctx context.Context) error {
	e.logger.Info("Control app listening", zap.String("addr", e.ln.Addr().String()))
	return server.Serve(ctx, e.app, e.ln, e.cfg)
}
