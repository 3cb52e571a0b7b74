package loader

import (
	"context"
	"errors"
	"fmt"

	"prefork/core/server"
	"prefork/core/settings"
	"prefork/core/supervisor"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownPlugin is returned when enabling a plugin that was never registered.
var ErrUnknownPlugin = errors.New("unknown plugin")

// Host is what a plugin can reach in the running server.
type Host struct {
	Settings   *settings.ServerSettings
	Controller supervisor.Controller
	Server     server.Config
	Logger     *zap.Logger
}

// Plugin is an optional component enabled by the `plugin` directive.
type Plugin interface {
	Name() string
	// Load prepares the plugin, binding any listener it needs.
	Load(host Host) error
	// Run serves until ctx is cancelled.
	Run(ctx context.Context) error
}

// Manager holds the registered plugins and the enabled subset.
type Manager struct {
	registry map[string]Plugin
	enabled  []Plugin
}

func NewManager() *Manager {
	return &Manager{registry: make(map[string]Plugin)}
}

// Register makes a plugin available under its name.
func (m *Manager) Register(p Plugin) {
	m.registry[p.Name()] = p
}

// Enable selects plugins by name, in order.
func (m *Manager) Enable(names []string) error {
	m.enabled = m.enabled[:0]
	for _, name := range names {
		p, ok := m.registry[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownPlugin, name)
		}
		m.enabled = append(m.enabled, p)
	}
	return nil
}

// Enabled returns the names of the enabled plugins.
func (m *Manager) Enabled() []string {
	names := make([]string, 0, len(m.enabled))
	for _, p := range m.enabled {
		names = append(names, p.Name())
	}
	return names
}

// LoadAll loads every enabled plugin, stopping at the first failure.
func (m *Manager) LoadAll(host Host) error {
	for _, p := range m.enabled {
		l := host.Logger
		if l == nil {
			l = zap.NewNop()
		}
		if err := p.Load(Host{Settings: host.Settings, Controller: host.Controller, Server: host.Server, Logger: l.Named(p.Name())}); err != nil {
			return fmt.Errorf("failed to load plugin %s: %w", p.Name(), err)
		}
		l.Info("Plugin loaded", zap.String("plugin", p.Name()))
	}
	return nil
}

// Run runs every enabled plugin until ctx ends or one of them fails.
func (m *Manager) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range m.enabled {
		g.Go(func() error {
			if err := p.Run(ctx); err != nil {
				return fmt.Errorf("plugin %s: %w", p.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
