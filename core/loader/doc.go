// Package loader provides the plugin system behind the `plugin` directive.
//
// # Plugin Interface
//
//	type Plugin interface {
//	    Name() string
//	    Load(host Host) error
//	    Run(ctx context.Context) error
//	}
//
// # Manager
//
// The Manager holds the registry of available plugins. It handles:
//   - Registration of plugins via Register()
//   - Selection of the plugins named in the directive file via Enable()
//   - Loading (binding listeners) via LoadAll(), before any worker is spawned
//   - Running the loaded plugins via Run(), under one errgroup
//
// The metrics endpoint is the built-in plugin.
package loader
