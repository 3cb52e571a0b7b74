package supervisor

import (
	"context"
	"net"
)

// App is the application hosted by workers (or by the parent in single mode).
type App interface {
	// Preload performs one-time application loading.
	Preload(ctx context.Context) error
	// Serve accepts connections on ln until ctx is cancelled, then drains.
	// It calls ready once it is accepting.
	Serve(ctx context.Context, ln net.Listener, ready func()) error
	// Status reports the current request pool state.
	Status() Status
}
