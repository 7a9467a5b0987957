package api

import (
	"log/slog"
	"time"
)

// HTTPServerConfig configures the API listener, the metrics listener and the
// server lifecycle.
type HTTPServerConfig struct {
	// ListenAddr is the address the API is served on.
	ListenAddr string

	// MetricsAddr is the address /metrics is served on. Empty disables it.
	MetricsAddr string

	// EnablePprof mounts the pprof handlers under /debug.
	EnablePprof bool

	Log *slog.Logger

	// DrainDuration is how long /drain waits after flipping readiness so that
	// load balancers stop routing to the instance.
	DrainDuration time.Duration

	// GracefulShutdownDuration bounds the wait for open requests on shutdown.
	GracefulShutdownDuration time.Duration

	ReadTimeout time.Duration

	// WriteTimeout also bounds event streams, so it must exceed the signing delay.
	WriteTimeout time.Duration
}
