package api

import (
	"log/slog"
	"time"
)

// HTTPServerConfig contains all configuration parameters for the HTTP server.
type HTTPServerConfig struct {
	// ListenAddr is the address and port the API listens on.
	ListenAddr string

	// MetricsAddr is the address of the metrics server. Empty disables it.
	MetricsAddr string

	// EnablePprof mounts the pprof debugging API under /debug.
	EnablePprof bool

	Log *slog.Logger

	// DrainDuration is how long Shutdown waits after marking the server
	// not ready, so load balancers notice before connections close.
	DrainDuration time.Duration

	// GracefulShutdownDuration bounds how long in-flight requests may take
	// to complete during shutdown.
	GracefulShutdownDuration time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// StreamKeepAlive is the interval of comment frames on the event stream.
	StreamKeepAlive time.Duration

	// StreamWriteTimeout bounds each write to an event stream client. A
	// client that stops reading is disconnected once it elapses.
	StreamWriteTimeout time.Duration
}
