package api

import (
	"log/slog"
	"time"
)

// HTTPServerConfig configures the API server.
type HTTPServerConfig struct {
	ListenAddr string

	// MetricsAddr is where prometheus metrics are served. Empty disables it.
	MetricsAddr string

	EnablePprof bool
	Log         *slog.Logger

	// DrainDuration is how long Shutdown reports not ready before closing
	// connections, so load balancers can stop routing.
	DrainDuration time.Duration

	// GracefulShutdownDuration bounds the wait for in-flight requests.
	GracefulShutdownDuration time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}
