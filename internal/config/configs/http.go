package configs

import "time"

// HTTP configures the escrow API server.
type HTTP struct {
	// Port is the TCP port the API and /metrics listen on.
	Port uint16 `env:"PORT" envDefault:"8080"`
	// ReadHeaderTimeout bounds how long a client may take to send headers.
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"10s"`
	// ShutdownTimeout is how long in-flight requests get to finish on
	// SIGINT or SIGTERM before the workers are stopped.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
}
