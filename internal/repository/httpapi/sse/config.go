package sse

import "time"

// Config holds configuration for SSE connections
type Config struct {
	// IdleTimeout closes a channel that delivered no bytes, keep-alive
	// comments included, for this long. Zero disables the watchdog.
	IdleTimeout time.Duration

	// BufferSize is the capacity of the event channel
	BufferSize int
}

// DefaultConfig returns the default SSE configuration.
// Servers send keep-alives every 10-15 seconds, so 45 seconds of silence
// means the connection is gone.
func DefaultConfig() *Config {
	return &Config{
		IdleTimeout: 45 * time.Second,
		BufferSize:  64,
	}
}
