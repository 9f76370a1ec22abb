package repositories

import (
	"context"

	"inkwell/internal/domain/models/stream"
)

// GenerationRepository starts and cancels server-side generation jobs
type GenerationRepository interface {
	// StartJob returns the id of the job whose output is streamed by StreamOpener
	StartJob(ctx context.Context, mode stream.Mode, opts stream.StartOptions) (string, error)

	// CancelJob asks the server to stop a job. Callers treat it as best-effort.
	CancelJob(ctx context.Context, jobID string) error
}

// StreamOpener opens the push channel of a job
type StreamOpener interface {
	Open(ctx context.Context, jobID string) (StreamHandle, error)
}

// StreamHandle is an open push channel.
// Events is closed when the channel ends; Err then reports why (nil on a clean EOF).
// Close is idempotent and safe to call from any goroutine.
type StreamHandle interface {
	Events() <-chan stream.Event
	Err() error
	Close() error
}
