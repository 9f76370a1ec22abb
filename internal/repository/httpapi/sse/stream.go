package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"inkwell/internal/clock"
	"inkwell/internal/domain/models/stream"
)

// ErrIdleTimeout is reported when the server went silent for longer than
// Config.IdleTimeout
var ErrIdleTimeout = errors.New("event stream idle timeout")

// Stream is an open event stream. It implements repositories.StreamHandle.
type Stream struct {
	events chan stream.Event
	body   io.ReadCloser
	cancel context.CancelFunc
	stop   chan struct{}
	done   chan struct{}
	logger *slog.Logger

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
	closed    bool
}

// NewStream starts reading body. The stream owns body and closes it on
// every exit path. cancel, if set, aborts the underlying request.
func NewStream(body io.ReadCloser, cancel context.CancelFunc, cfg *Config, clk clock.Clock, logger *slog.Logger) *Stream {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if clk == nil {
		clk = clock.Real()
	}
	if cancel == nil {
		cancel = func() {}
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Stream{
		events: make(chan stream.Event, cfg.BufferSize),
		body:   body,
		cancel: cancel,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}

	watchdog := NewIdleWatchdog(clk, cfg.IdleTimeout, func() {
		logger.Warn("event stream idle, closing", "idle_timeout", cfg.IdleTimeout)
		s.fail(fmt.Errorf("%w after %s", ErrIdleTimeout, cfg.IdleTimeout))
		s.shutdown()
	})

	reader := NewReader(&activityReader{r: body, watchdog: watchdog})
	reader.OnComment = func(text string) {
		logger.Debug("event stream keep-alive", "comment", text)
	}

	go s.run(reader, watchdog)
	return s
}

func (s *Stream) run(reader *Reader, watchdog *IdleWatchdog) {
	defer close(s.done)
	defer close(s.events)
	defer watchdog.Stop()
	defer s.shutdown()

	for {
		event, err := reader.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.fail(err)
			}
			return
		}

		select {
		case s.events <- event:
		case <-s.stop:
			return
		}
	}
}

// Events is closed when the stream ends
func (s *Stream) Events() <-chan stream.Event {
	return s.events
}

// Err reports why the stream ended: nil after a clean EOF or Close
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops reading and releases the connection. It waits for the reader
// goroutine, so no event is delivered after Close returns. Safe to call
// multiple times and from any goroutine.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.shutdown()
	<-s.done
	return nil
}

func (s *Stream) shutdown() {
	s.closeOnce.Do(func() {
		s.cancel()
		if err := s.body.Close(); err != nil {
			s.logger.Debug("event stream body close failed", "error", err)
		}
		close(s.stop)
	})
}

// fail records the first error unless the stream was closed by its owner
func (s *Stream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.err != nil {
		return
	}
	s.err = err
}
