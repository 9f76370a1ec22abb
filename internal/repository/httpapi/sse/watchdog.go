package sse

import (
	"io"
	"sync"
	"time"

	"inkwell/internal/clock"
)

// IdleWatchdog fires when no activity was seen for a whole interval.
// Kick records activity; Stop disarms it. Safe for concurrent use.
type IdleWatchdog struct {
	interval time.Duration
	mu       sync.Mutex
	timer    clock.Timer
	stopped  bool
}

// NewIdleWatchdog arms a watchdog that calls onIdle once after interval of
// silence. A non-positive interval returns a watchdog that never fires.
func NewIdleWatchdog(clk clock.Clock, interval time.Duration, onIdle func()) *IdleWatchdog {
	w := &IdleWatchdog{interval: interval}
	if interval <= 0 {
		w.stopped = true
		return w
	}
	w.timer = clk.AfterFunc(interval, func() {
		w.mu.Lock()
		if w.stopped {
			w.mu.Unlock()
			return
		}
		w.stopped = true
		w.mu.Unlock()
		onIdle()
	})
	return w
}

// Kick restarts the idle interval
func (w *IdleWatchdog) Kick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.timer.Reset(w.interval)
}

// Stop disarms the watchdog. Safe to call multiple times.
func (w *IdleWatchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	w.timer.Stop()
}

// activityReader kicks the watchdog on every successful read
type activityReader struct {
	r        io.Reader
	watchdog *IdleWatchdog
}

func (a *activityReader) Read(p []byte) (int, error) {
	n, err := a.r.Read(p)
	if n > 0 {
		a.watchdog.Kick()
	}
	return n, err
}
