// Package memory implements the repository ports in process. It backs the
// CLI's --demo mode and the engine tests, and mirrors the server rules the
// engines depend on: stale base versions are rejected, version numbers only
// grow and snapshots are immutable.
package memory

import (
	"context"
	"sync"
)

// Faults lets a caller script failures and hold calls in flight.
// Operations are named after the port method ("Save", "Reorder", ...).
type Faults struct {
	mu    sync.Mutex
	errs  map[string][]error
	gates map[string][]chan struct{}
	calls map[string]int
}

// Fail makes the next call of op return err without side effects
func (f *Faults) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = make(map[string][]error)
	}
	f.errs[op] = append(f.errs[op], err)
}

// Hold blocks the next call of op until release is called
func (f *Faults) Hold(op string) (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gates == nil {
		f.gates = make(map[string][]chan struct{})
	}
	gate := make(chan struct{})
	f.gates[op] = append(f.gates[op], gate)

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Calls reports how many times op was invoked
func (f *Faults) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// enter counts the call, waits on a pending hold and returns a scripted error
func (f *Faults) enter(ctx context.Context, op string) error {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++

	var gate chan struct{}
	if q := f.gates[op]; len(q) > 0 {
		gate, f.gates[op] = q[0], q[1:]
	}
	var err error
	if q := f.errs[op]; len(q) > 0 {
		err, f.errs[op] = q[0], q[1:]
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
