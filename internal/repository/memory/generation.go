package memory

import (
	"context"
	"fmt"
	"sync"

	"inkwell/internal/domain"
	"inkwell/internal/domain/models/stream"
	"inkwell/internal/domain/repositories"
)

// Generation is an in-process job service. Each opened job gets a Channel
// that the caller feeds with events, or a Script that replays on open.
type Generation struct {
	Faults

	mu        sync.Mutex
	next      int
	starts    []JobStart
	cancelled []string
	scripts   map[string][]stream.Event
	channels  map[string]*Channel
	opened    []*Channel
}

// JobStart is one StartJob call as received
type JobStart struct {
	JobID string
	Mode  stream.Mode
	Opts  stream.StartOptions
}

var (
	_ repositories.GenerationRepository = (*Generation)(nil)
	_ repositories.StreamOpener         = (*Generation)(nil)
)

// NewGeneration creates a job service issuing ids job-1, job-2, ...
func NewGeneration() *Generation {
	return &Generation{
		scripts:  make(map[string][]stream.Event),
		channels: make(map[string]*Channel),
	}
}

// Script makes the channel of jobID replay events and end once opened
func (g *Generation) Script(jobID string, events ...stream.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scripts[jobID] = events
}

func (g *Generation) StartJob(ctx context.Context, mode stream.Mode, opts stream.StartOptions) (string, error) {
	if err := g.enter(ctx, "StartJob"); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.next++
	id := fmt.Sprintf("job-%d", g.next)
	g.starts = append(g.starts, JobStart{JobID: id, Mode: mode, Opts: opts})
	return id, nil
}

func (g *Generation) CancelJob(ctx context.Context, jobID string) error {
	if err := g.enter(ctx, "CancelJob"); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, jobID)
	return nil
}

func (g *Generation) Open(ctx context.Context, jobID string) (repositories.StreamHandle, error) {
	if err := g.enter(ctx, "Open"); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.channels[jobID]; ok {
		return nil, &domain.ConflictError{Message: "stream already open", ResourceType: "job", ResourceID: jobID}
	}
	ch := newChannel(jobID)
	g.channels[jobID] = ch
	g.opened = append(g.opened, ch)

	if events, ok := g.scripts[jobID]; ok {
		go func() {
			for _, ev := range events {
				if !ch.Send(ev.Name, ev.Data) {
					return
				}
			}
			ch.End(nil)
		}()
	}
	return ch, nil
}

// Channel returns the channel opened for jobID, or nil
func (g *Generation) Channel(jobID string) *Channel {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.channels[jobID]
}

// Starts returns every StartJob call received, in order
func (g *Generation) Starts() []JobStart {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]JobStart(nil), g.starts...)
}

// Cancelled returns the job ids passed to CancelJob, in order
func (g *Generation) Cancelled() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.cancelled...)
}

// OpenChannels counts channels not yet closed by their consumer
func (g *Generation) OpenChannels() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, ch := range g.opened {
		if !ch.Closed() {
			n++
		}
	}
	return n
}

// Channel is the consumer handle of one job stream and the producer side
// used by tests. It implements repositories.StreamHandle.
type Channel struct {
	JobID string

	events    chan stream.Event
	closed    chan struct{}
	closeOnce sync.Once
	endOnce   sync.Once

	mu  sync.Mutex
	err error
}

func newChannel(jobID string) *Channel {
	return &Channel{
		JobID:  jobID,
		events: make(chan stream.Event),
		closed: make(chan struct{}),
	}
}

// Send delivers one event and blocks until it is received. It reports false
// when the consumer closed the channel first.
func (c *Channel) Send(name, data string) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.events <- stream.Event{Name: name, Data: data}:
		return true
	case <-c.closed:
		return false
	}
}

// End finishes the stream from the producer side; err is reported by Err
func (c *Channel) End(err error) {
	c.endOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.events)
	})
}

func (c *Channel) Events() <-chan stream.Event {
	return c.events
}

func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close releases the consumer side. Idempotent.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// Closed reports whether the consumer closed the channel
func (c *Channel) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
