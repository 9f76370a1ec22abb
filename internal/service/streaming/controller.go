// Package streaming drives server-push generation jobs: it obtains a job id,
// consumes the job's event stream into a text buffer and supports clean
// cancellation. One Controller owns at most one open channel.
package streaming

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"inkwell/internal/capabilities"
	"inkwell/internal/clock"
	"inkwell/internal/domain"
	"inkwell/internal/domain/models/stream"
	"inkwell/internal/domain/repositories"
	"inkwell/internal/metrics"
)

// cancelTimeout bounds the best-effort server-side cancel call
const cancelTimeout = 10 * time.Second

// Close reasons recorded in metrics
const (
	closedCancelled  = "cancelled"
	closedSuperseded = "superseded"
)

// Invalidator drops cached state of a chapter
type Invalidator interface {
	InvalidateChapter(chapterID string)
}

// JobError is the terminal failure reported by a job's error event
type JobError struct {
	JobID   string
	Message string
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Message)
}

// Config wires a Controller
type Config struct {
	Jobs    repositories.GenerationRepository
	Streams repositories.StreamOpener
	Modes   *capabilities.Registry

	// Invalidator runs the invalidate_chapter follow-up (optional)
	Invalidator Invalidator
	// OnSelectNewest runs the select_newest_chapter follow-up (optional)
	OnSelectNewest func()
	// OnChange receives a snapshot after every state change (optional).
	// It is called without the controller lock held.
	OnChange func(stream.Job)

	Clock   clock.Clock
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Controller is safe for concurrent use
type Controller struct {
	jobs           repositories.GenerationRepository
	streams        repositories.StreamOpener
	modes          *capabilities.Registry
	invalidator    Invalidator
	onSelectNewest func()
	onChange       func(stream.Job)
	clock          clock.Clock
	metrics        *metrics.Metrics
	logger         *slog.Logger

	mu           sync.Mutex
	generation   uint64 // bumped on every Start and Cancel; stale work compares against it
	job          stream.Job
	spec         *capabilities.ModeSpec
	opts         stream.StartOptions
	handle       repositories.StreamHandle
	stop         chan struct{}
	startedAt    time.Time
	err          error
	selectNewest bool

	wg sync.WaitGroup
}

// NewController creates an idle controller
func NewController(cfg Config) *Controller {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		jobs:           cfg.Jobs,
		streams:        cfg.Streams,
		modes:          cfg.Modes,
		invalidator:    cfg.Invalidator,
		onSelectNewest: cfg.OnSelectNewest,
		onChange:       cfg.OnChange,
		clock:          clk,
		metrics:        cfg.Metrics,
		logger:         logger,
		job:            stream.Job{Status: stream.StatusIdle},
	}
}

// Start requests a job and opens its channel. Any previous channel is closed
// before the buffers are reset. base is the text the buffer extends in
// append_to_base modes.
//
// Start returns once the channel is open or the request failed; events are
// consumed in the background. A Start superseded by Cancel or another Start
// returns nil and leaves no channel behind.
func (c *Controller) Start(ctx context.Context, mode stream.Mode, opts stream.StartOptions, base string) error {
	spec, err := c.modes.Get(mode)
	if err != nil {
		return err
	}
	// Missing ids are a validation error before any network call
	if _, err := c.modes.StartPath(mode, opts); err != nil {
		return err
	}

	c.mu.Lock()
	prevJob, prevActive := c.job.ID, c.activeLocked()
	c.releaseLocked(closedSuperseded)
	c.generation++
	gen := c.generation
	c.job = stream.Job{Mode: mode, Base: base, Status: stream.StatusRequesting}
	c.spec = spec
	c.opts = opts
	c.err = nil
	c.selectNewest = false
	c.mu.Unlock()

	if prevActive && prevJob != "" {
		c.cancelRemote(prevJob)
	}
	c.notify()

	jobID, err := c.jobs.StartJob(ctx, mode, opts)

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		if err == nil {
			c.cancelRemote(jobID)
		}
		return nil
	}
	if err != nil {
		c.failLocked(err)
		c.mu.Unlock()
		c.logger.Warn("generation job start failed", "mode", mode, "error", err)
		c.notify()
		return err
	}
	c.job.ID = jobID
	c.mu.Unlock()

	// The channel outlives the caller's request context
	handle, err := c.streams.Open(context.WithoutCancel(ctx), jobID)

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		if err == nil {
			handle.Close()
		}
		return nil
	}
	if err != nil {
		c.failLocked(err)
		c.mu.Unlock()
		c.logger.Warn("generation stream open failed", "mode", mode, "job_id", jobID, "error", err)
		c.cancelRemote(jobID)
		c.notify()
		return err
	}

	stop := make(chan struct{})
	c.handle = handle
	c.stop = stop
	c.job.Status = stream.StatusStreaming
	c.startedAt = c.clock.Now()
	c.metrics.StreamOpened()
	c.wg.Add(1)
	go c.pump(gen, handle, stop)
	c.mu.Unlock()

	c.logger.Info("generation stream opened", "mode", mode, "job_id", jobID)
	c.notify()
	return nil
}

// Cancel closes any open channel, discards the buffer and returns to idle.
// It never fails and may be called at any time, any number of times. A job
// that had not finished gets a best-effort server-side cancel.
func (c *Controller) Cancel() {
	c.mu.Lock()
	jobID, active := c.job.ID, c.activeLocked()
	wasIdle := c.job.Status == stream.StatusIdle && c.job.Buffer == ""
	c.releaseLocked(closedCancelled)
	c.generation++
	c.job = stream.Job{Status: stream.StatusIdle}
	c.spec = nil
	c.opts = stream.StartOptions{}
	c.err = nil
	c.mu.Unlock()

	if active && jobID != "" {
		c.cancelRemote(jobID)
		c.logger.Info("generation cancelled", "job_id", jobID)
	}
	if !wasIdle {
		c.notify()
	}
}

// Job returns a snapshot of the current job
func (c *Controller) Job() stream.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job
}

// Status returns the current state
func (c *Controller) Status() stream.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job.Status
}

// Err returns the failure of a job in the error state
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Rendered returns the displayable text: base + buffer for append_to_base
// modes, the buffer alone otherwise
func (c *Controller) Rendered() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.spec != nil && c.spec.Render == capabilities.RenderAppendToBase {
		return c.job.Base + c.job.Buffer
	}
	return c.job.Buffer
}

// TakeSelectNewest reports, once, that a finished generate job asked for the
// newest chapter to become the active selection
func (c *Controller) TakeSelectNewest() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.selectNewest
	c.selectNewest = false
	return v
}

// Wait blocks until background event consumption and cancel calls finish
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) pump(gen uint64, handle repositories.StreamHandle, stop <-chan struct{}) {
	defer c.wg.Done()

	events := handle.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				c.endWithoutTerminal(gen, handle)
				return
			}
			if done := c.apply(gen, ev); done {
				return
			}
		case <-stop:
			return
		}
	}
}

// apply folds one event into the job. It reports true when the pump should
// stop: the event was terminal or the channel was superseded.
func (c *Controller) apply(gen uint64, ev stream.Event) bool {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return true
	}
	c.metrics.StreamEvent(ev.Name)

	var followUp func()
	terminal := false

	name := ev.Name
	if isDoneSentinel(ev) {
		name = stream.EventDone
	}

	switch name {
	case stream.EventStart:
		c.job.Status = stream.StatusStreaming
	case stream.EventDelta:
		c.job.Buffer += deltaText(ev.Data)
	case stream.EventProgress:
		applyProgress(&c.job, ev.Data)
	case stream.EventError:
		msg := errorMessage(ev.Data)
		c.job.Status = stream.StatusError
		c.job.Err = msg
		c.err = &JobError{JobID: c.job.ID, Message: msg}
		terminal = true
		c.logger.Warn("generation failed", "job_id", c.job.ID, "message", msg)
	case stream.EventDone:
		applyDone(&c.job, ev.Data)
		if c.job.Duration == 0 {
			c.job.Duration = c.clock.Now().Sub(c.startedAt)
		}
		c.job.Status = stream.StatusReady
		terminal = true
		followUp = c.followUpLocked()
		c.logger.Info("generation finished",
			"job_id", c.job.ID,
			"mode", c.job.Mode,
			"duration_ms", c.job.Duration.Milliseconds(),
			"chars", len(c.job.Buffer),
		)
	default:
		c.mu.Unlock()
		c.logger.Debug("ignoring stream event", "event", ev.Name)
		return false
	}

	if terminal {
		c.releaseLocked(string(c.job.Status))
	}
	c.mu.Unlock()

	c.notify()
	if followUp != nil {
		followUp()
	}
	return terminal
}

// endWithoutTerminal handles a channel that closed before done or error
func (c *Controller) endWithoutTerminal(gen uint64, handle repositories.StreamHandle) {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	err := domain.ErrStreamClosed
	if cause := handle.Err(); cause != nil {
		err = fmt.Errorf("%w: %v", domain.ErrStreamClosed, cause)
	}
	c.failLocked(err)
	c.releaseLocked(string(stream.StatusError))
	jobID := c.job.ID
	c.mu.Unlock()

	c.logger.Warn("generation stream ended without a terminal event", "job_id", jobID, "error", err)
	c.notify()
}

func (c *Controller) followUpLocked() func() {
	if c.spec == nil {
		return nil
	}
	switch c.spec.FollowUp {
	case capabilities.FollowUpSelectNewest:
		c.selectNewest = true
		return c.onSelectNewest
	case capabilities.FollowUpInvalidateChapter:
		chapterID := c.opts.ChapterID
		if c.invalidator == nil || chapterID == "" {
			return nil
		}
		return func() { c.invalidator.InvalidateChapter(chapterID) }
	}
	return nil
}

func (c *Controller) failLocked(err error) {
	c.job.Status = stream.StatusError
	c.job.Err = domain.UserMessage(err)
	c.err = err
}

// activeLocked reports a job the server may still be working on
func (c *Controller) activeLocked() bool {
	return c.job.Status == stream.StatusRequesting || c.job.Status == stream.StatusStreaming
}

// releaseLocked closes the open channel, if any. It is the only place a
// handle is released.
func (c *Controller) releaseLocked(reason string) {
	if c.handle == nil {
		return
	}
	close(c.stop)
	if err := c.handle.Close(); err != nil {
		c.logger.Debug("stream close failed", "job_id", c.job.ID, "error", err)
	}
	c.metrics.StreamClosed(string(c.job.Mode), reason)
	c.handle = nil
	c.stop = nil
}

func (c *Controller) cancelRemote(jobID string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
		defer cancel()
		if err := c.jobs.CancelJob(ctx, jobID); err != nil {
			c.logger.Warn("job cancel request failed", "job_id", jobID, "error", err)
		}
	}()
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange(c.Job())
	}
}
