package streaming

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"inkwell/internal/capabilities"
	"inkwell/internal/domain"
	"inkwell/internal/domain/models/stream"
	"inkwell/internal/repository/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingInvalidator) InvalidateChapter(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

func (r *recordingInvalidator) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func newController(t *testing.T, cfg Config) (*Controller, *memory.Generation) {
	t.Helper()
	modes, err := capabilities.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	gen := memory.NewGeneration()
	cfg.Jobs = gen
	cfg.Streams = gen
	cfg.Modes = modes
	cfg.Logger = testLogger()
	c := NewController(cfg)
	t.Cleanup(func() {
		c.Cancel()
		c.Wait()
	})
	return c, gen
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}

var continueOpts = stream.StartOptions{ProjectID: "p1", ChapterID: "c1"}

func TestController_RendersByMode(t *testing.T) {
	tests := []struct {
		mode stream.Mode
		want string
	}{
		{stream.ModeContinue, "Once upon a time. Hello world"},
		{stream.ModeGenerate, "Hello world"},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			c, gen := newController(t, Config{})
			ctx := context.Background()

			if err := c.Start(ctx, tt.mode, continueOpts, "Once upon a time. "); err != nil {
				t.Fatalf("Start: %v", err)
			}
			ch := gen.Channel("job-1")
			ch.Send(stream.EventDelta, `{"text":"Hello"}`)
			ch.Send(stream.EventDelta, `{"text":" world"}`)
			ch.Send(stream.EventDone, `{}`)
			c.Wait()

			if got := c.Rendered(); got != tt.want {
				t.Errorf("Rendered = %q, want %q", got, tt.want)
			}
			if c.Status() != stream.StatusReady {
				t.Errorf("status = %s, want ready", c.Status())
			}
			if !ch.Closed() {
				t.Error("channel not closed after done")
			}
		})
	}
}

func TestController_SingleChannel(t *testing.T) {
	c, gen := newController(t, Config{})
	ctx := context.Background()

	if err := c.Start(ctx, stream.ModeContinue, continueOpts, "base "); err != nil {
		t.Fatal(err)
	}
	first := gen.Channel("job-1")
	first.Send(stream.EventDelta, `{"text":"stale"}`)
	waitFor(t, func() bool { return c.Job().Buffer == "stale" })

	if err := c.Start(ctx, stream.ModeContinue, continueOpts, "base "); err != nil {
		t.Fatal(err)
	}
	if !first.Closed() {
		t.Error("first channel still open")
	}
	if n := gen.OpenChannels(); n != 1 {
		t.Errorf("open channels = %d, want 1", n)
	}
	if first.Send(stream.EventDelta, `{"text":"late"}`) {
		t.Error("superseded channel accepted an event")
	}

	second := gen.Channel("job-2")
	second.Send(stream.EventDelta, `{"text":"fresh"}`)
	second.Send(stream.EventDone, `{}`)
	c.Wait()

	if got := c.Rendered(); got != "base fresh" {
		t.Errorf("Rendered = %q", got)
	}
	if cancelled := gen.Cancelled(); len(cancelled) != 1 || cancelled[0] != "job-1" {
		t.Errorf("cancelled = %v, want [job-1]", cancelled)
	}
}

func TestController_CancelIsIdempotent(t *testing.T) {
	c, gen := newController(t, Config{})

	c.Cancel()
	c.Cancel()
	if job := c.Job(); job.Status != stream.StatusIdle || job.Buffer != "" {
		t.Fatalf("job = %+v", job)
	}

	if err := c.Start(context.Background(), stream.ModeGenerate, continueOpts, ""); err != nil {
		t.Fatal(err)
	}
	ch := gen.Channel("job-1")
	ch.Send(stream.EventDelta, `{"text":"partial"}`)
	waitFor(t, func() bool { return c.Job().Buffer != "" })

	c.Cancel()
	c.Cancel()
	c.Wait()

	if job := c.Job(); job.Status != stream.StatusIdle || job.Buffer != "" {
		t.Errorf("job after cancel = %+v", job)
	}
	if c.Rendered() != "" {
		t.Errorf("Rendered = %q", c.Rendered())
	}
	if !ch.Closed() {
		t.Error("channel not closed by cancel")
	}
	if cancelled := gen.Cancelled(); len(cancelled) != 1 {
		t.Errorf("cancel calls = %v, want exactly one", cancelled)
	}
}

func TestController_CancelWhileRequesting(t *testing.T) {
	c, gen := newController(t, Config{})
	release := gen.Hold("StartJob")

	done := make(chan error, 1)
	go func() {
		done <- c.Start(context.Background(), stream.ModeGenerate, continueOpts, "")
	}()
	waitFor(t, func() bool { return c.Status() == stream.StatusRequesting })

	c.Cancel()
	release()
	if err := <-done; err != nil {
		t.Fatalf("superseded Start returned %v", err)
	}
	c.Wait()

	if c.Status() != stream.StatusIdle {
		t.Errorf("status = %s, want idle", c.Status())
	}
	if gen.Channel("job-1") != nil {
		t.Error("channel opened for a cancelled request")
	}
	if cancelled := gen.Cancelled(); len(cancelled) != 1 || cancelled[0] != "job-1" {
		t.Errorf("cancelled = %v", cancelled)
	}
}

func TestController_Progress(t *testing.T) {
	c, gen := newController(t, Config{})
	if err := c.Start(context.Background(), stream.ModeGenerate, continueOpts, ""); err != nil {
		t.Fatal(err)
	}
	ch := gen.Channel("job-1")

	ch.Send(stream.EventProgress, `{"progress":40,"tokens":12}`)
	ch.Send(stream.EventProgress, `{"tokens":30}`)
	ch.Send(stream.EventProgress, `{"progress":250}`)
	ch.Send(stream.EventProgress, `not json`)
	waitFor(t, func() bool { return c.Job().Progress == 100 })

	job := c.Job()
	if job.Tokens != 30 {
		t.Errorf("tokens = %d, want 30", job.Tokens)
	}
}

func TestController_ErrorEvent(t *testing.T) {
	c, gen := newController(t, Config{})
	if err := c.Start(context.Background(), stream.ModeGenerate, continueOpts, ""); err != nil {
		t.Fatal(err)
	}
	ch := gen.Channel("job-1")
	ch.Send(stream.EventDelta, `{"text":"kept"}`)
	ch.Send(stream.EventError, `{"message":"model overloaded"}`)
	c.Wait()

	job := c.Job()
	if job.Status != stream.StatusError || job.Err != "model overloaded" {
		t.Errorf("job = %+v", job)
	}
	if job.Buffer != "kept" {
		t.Errorf("buffer = %q, want it kept for inspection", job.Buffer)
	}
	var jobErr *JobError
	if !errors.As(c.Err(), &jobErr) || jobErr.JobID != "job-1" {
		t.Errorf("Err = %v", c.Err())
	}
	if !ch.Closed() {
		t.Error("channel not closed after error")
	}
}

func TestController_ChannelEndsEarly(t *testing.T) {
	c, gen := newController(t, Config{})
	if err := c.Start(context.Background(), stream.ModeGenerate, continueOpts, ""); err != nil {
		t.Fatal(err)
	}
	ch := gen.Channel("job-1")
	ch.Send(stream.EventDelta, `{"text":"half"}`)
	ch.End(nil)
	c.Wait()

	if c.Status() != stream.StatusError {
		t.Errorf("status = %s, want error", c.Status())
	}
	if !errors.Is(c.Err(), domain.ErrStreamClosed) {
		t.Errorf("Err = %v, want ErrStreamClosed", c.Err())
	}
	if !ch.Closed() {
		t.Error("channel not released")
	}
}

func TestController_FollowUps(t *testing.T) {
	t.Run("generate selects newest chapter", func(t *testing.T) {
		selected := 0
		c, gen := newController(t, Config{OnSelectNewest: func() { selected++ }})
		if err := c.Start(context.Background(), stream.ModeGenerate, continueOpts, ""); err != nil {
			t.Fatal(err)
		}
		gen.Channel("job-1").Send(stream.EventDone, stream.DoneSentinel)
		c.Wait()

		if selected != 1 {
			t.Errorf("OnSelectNewest calls = %d", selected)
		}
		if !c.TakeSelectNewest() {
			t.Error("select-newest flag not set")
		}
		if c.TakeSelectNewest() {
			t.Error("select-newest flag not consumed")
		}
	})

	t.Run("continue invalidates the chapter", func(t *testing.T) {
		inv := &recordingInvalidator{}
		c, gen := newController(t, Config{Invalidator: inv})
		if err := c.Start(context.Background(), stream.ModeContinue, continueOpts, ""); err != nil {
			t.Fatal(err)
		}
		gen.Channel("job-1").Send(stream.EventDone, `{"duration_ms": 1500}`)
		c.Wait()

		if ids := inv.calls(); len(ids) != 1 || ids[0] != "c1" {
			t.Errorf("invalidated = %v", ids)
		}
		if d := c.Job().Duration; d != 1500*time.Millisecond {
			t.Errorf("duration = %v", d)
		}
	})
}

func TestController_DoneTextSupersedesEmptyBuffer(t *testing.T) {
	c, gen := newController(t, Config{})
	if err := c.Start(context.Background(), stream.ModeGenerate, continueOpts, ""); err != nil {
		t.Fatal(err)
	}
	gen.Channel("job-1").Send(stream.EventDone, `{"text":"whole chapter"}`)
	c.Wait()

	if got := c.Rendered(); got != "whole chapter" {
		t.Errorf("Rendered = %q", got)
	}
}

func TestController_StartValidation(t *testing.T) {
	c, gen := newController(t, Config{})

	err := c.Start(context.Background(), stream.ModeContinue, stream.StartOptions{ProjectID: "p1"}, "")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if n := gen.Calls("StartJob"); n != 0 {
		t.Errorf("StartJob called %d times", n)
	}
	if c.Status() != stream.StatusIdle {
		t.Errorf("status = %s", c.Status())
	}
}

func TestController_StartFailure(t *testing.T) {
	c, gen := newController(t, Config{})
	gen.Fail("StartJob", &domain.TransportError{Status: 503})

	err := c.Start(context.Background(), stream.ModeGenerate, continueOpts, "")
	if err == nil {
		t.Fatal("expected error")
	}
	if job := c.Job(); job.Status != stream.StatusError || job.Err == "" {
		t.Errorf("job = %+v", job)
	}
}

func TestDeltaText(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{`{"text":"a"}`, "a"},
		{`"quoted"`, "quoted"},
		{`plain words`, "plain words"},
		{`{"other":1}`, ""},
	}
	for _, tt := range tests {
		if got := deltaText(tt.data); got != tt.want {
			t.Errorf("deltaText(%q) = %q, want %q", tt.data, got, tt.want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		data string
		want string
	}{
		{`{"message":"boom"}`, "boom"},
		{`{"error":"quota exceeded"}`, "quota exceeded"},
		{`upstream timed out`, "upstream timed out"},
		{`{}`, genericFailure},
		{``, genericFailure},
	}
	for _, tt := range tests {
		if got := errorMessage(tt.data); got != tt.want {
			t.Errorf("errorMessage(%q) = %q, want %q", tt.data, got, tt.want)
		}
	}
}
