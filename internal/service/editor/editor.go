// Package editor implements the versioned chapter editor: debounced
// optimistic autosave, manual save, version history with diffs, revert and
// insertion of AI continuations.
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"inkwell/internal/capabilities"
	"inkwell/internal/clock"
	"inkwell/internal/config"
	"inkwell/internal/domain"
	"inkwell/internal/domain/models"
	"inkwell/internal/domain/models/chapter"
	"inkwell/internal/domain/repositories"
	"inkwell/internal/metrics"
	"inkwell/internal/service/markup"
	"inkwell/internal/service/streaming"

	"golang.org/x/sync/errgroup"
)

// Invalidator drops cached chapter state so the next read hits the server
type Invalidator interface {
	InvalidateChapter(chapterID string)
}

// Config wires an Editor
type Config struct {
	Chapters repositories.ChapterRepository

	// Continuation jobs
	Jobs    repositories.GenerationRepository
	Streams repositories.StreamOpener
	Modes   *capabilities.Registry

	// Invalidator is consulted before reloads and after continuations (optional)
	Invalidator Invalidator

	Debounce     time.Duration // 0 uses config.DefaultAutosaveDebounce
	SavedDisplay time.Duration // 0 uses config.DefaultSavedDisplay

	// OnChange receives a snapshot after every state change (optional).
	// It is called without any session lock held.
	OnChange func(State)

	Clock   clock.Clock
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Editor owns the collaborators shared by all sessions. It is safe for
// concurrent use.
type Editor struct {
	chapters     repositories.ChapterRepository
	jobs         repositories.GenerationRepository
	streams      repositories.StreamOpener
	modes        *capabilities.Registry
	invalidator  Invalidator
	debounce     time.Duration
	savedDisplay time.Duration
	onChange     func(State)
	clock        clock.Clock
	metrics      *metrics.Metrics
	sanitizer    *markup.Sanitizer
	logger       *slog.Logger

	wg sync.WaitGroup
}

// New creates an editor
func New(cfg Config) *Editor {
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = config.DefaultAutosaveDebounce
	}
	savedDisplay := cfg.SavedDisplay
	if savedDisplay <= 0 {
		savedDisplay = config.DefaultSavedDisplay
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Editor{
		chapters:     cfg.Chapters,
		jobs:         cfg.Jobs,
		streams:      cfg.Streams,
		modes:        cfg.Modes,
		invalidator:  cfg.Invalidator,
		debounce:     debounce,
		savedDisplay: savedDisplay,
		onChange:     cfg.OnChange,
		clock:        clk,
		metrics:      cfg.Metrics,
		sanitizer:    markup.NewSanitizer(),
		logger:       logger,
	}
}

// Open loads a chapter and its version history into a new session
func (e *Editor) Open(ctx context.Context, chapterID string, role models.Role) (*Session, error) {
	if !role.Can(models.PermissionView) {
		return nil, &domain.ForbiddenError{Message: "role " + string(role) + " cannot open chapters"}
	}

	var (
		ch      *chapter.Chapter
		history *chapter.VersionList
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ch, err = e.chapters.Get(gctx, chapterID)
		return err
	})
	g.Go(func() error {
		var err error
		history, err = e.chapters.ListVersions(gctx, chapterID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("open chapter %s: %w", chapterID, err)
	}

	s := &Session{
		chapterID: ch.ID,
		projectID: ch.ProjectID,
		role:      role,
		title:     ch.Title,
		content:   ch.Content,
		version:   max(ch.Version, history.CurrentVersion),
		status:    StatusIdle,
		history:   history,
	}
	if e.jobs != nil && e.streams != nil && e.modes != nil {
		s.continuation = streaming.NewController(streaming.Config{
			Jobs:        e.jobs,
			Streams:     e.streams,
			Modes:       e.modes,
			Invalidator: e.invalidator,
			Clock:       e.clock,
			Metrics:     e.metrics,
			Logger:      e.logger.With("chapter_id", ch.ID),
		})
	}

	e.logger.Info("chapter opened", "chapter_id", ch.ID, "version", s.version)
	return s, nil
}

// Close cancels any pending autosave and continuation. Edits not yet saved
// are dropped; call Save first to keep them.
func (e *Editor) Close(s *Session) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	stopTimer(s.debounce)
	stopTimer(s.decay)
	s.status = StatusIdle
	s.message = ""
	controller := s.continuation
	chapterID := s.chapterID
	s.mu.Unlock()

	if controller != nil {
		controller.Cancel()
	}
	e.logger.Debug("chapter closed", "chapter_id", chapterID)
}

// Switch closes s without saving and opens another chapter
func (e *Editor) Switch(ctx context.Context, s *Session, chapterID string) (*Session, error) {
	role := models.RoleOwner
	if s != nil {
		s.mu.Lock()
		role = s.role
		s.mu.Unlock()
		e.Close(s)
	}
	return e.Open(ctx, chapterID, role)
}

// Wait blocks until background saves and continuation work finish
func (e *Editor) Wait() {
	e.wg.Wait()
}

// WaitSession also waits for the session's continuation stream
func (e *Editor) WaitSession(s *Session) {
	e.wg.Wait()
	if c := s.controller(); c != nil {
		c.Wait()
	}
}

func (e *Editor) notify(s *Session) {
	if e.onChange != nil {
		e.onChange(s.State())
	}
}

func (e *Editor) checkEditLocked(s *Session) error {
	if !s.role.Can(models.PermissionEdit) {
		return &domain.ForbiddenError{Message: "role " + string(s.role) + " cannot edit chapters"}
	}
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) controller() *streaming.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.continuation
}

func stopTimer(t clock.Timer) {
	if t != nil {
		t.Stop()
	}
}
