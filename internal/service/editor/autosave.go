package editor

import (
	"context"
	"strings"

	"inkwell/internal/config"
	"inkwell/internal/domain"
	"inkwell/internal/domain/models/chapter"
	"inkwell/internal/metrics"
	"inkwell/internal/service/markup"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type saveKind string

const (
	kindAutosave saveKind = chapter.ReasonAutosave
	kindManual   saveKind = chapter.ReasonManual
)

// Edit replaces the session content and (re)starts the autosave debounce.
// Unchanged content is a no-op.
func (e *Editor) Edit(s *Session, content string) error {
	s.mu.Lock()
	if err := e.checkEditLocked(s); err != nil {
		s.mu.Unlock()
		return err
	}
	if content == s.content {
		s.mu.Unlock()
		return nil
	}
	s.content = content
	e.markDirtyLocked(s)
	s.mu.Unlock()

	e.notify(s)
	return nil
}

// Rename validates and saves a new title immediately
func (e *Editor) Rename(ctx context.Context, s *Session, title string) error {
	title = strings.TrimSpace(title)
	if err := validation.Validate(title,
		validation.Required,
		validation.RuneLength(1, config.MaxChapterTitleLength),
	); err != nil {
		return &domain.ValidationError{Message: "title: " + err.Error()}
	}

	s.mu.Lock()
	if err := e.checkEditLocked(s); err != nil {
		s.mu.Unlock()
		return err
	}
	if title == s.title {
		s.mu.Unlock()
		return nil
	}
	s.title = title
	s.dirty = true
	s.mu.Unlock()

	return e.Save(ctx, s)
}

// Save persists the session now, bypassing the debounce
func (e *Editor) Save(ctx context.Context, s *Session) error {
	s.mu.Lock()
	if err := e.checkEditLocked(s); err != nil {
		s.mu.Unlock()
		return err
	}
	stopTimer(s.debounce)
	s.mu.Unlock()

	return e.save(ctx, s, kindManual)
}

func (e *Editor) markDirtyLocked(s *Session) {
	s.dirty = true
	s.status = StatusPending
	s.message = ""
	stopTimer(s.decay)
	if s.debounce == nil {
		s.debounce = e.clock.AfterFunc(e.debounce, func() { e.onDebounce(s) })
		return
	}
	s.debounce.Reset(e.debounce)
}

// onDebounce runs when the user paused typing. A save already in flight
// picks the change up by re-arming the debounce when it completes.
func (e *Editor) onDebounce(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.dirty {
		return
	}
	if s.saving {
		s.rearm = true
		return
	}
	s.saving = true

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.save(context.Background(), s, kindAutosave)
	}()
}

// save issues one save request. Requests are serialized per session, so the
// base version is always the newest one known.
func (e *Editor) save(ctx context.Context, s *Session, kind saveKind) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.saving = false
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if kind == kindAutosave && !s.dirty {
		// A manual save got there first
		s.saving = false
		s.mu.Unlock()
		return nil
	}
	content, title := s.content, s.title
	base := s.version
	s.seq++
	seq := s.seq
	s.saving = true
	s.status = StatusSaving
	s.message = ""
	chapterID := s.chapterID
	s.mu.Unlock()
	e.notify(s)

	words, chars := markup.TextStats(content)
	req := chapter.SaveRequest{
		Content:     &content,
		Title:       &title,
		Autosave:    kind == kindAutosave,
		BaseVersion: base,
		Metadata: map[string]any{
			"reason":     string(kind),
			"char_count": chars,
			"word_count": words,
		},
	}

	start := e.clock.Now()
	res, err := e.chapters.Save(ctx, chapterID, req)
	elapsed := e.clock.Now().Sub(start)

	s.mu.Lock()
	s.saving = false
	newer := s.content != content || s.title != title

	if seq < s.applied || s.closed {
		// Superseded by a reload or revert: only the version may move
		if err == nil {
			s.setVersionLocked(res.Chapter.Version)
		}
		s.mu.Unlock()
		e.metrics.ObserveSave(string(kind), metrics.ResultStale, elapsed)
		e.logger.Debug("discarding stale save response", "chapter_id", chapterID, "seq", seq)
		return err
	}
	s.applied = seq

	if err != nil {
		s.status = StatusError
		s.message = domain.UserMessage(err)
		s.err = err
		result := metrics.ResultError
		if isConflict(err) {
			s.conflict = true
			result = metrics.ResultConflict
		}
		e.rearmLocked(s, newer)
		s.mu.Unlock()

		e.metrics.ObserveSave(string(kind), result, elapsed)
		e.logger.Warn("chapter save failed",
			"chapter_id", chapterID,
			"kind", kind,
			"base_version", base,
			"error", err,
		)
		e.notify(s)
		return err
	}

	s.setVersionLocked(res.Chapter.Version)
	s.err = nil
	s.conflict = false
	if res.Snapshot != nil {
		snap := *res.Snapshot
		s.lastSnapshot = &snap
	}
	s.history = nil
	if newer {
		s.status = StatusPending
	} else {
		s.dirty = false
		s.status = StatusSaved
		e.armDecayLocked(s)
	}
	e.rearmLocked(s, newer)
	version := s.version
	s.mu.Unlock()

	e.metrics.ObserveSave(string(kind), metrics.ResultSaved, elapsed)
	e.logger.Info("chapter saved",
		"chapter_id", chapterID,
		"kind", kind,
		"version", version,
		"snapshot", res.Snapshot != nil,
	)
	e.notify(s)
	return nil
}

// rearmLocked restarts the debounce for edits made while a save was in flight
func (e *Editor) rearmLocked(s *Session, newer bool) {
	rearm := s.rearm
	s.rearm = false
	if (rearm || newer) && s.dirty && !s.closed && s.debounce != nil {
		s.debounce.Reset(e.debounce)
	}
}

func (e *Editor) armDecayLocked(s *Session) {
	fire := func() {
		s.mu.Lock()
		changed := s.status == StatusSaved
		if changed {
			s.status = StatusIdle
		}
		s.mu.Unlock()
		if changed {
			e.notify(s)
		}
	}
	if s.decay == nil {
		s.decay = e.clock.AfterFunc(e.savedDisplay, fire)
		return
	}
	s.decay.Reset(e.savedDisplay)
}
