package editor

import (
	"context"
	"errors"
	"fmt"

	"inkwell/internal/domain"
	"inkwell/internal/domain/models/chapter"
	"inkwell/internal/metrics"
	"inkwell/internal/service/diff"
	"inkwell/internal/service/markup"
)

// DiffView compares a historical version (old) with the live editor
// content (new), both as plain text
type DiffView struct {
	Version  chapter.VersionDetail
	Spans    []diff.Span
	Inserted int // words
	Deleted  int // words
}

// Identical reports whether the version matches the live content
func (d *DiffView) Identical() bool {
	return !diff.HasChanges(d.Spans)
}

// HTML renders the diff with <ins> and <del> spans
func (d *DiffView) HTML() string {
	return diff.RenderHTML(d.Spans)
}

// ANSI renders the diff for a terminal
func (d *DiffView) ANSI() string {
	return diff.RenderANSI(d.Spans)
}

// History loads the version summaries of the session's chapter, newest first
func (e *Editor) History(ctx context.Context, s *Session) (*chapter.VersionList, error) {
	s.mu.Lock()
	if s.history != nil {
		h := s.history
		s.mu.Unlock()
		return h, nil
	}
	chapterID := s.chapterID
	s.mu.Unlock()

	list, err := e.chapters.ListVersions(ctx, chapterID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}

	s.mu.Lock()
	s.history = list
	s.setVersionLocked(list.CurrentVersion)
	s.mu.Unlock()
	return list, nil
}

// SelectVersion loads a version and diffs it against the live content
func (e *Editor) SelectVersion(ctx context.Context, s *Session, version int) (*DiffView, error) {
	chapterID := s.ChapterID()
	detail, err := e.chapters.GetVersion(ctx, chapterID, version)
	if err != nil {
		return nil, fmt.Errorf("get version %d: %w", version, err)
	}

	s.mu.Lock()
	live := s.content
	s.mu.Unlock()

	spans := diff.Compute(markup.PlainText(detail.Content), markup.PlainText(live))
	inserted, deleted := diff.Stats(spans)
	view := &DiffView{
		Version:  *detail,
		Spans:    spans,
		Inserted: inserted,
		Deleted:  deleted,
	}

	s.mu.Lock()
	s.diff = view
	s.mu.Unlock()
	return view, nil
}

// Diff returns the open diff view, if any
func (s *Session) Diff() *DiffView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diff
}

// CloseDiff dismisses the diff view
func (e *Editor) CloseDiff(s *Session) {
	s.mu.Lock()
	s.diff = nil
	s.mu.Unlock()
}

// Revert restores version on top of the current version after confirm
// approves. On a conflict the local content is left untouched.
func (e *Editor) Revert(ctx context.Context, s *Session, version int, confirm domain.ConfirmFunc) error {
	s.mu.Lock()
	if err := e.checkEditLocked(s); err != nil {
		s.mu.Unlock()
		return err
	}
	chapterID := s.chapterID
	s.mu.Unlock()

	if err := domain.Confirm(confirm, fmt.Sprintf("Revert chapter to version %d?", version)); err != nil {
		return err
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	stopTimer(s.debounce)
	base := s.version
	s.status = StatusSaving
	s.mu.Unlock()
	e.notify(s)

	start := e.clock.Now()
	res, err := e.chapters.Revert(ctx, chapterID, chapter.RevertRequest{
		TargetVersion: version,
		BaseVersion:   base,
		Metadata:      map[string]any{"reason": chapter.ReasonRevert},
	})
	elapsed := e.clock.Now().Sub(start)

	s.mu.Lock()
	if err != nil {
		s.status = StatusError
		s.message = domain.UserMessage(err)
		s.err = err
		s.conflict = isConflict(err)
		e.rearmLocked(s, s.dirty)
		s.mu.Unlock()

		result := metrics.ResultError
		if isConflict(err) {
			result = metrics.ResultConflict
		}
		e.metrics.ObserveSave(chapter.ReasonRevert, result, elapsed)
		e.logger.Warn("chapter revert failed",
			"chapter_id", chapterID,
			"target_version", version,
			"base_version", base,
			"error", err,
		)
		e.notify(s)
		return err
	}

	// Responses of saves issued before the revert must not touch status
	s.seq++
	s.applied = s.seq
	s.content = res.Chapter.Content
	s.title = res.Chapter.Title
	s.setVersionLocked(res.Chapter.Version)
	s.dirty = false
	s.err = nil
	s.conflict = false
	if res.Snapshot != nil {
		snap := *res.Snapshot
		s.lastSnapshot = &snap
	}
	s.history = nil
	s.diff = nil
	s.status = StatusSaved
	e.armDecayLocked(s)
	newVersion := s.version
	s.mu.Unlock()

	e.metrics.ObserveSave(chapter.ReasonRevert, metrics.ResultSaved, elapsed)
	e.logger.Info("chapter reverted",
		"chapter_id", chapterID,
		"target_version", version,
		"version", newVersion,
	)
	e.notify(s)
	return nil
}

// Reload discards local edits and loads the server's current chapter
func (e *Editor) Reload(ctx context.Context, s *Session) error {
	chapterID := s.ChapterID()
	if e.invalidator != nil {
		e.invalidator.InvalidateChapter(chapterID)
	}
	ch, err := e.chapters.Get(ctx, chapterID)
	if err != nil {
		return fmt.Errorf("reload chapter: %w", err)
	}

	s.mu.Lock()
	stopTimer(s.debounce)
	s.seq++
	s.applied = s.seq
	s.content = ch.Content
	s.title = ch.Title
	s.setVersionLocked(ch.Version)
	s.dirty = false
	s.err = nil
	s.conflict = false
	s.status = StatusIdle
	s.message = ""
	s.history = nil
	s.diff = nil
	s.mu.Unlock()

	e.logger.Info("chapter reloaded", "chapter_id", chapterID, "version", ch.Version)
	e.notify(s)
	return nil
}

// Overwrite saves the local buffer on top of the server's current version,
// replacing whatever was written elsewhere
func (e *Editor) Overwrite(ctx context.Context, s *Session) error {
	s.mu.Lock()
	if err := e.checkEditLocked(s); err != nil {
		s.mu.Unlock()
		return err
	}
	chapterID := s.chapterID
	s.mu.Unlock()

	if e.invalidator != nil {
		e.invalidator.InvalidateChapter(chapterID)
	}
	ch, err := e.chapters.Get(ctx, chapterID)
	if err != nil {
		return fmt.Errorf("fetch current version: %w", err)
	}

	s.mu.Lock()
	s.setVersionLocked(ch.Version)
	s.dirty = true
	s.mu.Unlock()

	e.logger.Info("overwriting chapter", "chapter_id", chapterID, "base_version", ch.Version)
	return e.Save(ctx, s)
}

func isConflict(err error) bool {
	return errors.Is(err, domain.ErrConflict)
}
