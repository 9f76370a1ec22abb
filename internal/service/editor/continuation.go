package editor

import (
	"context"

	"inkwell/internal/domain"
	"inkwell/internal/domain/models/stream"
	"inkwell/internal/service/markup"
)

// Continue starts an AI continuation of the session's chapter. The text
// streams into the session's controller; nothing touches the chapter until
// InsertContinuation.
func (e *Editor) Continue(ctx context.Context, s *Session, opts stream.StartOptions) error {
	s.mu.Lock()
	if err := e.checkEditLocked(s); err != nil {
		s.mu.Unlock()
		return err
	}
	controller := s.continuation
	opts.ChapterID = s.chapterID
	if opts.ProjectID == "" {
		opts.ProjectID = s.projectID
	}
	base := markup.PlainText(s.content)
	s.mu.Unlock()

	if controller == nil {
		return &domain.ValidationError{Message: "continuation is not configured"}
	}
	return controller.Start(ctx, stream.ModeContinue, opts, base)
}

// Continuation returns the rendered continuation: the chapter's plain text
// followed by the streamed buffer
func (e *Editor) Continuation(s *Session) string {
	if c := s.controller(); c != nil {
		return c.Rendered()
	}
	return ""
}

// ContinuationJob returns the state of the continuation job
func (e *Editor) ContinuationJob(s *Session) stream.Job {
	if c := s.controller(); c != nil {
		return c.Job()
	}
	return stream.Job{Status: stream.StatusIdle}
}

// InsertContinuation inserts the finished continuation as sanitized
// paragraphs at markup offset pos (negative or past the end appends). The
// insertion is an ordinary edit and goes through autosave.
func (e *Editor) InsertContinuation(s *Session, pos int) error {
	controller := s.controller()
	if controller == nil {
		return &domain.ValidationError{Message: "no continuation to insert"}
	}
	job := controller.Job()
	if job.Status != stream.StatusReady {
		return &domain.ValidationError{Message: "continuation is not finished"}
	}

	fragment := e.sanitizer.Fragment(job.Buffer)
	if fragment == "" {
		controller.Cancel()
		return nil
	}

	s.mu.Lock()
	if err := e.checkEditLocked(s); err != nil {
		s.mu.Unlock()
		return err
	}
	s.content = markup.InsertAt(s.content, pos, fragment)
	e.markDirtyLocked(s)
	s.mu.Unlock()

	controller.Cancel()
	e.notify(s)
	e.logger.Info("continuation inserted", "chapter_id", s.ChapterID(), "job_id", job.ID, "chars", len(fragment))
	return nil
}

// DiscardContinuation cancels or clears the continuation
func (e *Editor) DiscardContinuation(s *Session) {
	if c := s.controller(); c != nil {
		c.Cancel()
	}
}
