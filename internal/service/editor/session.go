package editor

import (
	"errors"
	"sync"

	"inkwell/internal/clock"
	"inkwell/internal/domain/models"
	"inkwell/internal/domain/models/chapter"
	"inkwell/internal/service/markup"
	"inkwell/internal/service/streaming"
)

// ErrSessionClosed is returned by operations on a closed session
var ErrSessionClosed = errors.New("editor session closed")

// SaveStatus is the autosave badge state
type SaveStatus string

const (
	StatusIdle    SaveStatus = "idle"
	StatusPending SaveStatus = "pending" // unsaved edits, debounce armed
	StatusSaving  SaveStatus = "saving"
	StatusSaved   SaveStatus = "saved" // decays to idle
	StatusError   SaveStatus = "error"
)

// State is a snapshot of a session for display
type State struct {
	ChapterID    string
	ProjectID    string
	Title        string
	Content      string
	Version      int
	Status       SaveStatus
	Message      string
	Dirty        bool
	Conflict     bool
	LastSnapshot *chapter.VersionSummary
	WordCount    int
	CharCount    int
}

// Session is the editing state of one open chapter. Every mutating editor
// operation takes the session explicitly. Fields are guarded by mu;
// saveMu serializes requests so at most one save is in flight.
type Session struct {
	saveMu sync.Mutex

	mu        sync.Mutex
	chapterID string
	projectID string
	role      models.Role
	title     string
	content   string
	version   int // never decreases

	status       SaveStatus
	message      string
	err          error
	conflict     bool
	lastSnapshot *chapter.VersionSummary

	// seq numbers every save request; responses older than applied are
	// not allowed to change status
	seq     uint64
	applied uint64
	dirty   bool
	saving  bool
	rearm   bool // debounce fired while a save was in flight
	closed  bool

	debounce clock.Timer
	decay    clock.Timer

	history      *chapter.VersionList
	diff         *DiffView
	continuation *streaming.Controller
}

// ChapterID returns the id of the open chapter
func (s *Session) ChapterID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chapterID
}

// State returns a snapshot of the session
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Err returns the failure behind the error status, if any
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) stateLocked() State {
	words, chars := markup.TextStats(s.content)
	return State{
		ChapterID:    s.chapterID,
		ProjectID:    s.projectID,
		Title:        s.title,
		Content:      s.content,
		Version:      s.version,
		Status:       s.status,
		Message:      s.message,
		Dirty:        s.dirty,
		Conflict:     s.conflict,
		LastSnapshot: s.lastSnapshot,
		WordCount:    words,
		CharCount:    chars,
	}
}

func (s *Session) setVersionLocked(v int) {
	if v > s.version {
		s.version = v
	}
}
