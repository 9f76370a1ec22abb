package chapter

import (
	"time"
)

// Save reasons recorded in version metadata
const (
	ReasonAutosave = "autosave"
	ReasonManual   = "manual"
	ReasonRevert   = "revert"
)

// Chapter is a versioned document. Version is incremented by the server only.
type Chapter struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"` // HTML markup
	Version   int       `json:"version"`
	WordCount int       `json:"word_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VersionSummary describes an immutable snapshot without its content
type VersionSummary struct {
	ChapterID string         `json:"chapter_id"`
	Version   int            `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty"` // reason, char_count, word_count, reverted_from
	Preview   string         `json:"preview,omitempty"`
}

// Reason returns the save reason recorded in the metadata, if any
func (v VersionSummary) Reason() string {
	reason, _ := v.Metadata["reason"].(string)
	return reason
}

// VersionDetail is a snapshot with its full content
type VersionDetail struct {
	VersionSummary
	Title   string `json:"title"`
	Content string `json:"content"`
}

// VersionList is the history of a chapter, newest first
type VersionList struct {
	CurrentVersion int              `json:"current_version"`
	Versions       []VersionSummary `json:"versions"`
}

// SaveRequest is a write against a known base version.
// Content and Title are optional; nil leaves the field unchanged.
type SaveRequest struct {
	Content     *string        `json:"content,omitempty"`
	Title       *string        `json:"title,omitempty"`
	Autosave    bool           `json:"autosave"`
	BaseVersion int            `json:"base_version"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// SaveResult is the server's answer to a save or revert.
// Snapshot is nil when the server did not consider the write snapshot-worthy.
type SaveResult struct {
	Chapter  Chapter         `json:"chapter"`
	Snapshot *VersionSummary `json:"snapshot,omitempty"`
}

// RevertRequest restores TargetVersion on top of BaseVersion
type RevertRequest struct {
	TargetVersion int            `json:"-"`
	BaseVersion   int            `json:"base_version"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}
