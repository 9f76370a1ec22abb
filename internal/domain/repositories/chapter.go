package repositories

import (
	"context"

	"inkwell/internal/domain/models/chapter"
)

// ChapterRepository defines access to versioned chapters.
// Every write carries the base version; a stale base fails with a ConflictError.
type ChapterRepository interface {
	// Get retrieves the current state of a chapter
	Get(ctx context.Context, id string) (*chapter.Chapter, error)

	// ListByProject lists chapter metadata of a project in reading order
	ListByProject(ctx context.Context, projectID string) ([]chapter.Chapter, error)

	// Save writes content and/or title on top of req.BaseVersion
	Save(ctx context.Context, id string, req chapter.SaveRequest) (*chapter.SaveResult, error)

	// ListVersions returns the snapshot history, newest first
	ListVersions(ctx context.Context, id string) (*chapter.VersionList, error)

	// GetVersion returns one snapshot with its full content
	GetVersion(ctx context.Context, id string, version int) (*chapter.VersionDetail, error)

	// Revert restores req.TargetVersion as a new version on top of req.BaseVersion
	Revert(ctx context.Context, id string, req chapter.RevertRequest) (*chapter.SaveResult, error)
}
