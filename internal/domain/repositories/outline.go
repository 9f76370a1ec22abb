package repositories

import (
	"context"

	"inkwell/internal/domain/models/outline"
)

// OutlineRepository defines access to a project's outline forest
type OutlineRepository interface {
	// GetTree returns the nested outline of a project
	GetTree(ctx context.Context, projectID string) ([]*outline.Node, error)

	// Upsert creates (req.ID == nil) or updates a node
	Upsert(ctx context.Context, projectID string, req outline.UpsertRequest) (*outline.Node, error)

	// Reorder persists a batch of (id, parent, order) triples atomically
	Reorder(ctx context.Context, projectID string, positions []outline.Position) error

	// Delete removes a node and its subtree, returning the number of nodes removed
	Delete(ctx context.Context, nodeID string) (int, error)
}
