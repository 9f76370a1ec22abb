package repositories

import (
	"context"

	"inkwell/internal/domain/models/plot"
)

// PlotRepository defines access to plot arcs and points
type PlotRepository interface {
	GetOverview(ctx context.Context, projectID string) (*plot.Overview, error)

	CreateArc(ctx context.Context, projectID string, arc plot.Arc) (*plot.Arc, error)
	UpdateArc(ctx context.Context, arcID string, patch plot.ArcPatch) (*plot.Arc, error)
	DeleteArc(ctx context.Context, arcID string) error

	CreatePoint(ctx context.Context, point plot.Point) (*plot.Point, error)
	UpdatePoint(ctx context.Context, pointID string, patch plot.PointPatch) (*plot.Point, error)
	DeletePoint(ctx context.Context, pointID string) error

	// Suggest asks the model for unsaved point drafts
	Suggest(ctx context.Context, projectID string, filter plot.SuggestionFilter) ([]plot.SuggestionDraft, error)
}
