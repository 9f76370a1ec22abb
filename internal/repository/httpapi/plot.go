package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"inkwell/internal/domain/models/plot"
)

// PlotRepository implements repositories.PlotRepository over HTTP
type PlotRepository struct {
	client *Client
}

// NewPlotRepository creates a new plot repository
func NewPlotRepository(client *Client) *PlotRepository {
	return &PlotRepository{client: client}
}

func (r *PlotRepository) GetOverview(ctx context.Context, projectID string) (*plot.Overview, error) {
	var overview plot.Overview
	path := fmt.Sprintf("/api/projects/%s/plot", url.PathEscape(projectID))
	if err := r.client.do(ctx, http.MethodGet, path, nil, &overview, resource{kind: "plot", id: projectID}); err != nil {
		return nil, err
	}
	return &overview, nil
}

func (r *PlotRepository) CreateArc(ctx context.Context, projectID string, arc plot.Arc) (*plot.Arc, error) {
	var created plot.Arc
	path := fmt.Sprintf("/api/projects/%s/plot/arcs", url.PathEscape(projectID))
	if err := r.client.do(ctx, http.MethodPost, path, arc, &created, resource{kind: "arc"}); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *PlotRepository) UpdateArc(ctx context.Context, arcID string, patch plot.ArcPatch) (*plot.Arc, error) {
	var updated plot.Arc
	path := "/api/plot/arcs/" + url.PathEscape(arcID)
	if err := r.client.do(ctx, http.MethodPatch, path, patch, &updated, resource{kind: "arc", id: arcID}); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *PlotRepository) DeleteArc(ctx context.Context, arcID string) error {
	path := "/api/plot/arcs/" + url.PathEscape(arcID)
	return r.client.do(ctx, http.MethodDelete, path, nil, nil, resource{kind: "arc", id: arcID})
}

func (r *PlotRepository) CreatePoint(ctx context.Context, point plot.Point) (*plot.Point, error) {
	var created plot.Point
	path := fmt.Sprintf("/api/plot/arcs/%s/points", url.PathEscape(point.ArcID))
	if err := r.client.do(ctx, http.MethodPost, path, point, &created, resource{kind: "plot point"}); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *PlotRepository) UpdatePoint(ctx context.Context, pointID string, patch plot.PointPatch) (*plot.Point, error) {
	var updated plot.Point
	path := "/api/plot/points/" + url.PathEscape(pointID)
	if err := r.client.do(ctx, http.MethodPatch, path, patch, &updated, resource{kind: "plot point", id: pointID}); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *PlotRepository) DeletePoint(ctx context.Context, pointID string) error {
	path := "/api/plot/points/" + url.PathEscape(pointID)
	return r.client.do(ctx, http.MethodDelete, path, nil, nil, resource{kind: "plot point", id: pointID})
}

func (r *PlotRepository) Suggest(ctx context.Context, projectID string, filter plot.SuggestionFilter) ([]plot.SuggestionDraft, error) {
	var resp struct {
		Suggestions []plot.SuggestionDraft `json:"suggestions"`
	}
	path := fmt.Sprintf("/api/projects/%s/plot/suggestions", url.PathEscape(projectID))
	if err := r.client.do(ctx, http.MethodPost, path, filter, &resp, resource{kind: "plot", id: projectID}); err != nil {
		return nil, err
	}
	return resp.Suggestions, nil
}
