package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"inkwell/internal/domain"
	"inkwell/internal/domain/models/outline"
)

// OutlineRepository implements repositories.OutlineRepository over HTTP
type OutlineRepository struct {
	client *Client
}

// NewOutlineRepository creates a new outline repository
func NewOutlineRepository(client *Client) *OutlineRepository {
	return &OutlineRepository{client: client}
}

func (r *OutlineRepository) GetTree(ctx context.Context, projectID string) ([]*outline.Node, error) {
	var resp struct {
		Nodes []*outline.Node `json:"nodes"`
	}
	path := fmt.Sprintf("/api/projects/%s/outline", url.PathEscape(projectID))
	if err := r.client.do(ctx, http.MethodGet, path, nil, &resp, resource{kind: "outline", id: projectID}); err != nil {
		return nil, err
	}
	return resp.Nodes, nil
}

func (r *OutlineRepository) Upsert(ctx context.Context, projectID string, req outline.UpsertRequest) (*outline.Node, error) {
	var node outline.Node
	path := fmt.Sprintf("/api/projects/%s/outline/nodes", url.PathEscape(projectID))
	if err := r.client.do(ctx, http.MethodPut, path, req, &node, resource{kind: "outline node", id: deref(req.ID)}); err != nil {
		return nil, err
	}
	return &node, nil
}

func (r *OutlineRepository) Reorder(ctx context.Context, projectID string, positions []outline.Position) error {
	var resp struct {
		Success bool `json:"success"`
	}
	body := struct {
		Nodes []outline.Position `json:"nodes"`
	}{Nodes: positions}

	path := fmt.Sprintf("/api/projects/%s/outline/reorder", url.PathEscape(projectID))
	if err := r.client.do(ctx, http.MethodPost, path, body, &resp, resource{kind: "outline", id: projectID}); err != nil {
		return err
	}
	if !resp.Success {
		return &domain.TransportError{Status: http.StatusOK, Detail: "reorder was not applied"}
	}
	return nil
}

func (r *OutlineRepository) Delete(ctx context.Context, nodeID string) (int, error) {
	var resp struct {
		Removed int `json:"removed"`
	}
	path := "/api/outline/nodes/" + url.PathEscape(nodeID)
	if err := r.client.do(ctx, http.MethodDelete, path, nil, &resp, resource{kind: "outline node", id: nodeID}); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
