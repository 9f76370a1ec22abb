package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"inkwell/internal/domain"
	"inkwell/internal/domain/models/outline"
	"inkwell/internal/domain/repositories"

	"github.com/google/uuid"
)

// OutlineStore is an in-process OutlineRepository. Nodes are kept flat and
// nested on read.
type OutlineStore struct {
	Faults

	mu       sync.Mutex
	now      func() time.Time
	nodes    map[string]*outline.Node
	reorders [][]outline.Position
}

var _ repositories.OutlineRepository = (*OutlineStore)(nil)

// NewOutlineStore creates an empty store
func NewOutlineStore() *OutlineStore {
	return &OutlineStore{
		now:   time.Now,
		nodes: make(map[string]*outline.Node),
	}
}

// Put inserts or replaces a node as given
func (s *OutlineStore) Put(n outline.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[n.ID] = n.Clone()
}

// Reorders returns every batch received by Reorder, in order
func (s *OutlineStore) Reorders() [][]outline.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]outline.Position(nil), s.reorders...)
}

func (s *OutlineStore) GetTree(ctx context.Context, projectID string) ([]*outline.Node, error) {
	if err := s.enter(ctx, "GetTree"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	byParent := make(map[string][]*outline.Node)
	for _, n := range s.nodes {
		if n.ProjectID != projectID {
			continue
		}
		byParent[parentKey(n.ParentID)] = append(byParent[parentKey(n.ParentID)], n.Clone())
	}
	for _, siblings := range byParent {
		sortNodes(siblings)
	}

	var attach func(nodes []*outline.Node)
	attach = func(nodes []*outline.Node) {
		for _, n := range nodes {
			n.Children = byParent[n.ID]
			attach(n.Children)
		}
	}
	roots := byParent[""]
	attach(roots)
	return roots, nil
}

func (s *OutlineStore) Upsert(ctx context.Context, projectID string, req outline.UpsertRequest) (*outline.Node, error) {
	if err := s.enter(ctx, "Upsert"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ParentID != nil {
		parent, ok := s.nodes[*req.ParentID]
		if !ok || parent.ProjectID != projectID {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("parent %s not found", *req.ParentID)}
		}
	}

	var n *outline.Node
	if req.ID == nil {
		n = &outline.Node{ID: uuid.New().String(), ProjectID: projectID}
		s.nodes[n.ID] = n
	} else {
		existing, ok := s.nodes[*req.ID]
		if !ok {
			return nil, &domain.NotFoundError{Message: fmt.Sprintf("outline node %s not found", *req.ID)}
		}
		n = existing
	}

	n.ParentID = copyID(req.ParentID)
	n.Order = req.Order
	n.Title = req.Title
	n.Summary = req.Summary
	n.Tags = append([]string(nil), req.Tags...)
	n.Beats = append([]outline.Beat(nil), req.Beats...)
	n.Metadata = req.Metadata
	n.UpdatedAt = s.now()
	return n.Clone(), nil
}

func (s *OutlineStore) Reorder(ctx context.Context, projectID string, positions []outline.Position) error {
	if err := s.enter(ctx, "Reorder"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reorders = append(s.reorders, append([]outline.Position(nil), positions...))

	// Validate the whole batch before applying any of it
	for _, p := range positions {
		n, ok := s.nodes[p.ID]
		if !ok || n.ProjectID != projectID {
			return &domain.NotFoundError{Message: fmt.Sprintf("outline node %s not found", p.ID)}
		}
		if p.ParentID != nil {
			if _, ok := s.nodes[*p.ParentID]; !ok {
				return &domain.ValidationError{Message: fmt.Sprintf("parent %s not found", *p.ParentID)}
			}
		}
	}

	now := s.now()
	for _, p := range positions {
		n := s.nodes[p.ID]
		n.ParentID = copyID(p.ParentID)
		n.Order = p.Order
		n.UpdatedAt = now
	}
	return nil
}

// Delete removes the node and its whole subtree, then closes the gap in the
// former siblings' order values
func (s *OutlineStore) Delete(ctx context.Context, nodeID string) (int, error) {
	if err := s.enter(ctx, "Delete"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.nodes[nodeID]
	if !ok {
		return 0, &domain.NotFoundError{Message: fmt.Sprintf("outline node %s not found", nodeID)}
	}
	parent := parentKey(target.ParentID)
	projectID := target.ProjectID

	removed := 0
	queue := []string{nodeID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, n := range s.nodes {
			if n.ParentID != nil && *n.ParentID == id {
				queue = append(queue, n.ID)
			}
		}
		delete(s.nodes, id)
		removed++
	}

	var siblings []*outline.Node
	for _, n := range s.nodes {
		if n.ProjectID == projectID && parentKey(n.ParentID) == parent {
			siblings = append(siblings, n)
		}
	}
	sortNodes(siblings)
	for i, n := range siblings {
		n.Order = i
	}
	return removed, nil
}

func sortNodes(nodes []*outline.Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Order != nodes[j].Order {
			return nodes[i].Order < nodes[j].Order
		}
		return nodes[i].ID < nodes[j].ID
	})
}

func parentKey(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}

func copyID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
