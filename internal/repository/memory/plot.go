package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"inkwell/internal/domain"
	"inkwell/internal/domain/models/plot"
	"inkwell/internal/domain/repositories"

	"github.com/google/uuid"
)

// PlotStore is an in-process PlotRepository
type PlotStore struct {
	Faults

	mu      sync.Mutex
	now     func() time.Time
	arcs    map[string]*plot.Arc
	points  map[string]*plot.Point
	patches []PointUpdate
}

// PointUpdate is one UpdatePoint call as received
type PointUpdate struct {
	PointID string
	Patch   plot.PointPatch
}

var _ repositories.PlotRepository = (*PlotStore)(nil)

// NewPlotStore creates an empty store
func NewPlotStore() *PlotStore {
	return &PlotStore{
		now:    time.Now,
		arcs:   make(map[string]*plot.Arc),
		points: make(map[string]*plot.Point),
	}
}

// PutArc inserts or replaces an arc as given
func (s *PlotStore) PutArc(a plot.Arc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arcs[a.ID] = &a
}

// PutPoint inserts or replaces a point as given
func (s *PlotStore) PutPoint(p plot.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[p.ID] = &p
}

// PointUpdates returns every UpdatePoint call received, in order
func (s *PlotStore) PointUpdates() []PointUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PointUpdate(nil), s.patches...)
}

// Point returns the stored copy of a point
func (s *PlotStore) Point(id string) (plot.Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.points[id]
	if !ok {
		return plot.Point{}, false
	}
	return *p, true
}

func (s *PlotStore) GetOverview(ctx context.Context, projectID string) (*plot.Overview, error) {
	if err := s.enter(ctx, "GetOverview"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ov := &plot.Overview{Arcs: []plot.Arc{}, Points: []plot.Point{}}
	arcIDs := make(map[string]bool)
	for _, a := range s.arcs {
		if a.ProjectID == projectID {
			ov.Arcs = append(ov.Arcs, *a)
			arcIDs[a.ID] = true
		}
	}
	for _, p := range s.points {
		if arcIDs[p.ArcID] {
			ov.Points = append(ov.Points, *p)
		}
	}
	sort.Slice(ov.Arcs, func(i, j int) bool {
		if ov.Arcs[i].Order != ov.Arcs[j].Order {
			return ov.Arcs[i].Order < ov.Arcs[j].Order
		}
		return ov.Arcs[i].ID < ov.Arcs[j].ID
	})
	sort.Slice(ov.Points, func(i, j int) bool {
		a, b := ov.Points[i], ov.Points[j]
		if a.ArcID != b.ArcID {
			return a.ArcID < b.ArcID
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})
	return ov, nil
}

func (s *PlotStore) CreateArc(ctx context.Context, projectID string, arc plot.Arc) (*plot.Arc, error) {
	if err := s.enter(ctx, "CreateArc"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	arc.ID = uuid.New().String()
	arc.ProjectID = projectID
	arc.UpdatedAt = s.now()
	s.arcs[arc.ID] = &arc
	created := arc
	return &created, nil
}

func (s *PlotStore) UpdateArc(ctx context.Context, arcID string, patch plot.ArcPatch) (*plot.Arc, error) {
	if err := s.enter(ctx, "UpdateArc"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.arcs[arcID]
	if !ok {
		return nil, arcNotFound(arcID)
	}
	if patch.Title != nil {
		a.Title = *patch.Title
	}
	if patch.Color != nil {
		a.Color = *patch.Color
	}
	if patch.Summary != nil {
		a.Summary = *patch.Summary
	}
	if patch.Goal != nil {
		a.Goal = *patch.Goal
	}
	if patch.Themes != nil {
		a.Themes = append([]string(nil), (*patch.Themes)...)
	}
	if patch.Order != nil {
		a.Order = *patch.Order
	}
	a.UpdatedAt = s.now()
	updated := *a
	return &updated, nil
}

// DeleteArc removes the arc and its points
func (s *PlotStore) DeleteArc(ctx context.Context, arcID string) error {
	if err := s.enter(ctx, "DeleteArc"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.arcs[arcID]; !ok {
		return arcNotFound(arcID)
	}
	delete(s.arcs, arcID)
	for id, p := range s.points {
		if p.ArcID == arcID {
			delete(s.points, id)
		}
	}
	return nil
}

func (s *PlotStore) CreatePoint(ctx context.Context, point plot.Point) (*plot.Point, error) {
	if err := s.enter(ctx, "CreatePoint"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.arcs[point.ArcID]; !ok {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("arc %s not found", point.ArcID)}
	}
	point.ID = uuid.New().String()
	point.UpdatedAt = s.now()
	s.points[point.ID] = &point
	created := point
	return &created, nil
}

func (s *PlotStore) UpdatePoint(ctx context.Context, pointID string, patch plot.PointPatch) (*plot.Point, error) {
	if err := s.enter(ctx, "UpdatePoint"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patches = append(s.patches, PointUpdate{PointID: pointID, Patch: patch})

	p, ok := s.points[pointID]
	if !ok {
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("plot point %s not found", pointID)}
	}
	if patch.ArcID != nil {
		if _, ok := s.arcs[*patch.ArcID]; !ok {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("arc %s not found", *patch.ArcID)}
		}
	}
	if patch.Apply(p) {
		p.UpdatedAt = s.now()
	}
	updated := *p
	return &updated, nil
}

func (s *PlotStore) DeletePoint(ctx context.Context, pointID string) error {
	if err := s.enter(ctx, "DeletePoint"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.points[pointID]; !ok {
		return &domain.NotFoundError{Message: fmt.Sprintf("plot point %s not found", pointID)}
	}
	delete(s.points, pointID)
	return nil
}

// Suggest returns deterministic drafts; the tension rises across the batch
func (s *PlotStore) Suggest(ctx context.Context, projectID string, filter plot.SuggestionFilter) ([]plot.SuggestionDraft, error) {
	if err := s.enter(ctx, "Suggest"); err != nil {
		return nil, err
	}

	count := filter.Count
	if count <= 0 {
		count = 3
	}
	drafts := make([]plot.SuggestionDraft, 0, count)
	for i := 0; i < count; i++ {
		title := fmt.Sprintf("Suggested beat %d", i+1)
		if filter.Theme != "" {
			title = fmt.Sprintf("%s: beat %d", filter.Theme, i+1)
		}
		description := "A turn that raises the stakes."
		if filter.Tone != "" {
			description = fmt.Sprintf("A %s turn that raises the stakes.", filter.Tone)
		}
		drafts = append(drafts, plot.SuggestionDraft{
			Title:       title,
			Description: description,
			Tension:     min(10, 3+2*i),
			ArcID:       copyID(filter.ArcID),
			ChapterID:   copyID(filter.ChapterID),
		})
	}
	return drafts, nil
}

func arcNotFound(id string) error {
	return &domain.NotFoundError{Message: fmt.Sprintf("arc %s not found", id)}
}
