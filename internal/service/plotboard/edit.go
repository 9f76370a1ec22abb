package plotboard

import (
	"context"
	"fmt"
	"strings"

	"inkwell/internal/config"
	"inkwell/internal/domain"
	"inkwell/internal/domain/models/plot"
	"inkwell/internal/httputil"
	"inkwell/internal/metrics"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const defaultSuggestionCount = 3

// PatchPoint applies a scalar field patch in place and persists it in the
// background. There is no rollback: a failed update is reported through
// OnError and the log, and the local value stays.
func (b *Board) PatchPoint(pointID string, patch plot.PointPatch) error {
	if err := b.checkEdit(); err != nil {
		return err
	}
	if patch.ArcID != nil || patch.Order != nil {
		return errNotMovable
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if err := validateTitle(title); err != nil {
			return err
		}
		patch.Title = &title
	}
	if patch.Tension != nil {
		if err := validateTension(*patch.Tension); err != nil {
			return err
		}
	}

	b.mu.Lock()
	p, ok := b.points[pointID]
	if !ok {
		b.mu.Unlock()
		return pointNotFound(pointID)
	}
	changed := patch.Apply(p)
	b.mu.Unlock()
	if !changed {
		return nil
	}
	b.notify()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if _, err := b.repo.UpdatePoint(context.Background(), pointID, patch); err != nil {
			b.logger.Warn("plot point update failed", "point_id", pointID, "error", err)
			if b.onError != nil {
				b.onError(fmt.Errorf("update plot point: %w", err))
			}
			return
		}
		b.logger.Debug("plot point updated", "point_id", pointID)
	}()
	return nil
}

// SetTension is PatchPoint for the tension slider
func (b *Board) SetTension(pointID string, tension int) error {
	return b.PatchPoint(pointID, plot.PointPatch{Tension: &tension})
}

// LinkChapter attaches a point to a chapter; nil detaches it
func (b *Board) LinkChapter(pointID string, chapterID *string) error {
	patch := plot.PointPatch{ChapterID: httputil.Null()}
	if chapterID != nil {
		patch.ChapterID = httputil.Set(*chapterID)
	}
	return b.PatchPoint(pointID, patch)
}

// CreateArc appends a new arc column
func (b *Board) CreateArc(ctx context.Context, arc plot.Arc) (*plot.Arc, error) {
	if err := b.checkEdit(); err != nil {
		return nil, err
	}
	arc.Title = strings.TrimSpace(arc.Title)
	if err := validateTitle(arc.Title); err != nil {
		return nil, err
	}
	if arc.Themes == nil {
		arc.Themes = []string{}
	}

	b.mu.Lock()
	arc.Order = len(b.arcs)
	b.mu.Unlock()

	created, err := b.repo.CreateArc(ctx, b.projectID, arc)
	if err != nil {
		return nil, fmt.Errorf("create arc: %w", err)
	}

	b.mu.Lock()
	b.arcs = append(b.arcs, *created)
	sortArcs(b.arcs)
	b.mu.Unlock()

	b.logger.Info("arc created", "arc_id", created.ID, "order", created.Order)
	b.notify()
	return created, nil
}

// UpdateArc changes arc fields other than its position
func (b *Board) UpdateArc(ctx context.Context, arcID string, patch plot.ArcPatch) (*plot.Arc, error) {
	if err := b.checkEdit(); err != nil {
		return nil, err
	}
	if patch.Order != nil {
		return nil, &domain.ValidationError{Message: "arc order changes through MoveArc"}
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		patch.Title = &title
	}

	saved, err := b.repo.UpdateArc(ctx, arcID, patch)
	if err != nil {
		return nil, fmt.Errorf("update arc: %w", err)
	}

	b.mu.Lock()
	if i := b.arcIndexLocked(arcID); i >= 0 {
		b.arcs[i] = *saved
	}
	b.mu.Unlock()

	b.logger.Info("arc updated", "arc_id", arcID)
	b.notify()
	return saved, nil
}

// DeleteArc removes an arc and its points after confirm approves. The
// column disappears at once and comes back if the request fails.
func (b *Board) DeleteArc(ctx context.Context, arcID string, confirm domain.ConfirmFunc) error {
	if err := b.checkEdit(); err != nil {
		return err
	}

	b.mu.Lock()
	i := b.arcIndexLocked(arcID)
	if i < 0 {
		b.mu.Unlock()
		return arcNotFound(arcID)
	}
	arc := b.arcs[i]
	n := len(b.pointsLocked(arcID, ""))
	b.mu.Unlock()

	if err := domain.Confirm(confirm, fmt.Sprintf("Delete arc %q and its %d points?", arc.Title, n)); err != nil {
		return err
	}

	b.mu.Lock()
	prevArcs := append([]plot.Arc(nil), b.arcs...)
	removed := make(map[string]*plot.Point)
	if i := b.arcIndexLocked(arcID); i >= 0 {
		b.arcs = append(b.arcs[:i:i], b.arcs[i+1:]...)
	}
	for id, p := range b.points {
		if p.ArcID == arcID {
			removed[id] = p
			delete(b.points, id)
		}
	}
	b.mu.Unlock()
	b.notify()

	if err := b.repo.DeleteArc(ctx, arcID); err != nil {
		b.mu.Lock()
		b.arcs = prevArcs
		for id, p := range removed {
			b.points[id] = p
		}
		b.mu.Unlock()
		b.metrics.Rollback(metrics.BoardPlot)
		b.logger.Warn("arc delete rolled back", "arc_id", arcID, "error", err)
		b.notify()
		return fmt.Errorf("delete arc: %w", err)
	}

	b.logger.Info("arc deleted", "arc_id", arcID, "points", len(removed))
	return nil
}

// CreatePoint inserts a point into its arc at index at (negative appends),
// choosing a key between the neighbors at that position
func (b *Board) CreatePoint(ctx context.Context, p plot.Point, at int) (*plot.Point, error) {
	if err := b.checkEdit(); err != nil {
		return nil, err
	}
	p.Title = strings.TrimSpace(p.Title)
	if err := validateTitle(p.Title); err != nil {
		return nil, err
	}
	if err := validateTension(p.Tension); err != nil {
		return nil, err
	}

	b.mu.Lock()
	if b.arcIndexLocked(p.ArcID) < 0 {
		b.mu.Unlock()
		return nil, arcNotFound(p.ArcID)
	}
	list := b.pointsLocked(p.ArcID, "")
	if at < 0 || at > len(list) {
		at = len(list)
	}
	before, after := neighbors(list, at)
	p.Order = OrderBetween(before, after)
	b.mu.Unlock()

	created, err := b.repo.CreatePoint(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create plot point: %w", err)
	}

	b.mu.Lock()
	stored := *created
	b.points[stored.ID] = &stored
	b.mu.Unlock()

	b.logger.Info("plot point created",
		"point_id", created.ID,
		"arc_id", created.ArcID,
		"order", created.Order,
		"ai_suggested", created.AISuggested,
	)
	b.notify()
	return created, nil
}

// DeletePoint removes a point after confirm approves, restoring it if the
// request fails
func (b *Board) DeletePoint(ctx context.Context, pointID string, confirm domain.ConfirmFunc) error {
	if err := b.checkEdit(); err != nil {
		return err
	}

	b.mu.Lock()
	p, ok := b.points[pointID]
	if !ok {
		b.mu.Unlock()
		return pointNotFound(pointID)
	}
	title := p.Title
	b.mu.Unlock()

	if err := domain.Confirm(confirm, fmt.Sprintf("Delete plot point %q?", title)); err != nil {
		return err
	}

	b.mu.Lock()
	p, ok = b.points[pointID]
	delete(b.points, pointID)
	b.mu.Unlock()
	b.notify()

	if err := b.repo.DeletePoint(ctx, pointID); err != nil {
		if ok {
			b.mu.Lock()
			b.points[pointID] = p
			b.mu.Unlock()
		}
		b.metrics.Rollback(metrics.BoardPlot)
		b.logger.Warn("plot point delete rolled back", "point_id", pointID, "error", err)
		b.notify()
		return fmt.Errorf("delete plot point: %w", err)
	}

	b.logger.Info("plot point deleted", "point_id", pointID)
	return nil
}

// Suggest asks for unsaved point drafts. A zero count asks for three.
func (b *Board) Suggest(ctx context.Context, filter plot.SuggestionFilter) ([]plot.SuggestionDraft, error) {
	if err := b.checkEdit(); err != nil {
		return nil, err
	}
	if filter.Count == 0 {
		filter.Count = defaultSuggestionCount
	}
	if err := validation.Validate(filter.Count,
		validation.Min(1),
		validation.Max(config.MaxSuggestionCount),
	); err != nil {
		return nil, &domain.ValidationError{Message: "count: " + err.Error()}
	}
	if filter.ArcID != nil {
		b.mu.Lock()
		known := b.arcIndexLocked(*filter.ArcID) >= 0
		b.mu.Unlock()
		if !known {
			return nil, arcNotFound(*filter.ArcID)
		}
	}

	drafts, err := b.repo.Suggest(ctx, b.projectID, filter)
	if err != nil {
		return nil, fmt.Errorf("suggest plot points: %w", err)
	}
	b.logger.Info("plot suggestions received", "count", len(drafts))
	return drafts, nil
}

// AcceptSuggestion saves a draft as a point at the end of arcID, or of the
// draft's own arc when arcID is empty
func (b *Board) AcceptSuggestion(ctx context.Context, draft plot.SuggestionDraft, arcID string) (*plot.Point, error) {
	if arcID == "" && draft.ArcID != nil {
		arcID = *draft.ArcID
	}
	if arcID == "" {
		return nil, &domain.ValidationError{Message: "arc is required"}
	}
	var chapterID *string
	if draft.ChapterID != nil {
		id := *draft.ChapterID
		chapterID = &id
	}
	return b.CreatePoint(ctx, plot.Point{
		ArcID:       arcID,
		ChapterID:   chapterID,
		Title:       draft.Title,
		Description: draft.Description,
		Tension:     min(max(draft.Tension, config.MinTension), config.MaxTension),
		AISuggested: true,
	}, -1)
}
