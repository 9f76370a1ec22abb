package plotboard

import (
	"context"
	"fmt"
	"slices"

	"inkwell/internal/domain"
	"inkwell/internal/domain/models/plot"
	"inkwell/internal/metrics"

	"golang.org/x/sync/errgroup"
)

// Drop is where a dragged point lands: an arc column (append) or another
// point's card
type Drop struct {
	ArcID   string
	PointID string
}

// OnArc drops at the end of an arc's column
func OnArc(arcID string) Drop { return Drop{ArcID: arcID} }

// OnPoint drops onto a point's card
func OnPoint(pointID string) Drop { return Drop{PointID: pointID} }

// placement is a resolved drop: destination arc and new key
type placement struct {
	arcID string
	order float64
}

// resolveLocked turns a drop into a destination arc and order key. The
// destination list excludes the dragged point. A same-arc move onto a card
// that the point started before inserts after that card.
func (b *Board) resolveLocked(p *plot.Point, d Drop) (placement, error) {
	var arcID string
	idx := -1

	if d.PointID != "" {
		target, ok := b.points[d.PointID]
		if !ok {
			return placement{}, pointNotFound(d.PointID)
		}
		arcID = target.ArcID
		list := b.pointsLocked(arcID, p.ID)
		idx = slices.IndexFunc(list, func(q plot.Point) bool { return q.ID == target.ID })
		if arcID == p.ArcID {
			full := b.pointsLocked(arcID, "")
			from := slices.IndexFunc(full, func(q plot.Point) bool { return q.ID == p.ID })
			to := slices.IndexFunc(full, func(q plot.Point) bool { return q.ID == target.ID })
			if from < to {
				idx++
			}
		}
		before, after := neighbors(list, idx)
		return placement{arcID: arcID, order: OrderBetween(before, after)}, nil
	}

	arcID = d.ArcID
	if b.arcIndexLocked(arcID) < 0 {
		return placement{}, arcNotFound(arcID)
	}
	list := b.pointsLocked(arcID, p.ID)
	before, after := neighbors(list, len(list))
	return placement{arcID: arcID, order: OrderBetween(before, after)}, nil
}

// Move drops a point and persists its new arc and key. It reports false when
// the drop leaves the point where it was. A failed persist restores the
// point's previous arc and key.
func (b *Board) Move(ctx context.Context, pointID string, d Drop) (bool, error) {
	if err := b.checkEdit(); err != nil {
		return false, err
	}

	b.mu.Lock()
	p, ok := b.points[pointID]
	if !ok {
		b.mu.Unlock()
		return false, pointNotFound(pointID)
	}
	if d.PointID == pointID {
		b.mu.Unlock()
		return false, nil
	}
	to, err := b.resolveLocked(p, d)
	if err != nil {
		b.mu.Unlock()
		return false, err
	}
	prevArc, prevOrder := p.ArcID, p.Order
	if to.arcID == prevArc && SameOrder(to.order, prevOrder) {
		b.mu.Unlock()
		return false, nil
	}
	p.ArcID = to.arcID
	p.Order = to.order
	b.mu.Unlock()
	b.notify()

	arcID, order := to.arcID, to.order
	patch := plot.PointPatch{Order: &order}
	if arcID != prevArc {
		patch.ArcID = &arcID
	}
	saved, err := b.repo.UpdatePoint(ctx, pointID, patch)

	b.mu.Lock()
	if err != nil {
		if p, ok := b.points[pointID]; ok && p.ArcID == arcID && p.Order == order {
			p.ArcID, p.Order = prevArc, prevOrder
		}
		b.mu.Unlock()
		b.metrics.Rollback(metrics.BoardPlot)
		b.logger.Warn("plot point move rolled back", "point_id", pointID, "arc_id", arcID, "error", err)
		b.notify()
		return false, fmt.Errorf("move plot point: %w", err)
	}
	if p, ok := b.points[pointID]; ok {
		p.ArcID, p.Order, p.UpdatedAt = saved.ArcID, saved.Order, saved.UpdatedAt
	}
	b.mu.Unlock()

	b.metrics.Move(metrics.BoardPlot)
	b.logger.Info("plot point moved",
		"point_id", pointID,
		"from_arc", prevArc,
		"arc_id", arcID,
		"order", order,
	)
	return true, nil
}

// MoveArc moves an arc to index idx among the columns and rewrites the
// arcs' integer order to 0..n-1. Every changed arc is persisted; if any
// update fails the columns roll back and the board is refetched on the
// next Columns call.
func (b *Board) MoveArc(ctx context.Context, arcID string, idx int) error {
	if err := b.checkEdit(); err != nil {
		return err
	}

	b.mu.Lock()
	from := b.arcIndexLocked(arcID)
	if from < 0 {
		b.mu.Unlock()
		return arcNotFound(arcID)
	}
	prev := append([]plot.Arc(nil), b.arcs...)
	arcs := slices.Delete(append([]plot.Arc(nil), b.arcs...), from, from+1)
	if idx < 0 || idx > len(arcs) {
		idx = len(arcs)
	}
	arcs = slices.Insert(arcs, idx, prev[from])

	var changed []plot.Arc
	for i := range arcs {
		if arcs[i].Order != i {
			arcs[i].Order = i
			changed = append(changed, arcs[i])
		}
	}
	if len(changed) == 0 {
		b.mu.Unlock()
		return nil
	}
	b.arcs = arcs
	b.mu.Unlock()
	b.notify()

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range changed {
		g.Go(func() error {
			order := a.Order
			_, err := b.repo.UpdateArc(gctx, a.ID, plot.ArcPatch{Order: &order})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		b.mu.Lock()
		b.arcs = prev
		b.stale = true
		b.mu.Unlock()
		b.metrics.Rollback(metrics.BoardPlot)
		b.logger.Warn("arc move rolled back", "arc_id", arcID, "error", err)
		b.notify()
		return fmt.Errorf("move arc: %w", err)
	}

	b.metrics.Move(metrics.BoardPlot)
	b.logger.Info("arc moved", "arc_id", arcID, "order", idx, "updated", len(changed))
	return nil
}

// Renumber rewrites an arc's point keys to 0..n-1 in their current order.
// It returns the number of points updated.
func (b *Board) Renumber(ctx context.Context, arcID string) (int, error) {
	if err := b.checkEdit(); err != nil {
		return 0, err
	}

	b.mu.Lock()
	if b.arcIndexLocked(arcID) < 0 {
		b.mu.Unlock()
		return 0, arcNotFound(arcID)
	}
	list := b.pointsLocked(arcID, "")
	b.mu.Unlock()

	updated := 0
	for i, p := range list {
		order := float64(i)
		if p.Order == order {
			continue
		}
		saved, err := b.repo.UpdatePoint(ctx, p.ID, plot.PointPatch{Order: &order})
		if err != nil {
			b.mu.Lock()
			b.stale = true
			b.mu.Unlock()
			b.logger.Warn("renumber interrupted", "arc_id", arcID, "point_id", p.ID, "updated", updated, "error", err)
			return updated, fmt.Errorf("renumber arc %s: %w", arcID, err)
		}
		b.mu.Lock()
		if q, ok := b.points[p.ID]; ok {
			q.Order, q.UpdatedAt = saved.Order, saved.UpdatedAt
		}
		b.mu.Unlock()
		updated++
	}

	b.logger.Info("arc renumbered", "arc_id", arcID, "points", len(list), "updated", updated)
	if updated > 0 {
		b.notify()
	}
	return updated, nil
}

// errNotMovable rejects structural fields in a scalar patch
var errNotMovable = &domain.ValidationError{Message: "arc and order change through Move"}
