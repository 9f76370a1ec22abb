package outline

import (
	"context"
	"fmt"
	"slices"

	"inkwell/internal/domain"
	"inkwell/internal/metrics"
)

// Target is what a dragged node is hovering or dropped on
type Target struct {
	ID        string
	Container bool // ID names a container; otherwise a node
}

// OnNode targets the position of node id within its container
func OnNode(id string) Target { return Target{ID: id} }

// Into targets the end of container id (RootContainerID or a node id)
func Into(id string) Target { return Target{ID: id, Container: true} }

// resolve returns the destination container and insertion index of t in c
func resolve(c Containers, t Target) (string, int, error) {
	if t.Container {
		if !c.Has(t.ID) {
			return "", 0, &domain.NotFoundError{Message: fmt.Sprintf("container %s not found", t.ID)}
		}
		return t.ID, len(c[t.ID]), nil
	}
	dest, ok := c.ContainerOf(t.ID)
	if !ok {
		return "", 0, &domain.NotFoundError{Message: fmt.Sprintf("outline node %s not found", t.ID)}
	}
	return dest, slices.Index(c[dest], t.ID), nil
}

// resolveDrop returns where id lands when dropped on t. The index is taken
// with id removed from c, so a node that joined the target's container during
// DragOver stays before the target. A node that started before the target in
// the same container takes the target's place, after it.
func resolveDrop(c, from Containers, id string, t Target) (string, int, error) {
	dest, idx, err := resolve(c, t)
	if err != nil || t.Container || t.ID == id {
		return dest, idx, err
	}
	idx = slices.Index(slices.DeleteFunc(slices.Clone(c[dest]), func(n string) bool { return n == id }), t.ID)
	if origin, _ := from.ContainerOf(id); origin == dest {
		list := from[dest]
		if i, j := slices.Index(list, id), slices.Index(list, t.ID); i >= 0 && i < j {
			idx++
		}
	}
	return dest, idx, nil
}

// DragStart records the dragged node
func (b *Board) DragStart(id string) error {
	if err := b.checkEdit(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.working.nodes[id]; !ok {
		return &domain.NotFoundError{Message: fmt.Sprintf("outline node %s not found", id)}
	}
	if isTemp(id) {
		return &domain.ValidationError{Message: "node is not saved yet"}
	}
	b.dragging = id
	b.dragFrom = b.working.containers.Clone()
	return nil
}

// DragOver previews the move while the node hovers a container other than
// its current one. Nothing is persisted; invalid targets are ignored.
func (b *Board) DragOver(t Target) {
	b.mu.Lock()
	id := b.dragging
	if id == "" {
		b.mu.Unlock()
		return
	}
	c := b.working.containers
	dest, idx, err := resolve(c, t)
	from, _ := c.ContainerOf(id)
	if err != nil || dest == from || c.Subtree(id)[dest] {
		b.mu.Unlock()
		return
	}
	c.move(id, dest, idx)
	b.mu.Unlock()
	b.notify()
}

// DragCancel restores the projection as it was when the drag started
func (b *Board) DragCancel() {
	b.mu.Lock()
	if b.dragging == "" {
		b.mu.Unlock()
		return
	}
	b.working.containers = b.dragFrom
	b.dragging = ""
	b.dragFrom = nil
	b.mu.Unlock()
	b.notify()
}

// DragEnd drops the dragged node on t and persists one batch reorder
// covering every child of the source and destination containers. On failure
// the board rolls back to the last confirmed tree. On success the tree is
// marked stale so the next Tree call reflects the server.
func (b *Board) DragEnd(ctx context.Context, t Target) error {
	b.mu.Lock()
	id, from := b.dragging, b.dragFrom
	b.dragging, b.dragFrom = "", nil
	if id == "" {
		b.mu.Unlock()
		return nil
	}

	c := b.working.containers
	dest, idx, err := resolveDrop(c, from, id, t)
	if err == nil && c.Subtree(id)[dest] {
		err = &domain.ValidationError{Message: "a node cannot be moved into its own subtree"}
	}
	if err != nil {
		b.working.containers = from
		b.mu.Unlock()
		b.notify()
		return err
	}

	origin, _ := from.ContainerOf(id)
	c.move(id, dest, idx)
	if c.Equal(from) {
		b.mu.Unlock()
		b.notify()
		return nil
	}
	b.working.sync(origin, dest)
	order := slices.Index(c[dest], id)
	positions := c.positions(origin, dest)
	b.mu.Unlock()
	b.notify()

	if err := b.repo.Reorder(ctx, b.projectID, positions); err != nil {
		b.mu.Lock()
		b.rollbackLocked("reorder", err)
		b.mu.Unlock()
		b.notify()
		return fmt.Errorf("reorder outline: %w", err)
	}

	b.mu.Lock()
	b.confirmed.containers.move(id, dest, order)
	b.confirmed.sync(origin, dest)
	b.stale = true
	b.mu.Unlock()

	b.metrics.Move(metrics.BoardOutline)
	b.logger.Info("outline node moved",
		"node_id", id,
		"container", dest,
		"order", order,
		"positions", len(positions),
	)
	return nil
}
