package outline

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"inkwell/internal/config"
	"inkwell/internal/domain"
	"inkwell/internal/domain/models/outline"
	"inkwell/internal/metrics"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// Field names an inline-editable node field
type Field string

const (
	FieldTitle   Field = "title"
	FieldSummary Field = "summary"
)

func validateTitle(title string) error {
	if err := validation.Validate(title,
		validation.Required,
		validation.RuneLength(1, config.MaxOutlineTitleLength),
	); err != nil {
		return &domain.ValidationError{Message: "title: " + err.Error()}
	}
	return nil
}

// Create appends a node to container (RootContainerID or a node id). The
// node is spliced in under a temporary id at once and takes the server's id
// on confirmation; on failure it is removed again.
func (b *Board) Create(ctx context.Context, container, title string) (*outline.Node, error) {
	if err := b.checkEdit(); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}

	b.mu.Lock()
	if !b.working.containers.Has(container) {
		b.mu.Unlock()
		return nil, &domain.NotFoundError{Message: fmt.Sprintf("container %s not found", container)}
	}
	if isTemp(container) {
		b.mu.Unlock()
		return nil, &domain.ValidationError{Message: "parent is not saved yet"}
	}
	tmp := tempPrefix + uuid.NewString()
	order := len(b.working.containers[container])
	b.working.nodes[tmp] = &outline.Node{
		ID:        tmp,
		ProjectID: b.projectID,
		ParentID:  parentOf(container),
		Order:     order,
		Title:     title,
	}
	b.working.containers[container] = append(b.working.containers[container], tmp)
	b.working.containers[tmp] = []string{}
	b.mu.Unlock()
	b.notify()

	created, err := b.repo.Upsert(ctx, b.projectID, outline.UpsertRequest{
		ParentID: parentOf(container),
		Order:    order,
		Title:    title,
		Tags:     []string{},
		Beats:    []outline.Beat{},
	})

	b.mu.Lock()
	if err != nil {
		removeSubtree(b.working, tmp)
		b.working.sync(container)
		b.metrics.Rollback(metrics.BoardOutline)
		b.mu.Unlock()
		b.logger.Warn("outline node create failed", "container", container, "error", err)
		b.notify()
		return nil, fmt.Errorf("create outline node: %w", err)
	}

	node := created.Clone()
	if list, ok := b.working.containers[container]; ok {
		if i := slices.Index(list, tmp); i >= 0 {
			list[i] = node.ID
			node.Order = i
		}
	}
	b.working.containers[node.ID] = b.working.containers[tmp]
	delete(b.working.containers, tmp)
	delete(b.working.nodes, tmp)
	b.working.nodes[node.ID] = node

	if b.confirmed.containers.Has(container) {
		b.confirmed.containers[container] = append(b.confirmed.containers[container], node.ID)
		b.confirmed.containers[node.ID] = []string{}
		b.confirmed.nodes[node.ID] = node.Clone()
		b.confirmed.sync(container)
	}
	out := node.Clone()
	b.mu.Unlock()

	b.logger.Info("outline node created", "node_id", out.ID, "container", container, "order", out.Order)
	b.notify()
	return out, nil
}

// Delete removes a node and its whole subtree after confirm approves, and
// closes the gap in the remaining siblings' order values. It returns the
// number of nodes the server removed.
func (b *Board) Delete(ctx context.Context, id string, confirm domain.ConfirmFunc) (int, error) {
	if err := b.checkEdit(); err != nil {
		return 0, err
	}

	b.mu.Lock()
	n, ok := b.working.nodes[id]
	if !ok {
		b.mu.Unlock()
		return 0, &domain.NotFoundError{Message: fmt.Sprintf("outline node %s not found", id)}
	}
	if isTemp(id) {
		b.mu.Unlock()
		return 0, &domain.ValidationError{Message: "node is not saved yet"}
	}
	title := n.Title
	nested := len(b.working.containers.Subtree(id)) - 1
	b.mu.Unlock()

	prompt := fmt.Sprintf("Delete %q?", title)
	if nested > 0 {
		prompt = fmt.Sprintf("Delete %q and %d nested nodes?", title, nested)
	}
	if err := domain.Confirm(confirm, prompt); err != nil {
		return 0, err
	}

	b.mu.Lock()
	container, ok := b.working.containers.ContainerOf(id)
	if !ok {
		b.mu.Unlock()
		return 0, &domain.NotFoundError{Message: fmt.Sprintf("outline node %s not found", id)}
	}
	removeSubtree(b.working, id)
	b.working.sync(container)
	b.mu.Unlock()
	b.notify()

	removed, err := b.repo.Delete(ctx, id)
	if err != nil {
		b.mu.Lock()
		b.rollbackLocked("delete", err)
		b.mu.Unlock()
		b.notify()
		return 0, fmt.Errorf("delete outline node: %w", err)
	}

	b.mu.Lock()
	if parent, ok := b.confirmed.containers.ContainerOf(id); ok {
		removeSubtree(b.confirmed, id)
		b.confirmed.sync(parent)
	}
	// Surviving siblings are persisted so later appends get a free order
	var positions []outline.Position
	if len(b.working.containers[container]) > 0 {
		positions = b.working.containers.positions(container)
	}
	b.mu.Unlock()

	b.logger.Info("outline node deleted", "node_id", id, "removed", removed)
	if positions != nil {
		if err := b.repo.Reorder(ctx, b.projectID, positions); err != nil {
			b.mu.Lock()
			b.stale = true
			b.mu.Unlock()
			b.logger.Warn("outline siblings not reindexed after delete", "container", container, "error", err)
		}
	}
	return removed, nil
}

// CommitField saves an inline edit when the trimmed value differs from the
// stored one. It reports whether a request was made. An empty title is
// rejected and the prior title kept.
func (b *Board) CommitField(ctx context.Context, id string, field Field, value string) (bool, error) {
	if err := b.checkEdit(); err != nil {
		return false, err
	}
	if field != FieldTitle && field != FieldSummary {
		return false, &domain.ValidationError{Message: fmt.Sprintf("unknown field %q", field)}
	}
	value = strings.TrimSpace(value)

	b.mu.Lock()
	n, ok := b.working.nodes[id]
	if !ok {
		b.mu.Unlock()
		return false, &domain.NotFoundError{Message: fmt.Sprintf("outline node %s not found", id)}
	}
	if isTemp(id) {
		b.mu.Unlock()
		return false, &domain.ValidationError{Message: "node is not saved yet"}
	}
	prior := fieldValue(n, field)
	if value == prior {
		b.mu.Unlock()
		return false, nil
	}
	if field == FieldTitle {
		if err := validateTitle(value); err != nil {
			b.mu.Unlock()
			return false, err
		}
	}
	setField(n, field, value)
	req := upsertFrom(n)
	b.mu.Unlock()
	b.notify()

	saved, err := b.repo.Upsert(ctx, b.projectID, req)

	b.mu.Lock()
	if err != nil {
		if n, ok := b.working.nodes[id]; ok && fieldValue(n, field) == value {
			setField(n, field, prior)
		}
		b.mu.Unlock()
		b.logger.Warn("outline field update failed", "node_id", id, "field", field, "error", err)
		b.notify()
		return true, fmt.Errorf("update outline node: %w", err)
	}
	if n, ok := b.working.nodes[id]; ok {
		n.UpdatedAt = saved.UpdatedAt
	}
	if n, ok := b.confirmed.nodes[id]; ok {
		setField(n, field, fieldValue(saved, field))
		n.UpdatedAt = saved.UpdatedAt
	}
	b.mu.Unlock()

	b.logger.Info("outline field updated", "node_id", id, "field", field)
	return true, nil
}

func fieldValue(n *outline.Node, f Field) string {
	if f == FieldTitle {
		return n.Title
	}
	return n.Summary
}

func setField(n *outline.Node, f Field, v string) {
	if f == FieldTitle {
		n.Title = v
		return
	}
	n.Summary = v
}

func upsertFrom(n *outline.Node) outline.UpsertRequest {
	id := n.ID
	c := n.Clone()
	return outline.UpsertRequest{
		ID:       &id,
		ParentID: c.ParentID,
		Order:    c.Order,
		Title:    c.Title,
		Summary:  c.Summary,
		Tags:     c.Tags,
		Beats:    c.Beats,
		Metadata: c.Metadata,
	}
}

func removeSubtree(st state, id string) {
	for nid := range st.containers.Subtree(id) {
		delete(st.nodes, nid)
		delete(st.containers, nid)
	}
	st.containers.remove(id)
}
