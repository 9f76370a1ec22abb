package outline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"inkwell/internal/domain"
	"inkwell/internal/domain/models"
	"inkwell/internal/domain/models/outline"
	"inkwell/internal/domain/repositories"
	"inkwell/internal/metrics"
)

// tempPrefix marks nodes spliced in before the server assigned an id
const tempPrefix = "tmp-"

// Config wires a Board
type Config struct {
	Outline   repositories.OutlineRepository
	ProjectID string
	Role      models.Role

	// OnChange is called without the board lock after every local change (optional)
	OnChange func()

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// state is one consistent view of the forest: node fields by id plus the
// container projection that orders them
type state struct {
	nodes      map[string]*outline.Node // no children
	containers Containers
}

func newState(forest []*outline.Node) state {
	st := state{nodes: make(map[string]*outline.Node), containers: FromTree(forest)}
	var walk func(nodes []*outline.Node)
	walk = func(nodes []*outline.Node) {
		for _, n := range nodes {
			st.nodes[n.ID] = n.Clone()
			walk(n.Children)
		}
	}
	walk(forest)
	return st
}

func (s state) clone() state {
	nodes := make(map[string]*outline.Node, len(s.nodes))
	for id, n := range s.nodes {
		nodes[id] = n.Clone()
	}
	return state{nodes: nodes, containers: s.containers.Clone()}
}

// sync copies parent and order from the projection into the node fields
func (s state) sync(containers ...string) {
	for _, k := range containers {
		for i, id := range s.containers[k] {
			if n, ok := s.nodes[id]; ok {
				n.ParentID = parentOf(k)
				n.Order = i
			}
		}
	}
}

// Board is the outline of one project under interactive editing. The
// container map is the only structure a gesture mutates; the nested tree is
// always derived from it. Safe for concurrent use; no lock is held across
// network calls.
type Board struct {
	repo      repositories.OutlineRepository
	projectID string
	role      models.Role
	onChange  func()
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu        sync.Mutex
	loaded    bool
	stale     bool
	confirmed state // last state the server agreed with
	working   state
	dragging  string
	dragFrom  Containers // working containers at drag start
}

// NewBoard creates an empty board; the first Tree call loads it
func NewBoard(cfg Config) *Board {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Board{
		repo:      cfg.Outline,
		projectID: cfg.ProjectID,
		role:      cfg.Role,
		onChange:  cfg.OnChange,
		metrics:   cfg.Metrics,
		logger:    logger.With("project_id", cfg.ProjectID),
		confirmed: newState(nil),
		working:   newState(nil),
	}
}

// Tree returns the current forest, refetching it first when it was never
// loaded or a persisted move marked it stale
func (b *Board) Tree(ctx context.Context) ([]*outline.Node, error) {
	b.mu.Lock()
	fresh := b.loaded && !b.stale
	b.mu.Unlock()

	if !fresh {
		if err := b.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	return b.Forest(), nil
}

// Refresh replaces local state with the server's tree. A drag in progress
// is abandoned.
func (b *Board) Refresh(ctx context.Context) error {
	forest, err := b.repo.GetTree(ctx, b.projectID)
	if err != nil {
		return fmt.Errorf("fetch outline: %w", err)
	}

	b.mu.Lock()
	b.confirmed = newState(forest)
	b.working = b.confirmed.clone()
	b.loaded = true
	b.stale = false
	b.dragging = ""
	b.dragFrom = nil
	n := len(b.working.nodes)
	b.mu.Unlock()

	b.logger.Debug("outline loaded", "nodes", n)
	b.notify()
	return nil
}

// Forest returns the locally rendered forest without fetching
func (b *Board) Forest() []*outline.Node {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ToTree(b.working.containers, b.working.nodes)
}

// Containers returns a copy of the working projection
func (b *Board) Containers() Containers {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.working.containers.Clone()
}

// Node returns a copy of one node
func (b *Board) Node(id string) (*outline.Node, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.working.nodes[id]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// Stale reports whether the next Tree call refetches
func (b *Board) Stale() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stale
}

func (b *Board) checkEdit() error {
	if !b.role.Can(models.PermissionEdit) {
		return &domain.ForbiddenError{Message: "role " + string(b.role) + " cannot edit the outline"}
	}
	return nil
}

// rollbackLocked discards optimistic changes in favor of the last
// confirmed state
func (b *Board) rollbackLocked(op string, err error) {
	b.working = b.confirmed.clone()
	b.metrics.Rollback(metrics.BoardOutline)
	b.logger.Warn("outline change rolled back", "op", op, "error", err)
}

func (b *Board) notify() {
	if b.onChange != nil {
		b.onChange()
	}
}

func isTemp(id string) bool {
	return strings.HasPrefix(id, tempPrefix)
}
