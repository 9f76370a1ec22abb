// Package outline keeps a project's outline forest in sync with a flat
// container projection that drag gestures mutate directly.
package outline

import (
	"slices"
	"sort"

	"inkwell/internal/domain/models/outline"
)

// RootContainerID keys the list of root-level nodes
const RootContainerID = "root"

// Containers maps a container id (RootContainerID or a node id) to the
// ordered ids of its direct children
type Containers map[string][]string

// FromTree projects a forest onto containers. Every node gets an entry,
// possibly empty; children are ordered by Order, then id.
func FromTree(forest []*outline.Node) Containers {
	c := Containers{RootContainerID: nil}
	var walk func(container string, nodes []*outline.Node)
	walk = func(container string, nodes []*outline.Node) {
		sorted := append([]*outline.Node(nil), nodes...)
		sortNodes(sorted)
		ids := make([]string, 0, len(sorted))
		for _, n := range sorted {
			ids = append(ids, n.ID)
			walk(n.ID, n.Children)
		}
		c[container] = ids
	}
	walk(RootContainerID, forest)
	return c
}

// ToTree rebuilds the nested forest from containers. Node fields come from
// index; parent and order are taken from the map. Ids missing from index are
// skipped.
func ToTree(c Containers, index map[string]*outline.Node) []*outline.Node {
	var build func(container string, seen map[string]bool) []*outline.Node
	build = func(container string, seen map[string]bool) []*outline.Node {
		ids := c[container]
		nodes := make([]*outline.Node, 0, len(ids))
		for i, id := range ids {
			src, ok := index[id]
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			n := src.Clone()
			n.ParentID = parentOf(container)
			n.Order = i
			n.Children = build(id, seen)
			nodes = append(nodes, n)
		}
		return nodes
	}
	return build(RootContainerID, make(map[string]bool))
}

// Clone returns a deep copy
func (c Containers) Clone() Containers {
	out := make(Containers, len(c))
	for k, ids := range c {
		out[k] = append([]string(nil), ids...)
	}
	return out
}

// Equal reports whether both maps list the same children in the same order.
// Missing and empty entries are equivalent.
func (c Containers) Equal(other Containers) bool {
	for k, ids := range c {
		if !slices.Equal(ids, other[k]) {
			return false
		}
	}
	for k, ids := range other {
		if _, ok := c[k]; !ok && len(ids) > 0 {
			return false
		}
	}
	return true
}

// ContainerOf returns the container listing id
func (c Containers) ContainerOf(id string) (string, bool) {
	for k, ids := range c {
		if slices.Contains(ids, id) {
			return k, true
		}
	}
	return "", false
}

// Subtree returns id and all its descendants
func (c Containers) Subtree(id string) map[string]bool {
	out := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range c[cur] {
			if !out[child] {
				out[child] = true
				queue = append(queue, child)
			}
		}
	}
	return out
}

// Has reports whether id is a known container
func (c Containers) Has(id string) bool {
	_, ok := c[id]
	return ok
}

// move removes id from every list and inserts it into dest at idx.
// Indexes outside the list append.
func (c Containers) move(id, dest string, idx int) {
	c.remove(id)
	list := c[dest]
	if idx < 0 || idx > len(list) {
		idx = len(list)
	}
	c[dest] = slices.Insert(list, idx, id)
}

func (c Containers) remove(id string) {
	for k, ids := range c {
		if i := slices.Index(ids, id); i >= 0 {
			c[k] = slices.Delete(slices.Clone(ids), i, i+1)
		}
	}
}

// positions lists every child of the given containers with its new parent
// and index
func (c Containers) positions(containers ...string) []outline.Position {
	var out []outline.Position
	seen := make(map[string]bool)
	for _, k := range containers {
		if seen[k] {
			continue
		}
		seen[k] = true
		for i, id := range c[k] {
			out = append(out, outline.Position{ID: id, ParentID: parentOf(k), Order: i})
		}
	}
	return out
}

func parentOf(container string) *string {
	if container == RootContainerID {
		return nil
	}
	id := container
	return &id
}

func containerFor(parentID *string) string {
	if parentID == nil {
		return RootContainerID
	}
	return *parentID
}

func sortNodes(nodes []*outline.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Order != nodes[j].Order {
			return nodes[i].Order < nodes[j].Order
		}
		return nodes[i].ID < nodes[j].ID
	})
}
