package outline

import "time"

// Node is one entry of the outline forest. Order is scoped to the sibling group.
type Node struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"project_id"`
	ParentID  *string        `json:"parent_id"` // NULL = root level
	Order     int            `json:"order"`
	Title     string         `json:"title"`
	Summary   string         `json:"summary"`
	Beats     []Beat         `json:"beats"`
	Tags      []string       `json:"tags"`
	Status    string         `json:"status,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
	Children  []*Node        `json:"children"` // Pointers for proper nesting
}

// Beat is an ordered story beat inside a node
type Beat struct {
	ID      string   `json:"id"`
	Summary string   `json:"summary"`
	Order   int      `json:"order"`
	Focus   string   `json:"focus,omitempty"`
	Outcome string   `json:"outcome,omitempty"`
	Status  string   `json:"status,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// Clone returns a copy of the node without children
func (n *Node) Clone() *Node {
	c := *n
	if n.ParentID != nil {
		parent := *n.ParentID
		c.ParentID = &parent
	}
	c.Beats = append([]Beat(nil), n.Beats...)
	c.Tags = append([]string(nil), n.Tags...)
	c.Children = nil
	return &c
}

// UpsertRequest creates a node when ID is nil, updates it otherwise
type UpsertRequest struct {
	ID       *string        `json:"id,omitempty"`
	ParentID *string        `json:"parent_id"`
	Order    int            `json:"order"`
	Title    string         `json:"title"`
	Summary  string         `json:"summary"`
	Tags     []string       `json:"tags"`
	Beats    []Beat         `json:"beats"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Position is one (node, parent, order) triple of a batch reorder
type Position struct {
	ID       string  `json:"id"`
	ParentID *string `json:"parent_id"`
	Order    int     `json:"order"`
}
