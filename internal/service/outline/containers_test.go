package outline

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"inkwell/internal/domain/models/outline"
)

func ptr(s string) *string { return &s }

// randomForest builds n nodes with random parents and scrambled orders
func randomForest(r *rand.Rand, n int) []*outline.Node {
	nodes := make([]*outline.Node, n)
	var roots []*outline.Node
	for i := range nodes {
		nodes[i] = &outline.Node{ID: fmt.Sprintf("n%02d", i), Title: fmt.Sprintf("Node %d", i), Order: r.Intn(5)}
		if i == 0 || r.Intn(3) == 0 {
			roots = append(roots, nodes[i])
			continue
		}
		parent := nodes[r.Intn(i)]
		nodes[i].ParentID = ptr(parent.ID)
		parent.Children = append(parent.Children, nodes[i])
	}
	return roots
}

func flatten(forest []*outline.Node) map[string]*outline.Node {
	index := make(map[string]*outline.Node)
	var walk func([]*outline.Node)
	walk = func(nodes []*outline.Node) {
		for _, n := range nodes {
			index[n.ID] = n
			walk(n.Children)
		}
	}
	walk(forest)
	return index
}

func checkContiguous(t *testing.T, forest []*outline.Node) {
	t.Helper()
	var walk func(parent *string, nodes []*outline.Node)
	walk = func(parent *string, nodes []*outline.Node) {
		for i, n := range nodes {
			if n.Order != i {
				t.Fatalf("node %s has order %d at index %d", n.ID, n.Order, i)
			}
			if (parent == nil) != (n.ParentID == nil) || (parent != nil && *parent != *n.ParentID) {
				t.Fatalf("node %s has parent %v, want %v", n.ID, n.ParentID, parent)
			}
			walk(&n.ID, n.Children)
		}
	}
	walk(nil, forest)
}

func TestFromTree_SortsAndListsEveryNode(t *testing.T) {
	forest := []*outline.Node{
		{ID: "b", Order: 1},
		{ID: "a", Order: 1, Children: []*outline.Node{{ID: "c", Order: 3}, {ID: "d", Order: 0}}},
	}
	c := FromTree(forest)

	want := Containers{
		RootContainerID: {"a", "b"},
		"a":             {"d", "c"},
		"b":             {},
		"c":             {},
		"d":             {},
	}
	if !c.Equal(want) || len(c) != len(want) {
		t.Errorf("FromTree = %v, want %v", c, want)
	}
}

func TestToTree_TakesParentAndOrderFromMap(t *testing.T) {
	index := map[string]*outline.Node{
		"a": {ID: "a", Title: "A", Order: 7},
		"b": {ID: "b", Title: "B", Order: 7, ParentID: ptr("zzz")},
	}
	forest := ToTree(Containers{RootContainerID: {"a"}, "a": {"b"}, "b": {}}, index)

	if len(forest) != 1 || forest[0].ID != "a" || forest[0].ParentID != nil || forest[0].Order != 0 {
		t.Fatalf("roots = %+v", forest)
	}
	b := forest[0].Children[0]
	if b.Title != "B" || *b.ParentID != "a" || b.Order != 0 {
		t.Errorf("child = %+v", b)
	}
	if index["b"].Order != 7 {
		t.Error("ToTree modified the index")
	}
}

func TestContainers_ClosureAndContiguity(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		forest := randomForest(r, 2+r.Intn(12))
		index := flatten(forest)
		c := FromTree(forest)

		ids := make([]string, 0, len(index))
		for id := range index {
			ids = append(ids, id)
		}
		dragged := ids[r.Intn(len(ids))]

		// Any container outside the dragged subtree is a valid destination
		var dests []string
		sub := c.Subtree(dragged)
		for k := range c {
			if !sub[k] {
				dests = append(dests, k)
			}
		}
		dest := dests[r.Intn(len(dests))]
		c.move(dragged, dest, r.Intn(len(c[dest])+2)-1)

		rebuilt := ToTree(c, index)
		checkContiguous(t, rebuilt)
		if back := FromTree(rebuilt); !back.Equal(c) {
			t.Fatalf("round %d: FromTree(ToTree(m)) = %v, want %v", round, back, c)
		}
		if got := len(flatten(rebuilt)); got != len(index) {
			t.Fatalf("round %d: rebuilt %d nodes, want %d", round, got, len(index))
		}
	}
}

func TestContainers_Positions(t *testing.T) {
	c := Containers{RootContainerID: {"a", "b"}, "a": {"c"}}
	got := c.positions(RootContainerID, "a", RootContainerID)

	if len(got) != 3 {
		t.Fatalf("positions = %+v", got)
	}
	if got[0].ID != "a" || got[0].ParentID != nil || got[1].Order != 1 {
		t.Errorf("root positions = %+v", got[:2])
	}
	if got[2].ID != "c" || *got[2].ParentID != "a" || got[2].Order != 0 {
		t.Errorf("child position = %+v", got[2])
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}
