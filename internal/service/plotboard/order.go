package plotboard

import (
	"math"
	"sort"

	"inkwell/internal/domain/models/plot"
)

// Epsilon is the distance below which two order keys are the same position
const Epsilon = 1e-9

// OrderBetween returns a key that sorts between before and after. Repeated
// insertion between the same neighbors halves the gap each time, so keys
// eventually run out of float64 precision; Renumber restores integer keys.
func OrderBetween(before, after *float64) float64 {
	switch {
	case before == nil && after == nil:
		return 0
	case before == nil:
		return *after - 1
	case after == nil:
		return *before + 1
	default:
		return (*before + *after) / 2
	}
}

// SameOrder reports whether two keys are numerically indistinguishable
func SameOrder(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// neighbors returns the keys around insertion index i of a sorted list
func neighbors(list []plot.Point, i int) (before, after *float64) {
	if i > 0 && i-1 < len(list) {
		v := list[i-1].Order
		before = &v
	}
	if i >= 0 && i < len(list) {
		v := list[i].Order
		after = &v
	}
	return before, after
}

func sortPoints(points []plot.Point) {
	sort.SliceStable(points, func(i, j int) bool {
		if points[i].Order != points[j].Order {
			return points[i].Order < points[j].Order
		}
		return points[i].ID < points[j].ID
	})
}

func sortArcs(arcs []plot.Arc) {
	sort.SliceStable(arcs, func(i, j int) bool {
		if arcs[i].Order != arcs[j].Order {
			return arcs[i].Order < arcs[j].Order
		}
		return arcs[i].ID < arcs[j].ID
	})
}
