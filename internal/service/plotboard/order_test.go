package plotboard

import (
	"math/rand"
	"testing"

	"inkwell/internal/domain/models/plot"
)

func f64(v float64) *float64 { return &v }

func TestOrderBetween(t *testing.T) {
	tests := []struct {
		name          string
		before, after *float64
		want          float64
	}{
		{"empty list", nil, nil, 0},
		{"head", nil, f64(2), 1},
		{"tail", f64(4), nil, 5},
		{"between", f64(0), f64(1), 0.5},
		{"negative neighbors", f64(-3), f64(-1), -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OrderBetween(tt.before, tt.after); got != tt.want {
				t.Errorf("OrderBetween = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrderBetween_StaysBetweenNeighbors(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 1000; i++ {
		a := r.Float64()*100 - 50
		b := a + 1e-6 + r.Float64()*10
		got := OrderBetween(&a, &b)
		if !(a < got && got < b) {
			t.Fatalf("OrderBetween(%v, %v) = %v", a, b, got)
		}
		if head := OrderBetween(nil, &a); !(head < a) {
			t.Fatalf("head insert before %v gave %v", a, head)
		}
	}
}

func TestOrderBetween_RepeatedHalving(t *testing.T) {
	lo, hi := 0.0, 1.0
	for i := 0; i < 30; i++ {
		hi = OrderBetween(&lo, &hi)
		if !(lo < hi) {
			t.Fatalf("gap closed after %d insertions", i)
		}
	}
}

func TestNeighbors(t *testing.T) {
	list := []plot.Point{{ID: "a", Order: 0}, {ID: "b", Order: 1}}

	if before, after := neighbors(list, 0); before != nil || *after != 0 {
		t.Errorf("index 0 = %v, %v", before, after)
	}
	if before, after := neighbors(list, 1); *before != 0 || *after != 1 {
		t.Errorf("index 1 = %v, %v", *before, *after)
	}
	if before, after := neighbors(list, 2); *before != 1 || after != nil {
		t.Errorf("index 2 = %v, %v", before, after)
	}
	if before, after := neighbors(nil, 0); before != nil || after != nil {
		t.Error("empty list has neighbors")
	}
}
