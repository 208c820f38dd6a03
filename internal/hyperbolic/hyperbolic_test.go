package hyperbolic

import (
	"errors"
	"math"
	"testing"

	"github.com/calder-labs/hypermem/internal/model"
)

var samples = []Point{
	{0, 0},
	{0.1, 0},
	{0.2, 0},
	{-0.5, 0},
	{0.3, 0.4},
	{-0.2, -0.6},
	{0.7, 0.1},
}

func TestDistanceAxioms(t *testing.T) {
	for i, u := range samples {
		for j, v := range samples {
			d := Distance(u, v)
			if d < 0 {
				t.Errorf("d(%d,%d) = %v, negative", i, j, d)
			}
			if got := Distance(v, u); got != d {
				t.Errorf("asymmetric: d(%d,%d)=%v, d(%d,%d)=%v", i, j, d, j, i, got)
			}
			if i == j && d != 0 {
				t.Errorf("d(%d,%d) = %v, want 0", i, j, d)
			}
			if i != j && d == 0 {
				t.Errorf("d(%d,%d) = 0 for distinct points", i, j)
			}
		}
	}
}

func TestTriangleInequality(t *testing.T) {
	for i, u := range samples {
		for j, v := range samples {
			for k, w := range samples {
				if Distance(u, w) > Distance(u, v)+Distance(v, w)+1e-12 {
					t.Errorf("triangle violated on (%d,%d,%d)", i, j, k)
				}
			}
		}
	}
}

func TestDistanceGrowsTowardBoundary(t *testing.T) {
	// The same Euclidean gap costs more hyperbolic distance near the rim.
	inner := Distance(Point{0, 0}, Point{0.1, 0})
	outer := Distance(Point{0.85, 0}, Point{0.95, 0})
	if outer <= inner {
		t.Errorf("expected boundary stretch: inner %v, outer %v", inner, outer)
	}
}

func TestIndexNearestOrdering(t *testing.T) {
	ix := NewIndex(2)
	for id, p := range map[string]Point{
		"a": {0.1, 0},
		"b": {0.2, 0},
		"c": {-0.5, 0},
	} {
		if err := ix.Insert(id, p); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	got := ix.Nearest(Point{0, 0}, 3)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %d hits, got %d", len(want), len(got))
	}
	for i, n := range got {
		if n.ID != want[i] {
			t.Errorf("position %d: got %s, want %s", i, n.ID, want[i])
		}
	}
	if got[0].Distance >= got[1].Distance || got[1].Distance >= got[2].Distance {
		t.Error("distances not ascending")
	}
}

func TestIndexTieBreakByInsertionOrder(t *testing.T) {
	ix := NewIndex(2)
	p := Point{0.3, 0}
	ix.Insert("second-point-first-inserted", p)
	ix.Insert("same-point-later", p)

	got := ix.Nearest(Point{0, 0}, 2)
	if got[0].ID != "second-point-first-inserted" {
		t.Errorf("tie should go to the earlier insertion, got %s first", got[0].ID)
	}
}

func TestIndexErrors(t *testing.T) {
	ix := NewIndex(2)
	if err := ix.Insert("a", Point{0.1, 0}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := ix.Insert("a", Point{0.2, 0}); !errors.Is(err, model.ErrDuplicateID) {
		t.Errorf("expected duplicate id, got %v", err)
	}
	if err := ix.Remove("missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if err := ix.Insert("edge", Point{1.0, 0}); !errors.Is(err, model.ErrValidation) {
		t.Errorf("expected validation error for boundary point, got %v", err)
	}
	if err := ix.Insert("dim", Point{0.1, 0, 0}); !errors.Is(err, model.ErrValidation) {
		t.Errorf("expected validation error for dimension mismatch, got %v", err)
	}
}

func TestWithinRadius(t *testing.T) {
	ix := NewIndex(2)
	ix.Insert("a", Point{0.1, 0})
	ix.Insert("b", Point{0.2, 0})
	ix.Insert("c", Point{0.5, 0})

	got := ix.WithinRadius(Point{0, 0}, 0.5)
	if len(got) != 2 {
		t.Fatalf("expected 2 hits within 0.5, got %d", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("unexpected hits: %v", got)
	}
}

func TestRemoveExcludesFromQueries(t *testing.T) {
	ix := NewIndex(2)
	ix.Insert("a", Point{0.1, 0})
	ix.Insert("b", Point{0.2, 0})
	if err := ix.Remove("a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got := ix.Nearest(Point{0, 0}, 10)
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("expected only b, got %v", got)
	}
}

func TestWeightedCentroid(t *testing.T) {
	mid := WeightedCentroid([]Point{{0.8, 0}, {-0.8, 0}}, []float64{1, 1})
	if math.Abs(mid[0]) > 1e-12 || math.Abs(mid[1]) > 1e-12 {
		t.Errorf("equal-weight centroid of opposites should be the origin, got %v", mid)
	}

	skew := WeightedCentroid([]Point{{0.8, 0}, {-0.8, 0}}, []float64{3, 1})
	if skew[0] <= 0 {
		t.Errorf("centroid should lean toward the heavier point, got %v", skew)
	}
	if !Inside(skew) {
		t.Errorf("centroid left the ball: %v", skew)
	}
}
