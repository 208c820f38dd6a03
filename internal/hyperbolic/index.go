package hyperbolic

import (
	"fmt"
	"sort"

	"github.com/calder-labs/hypermem/internal/model"
)

// Neighbor is one index hit with its exact hyperbolic distance to the
// query point.
type Neighbor struct {
	ID       string
	Distance float64
}

type item struct {
	point Point
	seq   uint64
}

// Index stores points keyed by id and answers exact nearest-neighbor
// and radius queries by linear scan. Consolidation correctness depends
// on exact distance ordering, so no approximate structure is used; the
// expected scale is thousands of points.
//
// The index is not goroutine safe; the owning core serializes access.
type Index struct {
	dim   int
	seq   uint64
	items map[string]item
}

// NewIndex creates an index for points of the given dimension.
func NewIndex(dim int) *Index {
	return &Index{dim: dim, items: make(map[string]item)}
}

// Dim returns the configured point dimension.
func (ix *Index) Dim() int { return ix.dim }

// Len returns the number of indexed points.
func (ix *Index) Len() int { return len(ix.items) }

// Insert adds a point under id. Fails if the id is already present or
// the point is malformed.
func (ix *Index) Insert(id string, p Point) error {
	if len(p) != ix.dim {
		return fmt.Errorf("%w: point dimension %d, index dimension %d", model.ErrValidation, len(p), ix.dim)
	}
	if !Inside(p) {
		return fmt.Errorf("%w: point norm %.6f outside the open ball", model.ErrValidation, Norm(p))
	}
	if _, ok := ix.items[id]; ok {
		return fmt.Errorf("%w: index id %q", model.ErrDuplicateID, id)
	}
	ix.seq++
	ix.items[id] = item{point: append(Point(nil), p...), seq: ix.seq}
	return nil
}

// Remove deletes the point under id.
func (ix *Index) Remove(id string) error {
	if _, ok := ix.items[id]; !ok {
		return fmt.Errorf("%w: index id %q", model.ErrNotFound, id)
	}
	delete(ix.items, id)
	return nil
}

// Point returns the stored point for id.
func (ix *Index) Point(id string) (Point, bool) {
	it, ok := ix.items[id]
	if !ok {
		return nil, false
	}
	return append(Point(nil), it.point...), true
}

// Nearest returns the k closest points to q, ties broken by insertion
// order.
func (ix *Index) Nearest(q Point, k int) []Neighbor {
	if k <= 0 {
		return nil
	}
	hits := ix.scan(q)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// WithinRadius returns all points within hyperbolic distance r of q,
// closest first.
func (ix *Index) WithinRadius(q Point, r float64) []Neighbor {
	var out []Neighbor
	for _, n := range ix.scan(q) {
		if n.Distance > r {
			break
		}
		out = append(out, n)
	}
	return out
}

func (ix *Index) scan(q Point) []Neighbor {
	type hit struct {
		Neighbor
		seq uint64
	}
	hits := make([]hit, 0, len(ix.items))
	for id, it := range ix.items {
		hits = append(hits, hit{Neighbor{ID: id, Distance: Distance(q, it.point)}, it.seq})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].seq < hits[j].seq
	})
	out := make([]Neighbor, len(hits))
	for i, h := range hits {
		out[i] = h.Neighbor
	}
	return out
}
