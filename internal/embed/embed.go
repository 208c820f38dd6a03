// Package embed maps memory content and context onto Poincaré ball
// coordinates. The projection is deterministic: identical
// content+context always yields the bit-identical point, which the
// store's embedding-stability contract requires and no remote
// embedding model can guarantee.
package embed

import (
	"hash/fnv"
	"sort"
	"strings"

	"github.com/calder-labs/hypermem/internal/hyperbolic"
)

// Projector produces a ball coordinate from memory content and its
// context mapping.
type Projector interface {
	Project(content string, context map[string]string) hyperbolic.Point
	Dim() int
}

// HashProjector hashes tokens into a fixed number of signed buckets
// (FNV-1a feature hashing). The bucket vector gives the direction;
// token mass gives a radius saturating below the ball boundary, so
// entries sharing vocabulary land near each other.
type HashProjector struct {
	dim       int
	maxRadius float64
}

// NewHashProjector creates a projector for the given dimension.
func NewHashProjector(dim int) *HashProjector {
	return &HashProjector{dim: dim, maxRadius: 0.95}
}

// Dim returns the projection dimension.
func (p *HashProjector) Dim() int { return p.dim }

// Project computes the coordinate for content+context.
func (p *HashProjector) Project(content string, context map[string]string) hyperbolic.Point {
	tokens := tokenize(content, context)
	vec := make(hyperbolic.Point, p.dim)
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		bucket := int(sum % uint64(p.dim))
		sign := 1.0
		if sum&(1<<63) != 0 {
			sign = -1.0
		}
		vec[bucket] += sign
	}
	n := hyperbolic.Norm(vec)
	if n == 0 {
		vec[0] = 1
		n = 1
	}
	mass := float64(len(tokens))
	radius := p.maxRadius * mass / (mass + 8)
	if radius == 0 {
		radius = p.maxRadius / 16
	}
	for i := range vec {
		vec[i] = vec[i] / n * radius
	}
	return vec
}

// tokenize lowercases and splits content, then appends context pairs
// in sorted key order so map iteration cannot perturb the result.
func tokenize(content string, context map[string]string) []string {
	tokens := strings.Fields(strings.ToLower(content))
	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		tokens = append(tokens, "ctx:"+strings.ToLower(k)+"="+strings.ToLower(context[k]))
	}
	return tokens
}
