// Package address derives hierarchical-deterministic coordinates in
// the Poincaré ball. Identical (seed, path) input always yields the
// bit-identical coordinate, so addresses survive restarts without
// being persisted.
package address

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"

	"golang.org/x/crypto/hkdf"

	"github.com/calder-labs/hypermem/internal/hyperbolic"
	"github.com/calder-labs/hypermem/internal/model"
)

// baseStep is the first segment's step length. Each deeper segment
// halves the step, so the total norm stays below baseStep/(1-1/2) < 1
// and children land near their parent.
const (
	baseStep  = 0.45
	stepDecay = 0.5
)

// Deriver derives and tracks hyperbolic addresses from a root seed.
type Deriver struct {
	seed     []byte
	dim      int
	assigned map[string]model.Address // entity id -> address
	occupied map[string]string        // coordinate key -> entity id
}

// NewDeriver creates a deriver for the given root seed and ball
// dimension.
func NewDeriver(seed []byte, dim int) *Deriver {
	return &Deriver{
		seed:     append([]byte(nil), seed...),
		dim:      dim,
		assigned: make(map[string]model.Address),
		occupied: make(map[string]string),
	}
}

// DeriveAddress returns the coordinate for a derivation path. Each
// segment moves the point a deterministic step from its parent, the
// step shrinking geometrically with depth.
func (d *Deriver) DeriveAddress(path []string) hyperbolic.Point {
	point := make(hyperbolic.Point, d.dim)
	step := baseStep
	for depth, seg := range path {
		dir := d.direction(seg, depth)
		for i := range point {
			point[i] += dir[i] * step
		}
		step *= stepDecay
	}
	return point
}

// direction derives a deterministic unit vector for one path segment.
func (d *Deriver) direction(segment string, depth int) hyperbolic.Point {
	salt := []byte("hypermem/address/" + strconv.Itoa(depth))
	r := hkdf.New(sha256.New, d.seed, salt, []byte(segment))
	buf := make([]byte, 8*d.dim)
	if _, err := io.ReadFull(r, buf); err != nil {
		// HKDF expansion of 8*dim bytes cannot fail at usable dims.
		panic(fmt.Sprintf("hkdf expand: %v", err))
	}
	dir := make(hyperbolic.Point, d.dim)
	for i := range dir {
		u := binary.BigEndian.Uint64(buf[8*i:])
		// Map to (-1, 1).
		dir[i] = float64(int64(u))/float64(1<<63) + 1e-12
	}
	n := hyperbolic.Norm(dir)
	for i := range dir {
		dir[i] /= n
	}
	return dir
}

// GetOrAssign returns the entity's address, deriving it on first use.
// The entity id is part of the derivation material, so distinct
// entities get distinct coordinates; if a coordinate is somehow
// already occupied by another entity the call fails with an address
// collision and assigns nothing.
func (d *Deriver) GetOrAssign(entityID string) (model.Address, error) {
	if a, ok := d.assigned[entityID]; ok {
		return a.Clone(), nil
	}
	path := []string{"identity", entityID}
	addr := model.Address{Point: d.DeriveAddress(path), Path: path}
	if err := d.Bind(entityID, addr); err != nil {
		return model.Address{}, err
	}
	return addr.Clone(), nil
}

// Bind records an existing entity→address assignment, e.g. when
// rebuilding from a restored state. Fails with an address collision if
// the coordinate belongs to a different entity.
func (d *Deriver) Bind(entityID string, addr model.Address) error {
	key := coordKey(addr.Point)
	if owner, ok := d.occupied[key]; ok && owner != entityID {
		return fmt.Errorf("%w: entities %q and %q derive the same coordinate", model.ErrAddressCollision, owner, entityID)
	}
	d.assigned[entityID] = addr.Clone()
	d.occupied[key] = entityID
	return nil
}

// Release drops an entity's assignment. The coordinate becomes
// derivable again, which is safe because ids are tombstoned above this
// layer and never reused.
func (d *Deriver) Release(entityID string) {
	a, ok := d.assigned[entityID]
	if !ok {
		return
	}
	delete(d.occupied, coordKey(a.Point))
	delete(d.assigned, entityID)
}

// coordKey is an exact bit-level key for a coordinate.
func coordKey(p hyperbolic.Point) string {
	buf := make([]byte, 8*len(p))
	for i, x := range p {
		binary.BigEndian.PutUint64(buf[8*i:], math.Float64bits(x))
	}
	return string(buf)
}
