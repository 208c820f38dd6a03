package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calder-labs/hypermem/internal/address"
	"github.com/calder-labs/hypermem/internal/hyperbolic"
	"github.com/calder-labs/hypermem/internal/model"
)

// CreateCheckpoint appends an immutable deep copy of the current
// state under a name. Checkpoints are never mutated afterwards.
func (c *Core) CreateCheckpoint(name, description string, metadata map[string]string) (*model.Checkpoint, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: checkpoint name is required", model.ErrValidation)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var meta map[string]string
	if len(metadata) > 0 {
		meta = make(map[string]string, len(metadata))
		for k, v := range metadata {
			meta[k] = v
		}
	}
	cp := &model.Checkpoint{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Metadata:    meta,
		CreatedAt:   time.Now().UTC(),
		State:       c.state.Snapshot(),
	}
	c.state.Checkpoints = append(c.state.Checkpoints, cp)
	c.log.Info("checkpoint created", zap.String("id", cp.ID), zap.String("name", name))
	return cp.Clone(), nil
}

// ListCheckpoints returns all checkpoints, oldest first.
func (c *Core) ListCheckpoints() []*model.Checkpoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*model.Checkpoint, len(c.state.Checkpoints))
	for i, cp := range c.state.Checkpoints {
		out[i] = cp.Clone()
	}
	return out
}

// GetLastCheckpoint returns the most recent checkpoint.
func (c *Core) GetLastCheckpoint() (*model.Checkpoint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.state.Checkpoints) == 0 {
		return nil, fmt.Errorf("%w: no checkpoints", model.ErrNotFound)
	}
	return c.state.Checkpoints[len(c.state.Checkpoints)-1].Clone(), nil
}

// RestoreCheckpoint replaces the live state with a checkpoint's
// snapshot. The checkpoint history itself is preserved.
func (c *Core) RestoreCheckpoint(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var target *model.Checkpoint
	for _, cp := range c.state.Checkpoints {
		if cp.ID == id {
			target = cp
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: checkpoint %q", model.ErrNotFound, id)
	}

	next := target.State.Clone()
	next.Checkpoints = c.state.Checkpoints
	index, deriver, byID, err := c.rebuild(next)
	if err != nil {
		return err
	}
	c.adopt(next, index, deriver, byID)
	c.log.Info("checkpoint restored", zap.String("id", id))
	return nil
}

// GetState returns a read-only deep copy of the system state.
func (c *Core) GetState() *model.SystemState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Clone()
}

// SaveState persists the full state: snapshot under the read lock,
// then encrypt through the security gate and write through storage
// outside it.
func (c *Core) SaveState(ctx context.Context) error {
	c.mu.RLock()
	snap := c.state.Clone()
	c.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	enc, err := c.gate.Encrypt(data)
	if err != nil {
		return fmt.Errorf("encrypt state: %w", err)
	}
	if err := c.store.Put(ctx, c.cfg.StateKey, enc); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	c.log.Info("state saved", zap.String("key", c.cfg.StateKey), zap.Int("bytes", len(enc)))
	return nil
}

// RestoreState loads, decrypts and validates a persisted snapshot,
// then atomically replaces the in-memory state. Any failure — missing
// key, decrypt error, malformed document, schema version mismatch —
// leaves the prior state completely untouched.
func (c *Core) RestoreState(ctx context.Context) error {
	enc, err := c.store.Get(ctx, c.cfg.StateKey)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	data, err := c.gate.Decrypt(enc)
	if err != nil {
		return fmt.Errorf("decrypt state: %w", err)
	}

	next := model.NewSystemState()
	if err := json.Unmarshal(data, next); err != nil {
		return fmt.Errorf("%w: decode state: %v", model.ErrValidation, err)
	}
	if next.SchemaVersion != model.SchemaVersion {
		return fmt.Errorf("%w: snapshot version %d, engine version %d",
			model.ErrIncompatibleStateVersion, next.SchemaVersion, model.SchemaVersion)
	}
	ensureMaps(next)

	index, deriver, byID, err := c.rebuild(next)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.adopt(next, index, deriver, byID)
	c.mu.Unlock()
	c.log.Info("state restored",
		zap.Int("identities", len(next.Identities)),
		zap.Int("indexed", index.Len()))
	return nil
}

// rebuild constructs the derived structures for a candidate state
// without touching the live ones, validating every embedding and
// address before anything is committed.
func (c *Core) rebuild(st *model.SystemState) (*hyperbolic.Index, *address.Deriver, map[string]*model.MemoryEntry, error) {
	index := hyperbolic.NewIndex(c.cfg.Dimension)
	deriver := address.NewDeriver([]byte(c.cfg.RootSeed), c.cfg.Dimension)
	byID := make(map[string]*model.MemoryEntry)

	for id, ident := range st.Identities {
		if err := deriver.Bind(id, ident.Address); err != nil {
			return nil, nil, nil, err
		}
		if err := index.Insert(id, ident.Address.Point); err != nil {
			return nil, nil, nil, fmt.Errorf("rebuild identity %s: %w", id, err)
		}
	}
	for _, tier := range model.AllTiers {
		for _, e := range st.Memories[tier] {
			byID[e.ID] = e
			if !e.Live() {
				continue
			}
			if err := index.Insert(e.ID, e.Embedding); err != nil {
				return nil, nil, nil, fmt.Errorf("rebuild entry %s: %w", e.ID, err)
			}
		}
	}
	return index, deriver, byID, nil
}

// adopt swaps in a rebuilt state. Caller holds the write lock.
func (c *Core) adopt(st *model.SystemState, index *hyperbolic.Index, deriver *address.Deriver, byID map[string]*model.MemoryEntry) {
	c.state = st
	c.index = index
	c.deriver = deriver
	c.byID = byID
}

func ensureMaps(st *model.SystemState) {
	if st.Identities == nil {
		st.Identities = make(map[string]*model.Identity)
	}
	if st.Tombstones == nil {
		st.Tombstones = make(map[string]bool)
	}
	if st.Memories == nil {
		st.Memories = make(map[model.Tier][]*model.MemoryEntry)
	}
}

// TierStats summarizes one tier by lifecycle state.
type TierStats struct {
	Active       int `json:"active"`
	Consolidated int `json:"consolidated"`
	Compressed   int `json:"compressed"`
	Retired      int `json:"retired"`
}

// Stats is a read-only summary of the system state.
type Stats struct {
	Identities  int                      `json:"identities"`
	Indexed     int                      `json:"indexed"`
	Tiers       map[model.Tier]TierStats `json:"tiers"`
	Learning    int                      `json:"learning_records"`
	Checkpoints int                      `json:"checkpoints"`
}

// StatsSummary computes current counts.
func (c *Core) StatsSummary() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Identities:  len(c.state.Identities),
		Indexed:     c.index.Len(),
		Learning:    len(c.state.Learning),
		Checkpoints: len(c.state.Checkpoints),
		Tiers:       make(map[model.Tier]TierStats),
	}
	for _, tier := range model.AllTiers {
		var ts TierStats
		for _, e := range c.state.Memories[tier] {
			switch e.State {
			case model.StateActive:
				ts.Active++
			case model.StateConsolidated:
				ts.Consolidated++
			case model.StateCompressed:
				ts.Compressed++
			case model.StateRetired:
				ts.Retired++
			}
		}
		if ts != (TierStats{}) {
			s.Tiers[tier] = ts
		}
	}
	return s
}
