package model

import "time"

// SchemaVersion is the persisted state layout version. RestoreState
// refuses snapshots written under a different version.
const SchemaVersion = 1

// Checkpoint is a named, immutable snapshot of the full system state.
// The snapshot itself excludes the checkpoint list, so checkpoints do
// not nest.
type Checkpoint struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	State       *SystemState      `json:"state"`
}

// Clone returns a deep copy of the checkpoint.
func (c *Checkpoint) Clone() *Checkpoint {
	cp := *c
	cp.Metadata = cloneStringMap(c.Metadata)
	if c.State != nil {
		cp.State = c.State.Clone()
	}
	return &cp
}

// SystemState is the single authoritative aggregate a core instance
// owns. It is mutated only through core operations.
type SystemState struct {
	SchemaVersion int                     `json:"schema_version"`
	Identities    map[string]*Identity    `json:"identities"`
	Tombstones    map[string]bool         `json:"tombstones,omitempty"`
	Memories      map[Tier][]*MemoryEntry `json:"memories"`
	Learning      []LearningRecord        `json:"learning_progress,omitempty"`
	Checkpoints   []*Checkpoint           `json:"checkpoints,omitempty"`
}

// NewSystemState returns an empty state at the current schema version.
func NewSystemState() *SystemState {
	return &SystemState{
		SchemaVersion: SchemaVersion,
		Identities:    make(map[string]*Identity),
		Tombstones:    make(map[string]bool),
		Memories:      make(map[Tier][]*MemoryEntry),
	}
}

// Clone returns a deep copy of the whole state.
func (s *SystemState) Clone() *SystemState {
	c := &SystemState{
		SchemaVersion: s.SchemaVersion,
		Identities:    make(map[string]*Identity, len(s.Identities)),
		Tombstones:    make(map[string]bool, len(s.Tombstones)),
		Memories:      make(map[Tier][]*MemoryEntry, len(s.Memories)),
		Learning:      append([]LearningRecord(nil), s.Learning...),
	}
	for id, ident := range s.Identities {
		c.Identities[id] = ident.Clone()
	}
	for id := range s.Tombstones {
		c.Tombstones[id] = true
	}
	for tier, entries := range s.Memories {
		out := make([]*MemoryEntry, len(entries))
		for i, e := range entries {
			out[i] = e.Clone()
		}
		c.Memories[tier] = out
	}
	for _, cp := range s.Checkpoints {
		c.Checkpoints = append(c.Checkpoints, cp.Clone())
	}
	return c
}

// Snapshot returns a deep copy with the checkpoint list stripped,
// suitable for embedding in a new checkpoint.
func (s *SystemState) Snapshot() *SystemState {
	c := s.Clone()
	c.Checkpoints = nil
	return c
}
