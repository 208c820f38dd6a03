// Package model defines the core domain types for the hypermem engine.
package model

import (
	"fmt"
	"time"
)

// Tier is a memory tier. Each tier has its own retention and
// consolidation policy.
type Tier string

const (
	TierEpisodic   Tier = "episodic"
	TierSemantic   Tier = "semantic"
	TierProcedural Tier = "procedural"
	TierWorking    Tier = "working"
	TierMeta       Tier = "meta"
)

// ValidTiers are the allowed memory tiers.
var ValidTiers = map[Tier]bool{
	TierEpisodic:   true,
	TierSemantic:   true,
	TierProcedural: true,
	TierWorking:    true,
	TierMeta:       true,
}

// AllTiers lists the tiers in a stable order.
var AllTiers = []Tier{TierEpisodic, TierSemantic, TierProcedural, TierWorking, TierMeta}

// EntryState is a memory entry's lifecycle state.
type EntryState string

const (
	StateActive       EntryState = "active"
	StateConsolidated EntryState = "consolidated"
	StateCompressed   EntryState = "compressed"
	StateRetired      EntryState = "retired"
)

// Metadata carries the scored annotations attached to a memory entry.
// Quality, Confidence and Importance must lie in [0,1].
type Metadata struct {
	Source     string            `json:"source,omitempty"`
	Quality    float64           `json:"quality"`
	Confidence float64           `json:"confidence"`
	Importance float64           `json:"importance"`
	Tags       []string          `json:"tags,omitempty"`
	Context    map[string]string `json:"context,omitempty"`
	Custom     map[string]string `json:"custom,omitempty"`
}

// Validate checks that all metadata scores are unit-interval values.
func (m Metadata) Validate() error {
	for name, v := range map[string]float64{
		"quality":    m.Quality,
		"confidence": m.Confidence,
		"importance": m.Importance,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s %v outside [0,1]", ErrValidation, name, v)
		}
	}
	return nil
}

// CompressionInfo records how a compressed entry's payload was produced.
type CompressionInfo struct {
	Algorithm     string  `json:"algorithm"`
	Level         int     `json:"level"`
	Ratio         float64 `json:"ratio"`
	OriginalBytes int     `json:"original_bytes"`
}

// MemoryEntry is one stored memory. The embedding is a point in the
// Poincaré ball and never moves after the entry is created; compression
// replaces the content payload but leaves the embedding untouched.
type MemoryEntry struct {
	ID               string           `json:"id"`
	Tier             Tier             `json:"tier"`
	Content          string           `json:"content,omitempty"`
	Payload          []byte           `json:"payload,omitempty"`
	Metadata         Metadata         `json:"metadata"`
	Embedding        []float64        `json:"embedding"`
	State            EntryState       `json:"state"`
	ConsolidatedFrom []string         `json:"consolidated_from,omitempty"`
	Compression      *CompressionInfo `json:"compression,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	LastAccessedAt   time.Time        `json:"last_accessed_at"`
}

// Live reports whether the entry may appear in retrieval results.
func (e *MemoryEntry) Live() bool {
	return e.State != StateRetired
}

// Clone returns a deep copy of the entry.
func (e *MemoryEntry) Clone() *MemoryEntry {
	c := *e
	c.Embedding = append([]float64(nil), e.Embedding...)
	c.Payload = append([]byte(nil), e.Payload...)
	c.ConsolidatedFrom = append([]string(nil), e.ConsolidatedFrom...)
	c.Metadata = e.Metadata.clone()
	if e.Compression != nil {
		ci := *e.Compression
		c.Compression = &ci
	}
	return &c
}

func (m Metadata) clone() Metadata {
	c := m
	c.Tags = append([]string(nil), m.Tags...)
	c.Context = cloneStringMap(m.Context)
	c.Custom = cloneStringMap(m.Custom)
	return c
}

func cloneStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// LearningRecord links a tracked concept and performance score to the
// semantic memory that captured it.
type LearningRecord struct {
	Concept    string    `json:"concept"`
	Score      float64   `json:"score"`
	MemoryID   string    `json:"memory_id"`
	RecordedAt time.Time `json:"recorded_at"`
}
