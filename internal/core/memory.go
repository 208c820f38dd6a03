package core

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/calder-labs/hypermem/internal/hyperbolic"
	"github.com/calder-labs/hypermem/internal/model"
)

// EntryParams holds parameters for storing a memory.
type EntryParams struct {
	Tier     model.Tier
	Content  string
	Metadata model.Metadata
}

// Query selects and orders memories for retrieval. With Near set,
// results come closest first, capped to Radius when positive;
// otherwise newest first.
type Query struct {
	Tier             model.Tier
	ContentSubstring string
	Near             hyperbolic.Point
	Radius           float64
	Limit            int
}

// StoreMemory validates, embeds and stores one entry, returning its
// id. The embedding is a deterministic function of content+context.
// Crossing a configured tier threshold triggers a consolidation or
// compression pass inside the same transaction.
func (c *Core) StoreMemory(p EntryParams) (string, error) {
	if !model.ValidTiers[p.Tier] {
		return "", fmt.Errorf("%w: tier %q", model.ErrValidation, p.Tier)
	}
	if strings.TrimSpace(p.Content) == "" {
		return "", fmt.Errorf("%w: content is required", model.ErrValidation)
	}
	if err := p.Metadata.Validate(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	point := c.proj.Project(p.Content, p.Metadata.Context)
	id := c.newEntryID()
	if err := c.index.Insert(id, point); err != nil {
		return "", fmt.Errorf("index entry: %w", err)
	}

	now := time.Now().UTC()
	entry := &model.MemoryEntry{
		ID:             id,
		Tier:           p.Tier,
		Content:        p.Content,
		Metadata:       p.Metadata,
		Embedding:      point,
		State:          model.StateActive,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	c.state.Memories[p.Tier] = append(c.state.Memories[p.Tier], entry)
	c.byID[id] = entry

	c.maybeTrigger(p.Tier)
	return id, nil
}

// maybeTrigger runs threshold-driven consolidation and compression
// passes. Caller holds the write lock.
func (c *Core) maybeTrigger(tier model.Tier) {
	live := len(c.liveEntries(tier))
	if t := c.cfg.Consolidation.Threshold; t > 0 && live > t {
		res, err := c.consolidateTier(tier)
		if err != nil {
			c.log.Warn("threshold consolidation failed", zap.String("tier", string(tier)), zap.Error(err))
		} else if res.Merged > 0 {
			c.log.Info("threshold consolidation", zap.String("tier", string(tier)), zap.Int("merged", res.Merged))
		}
	}
	if t := c.cfg.Compression.Threshold; t > 0 && len(c.liveEntries(tier)) > t {
		res, err := c.compressTier(tier)
		if err != nil {
			c.log.Warn("threshold compression failed", zap.String("tier", string(tier)), zap.Error(err))
		} else if res.Compressed > 0 {
			c.log.Info("threshold compression", zap.String("tier", string(tier)), zap.Int("compressed", res.Compressed))
		}
	}
}

// GetMemory returns the entry with the given id, retired included so
// audits can follow consolidation chains.
func (c *Core) GetMemory(id string) (*model.MemoryEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e := c.lookup(id)
	if e == nil {
		return nil, fmt.Errorf("%w: memory %q", model.ErrNotFound, id)
	}
	return e.Clone(), nil
}

// RetrieveMemory returns live entries matching the query, most
// relevant first, truncated to the limit. Retired entries never
// appear; compressed entries are matched on their decoded content.
func (c *Core) RetrieveMemory(q Query) ([]*model.MemoryEntry, error) {
	if q.Tier != "" && !model.ValidTiers[q.Tier] {
		return nil, fmt.Errorf("%w: tier %q", model.ErrValidation, q.Tier)
	}
	if q.Near != nil {
		if len(q.Near) != c.cfg.Dimension {
			return nil, fmt.Errorf("%w: query point dimension %d, want %d", model.ErrValidation, len(q.Near), c.cfg.Dimension)
		}
		if !hyperbolic.Inside(q.Near) {
			return nil, fmt.Errorf("%w: query point norm %.6f outside the open ball", model.ErrValidation, hyperbolic.Norm(q.Near))
		}
	}
	if q.Radius < 0 {
		return nil, fmt.Errorf("%w: radius %v is negative", model.ErrValidation, q.Radius)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	sub := strings.ToLower(q.ContentSubstring)
	var hits []*model.MemoryEntry
	for _, tier := range tiersFor(q.Tier) {
		for _, e := range c.state.Memories[tier] {
			if !e.Live() {
				continue
			}
			if sub != "" {
				content := e.Content
				if e.State == model.StateCompressed {
					decoded, err := DecodePayload(e)
					if err != nil {
						return nil, fmt.Errorf("match compressed entry %s: %w", e.ID, err)
					}
					content = decoded
				}
				if !strings.Contains(strings.ToLower(content), sub) {
					continue
				}
			}
			hits = append(hits, e)
		}
	}

	if q.Near != nil {
		// Every live entry is indexed, so the index's exact ordering
		// (ties by insertion) ranks the hits; identities and entries
		// outside the filtered set fall out of the id lookup.
		byID := make(map[string]*model.MemoryEntry, len(hits))
		for _, e := range hits {
			byID[e.ID] = e
		}
		var neighbors []hyperbolic.Neighbor
		if q.Radius > 0 {
			neighbors = c.index.WithinRadius(q.Near, q.Radius)
		} else {
			neighbors = c.index.Nearest(q.Near, c.index.Len())
		}
		ranked := make([]*model.MemoryEntry, 0, len(hits))
		for _, n := range neighbors {
			if e, ok := byID[n.ID]; ok {
				ranked = append(ranked, e)
			}
		}
		hits = ranked
	} else {
		sort.SliceStable(hits, func(i, j int) bool {
			return hits[i].CreatedAt.After(hits[j].CreatedAt)
		})
	}

	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	out := make([]*model.MemoryEntry, len(hits))
	for i, e := range hits {
		out[i] = e.Clone()
	}
	return out, nil
}

// DeleteMemory retires the entry and removes it from the index.
func (c *Core) DeleteMemory(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.lookup(id)
	if e == nil || !e.Live() {
		return fmt.Errorf("%w: memory %q", model.ErrNotFound, id)
	}
	if err := c.index.Remove(id); err != nil {
		return fmt.Errorf("unindex entry: %w", err)
	}
	e.State = model.StateRetired
	return nil
}

// RecordLearning appends a learning record linked to a semantic
// memory.
func (c *Core) RecordLearning(concept string, score float64, memoryID string) error {
	if concept == "" {
		return fmt.Errorf("%w: concept is required", model.ErrValidation)
	}
	if score < 0 || score > 1 {
		return fmt.Errorf("%w: score %v outside [0,1]", model.ErrValidation, score)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.lookup(memoryID)
	if e == nil {
		return fmt.Errorf("%w: memory %q", model.ErrNotFound, memoryID)
	}
	if e.Tier != model.TierSemantic {
		return fmt.Errorf("%w: learning records link to semantic memories, %q is %s", model.ErrValidation, memoryID, e.Tier)
	}
	c.state.Learning = append(c.state.Learning, model.LearningRecord{
		Concept:    concept,
		Score:      score,
		MemoryID:   memoryID,
		RecordedAt: time.Now().UTC(),
	})
	return nil
}

// LearningProgress returns the recorded learning history.
func (c *Core) LearningProgress() []model.LearningRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.LearningRecord(nil), c.state.Learning...)
}
