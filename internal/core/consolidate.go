package core

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/calder-labs/hypermem/internal/hyperbolic"
	"github.com/calder-labs/hypermem/internal/model"
)

// ConsolidateResult reports the effect of a consolidation pass.
type ConsolidateResult struct {
	Merged int `json:"merged"`
}

// Consolidate merges related active entries within each selected tier
// per the configured strategy. Only active entries are candidates, so
// a second pass with no intervening stores is a fixed point. A pass
// with no eligible candidates reports zero merges and no error.
func (c *Core) Consolidate(tier model.Tier) (ConsolidateResult, error) {
	if tier != "" && !model.ValidTiers[tier] {
		return ConsolidateResult{}, fmt.Errorf("%w: tier %q", model.ErrValidation, tier)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var total ConsolidateResult
	for _, t := range tiersFor(tier) {
		res, err := c.consolidateTier(t)
		total.Merged += res.Merged
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// consolidateTier runs one tier's pass. Caller holds the write lock;
// each group's merge completes before the lock is ever released, so
// readers never observe a partially merged group.
func (c *Core) consolidateTier(tier model.Tier) (ConsolidateResult, error) {
	active := c.activeEntries(tier)

	var groups [][]*model.MemoryEntry
	switch c.cfg.Consolidation.Strategy {
	case "temporal":
		groups = temporalGroups(active, c.cfg.Consolidation.Window, c.cfg.Consolidation.Epsilon)
	case "semantic":
		groups = semanticGroups(active, c.cfg.Consolidation.KNN, c.cfg.Consolidation.Epsilon)
	default:
		return ConsolidateResult{}, fmt.Errorf("%w: unknown strategy %q", model.ErrConsolidation, c.cfg.Consolidation.Strategy)
	}

	var res ConsolidateResult
	for _, group := range groups {
		if err := c.mergeGroup(tier, group); err != nil {
			return res, err
		}
		res.Merged++
	}
	if res.Merged > 0 {
		c.log.Info("consolidated tier",
			zap.String("tier", string(tier)),
			zap.String("strategy", c.cfg.Consolidation.Strategy),
			zap.Int("merged", res.Merged))
	}
	return res, nil
}

func (c *Core) activeEntries(tier model.Tier) []*model.MemoryEntry {
	var out []*model.MemoryEntry
	for _, e := range c.state.Memories[tier] {
		if e.State == model.StateActive {
			out = append(out, e)
		}
	}
	return out
}

// mergeGroup replaces a group with one representative entry. The
// representative content comes from the candidate maximizing
// importance × confidence; the embedding is the importance-weighted
// centroid; the originals are retired and recorded in
// ConsolidatedFrom. The index insert happens before any state change
// so a failure leaves the group untouched.
func (c *Core) mergeGroup(tier model.Tier, group []*model.MemoryEntry) error {
	rep := group[0]
	for _, e := range group[1:] {
		if e.Metadata.Importance*e.Metadata.Confidence > rep.Metadata.Importance*rep.Metadata.Confidence {
			rep = e
		}
	}

	points := make([]hyperbolic.Point, len(group))
	weights := make([]float64, len(group))
	ids := make([]string, len(group))
	for i, e := range group {
		points[i] = e.Embedding
		weights[i] = e.Metadata.Importance
		ids[i] = e.ID
	}
	centroid := hyperbolic.WeightedCentroid(points, weights)

	id := c.newEntryID()
	if err := c.index.Insert(id, centroid); err != nil {
		return fmt.Errorf("index merged entry: %w", err)
	}
	for _, e := range group {
		if err := c.index.Remove(e.ID); err != nil {
			// Group members come straight from the index; absence here
			// is a corrupted-index bug, not a normal error.
			return fmt.Errorf("unindex merged original %s: %w", e.ID, err)
		}
		e.State = model.StateRetired
	}

	meta := rep.Metadata
	meta.Tags = unionTags(group)
	now := time.Now().UTC()
	merged := &model.MemoryEntry{
		ID:               id,
		Tier:             tier,
		Content:          rep.Content,
		Metadata:         meta,
		Embedding:        centroid,
		State:            model.StateConsolidated,
		ConsolidatedFrom: ids,
		CreatedAt:        now,
		LastAccessedAt:   now,
	}
	c.state.Memories[tier] = append(c.state.Memories[tier], merged)
	c.byID[id] = merged
	return nil
}

func unionTags(group []*model.MemoryEntry) []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range group {
		for _, t := range e.Metadata.Tags {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	sort.Strings(out)
	return out
}

// temporalGroups groups entries inside a sliding time window whose
// pairwise hyperbolic distance stays below epsilon.
func temporalGroups(entries []*model.MemoryEntry, window time.Duration, eps float64) [][]*model.MemoryEntry {
	sorted := append([]*model.MemoryEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	var groups [][]*model.MemoryEntry
	used := map[string]bool{}
	for i, e := range sorted {
		if used[e.ID] {
			continue
		}
		group := []*model.MemoryEntry{e}
		for _, cand := range sorted[i+1:] {
			if used[cand.ID] {
				continue
			}
			if cand.CreatedAt.Sub(e.CreatedAt) > window {
				break
			}
			if withinEpsilon(cand, group, eps) {
				group = append(group, cand)
			}
		}
		if len(group) >= 2 {
			for _, m := range group {
				used[m.ID] = true
			}
			groups = append(groups, group)
		}
	}
	return groups
}

// semanticGroups groups mutual k-nearest-neighbor sets whose distance
// stays below epsilon, via union-find over mutual edges. Neighbor
// queries run against an index over the candidate set so ties follow
// its insertion order.
func semanticGroups(entries []*model.MemoryEntry, k int, eps float64) [][]*model.MemoryEntry {
	n := len(entries)
	if n < 2 {
		return nil
	}
	if k <= 0 {
		k = 1
	}

	ix := hyperbolic.NewIndex(len(entries[0].Embedding))
	pos := make(map[string]int, n)
	for i, e := range entries {
		// Stored entries already satisfy the index invariants.
		ix.Insert(e.ID, e.Embedding)
		pos[e.ID] = i
	}

	// neighbors[i] maps the indices of i's k nearest entries to their
	// distance. Querying k+1 hits covers the entry itself.
	neighbors := make([]map[int]float64, n)
	for i, e := range entries {
		m := make(map[int]float64, k)
		for _, hit := range ix.Nearest(e.Embedding, k+1) {
			if hit.ID == e.ID {
				continue
			}
			if len(m) == k {
				break
			}
			m[pos[hit.ID]] = hit.Distance
		}
		neighbors[i] = m
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d, ok := neighbors[i][j]
			if !ok {
				continue
			}
			if _, ok := neighbors[j][i]; !ok {
				continue
			}
			if d < eps {
				parent[find(i)] = find(j)
			}
		}
	}

	byRoot := map[int][]*model.MemoryEntry{}
	for i, e := range entries {
		r := find(i)
		byRoot[r] = append(byRoot[r], e)
	}
	roots := make([]int, 0, len(byRoot))
	for r := range byRoot {
		roots = append(roots, r)
	}
	sort.Ints(roots)

	var groups [][]*model.MemoryEntry
	for _, r := range roots {
		if len(byRoot[r]) >= 2 {
			groups = append(groups, byRoot[r])
		}
	}
	return groups
}

func withinEpsilon(cand *model.MemoryEntry, group []*model.MemoryEntry, eps float64) bool {
	for _, m := range group {
		if hyperbolic.Distance(cand.Embedding, m.Embedding) >= eps {
			return false
		}
	}
	return true
}
