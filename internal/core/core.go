// Package core implements the hyperbolic memory and identity engine:
// tiered memory storage over an exact hyperbolic index, deterministic
// identity addressing, consolidation and compression passes, and
// checkpoint/save/restore of the full system state.
package core

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/calder-labs/hypermem/internal/address"
	"github.com/calder-labs/hypermem/internal/config"
	"github.com/calder-labs/hypermem/internal/embed"
	"github.com/calder-labs/hypermem/internal/hyperbolic"
	"github.com/calder-labs/hypermem/internal/model"
	"github.com/calder-labs/hypermem/internal/security"
	"github.com/calder-labs/hypermem/internal/storage"
)

// Core owns one authoritative SystemState. Mutating operations take
// the write lock so the memory store and the hyperbolic index never
// diverge; reads share the read lock and observe a consistent state.
type Core struct {
	mu sync.RWMutex

	cfg     *config.Config
	state   *model.SystemState
	index   *hyperbolic.Index
	deriver *address.Deriver
	proj    embed.Projector
	gate    security.Gate
	store   storage.Storage
	log     *zap.Logger

	byID    map[string]*model.MemoryEntry
	entropy *rand.Rand
}

// New creates a core instance. A nil logger disables logging.
func New(cfg *config.Config, gate security.Gate, store storage.Storage, logger *zap.Logger) *Core {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Core{
		cfg:     cfg,
		state:   model.NewSystemState(),
		index:   hyperbolic.NewIndex(cfg.Dimension),
		deriver: address.NewDeriver([]byte(cfg.RootSeed), cfg.Dimension),
		proj:    embed.NewHashProjector(cfg.Dimension),
		gate:    gate,
		store:   store,
		log:     logger,
		byID:    make(map[string]*model.MemoryEntry),
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *Core) newEntryID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), c.entropy).String()
}

// lookup returns the entry for id, nil if unknown.
func (c *Core) lookup(id string) *model.MemoryEntry {
	return c.byID[id]
}

// liveEntries returns the live entries of a tier in insertion order.
func (c *Core) liveEntries(tier model.Tier) []*model.MemoryEntry {
	var out []*model.MemoryEntry
	for _, e := range c.state.Memories[tier] {
		if e.Live() {
			out = append(out, e)
		}
	}
	return out
}

// tiersFor resolves an optional tier argument to the pass order.
func tiersFor(tier model.Tier) []model.Tier {
	if tier == "" {
		return model.AllTiers
	}
	return []model.Tier{tier}
}
