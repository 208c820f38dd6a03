package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/calder-labs/hypermem/internal/model"
)

func populate(t *testing.T, c *Core) {
	t.Helper()
	if _, err := c.CreateIdentity(IdentityParams{ID: "agent-1", Name: "Ada", Type: model.IdentityHuman}); err != nil {
		t.Fatalf("identity: %v", err)
	}
	sem, err := c.StoreMemory(EntryParams{Tier: model.TierSemantic, Content: "negative curvature embeds trees"})
	if err != nil {
		t.Fatalf("semantic: %v", err)
	}
	if _, err := c.StoreMemory(EntryParams{Tier: model.TierEpisodic, Content: "first conversation recorded"}); err != nil {
		t.Fatalf("episodic: %v", err)
	}
	if err := c.RecordLearning("curvature", 0.7, sem); err != nil {
		t.Fatalf("learning: %v", err)
	}
}

func stateJSON(t *testing.T, c *Core) []byte {
	t.Helper()
	b, err := json.Marshal(c.GetState())
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	return b
}

func TestCheckpointIsImmutableSnapshot(t *testing.T) {
	c := newTestCore(t)
	populate(t, c)

	meta := map[string]string{"op": "test"}
	cp, err := c.CreateCheckpoint("before-growth", "two memories", meta)
	if err != nil {
		t.Fatalf("checkpoint: %v", err)
	}

	// Mutate after the snapshot.
	c.StoreMemory(EntryParams{Tier: model.TierEpisodic, Content: "later event"})
	meta["op"] = "changed"

	last, err := c.GetLastCheckpoint()
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if last.ID != cp.ID {
		t.Errorf("last checkpoint %s, want %s", last.ID, cp.ID)
	}
	if n := len(last.State.Memories[model.TierEpisodic]); n != 1 {
		t.Errorf("snapshot grew after creation: %d episodic entries", n)
	}
	if last.Metadata["op"] != "test" {
		t.Errorf("caller mutation leaked into the checkpoint: %v", last.Metadata)
	}
}

func TestListCheckpoints(t *testing.T) {
	c := newTestCore(t)
	c.CreateCheckpoint("one", "", nil)
	c.CreateCheckpoint("two", "", nil)

	cps := c.ListCheckpoints()
	if len(cps) != 2 || cps[0].Name != "one" || cps[1].Name != "two" {
		t.Errorf("unexpected checkpoint list: %+v", cps)
	}
}

func TestGetLastCheckpointEmpty(t *testing.T) {
	c := newTestCore(t)
	if _, err := c.GetLastCheckpoint(); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRestoreCheckpoint(t *testing.T) {
	c := newTestCore(t)
	first, _ := c.StoreMemory(EntryParams{Tier: model.TierEpisodic, Content: "keep this one"})
	cp, _ := c.CreateCheckpoint("baseline", "", nil)
	c.StoreMemory(EntryParams{Tier: model.TierEpisodic, Content: "discard this one"})

	if err := c.RestoreCheckpoint(cp.ID); err != nil {
		t.Fatalf("restore checkpoint: %v", err)
	}

	live, _ := c.RetrieveMemory(Query{Tier: model.TierEpisodic})
	if len(live) != 1 || live[0].ID != first {
		t.Errorf("rollback failed: %+v", live)
	}
	// History survives the rollback.
	if len(c.ListCheckpoints()) != 1 {
		t.Error("checkpoint history lost")
	}

	if err := c.RestoreCheckpoint("missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	populate(t, env.core)
	env.core.CreateCheckpoint("persisted", "", nil)

	if err := env.core.SaveState(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	want := stateJSON(t, env.core)

	// A fresh core over the same storage and passphrase.
	other := New(env.cfg, env.gate, env.store, zap.NewNop())
	if err := other.RestoreState(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got := stateJSON(t, other)
	if string(got) != string(want) {
		t.Errorf("restored state differs:\n%s\n%s", got, want)
	}
}

func TestRestoredCoreIsFullyOperational(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	populate(t, env.core)
	env.core.SaveState(ctx)

	other := New(env.cfg, env.gate, env.store, zap.NewNop())
	if err := other.RestoreState(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}

	// The index was rebuilt: deletions and identity creation work.
	live, _ := other.RetrieveMemory(Query{Tier: model.TierEpisodic})
	if len(live) != 1 {
		t.Fatalf("expected 1 episodic entry, got %d", len(live))
	}
	if err := other.DeleteMemory(live[0].ID); err != nil {
		t.Errorf("delete after restore: %v", err)
	}
	// The address registry was rebuilt: the restored id stays claimed.
	if _, err := other.CreateIdentity(IdentityParams{ID: "agent-1", Name: "Clone"}); !errors.Is(err, model.ErrDuplicateID) {
		t.Errorf("restored identity id should stay claimed, got %v", err)
	}
}

func TestRestoreStateMissing(t *testing.T) {
	env := newTestEnv(t)
	if err := env.core.RestoreState(context.Background()); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRestoreVersionMismatchLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	populate(t, env.core)
	before := stateJSON(t, env.core)

	// Persist a snapshot claiming a future schema version.
	doctored := env.core.GetState()
	doctored.SchemaVersion = 99
	raw, _ := json.Marshal(doctored)
	enc, err := env.gate.Encrypt(raw)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if err := env.store.Put(ctx, env.cfg.StateKey, enc); err != nil {
		t.Fatalf("put: %v", err)
	}

	err = env.core.RestoreState(ctx)
	if !errors.Is(err, model.ErrIncompatibleStateVersion) {
		t.Fatalf("expected incompatible version, got %v", err)
	}
	if after := stateJSON(t, env.core); string(after) != string(before) {
		t.Error("a failed restore must not touch the prior state")
	}
}

func TestRestoreCorruptCiphertext(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	populate(t, env.core)
	before := stateJSON(t, env.core)

	env.store.Put(ctx, env.cfg.StateKey, []byte("not a ciphertext at all"))
	if err := env.core.RestoreState(ctx); !errors.Is(err, model.ErrSecurity) {
		t.Fatalf("expected security error, got %v", err)
	}
	if after := stateJSON(t, env.core); string(after) != string(before) {
		t.Error("a failed restore must not touch the prior state")
	}
}

func TestStatsSummary(t *testing.T) {
	c := newTestCore(t)
	populate(t, c)
	c.CreateCheckpoint("cp", "", nil)

	s := c.StatsSummary()
	if s.Identities != 1 || s.Checkpoints != 1 || s.Learning != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}
	if s.Tiers[model.TierEpisodic].Active != 1 || s.Tiers[model.TierSemantic].Active != 1 {
		t.Errorf("unexpected tier stats: %+v", s.Tiers)
	}
	// One identity plus two live entries in the index.
	if s.Indexed != 3 {
		t.Errorf("indexed %d, want 3", s.Indexed)
	}
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	c := newTestCore(t)
	populate(t, c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			c.StoreMemory(EntryParams{Tier: model.TierWorking, Content: "tick"})
			c.Consolidate(model.TierWorking)
		}
	}()
	for i := 0; i < 200; i++ {
		if _, err := c.RetrieveMemory(Query{}); err != nil {
			t.Fatalf("concurrent retrieve: %v", err)
		}
		c.StatsSummary()
	}
	<-done
}
