package core

import (
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/calder-labs/hypermem/internal/config"
	"github.com/calder-labs/hypermem/internal/model"
	"github.com/calder-labs/hypermem/internal/security"
	"github.com/calder-labs/hypermem/internal/storage"
)

type testEnv struct {
	cfg   *config.Config
	gate  *security.AEADGate
	store *storage.MemoryStorage
	core  *Core
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Dimension = 4
	cfg.Consolidation.Strategy = "semantic"
	cfg.Consolidation.Epsilon = 0.5
	cfg.Compression.MinAge = 0

	gate, err := security.NewAEADGate("test-pass", "test-token")
	if err != nil {
		t.Fatalf("create gate: %v", err)
	}
	store := storage.NewMemoryStorage()
	return &testEnv{cfg: cfg, gate: gate, store: store, core: New(cfg, gate, store, zap.NewNop())}
}

func newTestCore(t *testing.T) *Core {
	t.Helper()
	return newTestEnv(t).core
}

func TestCreateAndGetIdentity(t *testing.T) {
	c := newTestCore(t)

	ident, err := c.CreateIdentity(IdentityParams{Name: "Ada", Type: model.IdentityHuman, Capabilities: []string{"read"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ident.ID == "" {
		t.Error("expected generated id")
	}
	if len(ident.Address.Point) != 4 {
		t.Errorf("address dimension %d, want 4", len(ident.Address.Point))
	}

	got, err := c.GetIdentity(ident.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Ada" || got.Type != model.IdentityHuman {
		t.Errorf("unexpected identity: %+v", got)
	}
}

func TestCreateIdentityValidation(t *testing.T) {
	c := newTestCore(t)
	if _, err := c.CreateIdentity(IdentityParams{}); !errors.Is(err, model.ErrValidation) {
		t.Errorf("expected validation error for missing name, got %v", err)
	}
	if _, err := c.CreateIdentity(IdentityParams{Name: "x", Type: "robot"}); !errors.Is(err, model.ErrValidation) {
		t.Errorf("expected validation error for bad type, got %v", err)
	}
}

func TestDuplicateIdentityIDRejected(t *testing.T) {
	c := newTestCore(t)
	if _, err := c.CreateIdentity(IdentityParams{ID: "agent-1", Name: "First"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := c.CreateIdentity(IdentityParams{ID: "agent-1", Name: "Impostor"})
	if !errors.Is(err, model.ErrDuplicateID) {
		t.Errorf("expected duplicate id, got %v", err)
	}

	// No silent overwrite.
	got, _ := c.GetIdentity("agent-1")
	if got.Name != "First" {
		t.Errorf("identity overwritten: %+v", got)
	}
}

func TestDeletedIdentityIDNeverReused(t *testing.T) {
	c := newTestCore(t)
	c.CreateIdentity(IdentityParams{ID: "agent-1", Name: "First"})
	if err := c.DeleteIdentity("agent-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.GetIdentity("agent-1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if _, err := c.CreateIdentity(IdentityParams{ID: "agent-1", Name: "Again"}); !errors.Is(err, model.ErrDuplicateID) {
		t.Errorf("tombstoned id must never be reused, got %v", err)
	}
}

func TestUpdateIdentityMutableFieldsOnly(t *testing.T) {
	c := newTestCore(t)
	ident, _ := c.CreateIdentity(IdentityParams{Name: "Ada"})

	name := "Ada Lovelace"
	upd, err := c.UpdateIdentity(ident.ID, IdentityUpdate{Name: &name, Capabilities: []string{"read", "write"}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if upd.Name != "Ada Lovelace" || len(upd.Capabilities) != 2 {
		t.Errorf("update not applied: %+v", upd)
	}
	if !reflect.DeepEqual(upd.Address, ident.Address) {
		t.Error("address must be immutable")
	}
	if upd.ID != ident.ID {
		t.Error("id must be immutable")
	}
}

func TestIdentityAddressSurvivesRestart(t *testing.T) {
	// Two independent cores with the same root seed derive the same
	// address for the same identity id.
	a := newTestCore(t)
	b := newTestCore(t)
	i1, _ := a.CreateIdentity(IdentityParams{ID: "agent-1", Name: "One"})
	i2, _ := b.CreateIdentity(IdentityParams{ID: "agent-1", Name: "One"})
	if !reflect.DeepEqual(i1.Address, i2.Address) {
		t.Errorf("addresses diverged:\n%v\n%v", i1.Address, i2.Address)
	}
}
