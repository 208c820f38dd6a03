package storage

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/calder-labs/hypermem/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLitePutGet(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	if err := s.Put(ctx, "state", []byte("encrypted-bytes")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get(ctx, "state")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte("encrypted-bytes")) {
		t.Errorf("got %q", got)
	}
}

func TestSQLiteOverwrite(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	s.Put(ctx, "state", []byte("v1"))
	s.Put(ctx, "state", []byte("v2"))
	got, err := s.Get(ctx, "state")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("expected v2, got %q", got)
	}
}

func TestSQLiteMissingKey(t *testing.T) {
	s := newTestSQLite(t)
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if err := m.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("got %q", got)
	}

	// The returned slice is a copy; mutating it must not touch the store.
	got[0] = 'x'
	again, _ := m.Get(ctx, "k")
	if string(again) != "v" {
		t.Error("stored value aliased by Get result")
	}
}
