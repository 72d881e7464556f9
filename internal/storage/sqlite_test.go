//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteStoreContract(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "particles.db"))
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	exerciseStore(t, store)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "particles.db")

	store := NewSQLiteStore(path)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := store.SavePopulation(ctx, sampleSnapshot("run-1", 5)); err != nil {
		t.Fatalf("save population: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore("sqlite", path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := reopened.Init(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() {
		_ = CloseIfSupported(reopened)
	})
	snapshot, ok, err := reopened.LatestPopulation(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("latest population: ok=%v err=%v", ok, err)
	}
	if snapshot.Generation != 5 || len(snapshot.Members) != 2 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "particles.db"))
	if _, err := store.ListRuns(context.Background()); err == nil {
		t.Fatal("expected uninitialized store error")
	}
}
