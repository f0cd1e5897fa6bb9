package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"quizplay/internal/domain"
)

func TestSnapshotStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.yaml")
	store := NewSnapshotStore(path)

	if _, ok, err := store.Read(ctx); err != nil || ok {
		t.Fatalf("expected empty store, ok=%v err=%v", ok, err)
	}

	want := domain.Identity{ID: "u1", DisplayName: "alice", Role: domain.RolePlayer, Token: "tok", Score: 30}
	if err := store.Write(ctx, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600, got %o", perm)
	}

	// A second store on the same path sees the same identity.
	got, ok, err := NewSnapshotStore(path).Read(ctx)
	if err != nil || !ok {
		t.Fatalf("read: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	if err := store.Erase(ctx); err != nil {
		t.Fatalf("erase: %v", err)
	}
	if _, ok, _ := store.Read(ctx); ok {
		t.Fatalf("expected erased snapshot")
	}
	if err := store.Erase(ctx); err != nil {
		t.Fatalf("erase twice: %v", err)
	}
}

func TestSnapshotStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	if err := os.WriteFile(path, []byte("id: [unterminated"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, _, err := NewSnapshotStore(path).Read(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}
