package uistate

import (
	"os"
	"path/filepath"
	"testing"

	"pkt.systems/termdeck/schema"
)

func TestSaveAndLoadRoundtrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	want := Snapshot{
		Layout: LayoutState{
			Mode:           schema.LayoutVSplit,
			SplitRatio:     0.35,
			AgentCollapsed: true,
		},
		Threads: ThreadState{Chat: "T1", Agent: "T2"},
		Model:   "gpt-5.2-codex",
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatalf("expected snapshot to exist")
	}
	if got != want {
		t.Fatalf("snapshot mismatch: got %+v want %+v", got, want)
	}
}

func TestLoadMissingStateReturnsFalse(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_, ok, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatalf("expected no snapshot")
	}
}

func TestLoadCorruptStateFails(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ui.json"), []byte("{nope"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := store.Load(); err == nil {
		t.Fatalf("expected unmarshal error")
	}
}

func TestNewStoreRequiresDirectory(t *testing.T) {
	if _, err := NewStore("  "); err == nil {
		t.Fatalf("expected error for blank directory")
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Save(Snapshot{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "ui.json" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}
