package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

type backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

func TestBackends_PutGetDelete(t *testing.T) {
	dir := t.TempDir()
	sqlite, err := OpenSQLite(filepath.Join(dir, "db", "store.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer func() { _ = sqlite.Close() }()

	tests := []struct {
		name string
		b    backend
	}{
		{name: "file", b: NewFileStore(filepath.Join(dir, "files"))},
		{name: "sqlite", b: sqlite},
		{name: "memory", b: NewMemoryStore()},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok, err := tt.b.Get(ctx, "@knu_bookmarks_v1"); err != nil || ok {
				t.Fatalf("Get(missing) = ok %v err %v, want absent", ok, err)
			}

			if err := tt.b.Put(ctx, "@knu_bookmarks_v1", []byte(`[1]`)); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if err := tt.b.Put(ctx, "@knu_bookmarks_v1", []byte(`[1,2]`)); err != nil {
				t.Fatalf("second Put failed: %v", err)
			}

			got, ok, err := tt.b.Get(ctx, "@knu_bookmarks_v1")
			if err != nil || !ok {
				t.Fatalf("Get = ok %v err %v", ok, err)
			}
			if string(got) != `[1,2]` {
				t.Fatalf("Get = %s, want [1,2]", got)
			}

			if err := tt.b.Delete(ctx, "@knu_bookmarks_v1"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if _, ok, _ := tt.b.Get(ctx, "@knu_bookmarks_v1"); ok {
				t.Fatal("key should be gone after Delete")
			}
		})
	}
}

func TestFileStore_KeysAreIsolated(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	ctx := context.Background()

	if err := s.Put(ctx, "@knu_theme_mode", []byte(`"dark"`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(ctx, "@knu_read_status_v1", []byte(`["u"]`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "knu_theme_mode.json")); err != nil {
		t.Fatalf("expected theme file: %v", err)
	}
	got, _, _ := s.Get(ctx, "@knu_theme_mode")
	if string(got) != `"dark"` {
		t.Fatalf("theme blob = %s", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 files and no temp leftovers, got %d", len(entries))
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knotice.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	if err := s.Put(ctx, "k", []byte(`"v"`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	_ = s.Close()

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() { _ = s2.Close() }()

	got, ok, err := s2.Get(ctx, "k")
	if err != nil || !ok || string(got) != `"v"` {
		t.Fatalf("Get after reopen = %q ok=%v err=%v", got, ok, err)
	}
}
