package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeLocal(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return p
}

func TestMemoryFolderStore_FindOrCreateFolder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryFolderStore(nil)

	first, err := store.FindOrCreateFolder(ctx, "Beta", store.RootID())
	if err != nil {
		t.Fatalf("FindOrCreateFolder() error = %v", err)
	}
	second, err := store.FindOrCreateFolder(ctx, "Beta", store.RootID())
	if err != nil {
		t.Fatalf("FindOrCreateFolder() error = %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("second call created a new folder: %q != %q", first.ID, second.ID)
	}
	if first.ParentID != store.RootID() {
		t.Errorf("ParentID = %q, want %q", first.ParentID, store.RootID())
	}

	child, err := store.FindOrCreateFolder(ctx, "2024-07-02 20_05", first.ID)
	if err != nil {
		t.Fatalf("FindOrCreateFolder() error = %v", err)
	}
	if got := store.FindFolder("2024-07-02 20_05", first.ID); got == nil || got.ID != child.ID {
		t.Errorf("FindFolder() = %v, want %v", got, child)
	}

	t.Run("unknown parent", func(t *testing.T) {
		if _, err := store.FindOrCreateFolder(ctx, "x", "missing"); err == nil {
			t.Error("FindOrCreateFolder() expected error for unknown parent")
		}
	})

	t.Run("invalid name", func(t *testing.T) {
		for _, name := range []string{"", "..", "a/b"} {
			if _, err := store.FindOrCreateFolder(ctx, name, store.RootID()); err == nil {
				t.Errorf("FindOrCreateFolder(%q) expected error", name)
			}
		}
	})
}

func TestMemoryFolderStore_UploadFile(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryFolderStore(nil)
	folder, err := store.FindOrCreateFolder(ctx, "Beta", store.RootID())
	if err != nil {
		t.Fatalf("FindOrCreateFolder() error = %v", err)
	}

	local := writeLocal(t, "shot.png", "pixels")

	h, err := store.UploadFile(ctx, folder.ID, local, "shot.png")
	if err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}
	if h.Skipped {
		t.Error("first upload reported Skipped")
	}
	if h.Size != 6 {
		t.Errorf("Size = %d, want 6", h.Size)
	}

	t.Run("identical upload is skipped", func(t *testing.T) {
		h, err := store.UploadFile(ctx, folder.ID, local, "shot.png")
		if err != nil {
			t.Fatalf("UploadFile() error = %v", err)
		}
		if !h.Skipped {
			t.Error("identical upload not skipped")
		}
		if store.Uploads() != 1 {
			t.Errorf("Uploads() = %d, want 1", store.Uploads())
		}
	})

	t.Run("changed content is replaced", func(t *testing.T) {
		changed := writeLocal(t, "shot.png", "pixelz")
		h, err := store.UploadFile(ctx, folder.ID, changed, "shot.png")
		if err != nil {
			t.Fatalf("UploadFile() error = %v", err)
		}
		if h.Skipped {
			t.Error("changed upload reported Skipped")
		}
		data, ok := store.File(folder.ID, "shot.png")
		if !ok || string(data) != "pixelz" {
			t.Errorf("File() = %q, %v; want %q", data, ok, "pixelz")
		}
	})

	t.Run("unknown folder", func(t *testing.T) {
		if _, err := store.UploadFile(ctx, "missing", local, "shot.png"); err == nil {
			t.Error("UploadFile() expected error for unknown folder")
		}
	})

	if names := store.FileNames(folder.ID); len(names) != 1 || names[0] != "shot.png" {
		t.Errorf("FileNames() = %v, want [shot.png]", names)
	}
}
