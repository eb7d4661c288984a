package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gss-go/internal/gss"
)

// StageScreenshot writes a screenshot for title taken at ts into dir and
// returns its name. The content is the name, so every file is distinct.
func StageScreenshot(t *testing.T, dir, title string, ts time.Time, manual bool) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("creating staging dir: %v", err)
	}
	name := gss.ScreenshotFilename(title, ".png", ts, manual)
	if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
		t.Fatalf("staging %s: %v", name, err)
	}
	return name
}

// StagedNames lists the regular files directly in dir.
func StagedNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("listing %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}
