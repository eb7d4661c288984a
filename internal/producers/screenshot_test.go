package producers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gss-go/internal/config"
	"gss-go/internal/gss"
)

func TestScreenshotWatcherStage(t *testing.T) {
	watch, staging := t.TempDir(), t.TempDir()
	src := filepath.Join(watch, "Screenshot from 2024-03-09.png")
	if err := os.WriteFile(src, []byte("png"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	mod := time.Date(2024, 3, 9, 20, 5, 6, 789_000_000, time.UTC)
	if err := os.Chtimes(src, mod, mod); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}

	w := NewScreenshotWatcher("Beta", watch, staging, time.Second, fixedClock{testNow}, gss.NewNopLogger())
	dest, err := w.stage(src)
	if err != nil {
		t.Fatalf("stage() error = %v", err)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source still exists: %v", err)
	}
	want := gss.ScreenshotFilename("Beta", ".png", mod, true)
	if filepath.Base(dest) != want {
		t.Errorf("stage() = %q, want %q", filepath.Base(dest), want)
	}

	// Same modtime again: the name is bumped instead of overwriting.
	if err := os.WriteFile(src, []byte("png2"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.Chtimes(src, mod, mod); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}
	dest2, err := w.stage(src)
	if err != nil {
		t.Fatalf("stage() error = %v", err)
	}
	if dest2 == dest {
		t.Fatalf("stage() overwrote %q", dest)
	}
	parsed, ok := gss.ParseScreenshotFilename(filepath.Base(dest2), time.UTC)
	if !ok || !parsed.Manual || !parsed.Time.Equal(mod.Add(time.Millisecond)) {
		t.Errorf("second name = %+v, %v", parsed, ok)
	}
}

func TestScreenshotWatcherFlushWaitsForSettle(t *testing.T) {
	watch, staging := t.TempDir(), t.TempDir()
	src := filepath.Join(watch, "shot.png")
	if err := os.WriteFile(src, []byte("png"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	w := NewScreenshotWatcher("Beta", watch, staging, 2*time.Second, nil, gss.NewNopLogger())
	last := time.Now()
	w.pending[src] = last
	w.pending[filepath.Join(watch, "gone.png")] = last

	w.flush(last.Add(time.Second))
	if len(stagedNames(t, staging)) != 0 {
		t.Fatal("flushed before the settle period")
	}

	w.flush(last.Add(2 * time.Second))
	if names := stagedNames(t, staging); len(names) != 1 {
		t.Fatalf("staging = %v, want one file", names)
	}
	if len(w.pending) != 0 {
		t.Errorf("pending = %v, want empty", w.pending)
	}
}

func TestIsScreenshot(t *testing.T) {
	tests := map[string]bool{
		"/p/shot.png":      true,
		"/p/SHOT.PNG":      true,
		"/p/.shot.png":     false,
		"/p/shot.png.part": false,
		"/p/notes.txt":     false,
	}
	for path, want := range tests {
		if got := isScreenshot(path); got != want {
			t.Errorf("isScreenshot(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestScreenshotWatcherRun(t *testing.T) {
	watch, staging := t.TempDir(), t.TempDir()
	w := NewScreenshotWatcher("Alpha", watch, staging, 50*time.Millisecond, nil, gss.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register before the write.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(watch, "shot.png"), []byte("png"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(watch, "notes.txt"), []byte("txt"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(stagedNames(t, staging)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("screenshot was not staged")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	names := stagedNames(t, staging)
	if len(names) != 1 {
		t.Fatalf("staging = %v, want one file", names)
	}
	parsed, ok := gss.ParseScreenshotFilename(names[0], nil)
	if !ok || parsed.Title != "Alpha" || !parsed.Manual {
		t.Errorf("staged name %q parsed as %+v, %v", names[0], parsed, ok)
	}
	if _, err := os.Stat(filepath.Join(watch, "notes.txt")); err != nil {
		t.Errorf("non-screenshot moved: %v", err)
	}
}

func TestCaptureFactory(t *testing.T) {
	cfg := testSessionConfig(t)
	factory := NewCaptureFactory(cfg, &imageCapturer{t: t}, nil, gss.NewNopLogger())

	ps := factory("Beta")
	if len(ps) != 2 {
		t.Fatalf("factory() = %d producers, want 2", len(ps))
	}
	if _, ok := ps[0].(*PeriodicSampler); !ok {
		t.Errorf("ps[0] = %T, want *PeriodicSampler", ps[0])
	}
	if _, ok := ps[1].(*ScreenshotWatcher); !ok {
		t.Errorf("ps[1] = %T, want *ScreenshotWatcher", ps[1])
	}

	// Fresh producers on every call.
	if again := factory("Beta"); again[0] == ps[0] {
		t.Error("factory() reused a producer")
	}

	cfg.WatchDir = ""
	if ps := NewCaptureFactory(cfg, nil, nil, gss.NewNopLogger())("Beta"); len(ps) != 0 {
		t.Errorf("factory() = %d producers, want 0", len(ps))
	}
}

func testSessionConfig(t *testing.T) config.SessionConfig {
	t.Helper()
	cfg := config.NewConfig("host", t.TempDir()).Session
	cfg.WatchDir = t.TempDir()
	return cfg
}
