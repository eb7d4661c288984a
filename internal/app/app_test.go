package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gss-go/internal/config"
	"gss-go/internal/gss"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig("test-host", t.TempDir())
	cfg.DisplayTZ = "UTC"
	cfg.Database.Type = "memory"
	cfg.Folders = config.FoldersConfig{Type: "memory"}
	cfg.Session.WatchDir = t.TempDir()
	return cfg
}

func stage(t *testing.T, dir, title string, ts time.Time) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	name := gss.ScreenshotFilename(title, ".png", ts, false)
	if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestGSSApp_UploadSessionsHistory(t *testing.T) {
	cfg := newTestConfig(t)
	ctx := context.Background()

	a, err := NewGSSApp(ctx, cfg, "upload")
	if err != nil {
		t.Fatalf("NewGSSApp() error = %v", err)
	}
	defer a.Close()

	day := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	stage(t, cfg.Session.StagingDir, "Beta", day.Add(20*time.Hour+5*time.Minute))
	stage(t, cfg.Session.StagingDir, "Beta", day.Add(20*time.Hour+12*time.Minute))

	res, err := a.Upload(ctx)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !res.Completed || res.FilesUploaded != 2 || res.RecordsCreated != 1 {
		t.Errorf("Upload() = %+v", res)
	}

	recs, err := a.Sessions(ctx, "Beta", 10)
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("Sessions() = %d records, want 1", len(recs))
	}
	if !recs[0].Start.Equal(day.Add(20*time.Hour+5*time.Minute)) || !recs[0].End.Equal(day.Add(20*time.Hour+12*time.Minute)) {
		t.Errorf("record = %s .. %s", recs[0].Start, recs[0].End)
	}
	if recs[0].Name != "Beta 2024-03-09 20_05" {
		t.Errorf("record name = %q", recs[0].Name)
	}

	ops, err := a.History(ctx, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("History() = %d operations, want 1", len(ops))
	}
	op := ops[0]
	if op.Source != SourceManual || op.Status != gss.OperationCompleted || op.FilesUploaded != 2 || op.RecordsCreated != 1 {
		t.Errorf("operation = %+v", op)
	}
	if op.FinishedAt == nil {
		t.Error("operation not finished")
	}

	// Uploaded files leave staging for the trash directory.
	entries, err := os.ReadDir(cfg.Session.StagingDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			t.Errorf("%s left in staging", e.Name())
		}
	}
}

func TestNewGSSApp_invalidConfig(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.HostID = ""
	if _, err := NewGSSApp(context.Background(), cfg, "upload"); err == nil {
		t.Fatal("NewGSSApp() with invalid config should fail")
	}

	cfg = newTestConfig(t)
	cfg.Folders.Type = "carrier-pigeon"
	if _, err := NewGSSApp(context.Background(), cfg, "upload"); err == nil {
		t.Fatal("NewGSSApp() with unknown folders type should fail")
	}
}

func TestNewGSSApp_sqliteIsMigrated(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Database = config.DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(cfg.BaseDir, "db")}

	a, err := NewGSSApp(context.Background(), cfg, "sessions")
	if err != nil {
		t.Fatalf("NewGSSApp() error = %v", err)
	}
	defer a.Close()

	if _, err := os.Stat(filepath.Join(cfg.BaseDir, "db", "test-host.db")); err != nil {
		t.Errorf("database file not created: %v", err)
	}
	if _, err := a.Sessions(context.Background(), "", 0); err != nil {
		t.Errorf("Sessions() error = %v", err)
	}
}

func TestUploaderConfig(t *testing.T) {
	cfg := config.NewConfig("h", t.TempDir())
	cfg.Session.MinimumSessionGapMin = 45
	cfg.Upload.MaxAttempts = 7
	cfg.Upload.BaseDelayMs = 100

	uc := uploaderConfig(cfg, time.UTC)
	if uc.MinimumSessionGap != 45*time.Minute {
		t.Errorf("MinimumSessionGap = %v", uc.MinimumSessionGap)
	}
	if uc.Retry.MaxAttempts != 7 || uc.Retry.BaseDelay != 100*time.Millisecond {
		t.Errorf("Retry = %+v", uc.Retry)
	}
	if uc.Concurrency != 6 || uc.IOTimeout != 10*time.Second {
		t.Errorf("Concurrency = %d, IOTimeout = %v", uc.Concurrency, uc.IOTimeout)
	}
	if uc.StagingDir != cfg.Session.StagingDir || uc.Location != time.UTC {
		t.Errorf("StagingDir = %q, Location = %v", uc.StagingDir, uc.Location)
	}
}
