package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		HostID:   "test-host-abc",
		BaseDir:  "/home/user/.local/share/gss",
		LogDir:   "/home/user/.local/share/gss/log",
		LogLevel: "debug",
		Session: SessionConfig{
			StagingDir:           "/home/user/.local/share/gss/staging",
			MinimumSessionGapMin: 45,
			DeleteAfterUpload:    true,
		},
		Monitor: MonitorConfig{
			ProcessPatterns: []string{`/games/([^/]+)/`, `/opt/([^/]+)/bin/`},
		},
		Upload:   UploadConfig{Concurrency: 3},
		Database: DatabaseConfig{Type: "postgres", DSN: "postgres://localhost/gss"},
		Folders:  FoldersConfig{Type: "s3", S3Bucket: "shots", S3Prefix: "gss", Encrypt: true},
		Encryption: EncryptionConfig{
			PublicKeyPath:  "/home/user/.local/share/gss/keys/gss.pub",
			PrivateKeyPath: "/home/user/.local/share/gss/keys/gss.key",
		},
		Notifications: NotificationsConfig{Type: "dbus"},
	}

	for _, format := range []Format{FormatTOML, FormatYAML} {
		var buf bytes.Buffer
		m := &Manager{Format: format}

		if err := m.Write(&buf, original); err != nil {
			t.Fatalf("Write() error = %v", err)
		}

		got, err := m.Read(&buf)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}

		if got.HostID != original.HostID {
			t.Errorf("HostID = %q, want %q", got.HostID, original.HostID)
		}
		if got.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want %q", got.LogLevel, "debug")
		}
		if got.Session.MinimumSessionGapMin != 45 {
			t.Errorf("Session.MinimumSessionGapMin = %d, want 45", got.Session.MinimumSessionGapMin)
		}
		if !got.Session.DeleteAfterUpload {
			t.Error("Session.DeleteAfterUpload = false, want true")
		}
		if len(got.Monitor.ProcessPatterns) != 2 {
			t.Fatalf("len(Monitor.ProcessPatterns) = %d, want 2", len(got.Monitor.ProcessPatterns))
		}
		if got.Monitor.ProcessPatterns[1] != `/opt/([^/]+)/bin/` {
			t.Errorf("Monitor.ProcessPatterns[1] = %q", got.Monitor.ProcessPatterns[1])
		}
		if got.Upload.Concurrency != 3 {
			t.Errorf("Upload.Concurrency = %d, want 3", got.Upload.Concurrency)
		}
		if got.Database.DSN != original.Database.DSN {
			t.Errorf("Database.DSN = %q, want %q", got.Database.DSN, original.Database.DSN)
		}
		if got.Folders.S3Bucket != "shots" || !got.Folders.Encrypt {
			t.Errorf("Folders = %+v", got.Folders)
		}
		if got.Encryption.PrivateKeyPath != original.Encryption.PrivateKeyPath {
			t.Errorf("Encryption.PrivateKeyPath = %q, want %q", got.Encryption.PrivateKeyPath, original.Encryption.PrivateKeyPath)
		}
		if got.Notifications.Type != "dbus" {
			t.Errorf("Notifications.Type = %q, want %q", got.Notifications.Type, "dbus")
		}
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("host-1", "/data/gss")

	if cfg.HostID != "host-1" {
		t.Errorf("HostID = %q, want %q", cfg.HostID, "host-1")
	}
	if cfg.LogDir != "/data/gss/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/gss/log")
	}
	if cfg.Session.StagingDir != "/data/gss/staging" {
		t.Errorf("Session.StagingDir = %q, want %q", cfg.Session.StagingDir, "/data/gss/staging")
	}
	if cfg.Upload.Concurrency != 6 {
		t.Errorf("Upload.Concurrency = %d, want 6", cfg.Upload.Concurrency)
	}
	if cfg.Upload.IOTimeoutSec != 10 {
		t.Errorf("Upload.IOTimeoutSec = %d, want 10", cfg.Upload.IOTimeoutSec)
	}
	if cfg.Session.SettleMs != 2000 {
		t.Errorf("Session.SettleMs = %d, want 2000", cfg.Session.SettleMs)
	}
	if cfg.Encryption.PublicKeyPath != "/data/gss/keys/gss.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", cfg.Encryption.PublicKeyPath, "/data/gss/keys/gss.pub")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults error = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{"missing host id", func(c *Config) { c.HostID = "" }, "host_id"},
		{"missing staging dir", func(c *Config) { c.Session.StagingDir = "" }, "staging_dir"},
		{"zero gap", func(c *Config) { c.Session.MinimumSessionGapMin = 0 }, "minimum_session_gap_min"},
		{"negative length", func(c *Config) { c.Session.MinimumSessionLengthMin = -1 }, "minimum_session_length_min"},
		{"trash with separator", func(c *Config) { c.Session.TrashDirName = "a/b" }, "trash_dir_name"},
		{"phash out of range", func(c *Config) { c.Session.PhashThreshold = 65 }, "phash_threshold"},
		{"capture without placeholder", func(c *Config) { c.Session.CaptureCommand = "scrot" }, "{path}"},
		{"bad pattern", func(c *Config) { c.Monitor.ProcessPatterns = []string{"("} }, "process_patterns"},
		{"pattern without group", func(c *Config) { c.Monitor.ProcessPatterns = []string{"/games/"} }, "capture group"},
		{"bad zone", func(c *Config) { c.DisplayTZ = "Not/AZone" }, "display_tz"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("h1", "/data/gss")
			tt.modify(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to mention %q", err.Error(), tt.wantErr)
			}
		})
	}

	t.Run("sampler disabled needs no capture command", func(t *testing.T) {
		cfg := NewConfig("h1", "/data/gss")
		cfg.Session.ScreenshotIntervalSec = 0
		cfg.Session.CaptureCommand = ""
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})
}

func TestConfig_Location(t *testing.T) {
	cfg := NewConfig("h1", "/data/gss")
	cfg.DisplayTZ = "UTC"

	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location() error = %v", err)
	}
	if loc.String() != "UTC" {
		t.Errorf("Location() = %v, want UTC", loc)
	}
}

func TestFormatForPath(t *testing.T) {
	tests := map[string]Format{
		"gss.toml":         FormatTOML,
		"gss.yaml":         FormatYAML,
		"/etc/gss/gss.YML": FormatYAML,
		"gss":              FormatTOML,
	}
	for path, want := range tests {
		if got := FormatForPath(path); got != want {
			t.Errorf("FormatForPath(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "gss.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "gss.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "gss.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.HostID != "read-test" {
			t.Errorf("HostID = %q, want %q", got.HostID, "read-test")
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
	})

	t.Run("reads yaml config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "gss.yaml")
		content := "host_id: yaml-host\nsession:\n  minimum_session_gap_min: 15\nmonitor:\n  process_patterns:\n    - /games/([^/]+)/\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.HostID != "yaml-host" {
			t.Errorf("HostID = %q, want %q", got.HostID, "yaml-host")
		}
		if got.Session.MinimumSessionGapMin != 15 {
			t.Errorf("Session.MinimumSessionGapMin = %d, want 15", got.Session.MinimumSessionGapMin)
		}
		if len(got.Monitor.ProcessPatterns) != 1 {
			t.Errorf("len(Monitor.ProcessPatterns) = %d, want 1", len(got.Monitor.ProcessPatterns))
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/gss.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
