package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the main configuration for gss.
type Config struct {
	HostID      string `toml:"host_id" yaml:"host_id"`
	BaseDir     string `toml:"base_dir" yaml:"base_dir"`
	LogDir      string `toml:"log_dir" yaml:"log_dir"`
	LogLevel    string `toml:"log_level" yaml:"log_level"`                           // debug, info, warn, error
	DisplayTZ   string `toml:"display_tz,omitempty" yaml:"display_tz,omitempty"`     // IANA zone for session names; empty means local
	MetricsAddr string `toml:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"` // e.g. "127.0.0.1:9464"; empty disables

	Session       SessionConfig       `toml:"session" yaml:"session"`
	Monitor       MonitorConfig       `toml:"monitor" yaml:"monitor"`
	Upload        UploadConfig        `toml:"upload" yaml:"upload"`
	Database      DatabaseConfig      `toml:"database" yaml:"database"`
	Folders       FoldersConfig       `toml:"folders" yaml:"folders"`
	Encryption    EncryptionConfig    `toml:"encryption" yaml:"encryption"`
	Notifications NotificationsConfig `toml:"notifications" yaml:"notifications"`
}

// SessionConfig controls capture and clustering.
type SessionConfig struct {
	WatchDir                string `toml:"watch_dir" yaml:"watch_dir"`     // where manual screenshots land
	StagingDir              string `toml:"staging_dir" yaml:"staging_dir"` // screenshots waiting for upload
	TrashDirName            string `toml:"trash_dir_name" yaml:"trash_dir_name"`
	ScreenshotIntervalSec   int    `toml:"screenshot_interval_sec" yaml:"screenshot_interval_sec"`
	MinimumSessionGapMin    int    `toml:"minimum_session_gap_min" yaml:"minimum_session_gap_min"`
	MinimumSessionLengthMin int    `toml:"minimum_session_length_min" yaml:"minimum_session_length_min"`
	PhashThreshold          int    `toml:"phash_threshold" yaml:"phash_threshold"`
	DeleteAfterUpload       bool   `toml:"delete_after_upload" yaml:"delete_after_upload"`
	CaptureCommand          string `toml:"capture_command" yaml:"capture_command"` // {path} is replaced with the output file
	SettleMs                int    `toml:"settle_ms" yaml:"settle_ms"`
}

// MonitorConfig controls the desktop producers.
type MonitorConfig struct {
	// ProcessPatterns are regular expressions matched against executable
	// paths. Capture group 1 is the session title.
	ProcessPatterns []string `toml:"process_patterns" yaml:"process_patterns"`
	InputIdleSec    int      `toml:"input_idle_sec" yaml:"input_idle_sec"`
	PollIntervalMs  int      `toml:"poll_interval_ms" yaml:"poll_interval_ms"`
}

// UploadConfig controls upload concurrency, timeouts and retries.
type UploadConfig struct {
	Concurrency        int `toml:"concurrency" yaml:"concurrency"`
	IOTimeoutSec       int `toml:"io_timeout_sec" yaml:"io_timeout_sec"`
	TransferTimeoutSec int `toml:"transfer_timeout_sec,omitempty" yaml:"transfer_timeout_sec,omitempty"`
	MaxAttempts        int `toml:"max_attempts" yaml:"max_attempts"`
	MaxElapsedSec      int `toml:"max_elapsed_sec" yaml:"max_elapsed_sec"`
	BaseDelayMs        int `toml:"base_delay_ms" yaml:"base_delay_ms"`
}

// DatabaseConfig represents configuration for the record database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type" yaml:"type"`                             // "sqlite", "memory" or "postgres"
	DataDir string `toml:"data_dir,omitempty" yaml:"data_dir,omitempty"` // only used for type=sqlite
	DSN     string `toml:"dsn,omitempty" yaml:"dsn,omitempty"`           // only used for type=postgres
}

// FoldersConfig represents configuration for the screenshot folder store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type FoldersConfig struct {
	Type string `toml:"type" yaml:"type"` // "memory", "filesystem" or "s3"

	// FileSystem-specific fields (only used when Type == "filesystem")
	Root string `toml:"root,omitempty" yaml:"root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty" yaml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty" yaml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty" yaml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty" yaml:"s3_endpoint,omitempty"`

	// Encrypt uploads with the age public key from [encryption].
	Encrypt bool `toml:"encrypt" yaml:"encrypt"`
}

// EncryptionConfig holds paths to the age key pair used for encrypted uploads.
type EncryptionConfig struct {
	PublicKeyPath  string `toml:"public_key_path" yaml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path" yaml:"private_key_path"`
}

// NotificationsConfig selects the desktop notifier.
type NotificationsConfig struct {
	Type string `toml:"type" yaml:"type"` // "log" or "dbus"
}

// NewConfig creates a new Config with the provided values and default settings.
func NewConfig(hostID, baseDir string) *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		HostID:   hostID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Session: SessionConfig{
			WatchDir:              filepath.Join(home, "Pictures", "Screenshots"),
			StagingDir:            filepath.Join(baseDir, "staging"),
			TrashDirName:          ".trash",
			ScreenshotIntervalSec: 300,
			MinimumSessionGapMin:  30,
			PhashThreshold:        4,
			CaptureCommand:        "import -window root {path}",
			SettleMs:              2000,
		},
		Monitor: MonitorConfig{
			ProcessPatterns: []string{`(?i)/steamapps/common/([^/]+)/`},
			InputIdleSec:    300,
			PollIntervalMs:  1000,
		},
		Upload: UploadConfig{
			Concurrency:   6,
			IOTimeoutSec:  10,
			MaxAttempts:   5,
			MaxElapsedSec: 120,
			BaseDelayMs:   500,
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Folders: FoldersConfig{
			Type: "filesystem",
			Root: filepath.Join(baseDir, "sessions"),
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "gss.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "gss.key"),
		},
		Notifications: NotificationsConfig{Type: "log"},
	}
}

// Validate checks the config for values the application cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.HostID == "" {
		errs = append(errs, errors.New("host_id is required"))
	}
	if c.Session.StagingDir == "" {
		errs = append(errs, errors.New("session.staging_dir is required"))
	}
	if strings.ContainsRune(c.Session.TrashDirName, os.PathSeparator) {
		errs = append(errs, fmt.Errorf("session.trash_dir_name %q must not contain a path separator", c.Session.TrashDirName))
	}
	if c.Session.ScreenshotIntervalSec < 0 {
		errs = append(errs, errors.New("session.screenshot_interval_sec must not be negative"))
	}
	if c.Session.MinimumSessionGapMin <= 0 {
		errs = append(errs, errors.New("session.minimum_session_gap_min must be positive"))
	}
	if c.Session.MinimumSessionLengthMin < 0 {
		errs = append(errs, errors.New("session.minimum_session_length_min must not be negative"))
	}
	if c.Session.PhashThreshold < 0 || c.Session.PhashThreshold > 64 {
		errs = append(errs, errors.New("session.phash_threshold must be between 0 and 64"))
	}
	if c.Session.ScreenshotIntervalSec > 0 && !strings.Contains(c.Session.CaptureCommand, "{path}") {
		errs = append(errs, errors.New("session.capture_command must contain {path}"))
	}
	for _, p := range c.Monitor.ProcessPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("monitor.process_patterns: %w", err))
			continue
		}
		if re.NumSubexp() < 1 {
			errs = append(errs, fmt.Errorf("monitor.process_patterns: %q has no capture group for the title", p))
		}
	}
	if c.Upload.Concurrency < 0 {
		errs = append(errs, errors.New("upload.concurrency must not be negative"))
	}
	if c.Upload.IOTimeoutSec < 0 || c.Upload.TransferTimeoutSec < 0 {
		errs = append(errs, errors.New("upload timeouts must not be negative"))
	}
	if c.DisplayTZ != "" {
		if _, err := time.LoadLocation(c.DisplayTZ); err != nil {
			errs = append(errs, fmt.Errorf("display_tz: %w", err))
		}
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	return errors.Join(errs...)
}

// Location returns the display time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.DisplayTZ == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.DisplayTZ)
	if err != nil {
		return nil, fmt.Errorf("loading display_tz: %w", err)
	}
	return loc, nil
}

// Format selects the encoding of a config file.
type Format int

const (
	FormatTOML Format = iota
	FormatYAML
)

// FormatForPath picks the format from the file extension. Anything other
// than .yaml or .yml is TOML.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Manager handles reading and writing configuration.
type Manager struct {
	Format Format
}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	switch m.Format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	default:
		if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	switch m.Format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
	default:
		if err := toml.NewEncoder(w).Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{Format: FormatForPath(path)}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{Format: FormatForPath(path)}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
