package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"gss-go/internal/config"
	"gss-go/internal/database"
	"gss-go/internal/database/migrations"
	"gss-go/internal/desktop"
	"gss-go/internal/encryption"
	"gss-go/internal/gss"
	"gss-go/internal/metrics"
	"gss-go/internal/producers"
	"gss-go/internal/vault"
)

// GSSApp is the application layer between the CLI and the session machinery.
// It constructs all dependencies from config, exposes high-level operations,
// and releases resources on Close.
type GSSApp struct {
	cfg      *config.Config
	loc      *time.Location
	db       *database.SQLDatabase
	folders  gss.FolderStore
	notifier gss.Notifier
	metrics  *metrics.Metrics
	uploader *gss.Uploader
	logger   gss.Logger
	closers  []io.Closer
}

// NewGSSApp creates a fully wired GSSApp from the given config.
// command identifies the CLI command being run (e.g. "run", "upload").
// The caller must call Close when done.
func NewGSSApp(ctx context.Context, cfg *config.Config, command string) (*GSSApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	runID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, runID, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	a := &GSSApp{
		cfg:     cfg,
		loc:     loc,
		logger:  &slogAdapter{l: slogger},
		closers: []io.Closer{logFile},
		metrics: metrics.NewMetrics(),
	}
	a.logger.Debug("starting", "command", command, "host_id", cfg.HostID)

	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *GSSApp) init(ctx context.Context) error {
	cfg := a.cfg

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db)

	// The local SQLite file belongs to this host and is migrated in place.
	// A shared server database is migrated explicitly with "gss db migrate".
	if db.Driver() == migrations.DriverSQLite {
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
	}
	if err := db.CheckMigrations(); err != nil {
		return fmt.Errorf("database schema out of date: %w", err)
	}

	var enc gss.Encryptor
	if cfg.Folders.Encrypt {
		enc = encryption.NewAgeEncryptor(cfg.Encryption)
	}
	folders, err := vault.NewFolderStoreFromConfig(ctx, cfg.Folders, enc)
	if err != nil {
		return fmt.Errorf("creating folder store: %w", err)
	}
	a.folders = folders

	notifier, err := desktop.NewNotifierFromConfig(cfg.Notifications, a.logger)
	if err != nil {
		return fmt.Errorf("creating notifier: %w", err)
	}
	a.notifier = notifier
	if c, ok := notifier.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	a.uploader = gss.NewUploader(uploaderConfig(cfg, a.loc), db, folders, a.logger, notifier, a.metrics)
	return nil
}

// uploaderConfig converts the [session] and [upload] sections.
func uploaderConfig(cfg *config.Config, loc *time.Location) gss.UploaderConfig {
	retry := gss.DefaultRetryPolicy()
	if cfg.Upload.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Upload.MaxAttempts
	}
	if cfg.Upload.MaxElapsedSec > 0 {
		retry.MaxElapsed = time.Duration(cfg.Upload.MaxElapsedSec) * time.Second
	}
	if cfg.Upload.BaseDelayMs > 0 {
		retry.BaseDelay = time.Duration(cfg.Upload.BaseDelayMs) * time.Millisecond
	}
	return gss.UploaderConfig{
		StagingDir:           cfg.Session.StagingDir,
		TrashDirName:         cfg.Session.TrashDirName,
		DeleteAfterUpload:    cfg.Session.DeleteAfterUpload,
		MinimumSessionGap:    time.Duration(cfg.Session.MinimumSessionGapMin) * time.Minute,
		MinimumSessionLength: time.Duration(cfg.Session.MinimumSessionLengthMin) * time.Minute,
		Concurrency:          cfg.Upload.Concurrency,
		IOTimeout:            time.Duration(cfg.Upload.IOTimeoutSec) * time.Second,
		TransferTimeout:      time.Duration(cfg.Upload.TransferTimeoutSec) * time.Second,
		Retry:                retry,
		Location:             loc,
	}
}

// Run watches the desktop and captures and uploads sessions until ctx is
// cancelled or a producer fails.
func (a *GSSApp) Run(ctx context.Context) error {
	if err := a.folders.ValidateSetup(ctx); err != nil {
		return fmt.Errorf("validating folder store: %w", err)
	}

	bus := gss.NewEventBus(a.logger)
	defer bus.Close()

	sources, err := a.sources(bus)
	if err != nil {
		return err
	}
	capture, err := a.captureFactory()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if a.cfg.MetricsAddr != "" {
		go func() {
			if err := a.metrics.Serve(ctx, a.cfg.MetricsAddr); err != nil {
				a.logger.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	uploader := NewRecordedUploader(a.uploader, a.db, SourceRun, a.logger)
	ctrl := gss.NewController(bus, sources, capture, uploader, a.logger, a.notifier, a.metrics)

	a.logger.Info("watching for sessions", "patterns", len(a.cfg.Monitor.ProcessPatterns))
	if err := ctrl.Run(ctx); err != nil {
		a.notifier.Notify("Game session sync stopped", err.Error())
		return err
	}
	return nil
}

// sources builds the desktop producers feeding the bus.
func (a *GSSApp) sources(bus *gss.EventBus) ([]gss.Producer, error) {
	mon := a.cfg.Monitor
	matcher, err := producers.NewMatcher(mon.ProcessPatterns)
	if err != nil {
		return nil, err
	}
	interval := time.Duration(mon.PollIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}

	probe, err := producers.NewXpropProbe()
	if err != nil {
		return nil, fmt.Errorf("creating window probe: %w", err)
	}
	sources := []gss.Producer{
		producers.NewWindowWatcher(probe, matcher, bus, interval, nil, a.logger),
	}

	lister, err := producers.NewProcLister()
	if err != nil {
		return nil, fmt.Errorf("creating process lister: %w", err)
	}
	sources = append(sources, producers.NewProcessWatcher(lister, matcher, bus, interval, nil, a.logger))

	if mon.InputIdleSec > 0 {
		idle, err := desktop.NewScreenSaverIdle()
		switch {
		case err != nil:
			// Sessions still work without idle pauses.
			a.logger.Warn("idle detection unavailable", "error", err)
		default:
			a.closers = append(a.closers, idle)
			threshold := time.Duration(mon.InputIdleSec) * time.Second
			sources = append(sources, producers.NewIdleWatcher(idle, bus, threshold, interval, nil, a.logger))
		}
	}
	return sources, nil
}

func (a *GSSApp) captureFactory() (gss.CaptureFactory, error) {
	s := a.cfg.Session
	var capturer producers.Capturer
	if s.ScreenshotIntervalSec > 0 {
		c, err := producers.NewCommandCapturer(s.CaptureCommand)
		if err != nil {
			return nil, err
		}
		capturer = c
	}
	return producers.NewCaptureFactory(s, capturer, nil, a.logger), nil
}

// Upload runs one upload pass over the staging directory.
func (a *GSSApp) Upload(ctx context.Context) (gss.UploadResult, error) {
	if err := a.folders.ValidateSetup(ctx); err != nil {
		return gss.UploadResult{}, fmt.Errorf("validating folder store: %w", err)
	}
	return NewRecordedUploader(a.uploader, a.db, SourceManual, a.logger).Upload(ctx)
}

// Sessions returns recorded sessions, newest first. An empty title lists all.
func (a *GSSApp) Sessions(ctx context.Context, title string, limit int) ([]*gss.Record, error) {
	return a.db.ListRecords(ctx, title, limit)
}

// History returns the most recent upload operations.
func (a *GSSApp) History(ctx context.Context, limit int) ([]*gss.UploadOperation, error) {
	return a.db.ListUploadOperations(ctx, limit)
}

// Location returns the display time zone.
func (a *GSSApp) Location() *time.Location {
	return a.loc
}

// Close releases all resources in reverse order of acquisition.
func (a *GSSApp) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
