package gss

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTrashDirName is the staging subdirectory that receives uploaded files
// when they are not deleted.
const DefaultTrashDirName = ".trash"

// UploaderConfig configures an Uploader.
type UploaderConfig struct {
	StagingDir        string
	TrashDirName      string
	DeleteAfterUpload bool

	// MinimumSessionGap splits clusters and decides between extending the
	// latest record and creating a new one.
	MinimumSessionGap time.Duration

	// MinimumSessionLength is carried for configuration completeness. Short
	// sessions are not pruned.
	MinimumSessionLength time.Duration

	// Concurrency is the number of files uploaded at once, and the batch size.
	Concurrency int

	// IOTimeout bounds every record and folder call.
	IOTimeout time.Duration

	// TransferTimeout bounds a single file upload attempt.
	TransferTimeout time.Duration

	Retry RetryPolicy

	// Location renders session names and folder names.
	Location *time.Location
}

// UploadResult summarizes one upload pass.
type UploadResult struct {
	// Completed is false when the pass stopped early on request.
	Completed       bool
	Clusters        int
	FilesUploaded   int
	FilesSkipped    int
	Unparsed        int
	RecordsCreated  int
	RecordsExtended int
}

// uploadTask is one registered upload pass, shared by every caller that joins it.
type uploadTask struct {
	done   chan struct{}
	result UploadResult
	err    error
}

// Wait blocks until the pass returns or ctx is done.
func (t *uploadTask) Wait(ctx context.Context) (UploadResult, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return UploadResult{}, ctx.Err()
	}
}

// Uploader clusters staged screenshots into sessions, reconciles them with the
// record store, uploads them to the folder store, and cleans up the staging
// directory. At most one pass runs at a time.
type Uploader struct {
	cfg      UploaderConfig
	records  RecordStore
	folders  FolderStore
	logger   Logger
	notifier Notifier
	metrics  Metrics

	mu       sync.Mutex
	inflight *uploadTask
	stopping atomic.Bool

	// cache holds the last record this uploader resolved per title. Only the
	// in-flight task touches it.
	cache map[string]Record
}

// NewUploader creates an Uploader. notifier and metrics may be nil.
func NewUploader(cfg UploaderConfig, records RecordStore, folders FolderStore, logger Logger, notifier Notifier, metrics Metrics) *Uploader {
	if cfg.TrashDirName == "" {
		cfg.TrashDirName = DefaultTrashDirName
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = 10 * time.Second
	}
	if cfg.TransferTimeout <= 0 {
		cfg.TransferTimeout = 6 * cfg.IOTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Uploader{
		cfg:      cfg,
		records:  records,
		folders:  folders,
		logger:   WithComponent(logger, "uploader"),
		notifier: notifier,
		metrics:  metrics,
		cache:    make(map[string]Record),
	}
}

// Upload runs a pass over the staging directory. If a pass is already in
// flight, Upload waits for it and returns its result instead of starting
// another. Cancelling ctx stops waiting; the pass itself only stops at a
// batch boundary.
func (u *Uploader) Upload(ctx context.Context) (UploadResult, error) {
	return u.Begin(ctx)(ctx)
}

// Begin registers a pass, or joins the one in flight, and returns a function
// that waits for it. The pass is visible to Stop and InFlight before Begin
// returns.
func (u *Uploader) Begin(ctx context.Context) func(context.Context) (UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	task := u.inflight
	if task == nil {
		task = &uploadTask{done: make(chan struct{})}
		u.inflight = task
		u.stopping.Store(false)
		go u.runTask(ctx, task)
	} else {
		u.logger.Debug("joining in-flight upload")
	}
	return task.Wait
}

// InFlight reports whether a pass is running.
func (u *Uploader) InFlight() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.inflight != nil
}

// RequestStop asks the in-flight pass to return at its next batch boundary.
// It does not wait. Returns false when no pass is running.
func (u *Uploader) RequestStop() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.inflight == nil {
		return false
	}
	u.stopping.Store(true)
	return true
}

// Stop requests a stop and waits for the in-flight pass, if any, to return.
func (u *Uploader) Stop(ctx context.Context) error {
	u.mu.Lock()
	task := u.inflight
	if task != nil {
		u.stopping.Store(true)
	}
	u.mu.Unlock()

	if task == nil {
		return nil
	}
	u.logger.Info("waiting for in-flight upload to stop")
	select {
	case <-task.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (u *Uploader) runTask(parent context.Context, task *uploadTask) {
	// I/O runs detached from the caller so a batch is never torn by
	// cancellation; parent is only consulted at batch boundaries.
	ioCtx := context.WithoutCancel(parent)
	task.result, task.err = u.pass(parent, ioCtx)

	u.mu.Lock()
	u.inflight = nil
	u.mu.Unlock()
	close(task.done)
}

func (u *Uploader) stopRequested(parent context.Context) bool {
	return u.stopping.Load() || parent.Err() != nil
}

func (u *Uploader) pass(parent, ctx context.Context) (UploadResult, error) {
	var res UploadResult

	files, unparsed, err := u.scan()
	res.Unparsed = unparsed
	if err != nil {
		u.metrics.UploadPass(PassFailed)
		return res, err
	}
	if len(files) == 0 {
		u.logger.Info("staging directory is empty", "dir", u.cfg.StagingDir)
		u.notifier.Notify("Nothing to upload", fmt.Sprintf("%s is empty", u.cfg.StagingDir))
		u.metrics.UploadPass(PassEmpty)
		res.Completed = true
		return res, nil
	}

	clusters := BuildClusters(files, u.cfg.MinimumSessionGap)
	u.logger.Info("upload pass started", "files", len(files), "clusters", len(clusters), "unparsed", unparsed)
	u.notifier.Notify("Uploading", fmt.Sprintf("Syncing %d %s, %d files", len(clusters), plural(len(clusters), "session"), len(files)))

	for i, c := range clusters {
		if u.stopRequested(parent) {
			return u.interrupted(res, c)
		}

		done, err := u.uploadCluster(parent, ctx, c, &res)
		if err != nil {
			u.metrics.UploadPass(PassFailed)
			u.notifier.Notify("Upload failed", fmt.Sprintf("%s: %v", c.Title, err))
			return res, fmt.Errorf("uploading %q cluster starting %s: %w", c.Title, c.Start().Format(time.RFC3339), err)
		}
		if !done {
			return u.interrupted(res, c)
		}
		res.Clusters++
		u.notifier.Notify("Uploaded", fmt.Sprintf("%d/%d: %s (%d files)", i+1, len(clusters), c.Title, len(c.Files)))
	}

	res.Completed = true
	u.metrics.UploadPass(PassCompleted)
	u.logger.Info("upload pass completed",
		"clusters", res.Clusters,
		"uploaded", res.FilesUploaded,
		"skipped", res.FilesSkipped,
		"created", res.RecordsCreated,
		"extended", res.RecordsExtended)
	u.notifier.Notify("Upload complete", fmt.Sprintf("%d %s, %d files", res.Clusters, plural(res.Clusters, "session"), res.FilesUploaded+res.FilesSkipped))
	return res, nil
}

func (u *Uploader) interrupted(res UploadResult, at Cluster) (UploadResult, error) {
	u.logger.Info("upload pass stopped early", "title", at.Title, "clusters_done", res.Clusters)
	u.metrics.UploadPass(PassInterrupted)
	return res, nil
}

// scan lists and parses the staging directory. Subdirectories (including the
// trash directory) and dotfiles are ignored.
func (u *Uploader) scan() ([]StagedFile, int, error) {
	entries, err := os.ReadDir(u.cfg.StagingDir)
	if err != nil {
		return nil, 0, fmt.Errorf("listing staging directory: %w", err)
	}

	var files []StagedFile
	unparsed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		parsed, ok := ParseScreenshotFilename(name, u.cfg.Location)
		if !ok {
			u.logger.Warn("skipping unparsable screenshot name", "name", name)
			unparsed++
			continue
		}
		files = append(files, StagedFile{
			Path:   filepath.Join(u.cfg.StagingDir, name),
			Name:   name,
			Title:  parsed.Title,
			Time:   parsed.Time,
			Manual: parsed.Manual,
		})
	}
	return files, unparsed, nil
}

func (u *Uploader) uploadCluster(parent, ctx context.Context, c Cluster, res *UploadResult) (bool, error) {
	rec, folderID, err := u.resolveRecord(ctx, c, res)
	if err != nil {
		return false, err
	}

	width := u.cfg.Concurrency
	for start := 0; start < len(c.Files); start += width {
		end := min(start+width, len(c.Files))
		batch := c.Files[start:end]

		skipped, err := u.uploadBatch(ctx, folderID, batch)
		if err != nil {
			return false, err
		}

		last := batch[len(batch)-1].Time
		if last.After(rec.End) {
			err := u.call(ctx, u.cfg.IOTimeout, func(ctx context.Context) error {
				return u.records.UpdateRecordEnd(ctx, rec.ID, last)
			})
			if err != nil {
				return false, fmt.Errorf("advancing record %s end: %w", rec.ID, err)
			}
			rec.End = last
		}
		u.cache[c.Title] = *rec

		if err := u.cleanup(batch); err != nil {
			return false, err
		}

		res.FilesUploaded += len(batch) - skipped
		res.FilesSkipped += skipped
		u.logger.Debug("batch uploaded", "title", c.Title, "files", len(batch), "record_end", rec.End.Format(time.RFC3339))

		if end < len(c.Files) && u.stopRequested(parent) {
			return false, nil
		}
	}
	return true, nil
}

// resolveRecord returns the record the cluster belongs to, creating one when
// the latest record for the title is missing or at least a gap away.
func (u *Uploader) resolveRecord(ctx context.Context, c Cluster, res *UploadResult) (*Record, string, error) {
	latest := u.findLatest(ctx, c.Title)
	gap := u.cfg.MinimumSessionGap

	if latest != nil && c.Start().Sub(latest.End) < gap {
		u.logger.Info("extending remote session",
			"title", c.Title,
			"record", latest.ID,
			"gap_min", fmt.Sprintf("%.1f", c.Start().Sub(latest.End).Minutes()))
		folderID := latest.FolderID
		if folderID == "" {
			folder, err := u.sessionFolder(ctx, c.Title, latest.Start)
			if err != nil {
				return nil, "", err
			}
			folderID = folder.ID
		}
		res.RecordsExtended++
		u.metrics.RecordResolved(false)
		return latest, folderID, nil
	}

	gapDesc := "n/a"
	if latest != nil {
		gapDesc = fmt.Sprintf("%.1f", c.Start().Sub(latest.End).Minutes())
	}
	u.logger.Info("creating remote session", "title", c.Title, "gap_min", gapDesc, "threshold_min", gap.Minutes())

	folder, err := u.sessionFolder(ctx, c.Title, c.Start())
	if err != nil {
		return nil, "", err
	}

	var rec *Record
	err = u.call(ctx, u.cfg.IOTimeout, func(ctx context.Context) error {
		var err error
		rec, err = u.records.CreateRecord(ctx, NewRecord{
			Name:     SessionName(c.Title, c.Start(), u.cfg.Location),
			Title:    c.Title,
			Start:    c.Start(),
			End:      c.Start(),
			FolderID: folder.ID,
			Link:     u.folders.FolderLink(folder),
		})
		return err
	})
	if err != nil {
		return nil, "", fmt.Errorf("creating record: %w", err)
	}
	u.cache[c.Title] = *rec
	res.RecordsCreated++
	u.metrics.RecordResolved(true)
	return rec, folder.ID, nil
}

// findLatest queries the record store, falling back to the cache when the
// query fails and to "no record" when nothing is cached.
func (u *Uploader) findLatest(ctx context.Context, title string) *Record {
	var rec *Record
	err := u.call(ctx, u.cfg.IOTimeout, func(ctx context.Context) error {
		var err error
		rec, err = u.records.FindLatestRecord(ctx, title)
		return err
	})
	if err != nil {
		cached, ok := u.cache[title]
		u.logger.Warn("record lookup failed", "title", title, "error", err, "cached", ok)
		if ok {
			return &cached
		}
		return nil
	}
	return rec
}

// sessionFolder finds or creates root/<title>/<YYYY-MM-DD HH_MM>.
func (u *Uploader) sessionFolder(ctx context.Context, title string, start time.Time) (*Folder, error) {
	var titleFolder, sessionFolder *Folder
	err := u.call(ctx, u.cfg.IOTimeout, func(ctx context.Context) error {
		var err error
		titleFolder, err = u.folders.FindOrCreateFolder(ctx, title, u.folders.RootID())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("finding title folder: %w", err)
	}

	name := SessionFolderName(start, u.cfg.Location)
	err = u.call(ctx, u.cfg.IOTimeout, func(ctx context.Context) error {
		var err error
		sessionFolder, err = u.folders.FindOrCreateFolder(ctx, name, titleFolder.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("finding session folder: %w", err)
	}
	return sessionFolder, nil
}

// uploadBatch uploads every file in batch concurrently and returns how many
// were skipped as already present.
func (u *Uploader) uploadBatch(ctx context.Context, folderID string, batch []StagedFile) (int, error) {
	var skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range batch {
		g.Go(func() error {
			h, err := u.uploadOne(gctx, folderID, f)
			if err != nil {
				return err
			}
			if h != nil && h.Skipped {
				skipped.Add(1)
			}
			u.metrics.FileUploaded(h != nil && h.Skipped)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return int(skipped.Load()), nil
}

func (u *Uploader) uploadOne(ctx context.Context, folderID string, f StagedFile) (*FileHandle, error) {
	var handle *FileHandle
	onRetry := func(attempt int, err error, wait time.Duration) {
		u.metrics.UploadRetry()
		u.logger.Warn("upload attempt failed", "file", f.Name, "attempt", attempt, "retry_in", wait.Round(time.Millisecond), "error", err)
	}
	err := retry(ctx, u.cfg.Retry, onRetry, func(ctx context.Context) error {
		actx, cancel := context.WithTimeout(ctx, u.cfg.TransferTimeout)
		defer cancel()
		h, err := u.folders.UploadFile(actx, folderID, f.Path, f.Name)
		if err != nil {
			return err
		}
		handle = h
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", f.Name, err)
	}
	return handle, nil
}

// cleanup deletes the batch's local files or moves them into the trash dir.
func (u *Uploader) cleanup(batch []StagedFile) error {
	if u.cfg.DeleteAfterUpload {
		for _, f := range batch {
			if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("deleting uploaded file: %w", err)
			}
		}
		return nil
	}

	trash := filepath.Join(u.cfg.StagingDir, u.cfg.TrashDirName)
	if err := os.MkdirAll(trash, 0755); err != nil {
		return fmt.Errorf("creating trash directory: %w", err)
	}
	for _, f := range batch {
		if err := os.Rename(f.Path, filepath.Join(trash, f.Name)); err != nil {
			return fmt.Errorf("moving uploaded file to trash: %w", err)
		}
	}
	return nil
}

// call runs fn with a timeout derived from ctx.
func (u *Uploader) call(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
