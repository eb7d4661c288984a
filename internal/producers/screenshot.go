package producers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"gss-go/internal/gss"
)

// ScreenshotWatcher picks up screenshots the user takes by hand. New .png
// files in the watch directory are moved into staging once they have not
// changed for the settle period, renamed with the manual flag.
type ScreenshotWatcher struct {
	stopper
	title      string
	watchDir   string
	stagingDir string
	settle     time.Duration
	clock      gss.Clock
	logger     gss.Logger

	// path -> time of the last write event
	pending map[string]time.Time
}

var _ gss.Producer = (*ScreenshotWatcher)(nil)

// NewScreenshotWatcher creates a watcher for title.
func NewScreenshotWatcher(title, watchDir, stagingDir string, settle time.Duration, clock gss.Clock, logger gss.Logger) *ScreenshotWatcher {
	if clock == nil {
		clock = gss.RealClock{}
	}
	return &ScreenshotWatcher{
		stopper:    newStopper(),
		title:      title,
		watchDir:   watchDir,
		stagingDir: stagingDir,
		settle:     settle,
		clock:      clock,
		logger:     gss.WithComponent(logger, "screenshot-watcher"),
		pending:    make(map[string]time.Time),
	}
}

func (w *ScreenshotWatcher) Run(ctx context.Context) error {
	for _, dir := range []string{w.watchDir, w.stagingDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.watchDir); err != nil {
		return fmt.Errorf("watching %s: %w", w.watchDir, err)
	}

	ticker := time.NewTicker(max(w.settle/4, 50*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.ch:
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !isScreenshot(event.Name) {
				continue
			}
			w.pending[event.Name] = time.Now()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)

		case now := <-ticker.C:
			w.flush(now)
		}
	}
}

func isScreenshot(path string) bool {
	base := filepath.Base(path)
	return !strings.HasPrefix(base, ".") && strings.EqualFold(filepath.Ext(base), ".png")
}

// flush moves files that have been quiet for the settle period.
func (w *ScreenshotWatcher) flush(now time.Time) {
	for path, last := range w.pending {
		if now.Sub(last) < w.settle {
			continue
		}
		delete(w.pending, path)

		dest, err := w.stage(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			w.logger.Warn("staging manual screenshot failed", "path", path, "error", err)
			continue
		}
		w.logger.Info("staged manual screenshot", "title", w.title, "path", dest)
	}
}

func (w *ScreenshotWatcher) stage(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", os.ErrNotExist
	}

	ts := info.ModTime().In(w.clock.Now().Location())
	ext := strings.ToLower(filepath.Ext(path))
	dest := filepath.Join(w.stagingDir, gss.ScreenshotFilename(w.title, ext, ts, true))
	for {
		if _, err := os.Lstat(dest); errors.Is(err, os.ErrNotExist) {
			break
		}
		ts = ts.Add(time.Millisecond)
		dest = filepath.Join(w.stagingDir, gss.ScreenshotFilename(w.title, ext, ts, true))
	}

	if err := moveFile(path, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".part")
	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Remove(src)
}
