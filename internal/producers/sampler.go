package producers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gss-go/internal/gss"
)

// Capturer writes a screenshot of the screen to path.
type Capturer interface {
	Capture(ctx context.Context, path string) error
}

const pathPlaceholder = "{path}"

// CommandCapturer runs an external command to take a screenshot.
type CommandCapturer struct {
	args []string
}

// NewCommandCapturer parses command, a whitespace separated argv in which
// {path} marks the output file.
func NewCommandCapturer(command string) (*CommandCapturer, error) {
	args := strings.Fields(command)
	if len(args) == 0 {
		return nil, errors.New("capture command is empty")
	}
	if !strings.Contains(command, pathPlaceholder) {
		return nil, fmt.Errorf("capture command %q has no %s placeholder", command, pathPlaceholder)
	}
	return &CommandCapturer{args: args}, nil
}

func (c *CommandCapturer) Capture(ctx context.Context, path string) error {
	argv := make([]string, len(c.args))
	for i, a := range c.args {
		argv[i] = strings.ReplaceAll(a, pathPlaceholder, path)
	}
	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("running %s: %w: %s", argv[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// PeriodicSampler captures an automatic screenshot every interval while a
// session is active. Ticks are scheduled from the start time so slow
// captures do not accumulate drift. A capture whose difference hash is
// within threshold of the previous kept capture is discarded.
type PeriodicSampler struct {
	stopper
	capturer   Capturer
	title      string
	stagingDir string
	interval   time.Duration
	threshold  int
	clock      gss.Clock
	logger     gss.Logger

	lastHash uint64
	hasHash  bool
}

var _ gss.Producer = (*PeriodicSampler)(nil)

// NewPeriodicSampler creates a sampler for title. A negative threshold
// keeps every capture.
func NewPeriodicSampler(capturer Capturer, title, stagingDir string, interval time.Duration, threshold int, clock gss.Clock, logger gss.Logger) *PeriodicSampler {
	if clock == nil {
		clock = gss.RealClock{}
	}
	return &PeriodicSampler{
		stopper:    newStopper(),
		capturer:   capturer,
		title:      title,
		stagingDir: stagingDir,
		interval:   interval,
		threshold:  threshold,
		clock:      clock,
		logger:     gss.WithComponent(logger, "sampler"),
	}
}

func (s *PeriodicSampler) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.stagingDir, 0o755); err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}

	start := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()
	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return nil
		case <-s.ch:
			return nil
		case <-timer.C:
		}

		s.sample(ctx)

		next := start.Add(time.Duration(n) * s.interval)
		// Skip ticks missed while a capture overran.
		for !next.After(time.Now()) {
			n++
			next = start.Add(time.Duration(n) * s.interval)
		}
		timer.Reset(time.Until(next))
	}
}

// sample takes one screenshot. Failures are logged and the session goes on.
func (s *PeriodicSampler) sample(ctx context.Context) {
	path, err := s.capture(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("capturing screenshot failed", "title", s.title, "error", err)
		}
		return
	}
	if path != "" {
		s.logger.Debug("captured screenshot", "title", s.title, "path", path)
	}
}

// capture returns the staged path, or "" when the capture was a duplicate.
func (s *PeriodicSampler) capture(ctx context.Context) (string, error) {
	tmp, err := os.CreateTemp(s.stagingDir, ".capture-*.png")
	if err != nil {
		return "", fmt.Errorf("creating capture file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	keep := false
	defer func() {
		if !keep {
			os.Remove(tmpPath)
		}
	}()

	now := s.clock.Now()
	if err := s.capturer.Capture(ctx, tmpPath); err != nil {
		return "", err
	}

	if s.threshold >= 0 {
		hash, err := DHashFile(tmpPath)
		if err != nil {
			return "", err
		}
		if s.hasHash && HashDistance(hash, s.lastHash) <= s.threshold {
			s.logger.Debug("dropping near-duplicate screenshot", "title", s.title, "distance", HashDistance(hash, s.lastHash))
			return "", nil
		}
		s.lastHash, s.hasHash = hash, true
	}

	dest := filepath.Join(s.stagingDir, gss.ScreenshotFilename(s.title, ".png", now, false))
	if err := os.Rename(tmpPath, dest); err != nil {
		return "", fmt.Errorf("staging screenshot: %w", err)
	}
	keep = true
	return dest, nil
}
