package producers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gss-go/internal/gss"
)

// WindowInfo describes the focused top-level window.
type WindowInfo struct {
	ID         string
	PID        int
	ExePath    string
	Fullscreen bool
	Hidden     bool
}

// WindowProbe reports the focused window. It returns (nil, nil) when no
// window has focus.
type WindowProbe interface {
	ActiveWindow(ctx context.Context) (*WindowInfo, error)
}

// WindowWatcher polls the focused window and publishes WindowFullscreen
// when a matched process becomes the fullscreen foreground window, and
// WindowMinimized when that window loses focus, leaves fullscreen or is
// hidden.
type WindowWatcher struct {
	stopper
	probe    WindowProbe
	matcher  *Matcher
	bus      Publisher
	interval time.Duration
	clock    gss.Clock
	logger   gss.Logger

	fullscreen string // title of the current fullscreen window, "" if none
	failing    bool
}

var _ gss.Producer = (*WindowWatcher)(nil)

// NewWindowWatcher creates a watcher polling every interval.
func NewWindowWatcher(probe WindowProbe, matcher *Matcher, bus Publisher, interval time.Duration, clock gss.Clock, logger gss.Logger) *WindowWatcher {
	if clock == nil {
		clock = gss.RealClock{}
	}
	return &WindowWatcher{
		stopper:  newStopper(),
		probe:    probe,
		matcher:  matcher,
		bus:      bus,
		interval: interval,
		clock:    clock,
		logger:   gss.WithComponent(logger, "window-watcher"),
	}
}

func (w *WindowWatcher) Run(ctx context.Context) error {
	return poll(ctx, w.ch, w.interval, w.check)
}

func (w *WindowWatcher) check(ctx context.Context) error {
	info, err := w.probe.ActiveWindow(ctx)
	if err != nil {
		if errors.Is(err, gss.ErrUnsupported) {
			return fmt.Errorf("window probe: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		if !w.failing {
			w.logger.Warn("window probe failed", "error", err)
			w.failing = true
		}
		return nil
	}
	if w.failing {
		w.logger.Info("window probe recovered")
		w.failing = false
	}

	next := ""
	if info != nil && info.Fullscreen && !info.Hidden {
		if title, ok := w.matcher.Title(info.ExePath); ok {
			next = title
		}
	}
	if next == w.fullscreen {
		return nil
	}

	now := w.clock.Now()
	if w.fullscreen != "" {
		w.logger.Debug("window left fullscreen", "title", w.fullscreen)
		w.bus.Publish(gss.WindowMinimized{Title: w.fullscreen, Time: now})
	}
	if next != "" {
		w.logger.Debug("window fullscreen", "title", next, "pid", info.PID)
		w.bus.Publish(gss.WindowFullscreen{Title: next, Time: now})
	}
	w.fullscreen = next
	return nil
}
