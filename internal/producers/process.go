package producers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gss-go/internal/gss"
)

// Process is one running process.
type Process struct {
	PID     int
	ExePath string
}

// ProcessLister enumerates running processes.
type ProcessLister interface {
	Processes(ctx context.Context) ([]Process, error)
}

// ProcessWatcher publishes WindowOpen when the first process for a title
// starts and WindowClose when the last one exits.
type ProcessWatcher struct {
	stopper
	lister   ProcessLister
	matcher  *Matcher
	bus      Publisher
	interval time.Duration
	clock    gss.Clock
	logger   gss.Logger
	alive    func(pid int) bool

	titles  map[string]map[int]struct{} // title -> live pids
	failing bool
}

var _ gss.Producer = (*ProcessWatcher)(nil)

// NewProcessWatcher creates a watcher polling every interval.
func NewProcessWatcher(lister ProcessLister, matcher *Matcher, bus Publisher, interval time.Duration, clock gss.Clock, logger gss.Logger) *ProcessWatcher {
	if clock == nil {
		clock = gss.RealClock{}
	}
	return &ProcessWatcher{
		stopper:  newStopper(),
		lister:   lister,
		matcher:  matcher,
		bus:      bus,
		interval: interval,
		clock:    clock,
		logger:   gss.WithComponent(logger, "process-watcher"),
		alive:    processAlive,
		titles:   make(map[string]map[int]struct{}),
	}
}

func (w *ProcessWatcher) Run(ctx context.Context) error {
	return poll(ctx, w.ch, w.interval, w.check)
}

func (w *ProcessWatcher) check(ctx context.Context) error {
	procs, err := w.lister.Processes(ctx)
	if err != nil {
		if errors.Is(err, gss.ErrUnsupported) {
			return fmt.Errorf("process lister: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		if !w.failing {
			w.logger.Warn("listing processes failed", "error", err)
			w.failing = true
		}
		return nil
	}
	w.failing = false

	listed := make(map[int]string, len(procs))
	for _, p := range procs {
		if title, ok := w.matcher.Title(p.ExePath); ok {
			listed[p.PID] = title
		}
	}

	now := w.clock.Now()

	// Exits first, so a restart within one interval reads as close then open.
	for title, pids := range w.titles {
		for pid := range pids {
			if !w.running(pid, title, listed) {
				delete(pids, pid)
			}
		}
		if len(pids) == 0 {
			delete(w.titles, title)
			w.logger.Info("process exited", "title", title)
			w.bus.Publish(gss.WindowClose{Title: title, Time: now})
		}
	}

	for pid, title := range listed {
		pids, ok := w.titles[title]
		if !ok {
			pids = make(map[int]struct{})
			w.titles[title] = pids
			w.logger.Info("process started", "title", title, "pid", pid)
			w.bus.Publish(gss.WindowOpen{Title: title, Time: now})
		}
		pids[pid] = struct{}{}
	}
	return nil
}

// running reports whether a tracked pid is still the process for title. A
// pid missing from the listing, whose exe can be briefly unreadable, falls
// back to a liveness probe.
func (w *ProcessWatcher) running(pid int, title string, listed map[int]string) bool {
	if t, ok := listed[pid]; ok {
		return t == title
	}
	if w.alive != nil {
		return w.alive(pid)
	}
	return false
}
