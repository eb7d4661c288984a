package producers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gss-go/internal/gss"
)

// IdleSource reports how long the user has been idle.
type IdleSource interface {
	IdleTime(ctx context.Context) (time.Duration, error)
}

// IdleWatcher publishes InputIdle once idle time crosses the threshold and
// InputActive when input resumes.
type IdleWatcher struct {
	stopper
	source    IdleSource
	bus       Publisher
	threshold time.Duration
	interval  time.Duration
	clock     gss.Clock
	logger    gss.Logger

	idle     bool
	lastIdle time.Duration
	failing  bool
}

var _ gss.Producer = (*IdleWatcher)(nil)

// NewIdleWatcher creates a watcher polling every interval.
func NewIdleWatcher(source IdleSource, bus Publisher, threshold, interval time.Duration, clock gss.Clock, logger gss.Logger) *IdleWatcher {
	if clock == nil {
		clock = gss.RealClock{}
	}
	return &IdleWatcher{
		stopper:   newStopper(),
		source:    source,
		bus:       bus,
		threshold: threshold,
		interval:  interval,
		clock:     clock,
		logger:    gss.WithComponent(logger, "idle-watcher"),
	}
}

func (w *IdleWatcher) Run(ctx context.Context) error {
	return poll(ctx, w.ch, w.interval, w.check)
}

func (w *IdleWatcher) check(ctx context.Context) error {
	idle, err := w.source.IdleTime(ctx)
	if err != nil {
		if errors.Is(err, gss.ErrUnsupported) {
			return fmt.Errorf("idle source: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		if !w.failing {
			w.logger.Warn("reading idle time failed", "error", err)
			w.failing = true
		}
		return nil
	}
	w.failing = false

	now := w.clock.Now()
	switch {
	case !w.idle && idle >= w.threshold:
		w.idle = true
		w.logger.Info("input idle", "idle_seconds", idle.Seconds())
		w.bus.Publish(gss.InputIdle{IdleSeconds: idle.Seconds(), Time: now})
	case w.idle && idle < w.threshold:
		w.idle = false
		// The last reading before input returned is the length of the idle period.
		w.logger.Info("input active", "idle_seconds", w.lastIdle.Seconds())
		w.bus.Publish(gss.InputActive{IdleSeconds: w.lastIdle.Seconds(), Time: now})
	}
	w.lastIdle = idle
	return nil
}
