package gss

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// SessionUploader is the part of Uploader the Controller drives.
type SessionUploader interface {
	// Begin registers a pass, or joins the one in flight, and returns a
	// function that waits for it. A following Stop must see the pass.
	Begin(ctx context.Context) func(context.Context) (UploadResult, error)
	Stop(ctx context.Context) error
}

// Controller consumes the event bus and drives the session state machine.
// Sources are the OS producers feeding the bus; capture builds the producers
// that run while a session is active.
type Controller struct {
	bus      *EventBus
	sources  []Producer
	capture  CaptureFactory
	uploader SessionUploader
	logger   Logger
	notifier Notifier
	metrics  Metrics

	// Guarded by mu; written only by the event loop.
	mu sync.Mutex
	m  machine

	session     *session
	finalUpload bool
	uploads     sync.WaitGroup

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewController creates a Controller. notifier and metrics may be nil.
func NewController(bus *EventBus, sources []Producer, capture CaptureFactory, uploader SessionUploader, logger Logger, notifier Notifier, metrics Metrics) *Controller {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Controller{
		bus:      bus,
		sources:  sources,
		capture:  capture,
		uploader: uploader,
		logger:   WithComponent(logger, "controller"),
		notifier: notifier,
		metrics:  metrics,
		stopCh:   make(chan struct{}),
	}
}

// State returns the current state and session title.
func (c *Controller) State() (State, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m.State, c.m.Title
}

// Stop asks Run to shut down. It does not wait.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Run starts the sources and processes events until ctx is cancelled, Stop
// is called, or a producer fails. On a clean shutdown any session is stopped
// and a final upload is awaited. A producer failure is returned as-is.
func (c *Controller) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, p := range c.sources {
		g.Go(func() error {
			if err := p.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("producer %T: %w", p, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		c.loop(gctx, g)
		return nil
	})

	err := g.Wait()
	if err != nil {
		c.logger.Error("controller failed", "error", err)
		if stopErr := c.uploader.Stop(context.WithoutCancel(ctx)); stopErr != nil {
			c.logger.Warn("stopping upload", "error", stopErr)
		}
		c.uploads.Wait()
		return err
	}

	c.uploads.Wait()
	if c.finalUpload {
		c.logger.Info("uploading before shutdown")
		ctx := context.WithoutCancel(ctx)
		c.report(c.uploader.Begin(ctx)(ctx))
	}
	return nil
}

func (c *Controller) loop(ctx context.Context, g *errgroup.Group) {
	defer c.shutdown()

	events := c.bus.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handle(ctx, g, ev)
		}
	}
}

// shutdown stops the sources and any session. Runs on the event loop.
func (c *Controller) shutdown() {
	state, title := c.State()
	c.logger.Info("stopping", "state", state.String(), "title", title)

	for _, p := range c.sources {
		p.Stop()
	}
	if c.session != nil {
		c.session.stop()
		c.session = nil
	}
	if state != StateIdle {
		c.finalUpload = true
		c.setMachine(machine{State: StateIdle})
		c.metrics.SessionTransition(state, StateIdle)
	}
}

func (c *Controller) handle(ctx context.Context, g *errgroup.Group, ev Event) {
	c.mu.Lock()
	prev := c.m
	c.mu.Unlock()

	next, effects := prev.apply(ev)
	c.logger.Debug("event", "kind", ev.Kind().String(), "title", EventTitle(ev), "state", prev.State.String())

	c.setMachine(next)
	for _, eff := range effects {
		switch eff {
		case effWarnSwitch:
			c.logger.Warn("starting a new session while another is active", "previous", prev.Title, "next", next.Title)
		case effStopCapture:
			if c.session != nil {
				c.session.stop()
				if next.State == StateIdle || next.Title != c.session.title {
					c.session = nil
				}
			}
		case effStopUpload:
			if err := c.uploader.Stop(ctx); err != nil {
				c.logger.Warn("waiting for upload to stop", "error", err)
			}
		case effStartCapture:
			if c.session == nil || c.session.title != next.Title {
				c.session = newSession(next.Title, c.logger)
			}
			c.session.start(ctx, g, c.capture)
		case effTriggerUpload:
			// Registered here so that a session starting on the next event
			// stops this pass before capturing.
			uctx := context.WithoutCancel(ctx)
			wait := c.uploader.Begin(uctx)
			c.uploads.Add(1)
			go func() {
				defer c.uploads.Done()
				c.report(wait(uctx))
			}()
		}
	}

	if prev.State != next.State || prev.Title != next.Title {
		c.metrics.SessionTransition(prev.State, next.State)
		c.logger.Info("session state changed",
			"from", prev.State.String(),
			"to", next.State.String(),
			"title", next.Title,
			"event", ev.Kind().String())
	}
}

func (c *Controller) setMachine(m machine) {
	c.mu.Lock()
	c.m = m
	c.mu.Unlock()
}

func (c *Controller) report(res UploadResult, err error) {
	if err != nil {
		c.logger.Error("upload failed", "error", err)
		c.notifier.Notify("Upload failed", err.Error())
		return
	}
	if !res.Completed {
		c.logger.Info("upload interrupted", "clusters_done", res.Clusters)
	}
}
