package gss

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// session is the live capture state of one title. It is only touched by the
// Controller's event loop.
type session struct {
	title     string
	logger    Logger
	cancel    context.CancelFunc
	producers []Producer
	wg        sync.WaitGroup
}

func newSession(title string, logger Logger) *session {
	return &session{title: title, logger: logger}
}

func (s *session) active() bool { return s.cancel != nil }

// start runs fresh capture producers under g so their failures reach the
// Controller. It is a no-op while already active.
func (s *session) start(ctx context.Context, g *errgroup.Group, factory CaptureFactory) {
	if s.active() {
		return
	}
	sctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.producers = nil
	if factory != nil {
		s.producers = factory(s.title)
	}

	for _, p := range s.producers {
		s.wg.Add(1)
		g.Go(func() error {
			defer s.wg.Done()
			if err := p.Run(sctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("capture producer %T for %q: %w", p, s.title, err)
			}
			return nil
		})
	}
	s.logger.Info("session capture started", "title", s.title, "producers", len(s.producers))
}

// stop stops the capture producers and waits for them to return.
func (s *session) stop() {
	if !s.active() {
		return
	}
	for _, p := range s.producers {
		p.Stop()
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
	s.producers = nil
	s.logger.Info("session capture stopped", "title", s.title)
}
