// Package producers holds the event sources that feed the session
// controller and the capture producers that run during a session.
package producers

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"gss-go/internal/gss"
)

// Publisher accepts events. *gss.EventBus implements it.
type Publisher interface {
	Publish(ev gss.Event)
}

// stopper implements Producer.Stop.
type stopper struct {
	once sync.Once
	ch   chan struct{}
}

func newStopper() stopper {
	return stopper{ch: make(chan struct{})}
}

// Stop asks Run to return. Safe to call more than once.
func (s *stopper) Stop() {
	s.once.Do(func() { close(s.ch) })
}

// poll runs fn immediately and then every interval until ctx is done or
// stop is closed. An error from fn ends the loop and is returned.
func poll(ctx context.Context, stop <-chan struct{}, interval time.Duration, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				return err
			}
		}
	}
}

// Matcher maps executable paths to session titles. Each pattern's first
// capture group is the title.
type Matcher struct {
	patterns []*regexp.Regexp
}

// NewMatcher compiles patterns. Every pattern needs at least one capture group.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling process pattern %q: %w", p, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("process pattern %q has no capture group", p)
		}
		m.patterns = append(m.patterns, re)
	}
	return m, nil
}

// Title returns the title for exePath and whether any pattern matched.
func (m *Matcher) Title(exePath string) (string, bool) {
	if exePath == "" {
		return "", false
	}
	for _, re := range m.patterns {
		sub := re.FindStringSubmatch(exePath)
		if len(sub) > 1 && sub[1] != "" {
			return sub[1], true
		}
	}
	return "", false
}
