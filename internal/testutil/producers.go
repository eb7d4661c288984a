package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"gss-go/internal/gss"
)

// FakeProducer is a Producer that blocks until stopped or cancelled. Setting
// Err makes Run fail immediately with it.
type FakeProducer struct {
	Err error

	once    sync.Once
	stop    chan struct{}
	started chan struct{}
	runs    atomic.Int32
	running atomic.Int32
}

var _ gss.Producer = (*FakeProducer)(nil)

// NewFakeProducer creates a FakeProducer.
func NewFakeProducer() *FakeProducer {
	return &FakeProducer{stop: make(chan struct{}), started: make(chan struct{}, 16)}
}

func (p *FakeProducer) Run(ctx context.Context) error {
	p.runs.Add(1)
	p.running.Add(1)
	defer p.running.Add(-1)
	select {
	case p.started <- struct{}{}:
	default:
	}

	if p.Err != nil {
		return p.Err
	}
	select {
	case <-ctx.Done():
	case <-p.stop:
	}
	return nil
}

func (p *FakeProducer) Stop() {
	p.once.Do(func() { close(p.stop) })
}

// Started receives once per Run call.
func (p *FakeProducer) Started() <-chan struct{} {
	return p.started
}

// Runs returns how many times Run was called.
func (p *FakeProducer) Runs() int { return int(p.runs.Load()) }

// Running reports whether Run has not yet returned.
func (p *FakeProducer) Running() bool { return p.running.Load() > 0 }

// CaptureRecorder is a CaptureFactory that hands out fresh FakeProducers and
// remembers them per title.
type CaptureRecorder struct {
	mu       sync.Mutex
	Sessions map[string][]*FakeProducer
}

// NewCaptureRecorder creates an empty recorder.
func NewCaptureRecorder() *CaptureRecorder {
	return &CaptureRecorder{Sessions: make(map[string][]*FakeProducer)}
}

// Factory returns the gss.CaptureFactory.
func (r *CaptureRecorder) Factory() gss.CaptureFactory {
	return func(title string) []gss.Producer {
		p := NewFakeProducer()
		r.mu.Lock()
		r.Sessions[title] = append(r.Sessions[title], p)
		r.mu.Unlock()
		return []gss.Producer{p}
	}
}

// Starts returns how many capture runs were built for title.
func (r *CaptureRecorder) Starts(title string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Sessions[title])
}

// Active returns the number of capture producers currently running.
func (r *CaptureRecorder) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ps := range r.Sessions {
		for _, p := range ps {
			if p.Running() {
				n++
			}
		}
	}
	return n
}
