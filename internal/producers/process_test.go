package producers

import (
	"context"
	"errors"
	"testing"

	"gss-go/internal/gss"
)

type scriptedLister struct {
	steps [][]Process
	err   error
	i     int
}

func (l *scriptedLister) Processes(context.Context) ([]Process, error) {
	if l.err != nil {
		return nil, l.err
	}
	procs := l.steps[l.i]
	l.i++
	return procs, nil
}

func TestProcessWatcher(t *testing.T) {
	lister := &scriptedLister{steps: [][]Process{
		{{PID: 1, ExePath: "/usr/bin/bash"}},
		{{PID: 10, ExePath: betaExe}},
		{{PID: 10, ExePath: betaExe}, {PID: 11, ExePath: betaExe}},
		{{PID: 11, ExePath: betaExe}, {PID: 20, ExePath: alphaExe}},
		{{PID: 20, ExePath: alphaExe}},
		{},
	}}
	bus := &recordingBus{}
	w := NewProcessWatcher(lister, testMatcher(t), bus, 0, fixedClock{testNow}, gss.NewNopLogger())
	w.alive = nil

	want := [][]string{
		nil,
		{"window_open:Beta"},
		nil,
		{"window_open:Alpha"},
		{"window_close:Beta"},
		{"window_close:Alpha"},
	}
	for i, w2 := range want {
		if err := w.check(context.Background()); err != nil {
			t.Fatalf("check() step %d error = %v", i, err)
		}
		if got := titles(bus.take()); !equalStrings(got, w2) {
			t.Errorf("step %d events = %v, want %v", i, got, w2)
		}
	}
}

func TestProcessWatcherLiveness(t *testing.T) {
	lister := &scriptedLister{steps: [][]Process{
		{{PID: 10, ExePath: betaExe}},
		{},
		{},
	}}
	bus := &recordingBus{}
	w := NewProcessWatcher(lister, testMatcher(t), bus, 0, fixedClock{testNow}, gss.NewNopLogger())
	alive := true
	w.alive = func(int) bool { return alive }

	// Unlisted but alive keeps the title open.
	for range 2 {
		if err := w.check(context.Background()); err != nil {
			t.Fatalf("check() error = %v", err)
		}
	}
	if got := titles(bus.take()); !equalStrings(got, []string{"window_open:Beta"}) {
		t.Fatalf("events = %v", got)
	}

	alive = false
	if err := w.check(context.Background()); err != nil {
		t.Fatalf("check() error = %v", err)
	}
	if got := titles(bus.take()); !equalStrings(got, []string{"window_close:Beta"}) {
		t.Errorf("events = %v", got)
	}
}

func TestProcessWatcherPIDReuse(t *testing.T) {
	lister := &scriptedLister{steps: [][]Process{
		{{PID: 10, ExePath: betaExe}},
		{{PID: 10, ExePath: alphaExe}},
	}}
	bus := &recordingBus{}
	w := NewProcessWatcher(lister, testMatcher(t), bus, 0, fixedClock{testNow}, gss.NewNopLogger())
	w.alive = func(int) bool { return true }

	for range 2 {
		if err := w.check(context.Background()); err != nil {
			t.Fatalf("check() error = %v", err)
		}
	}
	want := []string{"window_open:Beta", "window_close:Beta", "window_open:Alpha"}
	if got := titles(bus.take()); !equalStrings(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestProcessWatcherErrors(t *testing.T) {
	w := NewProcessWatcher(&scriptedLister{err: errors.New("EMFILE")}, testMatcher(t), &recordingBus{}, 0, nil, gss.NewNopLogger())
	if err := w.check(context.Background()); err != nil {
		t.Fatalf("check() error = %v, want nil for transient failure", err)
	}

	w = NewProcessWatcher(&scriptedLister{err: gss.ErrUnsupported}, testMatcher(t), &recordingBus{}, 0, nil, gss.NewNopLogger())
	if err := w.check(context.Background()); !errors.Is(err, gss.ErrUnsupported) {
		t.Fatalf("check() error = %v, want ErrUnsupported", err)
	}
}
