package gss

import "time"

// EventKind identifies an Event variant. Used for logging and metrics labels.
type EventKind int

const (
	KindWindowOpen EventKind = iota + 1
	KindWindowMinimized
	KindWindowFullscreen
	KindWindowClose
	KindInputIdle
	KindInputActive
)

func (k EventKind) String() string {
	switch k {
	case KindWindowOpen:
		return "window_open"
	case KindWindowMinimized:
		return "window_minimized"
	case KindWindowFullscreen:
		return "window_fullscreen"
	case KindWindowClose:
		return "window_close"
	case KindInputIdle:
		return "input_idle"
	case KindInputActive:
		return "input_active"
	default:
		return "unknown"
	}
}

// Event is an observed fact emitted by a producer. The set of variants is
// closed: only types in this package implement it.
type Event interface {
	Kind() EventKind
	When() time.Time
	isEvent()
}

// WindowOpen reports that a matched process started.
type WindowOpen struct {
	Title string
	Time  time.Time
}

// WindowMinimized reports that a matched window left the fullscreen foreground.
type WindowMinimized struct {
	Title string
	Time  time.Time
}

// WindowFullscreen reports that a matched window became the fullscreen foreground.
type WindowFullscreen struct {
	Title string
	Time  time.Time
}

// WindowClose reports that a matched process exited.
type WindowClose struct {
	Title string
	Time  time.Time
}

// InputIdle reports that no user input was seen for IdleSeconds.
type InputIdle struct {
	IdleSeconds float64
	Time        time.Time
}

// InputActive reports that user input resumed after an idle period.
type InputActive struct {
	IdleSeconds float64
	Time        time.Time
}

func (WindowOpen) Kind() EventKind       { return KindWindowOpen }
func (WindowMinimized) Kind() EventKind  { return KindWindowMinimized }
func (WindowFullscreen) Kind() EventKind { return KindWindowFullscreen }
func (WindowClose) Kind() EventKind      { return KindWindowClose }
func (InputIdle) Kind() EventKind        { return KindInputIdle }
func (InputActive) Kind() EventKind      { return KindInputActive }

func (e WindowOpen) When() time.Time       { return e.Time }
func (e WindowMinimized) When() time.Time  { return e.Time }
func (e WindowFullscreen) When() time.Time { return e.Time }
func (e WindowClose) When() time.Time      { return e.Time }
func (e InputIdle) When() time.Time        { return e.Time }
func (e InputActive) When() time.Time      { return e.Time }

func (WindowOpen) isEvent()       {}
func (WindowMinimized) isEvent()  {}
func (WindowFullscreen) isEvent() {}
func (WindowClose) isEvent()      {}
func (InputIdle) isEvent()        {}
func (InputActive) isEvent()      {}

// EventTitle returns the window title carried by window events, or "" for
// input events.
func EventTitle(ev Event) string {
	switch e := ev.(type) {
	case WindowOpen:
		return e.Title
	case WindowMinimized:
		return e.Title
	case WindowFullscreen:
		return e.Title
	case WindowClose:
		return e.Title
	default:
		return ""
	}
}
