package gss

// State is the Controller's session state.
type State int

const (
	StateIdle State = iota
	StateActive
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// effect is a side effect the Controller performs after a transition, in
// the order returned.
type effect int

const (
	effWarnSwitch effect = iota + 1
	effStopCapture
	effStopUpload
	effStartCapture
	effTriggerUpload
)

// machine is the pure session state. pauseCause records which event kind
// moved the session into StatePaused.
type machine struct {
	State      State
	Title      string
	PauseCause EventKind
}

// apply returns the state after ev and the effects to run. It is defined for
// every state and event pair.
func (m machine) apply(ev Event) (machine, []effect) {
	switch e := ev.(type) {
	case WindowOpen:
		return m, nil

	case WindowFullscreen:
		next := machine{State: StateActive, Title: e.Title}
		switch {
		case m.State == StateIdle:
			return next, []effect{effStopUpload, effStartCapture}
		case m.Title == e.Title && m.State == StateActive:
			return m, nil
		case m.Title == e.Title:
			return next, []effect{effStopUpload, effStartCapture}
		case m.State == StateActive:
			return next, []effect{effWarnSwitch, effStopCapture, effStopUpload, effStartCapture}
		default:
			return next, []effect{effStopCapture, effStopUpload, effStartCapture}
		}

	case WindowMinimized:
		if m.State == StateActive && m.Title == e.Title {
			return machine{State: StatePaused, Title: m.Title, PauseCause: KindWindowMinimized}, []effect{effStopCapture}
		}
		return m, nil

	case WindowClose:
		switch {
		case m.State == StateIdle:
			return m, []effect{effTriggerUpload}
		case m.Title == e.Title:
			return machine{State: StateIdle}, []effect{effStopCapture, effTriggerUpload}
		default:
			return m, nil
		}

	case InputIdle:
		if m.State == StateActive {
			return machine{State: StatePaused, Title: m.Title, PauseCause: KindInputIdle}, []effect{effStopCapture}
		}
		return m, nil

	case InputActive:
		if m.State == StatePaused && m.PauseCause == KindInputIdle {
			return machine{State: StateActive, Title: m.Title}, []effect{effStartCapture}
		}
		return m, nil

	default:
		return m, nil
	}
}
