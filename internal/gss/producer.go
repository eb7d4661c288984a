package gss

import "context"

// Producer is a long-running source of events or screenshots.
//
// Run blocks until ctx is cancelled, Stop is called, or the producer fails.
// A nil return means a clean shutdown; any other error is fatal to the
// Controller. Stop must be safe to call more than once and before Run.
type Producer interface {
	Run(ctx context.Context) error
	Stop()
}

// CaptureFactory builds the capture producers for a session title. It is
// called on every transition into Active so each run gets fresh producers.
type CaptureFactory func(title string) []Producer
