package gss

// Metrics receives counters from the Controller and Uploader.
type Metrics interface {
	SessionTransition(from, to State)
	FileUploaded(skipped bool)
	UploadRetry()
	RecordResolved(created bool)
	UploadPass(result string)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) SessionTransition(State, State) {}
func (NopMetrics) FileUploaded(bool)              {}
func (NopMetrics) UploadRetry()                   {}
func (NopMetrics) RecordResolved(bool)            {}
func (NopMetrics) UploadPass(string)              {}

// Upload pass results reported to Metrics.UploadPass.
const (
	PassCompleted   = "completed"
	PassInterrupted = "interrupted"
	PassFailed      = "failed"
	PassEmpty       = "empty"
)
