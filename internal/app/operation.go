package app

import (
	"context"

	"gss-go/internal/gss"
)

// Upload operation sources.
const (
	SourceRun    = "run"
	SourceManual = "manual"
)

// passRunner is the part of gss.Uploader an upload operation wraps.
type passRunner interface {
	Begin(ctx context.Context) func(context.Context) (gss.UploadResult, error)
	Stop(ctx context.Context) error
	InFlight() bool
}

// operationLog persists upload operations.
type operationLog interface {
	CreateUploadOperation(ctx context.Context, source string) (*gss.UploadOperation, error)
	FinishUploadOperation(ctx context.Context, id int64, status string, res gss.UploadResult) error
}

// RecordedUploader logs each upload pass it starts to the upload_operations
// table. A call that joins a pass already in flight is not logged again.
// Failing to log never fails the upload.
type RecordedUploader struct {
	uploader passRunner
	ops      operationLog
	source   string
	logger   gss.Logger
}

var _ gss.SessionUploader = (*RecordedUploader)(nil)

// NewRecordedUploader wraps uploader, logging operations with source.
func NewRecordedUploader(uploader passRunner, ops operationLog, source string, logger gss.Logger) *RecordedUploader {
	return &RecordedUploader{
		uploader: uploader,
		ops:      ops,
		source:   source,
		logger:   gss.WithComponent(logger, "operations"),
	}
}

// Upload runs a pass and waits for it.
func (r *RecordedUploader) Upload(ctx context.Context) (gss.UploadResult, error) {
	return r.Begin(ctx)(ctx)
}

// Begin logs a new operation unless a pass is already in flight, then
// registers the pass with the uploader. The returned function waits for the
// pass and records its outcome.
func (r *RecordedUploader) Begin(ctx context.Context) func(context.Context) (gss.UploadResult, error) {
	var op *gss.UploadOperation
	if !r.uploader.InFlight() {
		var err error
		op, err = r.ops.CreateUploadOperation(ctx, r.source)
		if err != nil {
			r.logger.Warn("recording upload operation", "error", err)
		}
	}

	wait := r.uploader.Begin(ctx)
	if op == nil {
		return wait
	}
	return func(ctx context.Context) (gss.UploadResult, error) {
		res, err := wait(ctx)
		status := gss.OperationStatus(res, err)
		if ferr := r.ops.FinishUploadOperation(context.WithoutCancel(ctx), op.ID, status, res); ferr != nil {
			r.logger.Warn("finishing upload operation", "id", op.ID, "error", ferr)
		}
		return res, err
	}
}

func (r *RecordedUploader) Stop(ctx context.Context) error {
	return r.uploader.Stop(ctx)
}
