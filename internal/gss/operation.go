package gss

import (
	"context"
	"time"
)

// Upload operation statuses.
const (
	OperationRunning     = "running"
	OperationCompleted   = "completed"
	OperationInterrupted = "interrupted"
	OperationFailed      = "failed"
)

// UploadOperation is one logged upload pass.
type UploadOperation struct {
	ID              int64
	Source          string // "run" or "manual"
	StartedAt       time.Time
	FinishedAt      *time.Time
	Status          string
	FilesUploaded   int
	RecordsCreated  int
	RecordsExtended int
}

// Database is the local record store plus the upload history.
type Database interface {
	RecordStore

	// CreateUploadOperation logs the start of an upload pass.
	CreateUploadOperation(ctx context.Context, source string) (*UploadOperation, error)

	// FinishUploadOperation records the outcome of a pass.
	FinishUploadOperation(ctx context.Context, id int64, status string, res UploadResult) error

	// ListUploadOperations returns the most recent operations first.
	ListUploadOperations(ctx context.Context, limit int) ([]*UploadOperation, error)

	// CheckMigrations verifies the schema is up-to-date.
	CheckMigrations() error

	Close() error
}

// OperationStatus maps the outcome of an upload pass to an operation status.
func OperationStatus(res UploadResult, err error) string {
	switch {
	case err != nil:
		return OperationFailed
	case !res.Completed:
		return OperationInterrupted
	default:
		return OperationCompleted
	}
}
