package testutil

import (
	"context"
	"time"

	"gss-go/internal/gss"
)

// FaultyRecordStore wraps a RecordStore. A non-nil FindErr or UpdateErr fails
// the matching calls; HangUpdates blocks UpdateRecordEnd until its context
// ends. Set the fields only while no upload pass is running.
type FaultyRecordStore struct {
	gss.RecordStore

	FindErr     error
	UpdateErr   error
	HangUpdates bool
}

func (f *FaultyRecordStore) FindLatestRecord(ctx context.Context, title string) (*gss.Record, error) {
	if f.FindErr != nil {
		return nil, f.FindErr
	}
	return f.RecordStore.FindLatestRecord(ctx, title)
}

func (f *FaultyRecordStore) UpdateRecordEnd(ctx context.Context, id string, end time.Time) error {
	if f.HangUpdates {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	return f.RecordStore.UpdateRecordEnd(ctx, id, end)
}
