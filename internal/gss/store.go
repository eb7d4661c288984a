package gss

import (
	"context"
	"time"
)

// Record is one persisted session: a database row paired with a folder.
type Record struct {
	ID        string
	Name      string
	Title     string
	Start     time.Time
	End       time.Time
	FolderID  string
	Link      string
	CreatedAt time.Time
}

// NewRecord holds the fields of a record to create.
type NewRecord struct {
	Name     string
	Title    string
	Start    time.Time
	End      time.Time
	FolderID string
	Link     string
}

// RecordStore is the structured database side of the remote store.
type RecordStore interface {
	// FindLatestRecord returns the record for title with the latest end time.
	// Returns (nil, nil) when the title has no records.
	FindLatestRecord(ctx context.Context, title string) (*Record, error)

	// CreateRecord inserts a new record and returns it with its ID assigned.
	CreateRecord(ctx context.Context, rec NewRecord) (*Record, error)

	// UpdateRecordEnd sets the end time of an existing record.
	UpdateRecordEnd(ctx context.Context, id string, end time.Time) error

	// ListRecords returns records ordered by end time descending. An empty
	// title lists all titles. limit <= 0 means no limit.
	ListRecords(ctx context.Context, title string, limit int) ([]*Record, error)
}

// Folder is a container in the folder store.
type Folder struct {
	ID       string
	Name     string
	ParentID string
}

// FileHandle describes an uploaded file.
type FileHandle struct {
	ID       string
	Name     string
	FolderID string
	Size     int64
	// Skipped is true when an identical copy already existed remotely.
	Skipped bool
}

// FolderStore is the cloud folder side of the remote store.
type FolderStore interface {
	// RootID is the folder under which title folders are created.
	RootID() string

	// FindOrCreateFolder returns the child of parentID named name, creating it
	// if needed.
	FindOrCreateFolder(ctx context.Context, name, parentID string) (*Folder, error)

	// UploadFile copies localPath into folderID as remoteName. When the remote
	// already holds a file with the same size and MD5 the transfer is skipped.
	UploadFile(ctx context.Context, folderID, localPath, remoteName string) (*FileHandle, error)

	// FolderLink returns a shareable link to the folder.
	FolderLink(folder *Folder) string

	// ValidateSetup verifies that the store is reachable and configured.
	ValidateSetup(ctx context.Context) error
}
