package testutil

import (
	"context"
	"fmt"
	"sync"

	"gss-go/internal/gss"
	"gss-go/internal/vault"
)

// NewTestFolderStore creates an in-memory folder store with sequential IDs.
func NewTestFolderStore() *vault.MemoryFolderStore {
	return vault.NewMemoryFolderStore(NewStubIDGenerator("folder"))
}

// FlakyFolderStore wraps a FolderStore and fails the first Failures uploads
// with a transient error.
type FlakyFolderStore struct {
	gss.FolderStore

	mu       sync.Mutex
	Failures int
	attempts int
}

func (f *FlakyFolderStore) UploadFile(ctx context.Context, folderID, localPath, remoteName string) (*gss.FileHandle, error) {
	f.mu.Lock()
	f.attempts++
	fail := f.attempts <= f.Failures
	f.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("upload %s: connection reset: %w", remoteName, gss.ErrTransient)
	}
	return f.FolderStore.UploadFile(ctx, folderID, localPath, remoteName)
}

// Attempts returns the number of UploadFile calls so far.
func (f *FlakyFolderStore) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

// GatedFolderStore wraps a FolderStore and holds every upload until Release
// is called. Started receives one value per upload that reached the gate.
type GatedFolderStore struct {
	gss.FolderStore

	Started chan string
	gate    chan struct{}
	once    sync.Once
}

// NewGatedFolderStore wraps store with a closed gate.
func NewGatedFolderStore(store gss.FolderStore) *GatedFolderStore {
	return &GatedFolderStore{
		FolderStore: store,
		Started:     make(chan string, 1024),
		gate:        make(chan struct{}),
	}
}

func (g *GatedFolderStore) UploadFile(ctx context.Context, folderID, localPath, remoteName string) (*gss.FileHandle, error) {
	g.Started <- remoteName
	select {
	case <-g.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.FolderStore.UploadFile(ctx, folderID, localPath, remoteName)
}

// Release opens the gate for all current and future uploads.
func (g *GatedFolderStore) Release() {
	g.once.Do(func() { close(g.gate) })
}
