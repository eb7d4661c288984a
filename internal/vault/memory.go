package vault

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"sync"

	"gss-go/internal/gss"
)

const memoryRootID = "root"

// MemoryFolderStore is an in-memory implementation of gss.FolderStore.
// It is useful for testing and for dry runs. Safe for concurrent use.
type MemoryFolderStore struct {
	mu       sync.RWMutex
	idgen    gss.IDGenerator
	folders  map[string]*gss.Folder // id -> folder
	children map[string]string      // parentID + "/" + name -> id
	files    map[string][]byte      // folderID + "/" + name -> content
	uploads  int
}

// NewMemoryFolderStore creates an empty store. A nil idgen uses UUIDs.
func NewMemoryFolderStore(idgen gss.IDGenerator) *MemoryFolderStore {
	if idgen == nil {
		idgen = gss.UUIDGenerator{}
	}
	return &MemoryFolderStore{
		idgen:    idgen,
		folders:  map[string]*gss.Folder{memoryRootID: {ID: memoryRootID, Name: ""}},
		children: make(map[string]string),
		files:    make(map[string][]byte),
	}
}

func childKey(parentID, name string) string {
	return parentID + "/" + name
}

func (m *MemoryFolderStore) RootID() string {
	return memoryRootID
}

func (m *MemoryFolderStore) FindOrCreateFolder(ctx context.Context, name, parentID string) (*gss.Folder, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.folders[parentID]; !ok {
		return nil, fmt.Errorf("parent folder not found: %s", parentID)
	}
	if id, ok := m.children[childKey(parentID, name)]; ok {
		f := *m.folders[id]
		return &f, nil
	}

	f := &gss.Folder{ID: m.idgen.New(), Name: name, ParentID: parentID}
	m.folders[f.ID] = f
	m.children[childKey(parentID, name)] = f.ID
	out := *f
	return &out, nil
}

func (m *MemoryFolderStore) UploadFile(ctx context.Context, folderID, localPath, remoteName string) (*gss.FileHandle, error) {
	if err := validName(remoteName); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", localPath, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.folders[folderID]; !ok {
		return nil, fmt.Errorf("folder not found: %s", folderID)
	}

	key := childKey(folderID, remoteName)
	handle := &gss.FileHandle{
		ID:       key,
		Name:     remoteName,
		FolderID: folderID,
		Size:     int64(len(data)),
	}
	if existing, ok := m.files[key]; ok && len(existing) == len(data) && md5Hex(existing) == md5Hex(data) {
		handle.Skipped = true
		return handle, nil
	}

	m.files[key] = data
	m.uploads++
	return handle, nil
}

func (m *MemoryFolderStore) FolderLink(folder *gss.Folder) string {
	return "memory://" + folder.ID
}

// ValidateSetup always succeeds for the in-memory store.
func (m *MemoryFolderStore) ValidateSetup(ctx context.Context) error {
	return nil
}

// FindFolder returns the child of parentID named name, or nil.
func (m *MemoryFolderStore) FindFolder(name, parentID string) *gss.Folder {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.children[childKey(parentID, name)]
	if !ok {
		return nil
	}
	f := *m.folders[id]
	return &f
}

// FileNames returns the sorted names of the files in folderID.
func (m *MemoryFolderStore) FileNames(folderID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := folderID + "/"
	var names []string
	for key := range m.files {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			names = append(names, key[len(prefix):])
		}
	}
	sort.Strings(names)
	return names
}

// File returns the content of a stored file.
func (m *MemoryFolderStore) File(folderID, name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[childKey(folderID, name)]
	return data, ok
}

// Uploads returns the number of transfers performed, excluding skipped ones.
func (m *MemoryFolderStore) Uploads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uploads
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Compile-time check that MemoryFolderStore implements gss.FolderStore
var _ gss.FolderStore = (*MemoryFolderStore)(nil)
