package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"gss-go/internal/gss"
)

const fsRootID = "."

// FileSystemFolderStore is a directory-tree implementation of gss.FolderStore,
// typically pointed at a synced folder or a mounted share. Folder IDs are
// slash-separated paths relative to the root:
//
//	<root>/
//	  <title>/
//	    <YYYY-MM-DD HH_MM>/
//	      <screenshot files>
type FileSystemFolderStore struct {
	root string
}

// NewFileSystemFolderStore creates a folder store rooted at the given path.
func NewFileSystemFolderStore(root string) (*FileSystemFolderStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &FileSystemFolderStore{root: abs}, nil
}

func (s *FileSystemFolderStore) RootID() string {
	return fsRootID
}

// localPath maps a folder ID to a directory on disk.
func (s *FileSystemFolderStore) localPath(folderID string) (string, error) {
	rel := filepath.FromSlash(folderID)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("invalid folder id %q", folderID)
	}
	return filepath.Join(s.root, rel), nil
}

func (s *FileSystemFolderStore) FindOrCreateFolder(ctx context.Context, name, parentID string) (*gss.Folder, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	parentDir, err := s.localPath(parentID)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(parentDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("parent folder not found: %s", parentID)
	}

	if err := os.Mkdir(filepath.Join(parentDir, name), 0755); err != nil && !errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("creating folder %s: %w", name, err)
	}
	return &gss.Folder{
		ID:       path.Join(parentID, name),
		Name:     name,
		ParentID: parentID,
	}, nil
}

// UploadFile copies localPath into the folder. The copy is skipped when the
// destination already has the same size and MD5.
func (s *FileSystemFolderStore) UploadFile(ctx context.Context, folderID, localPath, remoteName string) (*gss.FileHandle, error) {
	if err := validName(remoteName); err != nil {
		return nil, err
	}
	dir, err := s.localPath(folderID)
	if err != nil {
		return nil, err
	}
	destPath := filepath.Join(dir, remoteName)

	sum, size, err := fileDigest(localPath)
	if err != nil {
		return nil, err
	}
	handle := &gss.FileHandle{
		ID:       path.Join(folderID, remoteName),
		Name:     remoteName,
		FolderID: folderID,
		Size:     size,
	}

	if info, err := os.Stat(destPath); err == nil && info.Size() == size {
		existing, _, err := fileDigest(destPath)
		if err == nil && existing == sum {
			handle.Skipped = true
			return handle, nil
		}
	}

	src, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer src.Close()

	if err := writeFile(ctx, destPath, src, size); err != nil {
		return nil, err
	}
	return handle, nil
}

func (s *FileSystemFolderStore) FolderLink(folder *gss.Folder) string {
	dir, err := s.localPath(folder.ID)
	if err != nil {
		return ""
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(dir)}).String()
}

// ValidateSetup verifies that the root directory exists and is writable.
func (s *FileSystemFolderStore) ValidateSetup(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("folder root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("folder root is not a directory: %s", s.root)
	}

	probe, err := os.CreateTemp(s.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("folder root not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// writeFile writes data from r to destPath using atomic write (temp file + rename).
func writeFile(ctx context.Context, destPath string, r io.Reader, expectedSize int64) error {
	// Temp file in the same directory so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, ctxReader{ctx: ctx, r: r})
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Compile-time check that FileSystemFolderStore implements gss.FolderStore
var _ gss.FolderStore = (*FileSystemFolderStore)(nil)
