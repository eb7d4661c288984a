package vault

import (
	"context"
	"fmt"
	"os"

	"gss-go/internal/gss"
)

// EncryptedSuffix is appended to the name of every encrypted upload.
const EncryptedSuffix = ".age"

// EncryptedFolderStore encrypts each file before handing it to the
// underlying store. Folder operations pass through unchanged.
type EncryptedFolderStore struct {
	gss.FolderStore
	encryptor gss.Encryptor
	tmpDir    string
}

// NewEncryptedFolderStore wraps inner. Ciphertext is staged in tmpDir,
// or the system temp directory when tmpDir is empty.
func NewEncryptedFolderStore(inner gss.FolderStore, encryptor gss.Encryptor, tmpDir string) *EncryptedFolderStore {
	return &EncryptedFolderStore{FolderStore: inner, encryptor: encryptor, tmpDir: tmpDir}
}

func (e *EncryptedFolderStore) UploadFile(ctx context.Context, folderID, localPath, remoteName string) (*gss.FileHandle, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(e.tmpDir, ".enc-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := e.encryptor.Encrypt(src, tmp); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("encrypting %s: %w", localPath, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing temp file: %w", err)
	}

	return e.FolderStore.UploadFile(ctx, folderID, tmp.Name(), remoteName+EncryptedSuffix)
}

// ValidateSetup also requires the encryption keys to exist.
func (e *EncryptedFolderStore) ValidateSetup(ctx context.Context) error {
	if !e.encryptor.IsConfigured() {
		return fmt.Errorf("encryption keys not found (run `gss keys init`)")
	}
	return e.FolderStore.ValidateSetup(ctx)
}

// Compile-time check that EncryptedFolderStore implements gss.FolderStore
var _ gss.FolderStore = (*EncryptedFolderStore)(nil)
