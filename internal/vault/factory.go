package vault

import (
	"context"
	"fmt"

	"gss-go/internal/config"
	"gss-go/internal/gss"
)

// NewFolderStoreFromConfig creates a FolderStore implementation based on the
// folders config type. When cfg.Encrypt is set the store is wrapped so that
// every upload is encrypted with encryptor.
func NewFolderStoreFromConfig(ctx context.Context, cfg config.FoldersConfig, encryptor gss.Encryptor) (gss.FolderStore, error) {
	var (
		store gss.FolderStore
		err   error
	)
	switch cfg.Type {
	case "memory":
		store = NewMemoryFolderStore(nil)
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem folder store requires root to be set")
		}
		store, err = NewFileSystemFolderStore(cfg.Root)
	case "s3":
		store, err = NewS3FolderStoreFromConfig(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown folders type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Encrypt {
		if encryptor == nil {
			return nil, fmt.Errorf("folders.encrypt is set but no encryptor is configured")
		}
		store = NewEncryptedFolderStore(store, encryptor, "")
	}
	return store, nil
}
