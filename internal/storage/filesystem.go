package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Filesystem stores objects as files under a root directory. Used for local
// development and tests.
type Filesystem struct {
	root string
}

var _ Storage = (*Filesystem)(nil)

// NewFilesystem creates the backend rooted at dir.
func NewFilesystem(dir string) (*Filesystem, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage: filesystem root is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root %s: %w", dir, err)
	}
	return &Filesystem{root: dir}, nil
}

func (f *Filesystem) path(key string) string {
	// Keys are ULIDs; shard by prefix to keep directories small.
	if len(key) > 2 {
		return filepath.Join(f.root, key[:2], key)
	}
	return filepath.Join(f.root, key)
}

// DeleteFile removes the object file. A missing file counts as deleted.
func (f *Filesystem) DeleteFile(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}
