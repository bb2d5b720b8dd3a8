// Package local implements a local filesystem blob store.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/canadian-music-ledger/internal/storage"
)

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the root directory where artifacts are written.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// BlobStore writes artifacts to the local filesystem.
type BlobStore struct {
	baseDir string
}

// New creates a new local filesystem-backed blob store.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	// Check for write permissions.
	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &BlobStore{baseDir: cfg.BaseDir}, nil
}

type staged struct {
	tmp   string
	final string
}

// PutObjects stages every object as a temp file next to its destination and
// only renames them into place once all of them are written. A staging failure
// leaves existing artifacts untouched.
func (s *BlobStore) PutObjects(ctx context.Context, objects []storage.Object) ([]string, error) {
	if err := storage.ValidatePaths(objects); err != nil {
		return nil, err
	}

	var files []staged
	cleanup := func() {
		for _, f := range files {
			_ = os.Remove(f.tmp)
		}
	}
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			cleanup()
			return nil, fmt.Errorf("write canceled: %w", err)
		}
		f, err := s.stage(obj)
		if err != nil {
			cleanup()
			return nil, err
		}
		files = append(files, f)
	}

	uris := make([]string, 0, len(files))
	for i, f := range files {
		if err := os.Rename(f.tmp, f.final); err != nil {
			for _, rest := range files[i:] {
				_ = os.Remove(rest.tmp)
			}
			return nil, fmt.Errorf("failed to move %s into place: %w", f.final, err)
		}
		uris = append(uris, "file://"+f.final)
	}
	return uris, nil
}

func (s *BlobStore) stage(obj storage.Object) (staged, error) {
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(obj.Path))

	// Clean the path and verify it's within baseDir to prevent path traversal.
	cleanBaseDir := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBaseDir+string(filepath.Separator)) {
		return staged{}, fmt.Errorf("%w: path traversal detected", storage.ErrInvalidPath)
	}
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return staged{}, fmt.Errorf("failed to create parent directories: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".tmp-*")
	if err != nil {
		return staged{}, fmt.Errorf("failed to create staging file: %w", err)
	}
	_, writeErr := tmp.Write(obj.Data)
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return staged{}, fmt.Errorf("failed to write staging file: %w", err)
	}
	// #nosec G302 -- artifacts are served read-only to the dashboard.
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return staged{}, fmt.Errorf("failed to set file mode: %w", err)
	}
	return staged{tmp: tmp.Name(), final: fullPath}, nil
}
