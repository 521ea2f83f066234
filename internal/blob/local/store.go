// Package local implements a filesystem-backed blob store.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/secondbrain-app/article-hub/internal/blob"
)

// Config captures the parameters for the local blob store.
type Config struct {
	// BaseDir is the root directory where snapshot blobs are stored.
	BaseDir string `mapstructure:"base_dir"`
}

// Store keeps snapshot blobs as files under a base directory.
type Store struct {
	baseDir string
}

var _ blob.Store = (*Store)(nil)

// New creates a filesystem-backed blob store, creating BaseDir if needed.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}
	return &Store{baseDir: cfg.BaseDir}, nil
}

// Put writes data to a file under the base directory and returns a file:// URI.
func (s *Store) Put(_ context.Context, name, _ string, data io.Reader) (string, error) {
	fullPath, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read blob data: %w", err)
	}
	// Write to a temp file first so a crashed write never truncates the
	// previous snapshot.
	tmp := fullPath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		return "", fmt.Errorf("commit blob: %w", err)
	}
	return fmt.Sprintf("file://%s", fullPath), nil
}

// Get opens the named file, mapping a missing file to blob.ErrNotExist.
func (s *Store) Get(_ context.Context, name string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, blob.ErrNotExist
		}
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

// resolve joins name onto the base directory, refusing path traversal.
func (s *Store) resolve(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("blob name is required")
	}
	fullPath := filepath.Clean(filepath.Join(s.baseDir, name))
	base := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(fullPath, base+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return fullPath, nil
}
