package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"stockd/core"
)

// LocalFileStorage keeps downloaded images under a root directory (the media folder).
type LocalFileStorage struct {
	root string
}

func NewLocalFileStorage(root string) (*LocalFileStorage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media root: %w", err)
	}
	return &LocalFileStorage{root: abs}, nil
}

// Save writes through a temporary file so readers never see a partial image.
func (s *LocalFileStorage) Save(ctx context.Context, path string, content io.Reader) error {
	target, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), target)
}

// Delete treats a missing file as already deleted.
func (s *LocalFileStorage) Delete(ctx context.Context, path string) error {
	target, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *LocalFileStorage) resolve(path string) (string, error) {
	target := filepath.Join(s.root, filepath.FromSlash(path))
	if target == s.root || !strings.HasPrefix(target, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path %q escapes the media root", core.ErrInvalidArgument, path)
	}
	return target, nil
}
