package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a checkpoint key does not exist
var ErrNotFound = errors.New("checkpoint not found")

// Storage persists checkpoint files by key
type Storage interface {
	// Write stores data under key and returns where it was written
	Write(ctx context.Context, key string, data []byte) (string, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Config contains filesystem storage configuration
type Config struct {
	BasePath string // Base directory for all checkpoint files
}

// DefaultConfig returns default storage configuration
func DefaultConfig() Config {
	return Config{
		BasePath: "./checkpoints",
	}
}

// FileStorage keeps checkpoints on the local filesystem
type FileStorage struct {
	config Config
}

var _ Storage = (*FileStorage)(nil)

// NewFileStorage creates the base directory if needed
func NewFileStorage(config Config) (*FileStorage, error) {
	if config.BasePath == "" {
		config.BasePath = DefaultConfig().BasePath
	}
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	return &FileStorage{
		config: config,
	}, nil
}

// Write replaces the file at key. The data goes to a temporary file first so
// a crash never leaves a truncated checkpoint behind.
func (s *FileStorage) Write(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fullPath, err := s.resolve(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".checkpoint-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", fmt.Errorf("failed to move checkpoint file into place: %w", err)
	}

	return fullPath, nil
}

// Read returns the file at key
func (s *FileStorage) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	return data, nil
}

// Delete removes the file at key; a missing file is not an error
func (s *FileStorage) Delete(ctx context.Context, key string) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint file: %w", err)
	}

	return nil
}

// GetFullPath returns the full filesystem path for a key
func (s *FileStorage) GetFullPath(key string) string {
	return filepath.Join(s.config.BasePath, filepath.FromSlash(key))
}

// resolve maps a key to a path under the base directory
func (s *FileStorage) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid checkpoint key %q", key)
	}
	return filepath.Join(s.config.BasePath, clean), nil
}
