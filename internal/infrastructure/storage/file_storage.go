// Package storage is the raw storage gateway: durable byte storage keyed by
// an opaque relative path. The core never assumes a particular medium; this
// local-filesystem implementation is the development default.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Open when no file exists at the given path.
var ErrNotFound = errors.New("file not found")

// LocalFileStorage stores uploaded files under a base directory, sharded by
// upload year/month.
type LocalFileStorage struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalFileStorage creates the storage gateway, creating the base
// directory if needed.
func NewLocalFileStorage(baseDir string, logger *zap.Logger) (*LocalFileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalFileStorage{
		baseDir: baseDir,
		logger:  logger,
	}, nil
}

// Save writes the content and returns the opaque relative path it is stored
// under: <year>/<month>/<uuid>_<sanitized name>.
func (s *LocalFileStorage) Save(content []byte, fileName, contentType string) (string, error) {
	now := time.Now().UTC()
	relPath := filepath.Join(
		fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%s_%s", strings.ReplaceAll(uuid.New().String(), "-", ""), sanitizeFileName(fileName)),
	)

	fullPath, err := s.resolve(relPath)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		s.logger.Error("Failed to create storage subdirectory", zap.Error(err))
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("File saved",
		zap.String("path", relPath),
		zap.String("content_type", contentType),
		zap.Int("size", len(content)))

	return relPath, nil
}

// Open returns a reader for the stored file, or ErrNotFound.
func (s *LocalFileStorage) Open(path string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Delete removes the stored file. Deleting a missing file is not an error.
func (s *LocalFileStorage) Delete(path string) error {
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists reports whether a file is stored at the given path.
func (s *LocalFileStorage) Exists(path string) bool {
	fullPath, err := s.resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// resolve joins the relative path onto the base directory and rejects
// anything that escapes it.
func (s *LocalFileStorage) resolve(relPath string) (string, error) {
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}

	absPath, err := filepath.Abs(filepath.Join(absBase, relPath))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes storage directory: %s", relPath)
	}
	return absPath, nil
}

func sanitizeFileName(name string) string {
	name = filepath.Base(name)
	replacer := strings.NewReplacer(
		" ", "_",
		"..", "_",
		string(filepath.Separator), "_",
	)
	name = replacer.Replace(name)
	if name == "" || name == "." {
		name = "upload"
	}
	return name
}
