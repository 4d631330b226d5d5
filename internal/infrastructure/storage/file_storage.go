package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/buildflow/procurement/internal/application/port"
	"github.com/buildflow/procurement/internal/domain/entity"
)

// LocalBlobStore implements port.BlobStore on the local filesystem
type LocalBlobStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalBlobStore creates a blob store rooted at baseDir
func NewLocalBlobStore(baseDir string, logger *zap.Logger) port.BlobStore {
	return &LocalBlobStore{
		baseDir: baseDir,
		logger:  logger,
	}
}

// SaveUploaded streams an upload into folder/filename under the base
// directory, creating directories as needed. The filename is flattened to
// its base name so an uploader cannot steer the path.
func (s *LocalBlobStore) SaveUploaded(ctx context.Context, folder, filename string, content io.Reader) (*entity.FileMeta, error) {
	cleanName := filepath.Base(filepath.Clean(filename))
	if cleanName == "." || cleanName == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid file name %q", filename)
	}

	relPath := filepath.Join(folder, cleanName)
	fullPath := filepath.Join(s.baseDir, relPath)
	if err := s.validatePath(fullPath); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		s.logger.Error("Failed to create upload directory",
			zap.String("path", filepath.Dir(fullPath)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		s.logger.Error("Failed to open upload target",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to open upload target: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, content)
	if err != nil {
		_ = os.Remove(fullPath)
		s.logger.Error("Failed to write upload",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(cleanName))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	s.logger.Debug("Upload saved",
		zap.String("path", relPath),
		zap.Int64("size", size))

	return &entity.FileMeta{
		Path:         relPath,
		OriginalName: cleanName,
		Size:         size,
		MIME:         mimeType,
	}, nil
}

// validatePath checks that the path stays within baseDir
func (s *LocalBlobStore) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}
	return nil
}

// Verify interface compliance
var _ port.BlobStore = (*LocalBlobStore)(nil)
