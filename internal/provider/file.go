package provider

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FileStore reads raw template content from the local file system,
// laid out as {dir}/{language}/{name}.html.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore creates a file-system template store rooted at dir.
func NewFileStore(dir string, logger *zap.Logger) *FileStore {
	return &FileStore{
		dir:    dir,
		logger: logger,
	}
}

func (s *FileStore) path(name, language string) string {
	return filepath.Join(s.dir, language, name+".html")
}

// Get returns the template content for (name, language), falling back to
// English when the language variant is absent. Returns
// ErrTemplateNotFound when neither exists.
func (s *FileStore) Get(_ context.Context, name, language string) (string, error) {
	data, err := os.ReadFile(s.path(name, language))
	if err == nil {
		return string(data), nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read template %s/%s: %w", language, name, err)
	}

	data, err = os.ReadFile(s.path(name, "en"))
	if err == nil {
		s.logger.Warn("template missing for language, using English fallback",
			zap.String("template", name),
			zap.String("language", language),
		)
		return string(data), nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("template %s: %w", name, ErrTemplateNotFound)
	}
	return "", fmt.Errorf("read template en/%s: %w", name, err)
}

// Put writes template content, creating the language directory if needed.
func (s *FileStore) Put(_ context.Context, name, language, content string) error {
	dir := filepath.Join(s.dir, language)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create template dir %s: %w", dir, err)
	}

	if err := os.WriteFile(s.path(name, language), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write template %s/%s: %w", language, name, err)
	}

	s.logger.Info("template saved to file system",
		zap.String("template", name),
		zap.String("language", language),
	)
	return nil
}

// Exists reports whether the exact language variant exists on disk.
func (s *FileStore) Exists(_ context.Context, name, language string) (bool, error) {
	_, err := os.Stat(s.path(name, language))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat template %s/%s: %w", language, name, err)
}

func (s *FileStore) Name() string {
	return "FILE_STORAGE"
}
