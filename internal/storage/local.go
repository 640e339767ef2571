package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// LocalClient stores report files on the local file system.
type LocalClient struct {
	baseDir string
}

// NewLocalClient creates a local report storage client rooted at baseDir.
func NewLocalClient(baseDir string) (*LocalClient, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory %s: %w", baseDir, err)
	}
	return &LocalClient{baseDir: baseDir}, nil
}

// Close is a no-op for local storage (implements the same interface as GCSClient)
func (l *LocalClient) Close() error {
	return nil
}

// StoreFile writes a file under the given report folder.
func (l *LocalClient) StoreFile(ctx context.Context, folder, filename string, data []byte) error {
	dir := filepath.Join(l.baseDir, filepath.FromSlash(folder))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}

// GetFile retrieves a file by its path relative to the base directory.
func (l *LocalClient) GetFile(ctx context.Context, filePath string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.baseDir, filepath.FromSlash(filePath)))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}
	return data, nil
}

// ListReports lists report entry files, newest first (folder names embed the
// generation timestamp, so reverse-lexical order is reverse-chronological).
func (l *LocalClient) ListReports(ctx context.Context, limit int) ([]string, error) {
	var reportPaths []string

	err := filepath.Walk(l.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if info.Name() == ReportFileName {
			relPath, relErr := filepath.Rel(l.baseDir, path)
			if relErr == nil {
				reportPaths = append(reportPaths, filepath.ToSlash(relPath))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk reports directory: %w", err)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(reportPaths)))
	if limit > 0 && limit < len(reportPaths) {
		reportPaths = reportPaths[:limit]
	}
	return reportPaths, nil
}
