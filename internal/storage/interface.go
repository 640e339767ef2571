package storage

import (
	"context"
)

// Client defines the interface for report storage operations
type Client interface {
	// Close closes the storage client
	Close() error

	// StoreFile stores a file under the given report folder
	StoreFile(ctx context.Context, folder, filename string, data []byte) error

	// GetFile retrieves a file from the specified path
	GetFile(ctx context.Context, filePath string) ([]byte, error)

	// ListReports lists recent report paths, newest first
	ListReports(ctx context.Context, limit int) ([]string, error)
}
