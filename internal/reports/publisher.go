package reports

import (
	"context"
	"fmt"
	"time"

	"fungiwatch/internal/logger"
	"fungiwatch/internal/storage"
)

// Publisher writes rendered report files to storage under a timestamped
// report folder.
type Publisher struct {
	storage storage.Client
	log     *logger.Logger
}

// NewPublisher creates a publisher backed by the given storage client.
func NewPublisher(client storage.Client) *Publisher {
	return &Publisher{
		storage: client,
		log:     logger.GetGlobalLogger().WithComponent("publisher"),
	}
}

// Publish stores every file of a rendered report under a folder derived from
// the report name and timestamp, and returns the folder path.
func (p *Publisher) Publish(ctx context.Context, name string, files Files, timestamp time.Time) (string, error) {
	folder := storage.ReportFolderPath(name, timestamp)

	for filename, data := range files {
		if err := p.storage.StoreFile(ctx, folder, filename, data); err != nil {
			return "", fmt.Errorf("failed to store %s: %w", filename, err)
		}
	}

	p.log.Info("Report published", logger.Fields{
		"folder": folder,
		"files":  len(files),
	})
	return folder, nil
}

// LatestReportPath returns the path of the most recent report entry file, or
// "" when no report has been published yet.
func (p *Publisher) LatestReportPath(ctx context.Context) (string, error) {
	reports, err := p.storage.ListReports(ctx, 1)
	if err != nil {
		return "", err
	}
	if len(reports) == 0 {
		return "", nil
	}
	return reports[0], nil
}
