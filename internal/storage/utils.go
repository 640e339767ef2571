package storage

import (
	"fmt"
	"strings"
	"time"
)

// ReportFileName is the entry point file of every generated report folder.
const ReportFileName = "report.html"

// ReportFolderPath generates a consistent folder path for reports.
// Format: YYYY/MM/DD/<slug>-YYYY-MM-DD-HH-MM-SS
func ReportFolderPath(name string, timestamp time.Time) string {
	return fmt.Sprintf("%04d/%02d/%02d/%s-%04d-%02d-%02d-%02d-%02d-%02d",
		timestamp.Year(), timestamp.Month(), timestamp.Day(),
		Slugify(name),
		timestamp.Year(), timestamp.Month(), timestamp.Day(),
		timestamp.Hour(), timestamp.Minute(), timestamp.Second())
}

// Slugify makes a species name safe for file and object paths.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "_")
	slug = strings.ReplaceAll(slug, "/", "_")
	if slug == "" {
		slug = "report"
	}
	return slug
}

// GetContentType determines the MIME content type based on file extension
func GetContentType(filename string) string {
	switch {
	case strings.HasSuffix(filename, ".json"):
		return "application/json"
	case strings.HasSuffix(filename, ".txt"):
		return "text/plain"
	case strings.HasSuffix(filename, ".html"):
		return "text/html"
	case strings.HasSuffix(filename, ".css"):
		return "text/css"
	case strings.HasSuffix(filename, ".png"):
		return "image/png"
	case strings.HasSuffix(filename, ".jpg"), strings.HasSuffix(filename, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(filename, ".svg"):
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}
