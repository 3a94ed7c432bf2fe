package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrReportNotFound is returned when a report blob does not exist.
var ErrReportNotFound = errors.New("report not found")

// ReportStorage abstracts blob storage for analysis reports.
type ReportStorage interface {
	PutReport(ctx context.Context, userID, appID, reportID string, data []byte) error
	GetReport(ctx context.Context, userID, appID, reportID string) ([]byte, error)
}

// reportKey is the object key shared by every backend.
func reportKey(userID, appID, reportID string) string {
	return userID + "/reports/" + appID + "/" + reportID + ".json"
}

// LocalStorage implements ReportStorage on the local filesystem. The CLI
// uses it for --save and the daemon falls back to it when no bucket is set.
type LocalStorage struct {
	BaseDir string
}

// NewLocalStorage creates a LocalStorage rooted at the given directory.
func NewLocalStorage(baseDir string) *LocalStorage {
	return &LocalStorage{BaseDir: baseDir}
}

func (s *LocalStorage) path(userID, appID, reportID string) string {
	return filepath.Join(s.BaseDir, filepath.FromSlash(reportKey(userID, appID, reportID)))
}

// PutReport writes a report blob, creating parent directories as needed.
func (s *LocalStorage) PutReport(ctx context.Context, userID, appID, reportID string, data []byte) error {
	p := s.path(userID, appID, reportID)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", reportID, err)
	}
	return nil
}

// GetReport reads a report blob.
func (s *LocalStorage) GetReport(ctx context.Context, userID, appID, reportID string) ([]byte, error) {
	data, err := os.ReadFile(s.path(userID, appID, reportID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrReportNotFound, reportID)
		}
		return nil, fmt.Errorf("read report %s: %w", reportID, err)
	}
	return data, nil
}
