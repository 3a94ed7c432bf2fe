// Package inventory defines the records Softwatch tracks: applications,
// imported repositories, and the analysis results computed for them.
package inventory

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedRepository is returned when a repository record cannot be scored.
var ErrMalformedRepository = errors.New("malformed repository record")

// Platform identifies the source-control provider a repository came from.
type Platform string

const (
	PlatformGitHub Platform = "github"
	PlatformGitLab Platform = "gitlab"
)

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	return p == PlatformGitHub || p == PlatformGitLab
}

// Application is a user-tracked piece of software.
type Application struct {
	ID          string   `json:"id"`
	UserID      string   `json:"user_id"`
	Name        string   `json:"name"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	Website     string   `json:"website,omitempty"`
	APIEndpoint string   `json:"api_endpoint,omitempty"`
	StatusPage  string   `json:"status_page,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	// Outputs written back by analysis.
	PerformanceScore  int       `json:"performance_score"`
	UptimePercentage  float64   `json:"uptime_percentage"`
	Status            Status    `json:"status"`
	IntegrationsCount int       `json:"integrations_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Repository is an imported source-control project.
type Repository struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Platform     Platform  `json:"platform"`
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	Description  string    `json:"description,omitempty"`
	Language     *string   `json:"language,omitempty"`
	Stars        int       `json:"stars"`
	Forks        int       `json:"forks"`
	LastCommitAt time.Time `json:"last_commit_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// LanguageOrEmpty returns the primary language, or "" when unknown.
func (r *Repository) LanguageOrEmpty() string {
	if r.Language == nil {
		return ""
	}
	return *r.Language
}

// Validate checks the invariants the scorers rely on.
func (r *Repository) Validate() error {
	if r.Stars < 0 || r.Forks < 0 {
		return fmt.Errorf("%w: %s has negative stars/forks (%d/%d)", ErrMalformedRepository, r.Name, r.Stars, r.Forks)
	}
	if !r.Platform.Valid() {
		return fmt.Errorf("%w: %s has unknown platform %q", ErrMalformedRepository, r.Name, r.Platform)
	}
	return nil
}

// DaysSince returns the number of (fractional) days between t and now.
func DaysSince(t, now time.Time) float64 {
	return now.Sub(t).Hours() / 24
}

// PerformanceSample is one row of the per-application latency history.
type PerformanceSample struct {
	ApplicationID    string    `json:"software_id"`
	ResponseTimeMs   int       `json:"response_time_ms"`
	UptimePercentage float64   `json:"uptime_percentage"`
	StatusCode       int       `json:"status_code"`
	CheckedAt        time.Time `json:"checked_at"`
}

// Activity types recorded in the activity log.
const (
	ActivitySoftwareAnalyzed    = "software_analyzed"
	ActivitySoftwareAdded       = "software_added"
	ActivityIntegrationDetected = "integration_detected"
)

// ActivityLog is a human-readable event shown on the dashboard.
type ActivityLog struct {
	UserID        string    `json:"user_id"`
	ApplicationID *string   `json:"software_id,omitempty"`
	Type          string    `json:"activity_type"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}
