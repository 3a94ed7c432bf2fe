// Package importer pulls repository metadata from GitHub and GitLab into
// the store and turns promising repositories into tracked applications.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/softwatch/softwatch/pkg/inventory"
)

var (
	// ErrUnsupportedPlatform is returned for platforms with no configured Source.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrUserNotFound is returned when the platform has no such user.
	ErrUserNotFound = errors.New("platform user not found")
	// ErrUnauthorized is returned when the platform rejects the token.
	ErrUnauthorized = errors.New("platform credentials rejected")
)

// Source lists the repositories a platform user owns.
type Source interface {
	Platform() inventory.Platform
	ListRepositories(ctx context.Context, username string) ([]inventory.Repository, error)
}

// Store is the persistence the importer needs.
type Store interface {
	ReplaceRepositories(ctx context.Context, userID string, platform inventory.Platform, repos []inventory.Repository) error
	ListRepositories(ctx context.Context, userID string) ([]inventory.Repository, error)
	ListApplications(ctx context.Context, userID string) ([]inventory.Application, error)
	CreateApplication(ctx context.Context, app *inventory.Application) (*inventory.Application, error)
	AppendActivityLog(ctx context.Context, entry inventory.ActivityLog) error
}

// Options tunes auto-detection.
type Options struct {
	AutoDetectLimit     int
	AutoDetectLanguages []string
}

// DefaultOptions returns the standard auto-detect settings.
func DefaultOptions() Options {
	return Options{
		AutoDetectLimit: 8,
		AutoDetectLanguages: []string{
			"JavaScript", "TypeScript", "Python", "Java", "Go", "Swift", "C#", "C++",
		},
	}
}

// Importer syncs repository snapshots and auto-detects applications.
type Importer struct {
	store   Store
	sources map[inventory.Platform]Source
	opts    Options
	log     logrus.FieldLogger
}

// New creates an Importer over the given sources.
func New(st Store, opts Options, log logrus.FieldLogger, sources ...Source) *Importer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.AutoDetectLimit <= 0 {
		opts.AutoDetectLimit = DefaultOptions().AutoDetectLimit
	}
	m := make(map[inventory.Platform]Source, len(sources))
	for _, s := range sources {
		m[s.Platform()] = s
	}
	return &Importer{store: st, sources: m, opts: opts, log: log}
}

// SyncResult reports what a Sync imported.
type SyncResult struct {
	Platform     inventory.Platform     `json:"platform"`
	Imported     int                    `json:"imported"`
	Repositories []inventory.Repository `json:"repositories"`
}

// Sync replaces userID's snapshot for platform with username's current
// repositories and records an integration_detected activity.
func (im *Importer) Sync(ctx context.Context, userID string, platform inventory.Platform, username string) (*SyncResult, error) {
	src, ok := im.sources[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPlatform, platform)
	}
	if strings.TrimSpace(username) == "" {
		return nil, errors.New("username is required")
	}

	log := im.log.WithFields(logrus.Fields{"user_id": userID, "platform": platform, "username": username})

	repos, err := src.ListRepositories(ctx, username)
	if err != nil {
		return nil, err
	}
	for i := range repos {
		repos[i].UserID = userID
	}

	if err := im.store.ReplaceRepositories(ctx, userID, platform, repos); err != nil {
		return nil, fmt.Errorf("store %s repositories: %w", platform, err)
	}
	log.WithField("count", len(repos)).Info("imported repositories")

	err = im.store.AppendActivityLog(ctx, inventory.ActivityLog{
		UserID:      userID,
		Type:        inventory.ActivityIntegrationDetected,
		Title:       platformTitle(platform) + " Integration Synced",
		Description: fmt.Sprintf("Imported %d %s from %s", len(repos), unitNoun(platform), platformTitle(platform)),
	})
	if err != nil {
		log.WithError(err).Warn("failed to record sync activity")
	}

	return &SyncResult{Platform: platform, Imported: len(repos), Repositories: repos}, nil
}

// AutoDetect creates pending applications for the most relevant imported
// repositories on platform: those with stars or a recognised language,
// skipping names the user already tracks, up to the configured limit.
func (im *Importer) AutoDetect(ctx context.Context, userID string, platform inventory.Platform) ([]inventory.Application, error) {
	if !platform.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPlatform, platform)
	}

	repos, err := im.store.ListRepositories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load repositories: %w", err)
	}
	existing, err := im.store.ListApplications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load applications: %w", err)
	}

	candidates := im.Candidates(platform, repos, existing)
	if len(candidates) == 0 {
		return nil, nil
	}

	created := make([]inventory.Application, 0, len(candidates))
	for _, repo := range candidates {
		app, err := im.store.CreateApplication(ctx, applicationFor(userID, &repo))
		if err != nil {
			return created, fmt.Errorf("create application %s: %w", repo.Name, err)
		}
		created = append(created, *app)
	}

	err = im.store.AppendActivityLog(ctx, inventory.ActivityLog{
		UserID:      userID,
		Type:        inventory.ActivitySoftwareAdded,
		Title:       "Auto-detected Software",
		Description: fmt.Sprintf("Automatically added %d applications from %s", len(created), platformTitle(platform)),
	})
	if err != nil {
		im.log.WithError(err).WithField("user_id", userID).Warn("failed to record auto-detect activity")
	}
	return created, nil
}

// Candidates picks the repositories AutoDetect would add, in snapshot order.
func (im *Importer) Candidates(platform inventory.Platform, repos []inventory.Repository, existing []inventory.Application) []inventory.Repository {
	tracked := make(map[string]bool, len(existing))
	for _, a := range existing {
		tracked[strings.ToLower(a.Name)] = true
	}
	langs := make(map[string]bool, len(im.opts.AutoDetectLanguages))
	for _, l := range im.opts.AutoDetectLanguages {
		langs[l] = true
	}

	var out []inventory.Repository
	for _, r := range repos {
		if len(out) == im.opts.AutoDetectLimit {
			break
		}
		if r.Platform != platform || tracked[strings.ToLower(r.Name)] {
			continue
		}
		if r.Stars > 0 || langs[r.LanguageOrEmpty()] {
			out = append(out, r)
			tracked[strings.ToLower(r.Name)] = true
		}
	}
	return out
}

func applicationFor(userID string, repo *inventory.Repository) *inventory.Application {
	category := repo.LanguageOrEmpty()
	if category == "" {
		category = "Unknown"
	}
	tags := []string{string(repo.Platform)}
	if lang := repo.LanguageOrEmpty(); lang != "" {
		tags = append(tags, lang)
	}
	descPrefix := "GitHub repository: "
	if repo.Platform == inventory.PlatformGitLab {
		descPrefix = "GitLab project: "
	}
	return &inventory.Application{
		UserID:      userID,
		Name:        repo.Name,
		Category:    category,
		Description: descPrefix + repo.Name,
		Website:     repo.URL,
		Tags:        tags,
		Status:      inventory.StatusPending,
	}
}

func platformTitle(p inventory.Platform) string {
	switch p {
	case inventory.PlatformGitHub:
		return "GitHub"
	case inventory.PlatformGitLab:
		return "GitLab"
	default:
		return string(p)
	}
}

func unitNoun(p inventory.Platform) string {
	if p == inventory.PlatformGitLab {
		return "projects"
	}
	return "repositories"
}
