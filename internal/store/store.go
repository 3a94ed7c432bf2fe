// Package store persists applications, imported repositories, performance
// samples and activity logs in Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/softwatch/softwatch/pkg/inventory"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store provides application and repository management backed by Postgres.
type Store struct {
	db *sql.DB
}

// New creates a Store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AnalysisUpdate is the write-back of one analysis run.
type AnalysisUpdate struct {
	PerformanceScore  int
	UptimePercentage  float64
	Status            inventory.Status
	IntegrationsCount int
}

type scanner interface {
	Scan(dest ...any) error
}

const applicationColumns = `id, user_id, name, category, COALESCE(description, ''),
	COALESCE(website, ''), COALESCE(api_endpoint, ''), COALESCE(status_page, ''), tags,
	performance_score, uptime_percentage, status, integrations_count, created_at, updated_at`

func scanApplication(row scanner) (*inventory.Application, error) {
	a := &inventory.Application{}
	var status string
	err := row.Scan(
		&a.ID, &a.UserID, &a.Name, &a.Category, &a.Description,
		&a.Website, &a.APIEndpoint, &a.StatusPage, pq.Array(&a.Tags),
		&a.PerformanceScore, &a.UptimePercentage, &status, &a.IntegrationsCount, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = inventory.Status(status)
	return a, nil
}

// GetApplication returns a single application by ID.
func (s *Store) GetApplication(ctx context.Context, id string) (*inventory.Application, error) {
	a, err := scanApplication(s.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM software WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get application %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get application %s: %w", id, err)
	}
	return a, nil
}

// ListApplications returns a user's applications, oldest first.
func (s *Store) ListApplications(ctx context.Context, userID string) ([]inventory.Application, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+applicationColumns+` FROM software WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var apps []inventory.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, *a)
	}
	return apps, rows.Err()
}

// CreateApplication inserts a new application with pending status.
func (s *Store) CreateApplication(ctx context.Context, app *inventory.Application) (*inventory.Application, error) {
	out := *app
	out.Status = inventory.StatusPending
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO software (user_id, name, category, description, website, api_endpoint, status_page, tags, status)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9)
		 RETURNING id, created_at, updated_at`,
		app.UserID, app.Name, app.Category, app.Description, app.Website, app.APIEndpoint, app.StatusPage,
		pq.Array(app.Tags), string(inventory.StatusPending),
	).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create application %s: %w", app.Name, err)
	}
	return &out, nil
}

// UpdateApplication writes analysis outputs back onto an application.
// The write is a blind overwrite.
func (s *Store) UpdateApplication(ctx context.Context, id string, u AnalysisUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE software
		 SET performance_score = $2, uptime_percentage = $3, status = $4, integrations_count = $5, updated_at = now()
		 WHERE id = $1`,
		id, u.PerformanceScore, u.UptimePercentage, string(u.Status), u.IntegrationsCount,
	)
	if err != nil {
		return fmt.Errorf("update application %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update application %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update application %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListUserIDs returns every user that tracks at least one application.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM software ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const repositoryColumns = `id, user_id, platform, repository_name, repository_url, COALESCE(description, ''),
	language, stars_count, forks_count, COALESCE(last_commit_date, created_at), COALESCE(repo_created_at, created_at)`

// ListRepositories returns a user's imported repositories in import order.
func (s *Store) ListRepositories(ctx context.Context, userID string) ([]inventory.Repository, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+repositoryColumns+` FROM external_integrations WHERE user_id = $1 ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	var repos []inventory.Repository
	for rows.Next() {
		var r inventory.Repository
		var platform string
		if err := rows.Scan(&r.ID, &r.UserID, &platform, &r.Name, &r.URL, &r.Description,
			&r.Language, &r.Stars, &r.Forks, &r.LastCommitAt, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		r.Platform = inventory.Platform(platform)
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// ReplaceRepositories swaps a user's snapshot for one platform in a single
// transaction, so readers never observe a partial import.
func (s *Store) ReplaceRepositories(ctx context.Context, userID string, platform inventory.Platform, repos []inventory.Repository) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace repositories: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM external_integrations WHERE user_id = $1 AND platform = $2`,
		userID, string(platform),
	); err != nil {
		return fmt.Errorf("clear %s repositories: %w", platform, err)
	}

	for _, r := range repos {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO external_integrations
			   (user_id, platform, repository_name, repository_url, description, language,
			    stars_count, forks_count, last_commit_date, repo_created_at)
			 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)`,
			userID, string(platform), r.Name, r.URL, r.Description, r.Language,
			r.Stars, r.Forks, nullTime(r.LastCommitAt), nullTime(r.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert repository %s: %w", r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace repositories: %w", err)
	}
	return nil
}

// TouchRepository records a new last-commit time for every imported copy of
// the repository at url. It returns the number of rows updated.
func (s *Store) TouchRepository(ctx context.Context, url string, lastCommitAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE external_integrations SET last_commit_date = $2, updated_at = now() WHERE repository_url = $1`,
		url, lastCommitAt,
	)
	if err != nil {
		return 0, fmt.Errorf("touch repository %s: %w", url, err)
	}
	return res.RowsAffected()
}

// ListRepositoryOwners returns the users that imported the repository at url.
func (s *Store) ListRepositoryOwners(ctx context.Context, url string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM external_integrations WHERE repository_url = $1 ORDER BY user_id`, url)
	if err != nil {
		return nil, fmt.Errorf("list repository owners: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AppendPerformanceSample adds one row to an application's latency history.
func (s *Store) AppendPerformanceSample(ctx context.Context, sample inventory.PerformanceSample) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO performance_logs (software_id, response_time_ms, uptime_percentage, status_code)
		 VALUES ($1, $2, $3, $4)`,
		sample.ApplicationID, sample.ResponseTimeMs, sample.UptimePercentage, sample.StatusCode,
	)
	if err != nil {
		return fmt.Errorf("append performance sample for %s: %w", sample.ApplicationID, err)
	}
	return nil
}

// ListPerformanceSamples returns the most recent samples, newest first.
func (s *Store) ListPerformanceSamples(ctx context.Context, appID string, limit int) ([]inventory.PerformanceSample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT software_id, COALESCE(response_time_ms, 0), COALESCE(uptime_percentage, 0), COALESCE(status_code, 0), checked_at
		 FROM performance_logs WHERE software_id = $1 ORDER BY checked_at DESC LIMIT $2`,
		appID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list performance samples: %w", err)
	}
	defer rows.Close()

	var samples []inventory.PerformanceSample
	for rows.Next() {
		var p inventory.PerformanceSample
		if err := rows.Scan(&p.ApplicationID, &p.ResponseTimeMs, &p.UptimePercentage, &p.StatusCode, &p.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan performance sample: %w", err)
		}
		samples = append(samples, p)
	}
	return samples, rows.Err()
}

// AppendActivityLog records a dashboard event.
func (s *Store) AppendActivityLog(ctx context.Context, entry inventory.ActivityLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity_logs (user_id, software_id, activity_type, title, description)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.UserID, entry.ApplicationID, entry.Type, entry.Title, entry.Description,
	)
	if err != nil {
		return fmt.Errorf("append activity log for %s: %w", entry.UserID, err)
	}
	return nil
}

// ListActivity returns a user's most recent activity, newest first.
func (s *Store) ListActivity(ctx context.Context, userID string, limit int) ([]inventory.ActivityLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, software_id, activity_type, title, COALESCE(description, ''), created_at
		 FROM activity_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var logs []inventory.ActivityLog
	for rows.Next() {
		var l inventory.ActivityLog
		if err := rows.Scan(&l.UserID, &l.ApplicationID, &l.Type, &l.Title, &l.Description, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
