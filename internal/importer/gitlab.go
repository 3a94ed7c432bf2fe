package importer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"github.com/xanzy/go-gitlab"

	"github.com/softwatch/softwatch/pkg/inventory"
)

// GitLabSource lists a user's projects through the GitLab v4 API.
type GitLabSource struct {
	client   *gitlab.Client
	pageSize int
	maxPages int
	retry    RetryPolicy
}

// NewGitLabSource creates a GitLab source. baseURL defaults to gitlab.com.
func NewGitLabSource(token, baseURL string, pageSize int) (*GitLabSource, error) {
	// Retries are handled by RetryPolicy, not the client's own transport.
	opts := []gitlab.ClientOptionFunc{gitlab.WithCustomRetryMax(0)}
	if baseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(baseURL))
	}
	client, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gitlab client: %w", err)
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	return &GitLabSource{client: client, pageSize: pageSize, maxPages: 10, retry: DefaultRetryPolicy()}, nil
}

// Platform implements Source.
func (s *GitLabSource) Platform() inventory.Platform {
	return inventory.PlatformGitLab
}

// ListRepositories returns username's projects ordered by last activity.
// The projects API carries no primary language, so Language stays nil.
func (s *GitLabSource) ListRepositories(ctx context.Context, username string) ([]inventory.Repository, error) {
	opts := &gitlab.ListProjectsOptions{
		ListOptions: gitlab.ListOptions{PerPage: s.pageSize, Page: 1},
		OrderBy:     gitlab.Ptr("last_activity_at"),
	}

	var out []inventory.Repository
	for page := 0; page < s.maxPages; page++ {
		var (
			projects []*gitlab.Project
			resp     *gitlab.Response
		)
		err := s.retry.Do(ctx, func() error {
			var apiErr error
			projects, resp, apiErr = s.client.Projects.ListUserProjects(username, opts, gitlab.WithContext(ctx))
			return classifyGitLabError(apiErr)
		})
		if err != nil {
			return nil, fmt.Errorf("list gitlab projects for %s: %w", username, err)
		}

		for _, p := range projects {
			out = append(out, gitlabRepository(p))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func gitlabRepository(p *gitlab.Project) inventory.Repository {
	repo := inventory.Repository{
		Platform:    inventory.PlatformGitLab,
		Name:        p.Name,
		URL:         p.WebURL,
		Description: p.Description,
		Stars:       p.StarCount,
		Forks:       p.ForksCount,
	}
	if p.LastActivityAt != nil {
		repo.LastCommitAt = *p.LastActivityAt
	}
	if p.CreatedAt != nil {
		repo.CreatedAt = *p.CreatedAt
	}
	return repo
}

func classifyGitLabError(err error) error {
	if err == nil {
		return nil
	}
	var er *gitlab.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		switch code := er.Response.StatusCode; {
		case code == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrUserNotFound, err))
		case code == http.StatusUnauthorized:
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrUnauthorized, err))
		case code >= 400 && code < 500 && code != http.StatusTooManyRequests:
			return backoff.Permanent(err)
		}
	}
	return err
}
