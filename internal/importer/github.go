package importer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v53/github"
	"golang.org/x/oauth2"

	"github.com/softwatch/softwatch/pkg/inventory"
)

// GitHubSource lists a user's public repositories through the GitHub REST API.
type GitHubSource struct {
	client   *github.Client
	pageSize int
	maxPages int
	retry    RetryPolicy
}

// NewGitHubSource creates a GitHub source. An empty token makes
// unauthenticated requests; baseURL overrides the API root for GitHub
// Enterprise or tests.
func NewGitHubSource(ctx context.Context, token, baseURL string, pageSize int) (*GitHubSource, error) {
	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(ctx, ts)
	}
	client := github.NewClient(hc)

	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		client.BaseURL = u
	}

	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	return &GitHubSource{client: client, pageSize: pageSize, maxPages: 10, retry: DefaultRetryPolicy()}, nil
}

// Platform implements Source.
func (s *GitHubSource) Platform() inventory.Platform {
	return inventory.PlatformGitHub
}

// ListRepositories returns username's repositories, most recently updated
// first.
func (s *GitHubSource) ListRepositories(ctx context.Context, username string) ([]inventory.Repository, error) {
	opts := &github.RepositoryListOptions{
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: s.pageSize},
	}

	var out []inventory.Repository
	for page := 0; page < s.maxPages; page++ {
		var (
			repos []*github.Repository
			resp  *github.Response
		)
		err := s.retry.Do(ctx, func() error {
			var apiErr error
			repos, resp, apiErr = s.client.Repositories.List(ctx, username, opts)
			return classifyGitHubError(apiErr)
		})
		if err != nil {
			return nil, fmt.Errorf("list github repositories for %s: %w", username, err)
		}

		for _, r := range repos {
			out = append(out, githubRepository(r))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func githubRepository(r *github.Repository) inventory.Repository {
	repo := inventory.Repository{
		Platform:    inventory.PlatformGitHub,
		Name:        r.GetName(),
		URL:         r.GetHTMLURL(),
		Description: r.GetDescription(),
		Stars:       r.GetStargazersCount(),
		Forks:       r.GetForksCount(),
		CreatedAt:   r.GetCreatedAt().Time,
	}
	if lang := r.GetLanguage(); lang != "" {
		repo.Language = &lang
	}
	// pushed_at tracks commits; updated_at also moves on metadata edits.
	if r.PushedAt != nil {
		repo.LastCommitAt = r.GetPushedAt().Time
	} else {
		repo.LastCommitAt = r.GetUpdatedAt().Time
	}
	return repo
}

// classifyGitHubError marks client errors as permanent so they are not
// retried.
func classifyGitHubError(err error) error {
	if err == nil {
		return nil
	}
	var er *github.ErrorResponse
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
