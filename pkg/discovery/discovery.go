// Package discovery looks for a live deployment of a repository at a
// user-provided URL and at well-known static hosting addresses.
package discovery

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/softwatch/softwatch/pkg/inventory"
	"github.com/softwatch/softwatch/pkg/probe"
)

// LiveURL is the deployment found for a repository, if any.
type LiveURL struct {
	Found          bool    `json:"found"`
	Score          float64 `json:"score"` // normalized to [0,1]
	ResponseTimeMs int     `json:"response_time_ms"`
	URL            string  `json:"url,omitempty"`
}

// Finder probes deployment candidates. Score converts a reachable probe
// into a normalized score.
type Finder struct {
	Prober  probe.Prober
	Timeout time.Duration
	Score   func(probe.Result) float64
	Log     logrus.FieldLogger
}

// Candidates lists the URLs to try, in precedence order.
func Candidates(providedURL string, repo *inventory.Repository) []string {
	var urls []string
	if providedURL != "" && providedURL != repo.URL {
		urls = append(urls, providedURL)
	}
	if repo.Name == "" {
		return urls
	}
	if repo.Platform == inventory.PlatformGitHub {
		if owner := ownerFromURL(repo.URL); owner != "" {
			urls = append(urls, "https://"+owner+".github.io/"+repo.Name)
		}
	}
	urls = append(urls,
		"https://"+repo.Name+".vercel.app",
		"https://"+repo.Name+".netlify.app",
	)
	return urls
}

// ownerFromURL returns the fourth slash-delimited segment, which is the
// account name in https://github.com/{owner}/{repo}.
func ownerFromURL(u string) string {
	parts := strings.Split(u, "/")
	if len(parts) < 4 {
		return ""
	}
	return parts[3]
}

// FindLiveURL probes every candidate concurrently and returns the first
// reachable one in precedence order.
func (f *Finder) FindLiveURL(ctx context.Context, providedURL string, repo *inventory.Repository) LiveURL {
	urls := Candidates(providedURL, repo)
	if len(urls) == 0 {
		return LiveURL{}
	}

	timeout := f.Timeout
	if timeout == 0 {
		timeout = probe.LiveURLTimeout
	}
	targets := make([]probe.Target, len(urls))
	for i, u := range urls {
		targets[i] = probe.Target{URL: u, Timeout: timeout}
	}

	for _, res := range probe.ProbeAll(ctx, f.Prober, targets) {
		if !res.Reachable {
			if f.Log != nil {
				f.Log.WithField("url", res.URL).WithError(res.Err).Debug("deployment candidate unreachable")
			}
			continue
		}
		score := 1.0
		if f.Score != nil {
			score = f.Score(res)
		}
		return LiveURL{
			Found:          true,
			Score:          score,
			ResponseTimeMs: res.ResponseTimeMs,
			URL:            res.URL,
		}
	}
	return LiveURL{}
}
