// Package probe measures whether a URL answers and how long it takes.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Default per-request timeouts.
const (
	WebsiteTimeout = 10 * time.Second
	APITimeout     = 8 * time.Second
	LiveURLTimeout = 8 * time.Second
)

// Result is the outcome of a single probe. ResponseTimeMs is always the
// elapsed wall-clock time, including when the probe failed.
type Result struct {
	URL            string `json:"url"`
	Reachable      bool   `json:"reachable"`
	ResponseTimeMs int    `json:"response_time_ms"`
	StatusCode     int    `json:"status_code,omitempty"`
	Err            error  `json:"-"`
}

// Prober issues a single reachability check against url.
type Prober interface {
	Probe(ctx context.Context, url string, timeout time.Duration) Result
}

// HTTPProber probes with a HEAD request. Any completed HTTP exchange counts
// as reachable regardless of status code.
type HTTPProber struct {
	Client *http.Client
	Now    func() time.Time
}

// NewHTTPProber returns a prober that does not follow redirects.
func NewHTTPProber() *HTTPProber {
	return &HTTPProber{
		Client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		Now: time.Now,
	}
}

// Probe sends one HEAD request bounded by timeout. It never retries.
func (p *HTTPProber) Probe(ctx context.Context, url string, timeout time.Duration) Result {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	res := Result{URL: url}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := now()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		res.Err = fmt.Errorf("building probe request: %w", err)
		return res
	}

	resp, err := client.Do(req)
	res.ResponseTimeMs = int(now().Sub(start).Milliseconds())
	if err != nil {
		res.Err = fmt.Errorf("probing %s: %w", url, err)
		return res
	}
	resp.Body.Close()

	res.Reachable = true
	res.StatusCode = resp.StatusCode
	return res
}

// Target is one URL to probe with its timeout.
type Target struct {
	URL     string
	Timeout time.Duration
}

// ProbeAll runs all probes concurrently and returns results in input order.
// A panicking prober yields an unreachable result for its target.
func ProbeAll(ctx context.Context, p Prober, targets []Target) []Result {
	results := make([]Result, len(targets))
	var g errgroup.Group
	for i, t := range targets {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = Result{URL: t.URL, Err: fmt.Errorf("probe panicked: %v", r)}
				}
			}()
			results[i] = p.Probe(ctx, t.URL, t.Timeout)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
