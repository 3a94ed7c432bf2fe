package scoring

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/softwatch/softwatch/pkg/discovery"
	"github.com/softwatch/softwatch/pkg/inventory"
	"github.com/softwatch/softwatch/pkg/match"
	"github.com/softwatch/softwatch/pkg/probe"
)

// Timeouts bounds each kind of probe.
type Timeouts struct {
	Website time.Duration
	API     time.Duration
	LiveURL time.Duration
}

// DefaultTimeouts returns the standard probe timeouts.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Website: probe.WebsiteTimeout,
		API:     probe.APITimeout,
		LiveURL: probe.LiveURLTimeout,
	}
}

// Engine analyzes applications. It picks exactly one path per call: the
// repository path when a repository matches, the direct probe path
// otherwise.
type Engine struct {
	prober     probe.Prober
	weights    Weights
	factors    []Factor
	thresholds Thresholds
	timeouts   Timeouts
	now        func() time.Time
	log        logrus.FieldLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithWeights replaces the weights and rebuilds the default factors.
func WithWeights(w Weights) Option {
	return func(e *Engine) {
		e.weights = w
		e.factors = DefaultFactors(w)
	}
}

// WithFactors replaces the repository-path factors.
func WithFactors(factors ...Factor) Option {
	return func(e *Engine) { e.factors = factors }
}

// WithThresholds replaces the status table.
func WithThresholds(t Thresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

// WithTimeouts replaces the probe timeouts.
func WithTimeouts(t Timeouts) Option {
	return func(e *Engine) { e.timeouts = t }
}

// WithClock injects the time source used for recency calculations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates a scoring engine that probes through p.
func NewEngine(p probe.Prober, opts ...Option) *Engine {
	w := DefaultWeights()
	e := &Engine{
		prober:     p,
		weights:    w,
		factors:    DefaultFactors(w),
		thresholds: DefaultThresholds(),
		timeouts:   DefaultTimeouts(),
		now:        time.Now,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze computes a fresh result for app. A non-nil error is a warning:
// the returned result is always displayable, falling back to pending.
func (e *Engine) Analyze(ctx context.Context, app *inventory.Application, repos []inventory.Repository) (result *inventory.AnalysisResult, err error) {
	now := e.now()
	defer func() {
		if r := recover(); r != nil {
			result = inventory.PendingResult(now)
			err = fmt.Errorf("analysis of %q panicked: %v", app.Name, r)
		}
	}()

	if app == nil {
		return inventory.PendingResult(now), fmt.Errorf("application is nil")
	}

	log := e.log.WithField("app_id", app.ID)

	repo, rule, ok := match.Match(app.Name, app.Website, repos)
	if ok {
		if err := repo.Validate(); err != nil {
			return inventory.PendingResult(now), fmt.Errorf("analyzing %q: %w", app.Name, err)
		}
		log.WithFields(logrus.Fields{"repository": repo.Name, "rule": rule}).Debug("matched repository")
		result = e.analyzeRepository(ctx, app, repo, now)
		result.MatchedRepository = &inventory.RepositoryRef{
			ID:   repo.ID,
			Name: repo.Name,
			URL:  repo.URL,
			Rule: string(rule),
		}
	} else {
		result = e.analyzeProbes(ctx, app, now)
	}

	// A cancelled caller makes every probe fail; that is not a measurement.
	if err := ctx.Err(); err != nil {
		return inventory.PendingResult(now), fmt.Errorf("analysis of %q interrupted: %w", app.Name, err)
	}

	result.Status = e.thresholds.Status(result.PerformanceScore, result.UptimePercentage)
	log.WithFields(logrus.Fields{
		"path":   result.Path,
		"score":  result.PerformanceScore,
		"uptime": result.UptimePercentage,
		"status": result.Status,
	}).Info("analysis complete")
	return result, nil
}

func (e *Engine) analyzeRepository(ctx context.Context, app *inventory.Application, repo *inventory.Repository, now time.Time) *inventory.AnalysisResult {
	finder := &discovery.Finder{
		Prober:  e.prober,
		Timeout: e.timeouts.LiveURL,
		Score: func(r probe.Result) float64 {
			return float64(WebsiteTiers.Evaluate(r).Score) / 100
		},
		Log: e.log,
	}
	live := finder.FindLiveURL(ctx, app.Website, repo)

	rc := &RepoContext{Repo: repo, Live: live, Now: now}
	result := &inventory.AnalysisResult{
		Path:       inventory.PathRepository,
		AnalyzedAt: now,
		Sources:    1,
		Confidence: 60,
	}

	var total float64
	for _, f := range e.factors {
		fr := f.Evaluate(rc)
		result.Breakdown = append(result.Breakdown, fr)
		total += fr.Contribution
	}

	score := int(math.Round(total))
	score = max(e.weights.ScoreFloor, min(e.weights.ScoreCeiling, score))
	result.PerformanceScore = score
	result.UptimePercentage = RepositoryUptime(e.weights, repo, live.Found, now)

	if live.Found {
		result.ResponseTimeMs = live.ResponseTimeMs
		result.LiveURL = live.URL
		result.Sources++
		result.Confidence = 80
	}
	return result
}

func (e *Engine) analyzeProbes(ctx context.Context, app *inventory.Application, now time.Time) *inventory.AnalysisResult {
	result := &inventory.AnalysisResult{Path: inventory.PathNone, AnalyzedAt: now}

	var targets []probe.Target
	var tables []TierTable
	websiteIdx := -1
	if app.Website != "" {
		websiteIdx = len(targets)
		targets = append(targets, probe.Target{URL: app.Website, Timeout: e.timeouts.Website})
		tables = append(tables, WebsiteTiers)
	}
	if app.APIEndpoint != "" {
		targets = append(targets, probe.Target{URL: app.APIEndpoint, Timeout: e.timeouts.API})
		tables = append(tables, APITiers)
	}
	if len(targets) == 0 {
		return result
	}

	var scoreSum, uptimeSum float64
	reachable := 0
	for i, res := range probe.ProbeAll(ctx, e.prober, targets) {
		tier := tables[i].Evaluate(res)
		scoreSum += float64(tier.Score)
		uptimeSum += tier.Uptime
		if res.Reachable {
			reachable++
		} else {
			e.log.WithField("url", res.URL).WithError(res.Err).Warn("probe failed")
		}
		if i == websiteIdx {
			result.ResponseTimeMs = res.ResponseTimeMs
		}
		result.Breakdown = append(result.Breakdown, inventory.FactorResult{
			Key:          probeKey(i == websiteIdx),
			Name:         res.URL,
			Value:        float64(res.ResponseTimeMs),
			Contribution: float64(tier.Score),
			Summary:      fmt.Sprintf("reachable=%t uptime=%.1f", res.Reachable, tier.Uptime),
		})
	}

	n := float64(len(targets))
	result.Path = inventory.PathProbe
	result.Sources = len(targets)
	result.PerformanceScore = int(math.Round(scoreSum / n))
	result.UptimePercentage = round2(uptimeSum / n)
	result.Confidence = min(90, 40*reachable)
	return result
}

func probeKey(website bool) string {
	if website {
		return "website_probe"
	}
	return "api_probe"
}
