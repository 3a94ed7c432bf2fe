package scoring_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/softwatch/softwatch/pkg/inventory"
	"github.com/softwatch/softwatch/pkg/probe"
	"github.com/softwatch/softwatch/pkg/scoring"
)

// fixedProber answers from a static latency table; missing URLs are unreachable.
type fixedProber map[string]int

func (f fixedProber) Probe(_ context.Context, url string, timeout time.Duration) probe.Result {
	ms, ok := f[url]
	if !ok {
		return probe.Result{URL: url, ResponseTimeMs: int(timeout.Milliseconds()), Err: errors.New("unreachable")}
	}
	return probe.Result{URL: url, Reachable: true, ResponseTimeMs: ms, StatusCode: 200}
}

type panicFactor struct{}

func (panicFactor) Key() string  { return "panic" }
func (panicFactor) Name() string { return "Panic" }
func (panicFactor) Evaluate(*scoring.RepoContext) inventory.FactorResult {
	panic("boom")
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newEngine(p probe.Prober, opts ...scoring.Option) *scoring.Engine {
	opts = append([]scoring.Option{
		scoring.WithClock(func() time.Time { return now }),
		scoring.WithLogger(quietLogger()),
	}, opts...)
	return scoring.NewEngine(p, opts...)
}

func TestAnalyzeNothingToAnalyze(t *testing.T) {
	e := newEngine(fixedProber{})
	res, err := e.Analyze(context.Background(), &inventory.Application{ID: "a1", Name: "crm"}, nil)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if res.PerformanceScore != 0 || res.UptimePercentage != 0 || res.Status != inventory.StatusPending {
		t.Errorf("got %d/%v/%s, want 0/0/pending", res.PerformanceScore, res.UptimePercentage, res.Status)
	}
	if res.Path != inventory.PathNone {
		t.Errorf("Path = %q, want none", res.Path)
	}
}

func TestAnalyzeZeroStarAncientRepository(t *testing.T) {
	repos := []inventory.Repository{{
		ID:           "r1",
		Platform:     inventory.PlatformGitHub,
		Name:         "legacy",
		URL:          "https://github.com/acme/legacy",
		LastCommitAt: daysAgo(400),
		CreatedAt:    daysAgo(900),
	}}
	e := newEngine(fixedProber{})

	res, err := e.Analyze(context.Background(), &inventory.Application{ID: "a1", Name: "legacy"}, repos)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if res.PerformanceScore != 50 {
		t.Errorf("PerformanceScore = %d, want 50 (floor)", res.PerformanceScore)
	}
	if res.UptimePercentage != 92 {
		t.Errorf("UptimePercentage = %v, want 92", res.UptimePercentage)
	}
	if res.Status != inventory.StatusPoor {
		t.Errorf("Status = %q, want poor", res.Status)
	}
	if res.Path != inventory.PathRepository {
		t.Errorf("Path = %q, want repository", res.Path)
	}
	if res.MatchedRepository == nil || res.MatchedRepository.Rule != "exact_name" {
		t.Errorf("MatchedRepository = %+v, want exact_name match", res.MatchedRepository)
	}
	if res.ResponseTimeMs != 0 || res.LiveURL != "" {
		t.Errorf("expected no live url, got %q (%dms)", res.LiveURL, res.ResponseTimeMs)
	}
	if res.Confidence != 60 {
		t.Errorf("Confidence = %d, want 60", res.Confidence)
	}
}

func TestAnalyzeWebsiteAndUnreachableAPI(t *testing.T) {
	app := &inventory.Application{
		ID:          "a1",
		Name:        "billing",
		Website:     "https://billing.example.com",
		APIEndpoint: "https://api.billing.example.com",
	}
	e := newEngine(fixedProber{"https://billing.example.com": 200})

	res, err := e.Analyze(context.Background(), app, nil)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if res.PerformanceScore != 75 {
		t.Errorf("PerformanceScore = %d, want 75", res.PerformanceScore)
	}
	if res.UptimePercentage != 97.45 {
		t.Errorf("UptimePercentage = %v, want 97.45", res.UptimePercentage)
	}
	if res.Status != inventory.StatusGood {
		t.Errorf("Status = %q, want good", res.Status)
	}
	if res.ResponseTimeMs != 200 {
		t.Errorf("ResponseTimeMs = %d, want 200 from the website probe", res.ResponseTimeMs)
	}
	if res.Path != inventory.PathProbe || res.Sources != 2 {
		t.Errorf("Path/Sources = %s/%d, want probe/2", res.Path, res.Sources)
	}
	if res.Confidence != 40 {
		t.Errorf("Confidence = %d, want 40", res.Confidence)
	}
}

func TestAnalyzeAPIOnlyUsesZeroResponseTime(t *testing.T) {
	app := &inventory.Application{ID: "a1", Name: "svc", APIEndpoint: "https://api.example.com"}
	e := newEngine(fixedProber{"https://api.example.com": 1500})

	res, err := e.Analyze(context.Background(), app, nil)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if res.PerformanceScore != 82 || res.UptimePercentage != 98.5 {
		t.Errorf("got %d/%v, want 82/98.5", res.PerformanceScore, res.UptimePercentage)
	}
	if res.ResponseTimeMs != 0 {
		t.Errorf("ResponseTimeMs = %d, want 0 without a website", res.ResponseTimeMs)
	}
}

func TestAnalyzePopularRepositoryWithLiveURL(t *testing.T) {
	repos := []inventory.Repository{{
		ID:           "r1",
		Platform:     inventory.PlatformGitHub,
		Name:         "dash",
		URL:          "https://github.com/acme/dash",
		Language:     strPtr("Go"),
		Stars:        1000,
		Forks:        100,
		LastCommitAt: daysAgo(2),
		CreatedAt:    daysAgo(1000),
	}}
	e := newEngine(fixedProber{"https://acme.github.io/dash": 300})

	res, err := e.Analyze(context.Background(), &inventory.Application{ID: "a1", Name: "dash"}, repos)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if res.PerformanceScore != 90 {
		t.Errorf("PerformanceScore = %d, want 90", res.PerformanceScore)
	}
	if res.UptimePercentage != 100 {
		t.Errorf("UptimePercentage = %v, want 100", res.UptimePercentage)
	}
	if res.Status != inventory.StatusExcellent {
		t.Errorf("Status = %q, want excellent", res.Status)
	}
	if res.LiveURL != "https://acme.github.io/dash" || res.ResponseTimeMs != 300 {
		t.Errorf("live = %q (%dms), want github pages at 300ms", res.LiveURL, res.ResponseTimeMs)
	}
	if res.Confidence != 80 || res.Sources != 2 {
		t.Errorf("Confidence/Sources = %d/%d, want 80/2", res.Confidence, res.Sources)
	}
	if len(res.Breakdown) != 4 {
		t.Errorf("expected 4 breakdown entries, got %d", len(res.Breakdown))
	}
}

func TestAnalyzeRepositoryPathIgnoresAPIEndpoint(t *testing.T) {
	repos := []inventory.Repository{{
		Platform:     inventory.PlatformGitLab,
		Name:         "svc",
		URL:          "https://gitlab.com/acme/svc",
		LastCommitAt: daysAgo(400),
		CreatedAt:    daysAgo(900),
	}}
	p := fixedProber{"https://api.svc.io": 10}
	e := newEngine(p)

	res, err := e.Analyze(context.Background(), &inventory.Application{Name: "svc", APIEndpoint: "https://api.svc.io"}, repos)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if res.Path != inventory.PathRepository {
		t.Errorf("Path = %q, want repository", res.Path)
	}
	if res.PerformanceScore != 50 {
		t.Errorf("PerformanceScore = %d, want 50: API latency must not blend in", res.PerformanceScore)
	}
}

func TestAnalyzeMalformedRepository(t *testing.T) {
	repos := []inventory.Repository{{Platform: inventory.PlatformGitHub, Name: "bad", Stars: -3}}
	e := newEngine(fixedProber{})

	res, err := e.Analyze(context.Background(), &inventory.Application{Name: "bad"}, repos)
	if !errors.Is(err, inventory.ErrMalformedRepository) {
		t.Fatalf("expected ErrMalformedRepository, got %v", err)
	}
	if res == nil || res.Status != inventory.StatusPending || res.PerformanceScore != 0 {
		t.Errorf("expected pending fallback, got %+v", res)
	}
}

func TestAnalyzeRecoversPanic(t *testing.T) {
	repos := []inventory.Repository{{Platform: inventory.PlatformGitHub, Name: "x", URL: "https://github.com/acme/x"}}
	e := newEngine(fixedProber{}, scoring.WithFactors(panicFactor{}))

	res, err := e.Analyze(context.Background(), &inventory.Application{Name: "x"}, repos)
	if err == nil {
		t.Fatal("expected an error after panic")
	}
	if res == nil || res.Status != inventory.StatusPending {
		t.Errorf("expected pending fallback, got %+v", res)
	}
}

func TestAnalyzeIdempotent(t *testing.T) {
	repos := []inventory.Repository{{
		Platform: inventory.PlatformGitHub, Name: "dash", URL: "https://github.com/acme/dash",
		Stars: 40, Forks: 5, LastCommitAt: daysAgo(20), CreatedAt: daysAgo(400),
	}}
	e := newEngine(fixedProber{"https://dash.netlify.app": 900})
	app := &inventory.Application{Name: "dash"}

	first, err := e.Analyze(context.Background(), app, repos)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	second, err := e.Analyze(context.Background(), app, repos)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ:\n%+v\n%+v", first, second)
	}
}

func TestAnalyzeBounds(t *testing.T) {
	latencies := []int{0, 100, 900, 2000, 4000, 6000, 9000}
	for _, ms := range latencies {
		e := newEngine(fixedProber{"https://site.io": ms, "https://api.site.io": ms})
		res, _ := e.Analyze(context.Background(), &inventory.Application{
			Name: "site", Website: "https://site.io", APIEndpoint: "https://api.site.io",
		}, nil)
		if res.PerformanceScore < 0 || res.PerformanceScore > 100 {
			t.Errorf("%dms: score %d outside [0,100]", ms, res.PerformanceScore)
		}
		if res.UptimePercentage < 0 || res.UptimePercentage > 100 {
			t.Errorf("%dms: uptime %v outside [0,100]", ms, res.UptimePercentage)
		}
	}
}

func TestAnalyzeWithStrictThresholds(t *testing.T) {
	app := &inventory.Application{Name: "billing", Website: "https://billing.example.com", APIEndpoint: "https://api.billing.example.com"}
	e := newEngine(fixedProber{"https://billing.example.com": 200}, scoring.WithThresholds(scoring.StrictThresholds()))

	res, err := e.Analyze(context.Background(), app, nil)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if res.Status != inventory.StatusPoor {
		t.Errorf("Status = %q, want poor under the strict table", res.Status)
	}
}

func TestAnalyzeCancelledContextFallsBackToPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tests := []struct {
		name  string
		app   inventory.Application
		repos []inventory.Repository
	}{
		{
			name: "probe path",
			app:  inventory.Application{ID: "a1", Name: "crm", Website: srv.URL},
		},
		{
			name: "repository path",
			app:  inventory.Application{ID: "a2", Name: "dash", Website: srv.URL},
			repos: []inventory.Repository{{
				Platform: inventory.PlatformGitHub, Name: "dash", URL: "https://github.com/acme/dash",
				Stars: 40, LastCommitAt: now.Add(-48 * time.Hour),
			}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			e := newEngine(probe.NewHTTPProber())
			res, err := e.Analyze(ctx, &tc.app, tc.repos)
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("expected context.Canceled, got %v", err)
			}
			if res == nil || res.Status != inventory.StatusPending || res.PerformanceScore != 0 || res.UptimePercentage != 0 {
				t.Errorf("expected pending fallback, got %+v", res)
			}
		})
	}
}
