package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softwatch/softwatch/internal/store"
	"github.com/softwatch/softwatch/pkg/inventory"
	"github.com/softwatch/softwatch/pkg/probe"
	"github.com/softwatch/softwatch/pkg/scoring"
	"github.com/softwatch/softwatch/pkg/surface"
)

type fakeStore struct {
	mu        sync.Mutex
	apps      map[string]*inventory.Application
	repos     map[string][]inventory.Repository
	updates   map[string]store.AnalysisUpdate
	samples   []inventory.PerformanceSample
	activity  []inventory.ActivityLog
	updateErr error
	listErr   error
}

func newFakeStore(apps ...*inventory.Application) *fakeStore {
	fs := &fakeStore{
		apps:    make(map[string]*inventory.Application),
		repos:   make(map[string][]inventory.Repository),
		updates: make(map[string]store.AnalysisUpdate),
	}
	for _, a := range apps {
		fs.apps[a.ID] = a
	}
	return fs
}

func (f *fakeStore) GetApplication(ctx context.Context, id string) (*inventory.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apps[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) ListRepositories(ctx context.Context, userID string) ([]inventory.Repository, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.repos[userID], nil
}

func (f *fakeStore) UpdateApplication(ctx context.Context, id string, u store.AnalysisUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates[id] = u
	return nil
}

func (f *fakeStore) AppendPerformanceSample(ctx context.Context, s inventory.PerformanceSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, s)
	return nil
}

func (f *fakeStore) AppendActivityLog(ctx context.Context, e inventory.ActivityLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activity = append(f.activity, e)
	return nil
}

type fakeAnalyzer struct {
	result *inventory.AnalysisResult
	err    error

	running, maxRunning atomic.Int32
	delay               time.Duration
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, app *inventory.Application, repos []inventory.Repository) (*inventory.AnalysisResult, error) {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		m := f.maxRunning.Load()
		if n <= m || f.maxRunning.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	r := *f.result
	return &r, f.err
}

var analyzedAt = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func goodResult() *inventory.AnalysisResult {
	return &inventory.AnalysisResult{
		PerformanceScore: 75,
		UptimePercentage: 97.45,
		Status:           inventory.StatusGood,
		ResponseTimeMs:   200,
		Path:             inventory.PathProbe,
		Sources:          2,
		AnalyzedAt:       analyzedAt,
	}
}

func quietLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func TestAnalyzeWritesBack(t *testing.T) {
	app := &inventory.Application{ID: "app-1", UserID: "u1", Name: "dash"}
	st := newFakeStore(app)
	reports := NewLocalStorage(t.TempDir())
	svc := NewService(st, &fakeAnalyzer{result: goodResult()}, reports, quietLogger())

	out, err := svc.Analyze(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Empty(t, out.Warnings)
	assert.Equal(t, inventory.StatusGood, out.Application.Status)

	assert.Equal(t, store.AnalysisUpdate{
		PerformanceScore:  75,
		UptimePercentage:  97.45,
		Status:            inventory.StatusGood,
		IntegrationsCount: 2,
	}, st.updates["app-1"])

	require.Len(t, st.samples, 1)
	assert.Equal(t, 200, st.samples[0].StatusCode)
	assert.Equal(t, 200, st.samples[0].ResponseTimeMs)

	require.Len(t, st.activity, 1)
	assert.Equal(t, "dash analysis completed", st.activity[0].Title)
	assert.Equal(t, "Performance: 75/100, Uptime: 97.45%, Status: good", st.activity[0].Description)
	assert.Equal(t, inventory.ActivitySoftwareAnalyzed, st.activity[0].Type)

	require.NotEmpty(t, out.ReportID)
	data, err := reports.GetReport(context.Background(), "u1", "app-1", out.ReportID)
	require.NoError(t, err)
	var report surface.Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 75, report.Result.PerformanceScore)
}

func TestAnalyzeNotFound(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeAnalyzer{result: goodResult()}, nil, quietLogger())
	_, err := svc.Analyze(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAnalyzeRepositoryLoadFailure(t *testing.T) {
	st := newFakeStore(&inventory.Application{ID: "app-1", UserID: "u1", Name: "dash"})
	st.listErr = errors.New("connection reset")
	svc := NewService(st, &fakeAnalyzer{result: goodResult()}, nil, quietLogger())

	_, err := svc.Analyze(context.Background(), "app-1")
	require.Error(t, err)
	assert.Empty(t, st.updates)
}

func TestAnalyzePersistenceFailureIsWarning(t *testing.T) {
	st := newFakeStore(&inventory.Application{ID: "app-1", UserID: "u1", Name: "dash"})
	st.updateErr = errors.New("db down")
	svc := NewService(st, &fakeAnalyzer{result: goodResult()}, nil, quietLogger())

	out, err := svc.Analyze(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, 75, out.Result.PerformanceScore)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "update application")
	// The remaining writes still happen.
	assert.Len(t, st.activity, 1)
}

func TestAnalyzeEngineErrorKeepsStoredResult(t *testing.T) {
	st := newFakeStore(&inventory.Application{
		ID: "app-1", UserID: "u1", Name: "legacy",
		PerformanceScore: 90, UptimePercentage: 99, Status: inventory.StatusExcellent,
	})
	pending := inventory.PendingResult(analyzedAt)
	reports := NewLocalStorage(t.TempDir())
	svc := NewService(st, &fakeAnalyzer{result: pending, err: inventory.ErrMalformedRepository}, reports, quietLogger())

	out, err := svc.Analyze(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, inventory.StatusPending, out.Result.Status)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "malformed repository record")

	assert.Empty(t, st.updates, "the last good score must not be overwritten")
	assert.Empty(t, st.samples)
	assert.Empty(t, st.activity, "no completed activity for a failed analysis")
	assert.Empty(t, out.ReportID)
	assert.Equal(t, 90, out.Application.PerformanceScore)
	assert.Equal(t, inventory.StatusExcellent, out.Application.Status)
}

func TestAnalyzeCancelledContextWritesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st := newFakeStore(&inventory.Application{
		ID: "app-1", UserID: "u1", Name: "crm", Website: srv.URL,
		PerformanceScore: 88, UptimePercentage: 99.7, Status: inventory.StatusExcellent,
	})
	engine := scoring.NewEngine(probe.NewHTTPProber(), scoring.WithLogger(quietLogger()))
	svc := NewService(st, engine, nil, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := svc.Analyze(ctx, "app-1")
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
	assert.Empty(t, st.updates)
	assert.Empty(t, st.samples)
	assert.Empty(t, st.activity)
}

func TestPerformanceSampleFor(t *testing.T) {
	tests := []struct {
		name     string
		ms       int
		wantOK   bool
		wantCode int
	}{
		{"no response time", 0, false, 0},
		{"fast", 300, true, 200},
		{"just under limit", 4999, true, 200},
		{"at limit", 5000, true, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := PerformanceSampleFor("a", &inventory.AnalysisResult{ResponseTimeMs: tt.ms, UptimePercentage: 99})
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantCode, s.StatusCode)
				assert.Equal(t, 99.0, s.UptimePercentage)
			}
		})
	}
}

func TestActivityForWholeUptime(t *testing.T) {
	app := &inventory.Application{ID: "a", UserID: "u", Name: "legacy"}
	entry := ActivityFor(app, &inventory.AnalysisResult{PerformanceScore: 50, UptimePercentage: 92, Status: inventory.StatusPoor})
	assert.Equal(t, "Performance: 50/100, Uptime: 92%, Status: poor", entry.Description)
	require.NotNil(t, entry.ApplicationID)
	assert.Equal(t, "a", *entry.ApplicationID)
}

func TestEnqueueAndWait(t *testing.T) {
	st := newFakeStore(&inventory.Application{ID: "app-1", UserID: "u1", Name: "dash"})
	svc := NewService(st, &fakeAnalyzer{result: goodResult()}, nil, quietLogger())

	job := svc.Enqueue(context.Background(), "app-1", 0)
	got, err := svc.Job(job.ID)
	require.NoError(t, err)
	assert.Same(t, job, got)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := job.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 75, out.Result.PerformanceScore)
	assert.Equal(t, JobCompleted, job.Status())
	assert.NotNil(t, job.View().FinishedAt)
}

func TestEnqueueFailedJob(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeAnalyzer{result: goodResult()}, nil, quietLogger())
	job := svc.Enqueue(context.Background(), "missing", 0)

	_, err := job.Wait(context.Background())
	require.Error(t, err)
	assert.Equal(t, JobFailed, job.Status())
	assert.NotEmpty(t, job.View().Error)
}

func TestEnqueueSurvivesCallerCancel(t *testing.T) {
	st := newFakeStore(&inventory.Application{ID: "app-1", UserID: "u1", Name: "dash"})
	svc := NewService(st, &fakeAnalyzer{result: goodResult()}, nil, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	job := svc.Enqueue(ctx, "app-1", 10*time.Millisecond)
	cancel()

	_, err := job.Wait(context.Background())
	require.NoError(t, err)
}

func TestJobNotFound(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeAnalyzer{result: goodResult()}, nil, quietLogger())
	_, err := svc.Job("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestWaitHonoursContext(t *testing.T) {
	st := newFakeStore(&inventory.Application{ID: "app-1", UserID: "u1", Name: "dash"})
	svc := NewService(st, &fakeAnalyzer{result: goodResult()}, nil, quietLogger())
	job := svc.Enqueue(context.Background(), "app-1", time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := job.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, JobQueued, job.Status())
}

func TestSameApplicationIsSerialised(t *testing.T) {
	st := newFakeStore(
		&inventory.Application{ID: "app-1", UserID: "u1", Name: "one"},
		&inventory.Application{ID: "app-2", UserID: "u1", Name: "two"},
	)
	an := &fakeAnalyzer{result: goodResult(), delay: 20 * time.Millisecond}
	svc := NewService(st, an, nil, quietLogger())

	var jobs []*Job
	for i := 0; i < 4; i++ {
		jobs = append(jobs, svc.Enqueue(context.Background(), "app-1", 0))
	}
	for _, j := range jobs {
		_, err := j.Wait(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), an.maxRunning.Load())

	require.NoError(t, svc.Drain(context.Background()))
	assert.Empty(t, svc.locks.locks, "locks are released once idle")
}

func TestJobsArePruned(t *testing.T) {
	st := newFakeStore(&inventory.Application{ID: "app-1", UserID: "u1", Name: "dash"})
	svc := NewService(st, &fakeAnalyzer{result: goodResult()}, nil, quietLogger())
	svc.retention = 0

	first := svc.Enqueue(context.Background(), "app-1", 0)
	_, err := first.Wait(context.Background())
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	second := svc.Enqueue(context.Background(), "app-1", 0)
	_, err = svc.Job(first.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = second.Wait(context.Background())
	require.NoError(t, err)
}

func TestDrainAbandonsDelayedJobs(t *testing.T) {
	st := newFakeStore(&inventory.Application{ID: "app-1", UserID: "u1", Name: "dash"})
	an := &fakeAnalyzer{result: goodResult()}
	svc := NewService(st, an, nil, quietLogger())

	delayed := svc.Enqueue(context.Background(), "app-1", time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Drain(ctx))

	_, err := delayed.Wait(context.Background())
	assert.ErrorIs(t, err, ErrServiceStopped)
	assert.Equal(t, JobFailed, delayed.Status())
	assert.Equal(t, int32(0), an.maxRunning.Load(), "abandoned job never ran")

	late := svc.Enqueue(context.Background(), "app-1", 0)
	_, err = late.Wait(context.Background())
	assert.ErrorIs(t, err, ErrServiceStopped)
	assert.Empty(t, st.updates)
}
