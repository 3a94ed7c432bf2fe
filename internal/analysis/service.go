// Package analysis runs the scoring engine against stored applications and
// persists the outcome: score write-back, performance history, activity log
// and a JSON report blob.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/softwatch/softwatch/internal/store"
	"github.com/softwatch/softwatch/pkg/inventory"
	"github.com/softwatch/softwatch/pkg/surface"
)

// slowResponseMs is the latency at or above which a sample is recorded
// with a server-error status code.
const slowResponseMs = 5000

// Store is the persistence the service reads from and writes back to.
type Store interface {
	GetApplication(ctx context.Context, id string) (*inventory.Application, error)
	ListRepositories(ctx context.Context, userID string) ([]inventory.Repository, error)
	UpdateApplication(ctx context.Context, id string, u store.AnalysisUpdate) error
	AppendPerformanceSample(ctx context.Context, sample inventory.PerformanceSample) error
	AppendActivityLog(ctx context.Context, entry inventory.ActivityLog) error
}

// Analyzer abstracts the scoring engine so the service does not depend on
// a concrete implementation.
type Analyzer interface {
	Analyze(ctx context.Context, app *inventory.Application, repos []inventory.Repository) (*inventory.AnalysisResult, error)
}

// Outcome is the result of one stored analysis. Warnings collect every
// failure that did not prevent a result from being produced.
type Outcome struct {
	Application *inventory.Application    `json:"application"`
	Result      *inventory.AnalysisResult `json:"result"`
	Warnings    []string                  `json:"warnings,omitempty"`
	ReportID    string                    `json:"report_id,omitempty"`
}

// Service orchestrates analysis of stored applications.
type Service struct {
	store    Store
	analyzer Analyzer
	reports  ReportStorage
	log      logrus.FieldLogger

	locks keyedMutex

	jobsMu    sync.Mutex
	jobs      map[string]*Job
	retention time.Duration
	inflight  sync.WaitGroup
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewService creates a Service. reports may be nil, in which case no
// report blobs are written.
func NewService(st Store, analyzer Analyzer, reports ReportStorage, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		store:     st,
		analyzer:  analyzer,
		reports:   reports,
		log:       log,
		jobs:      make(map[string]*Job),
		retention: time.Hour,
		stop:      make(chan struct{}),
	}
}

// Analyze loads the application and its owner's repositories, scores it and
// writes the outcome back. Failing to load inputs or a done ctx is returned
// as an error. An analyzer error leaves the stored application untouched and
// comes back as a warning next to the pending result. Write-back failures
// are warnings too.
func (s *Service) Analyze(ctx context.Context, appID string) (*Outcome, error) {
	unlock := s.locks.Lock(appID)
	defer unlock()

	app, err := s.store.GetApplication(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("load application %s: %w", appID, err)
	}
	repos, err := s.store.ListRepositories(ctx, app.UserID)
	if err != nil {
		return nil, fmt.Errorf("load repositories for %s: %w", app.UserID, err)
	}

	log := s.log.WithField("app_id", appID)
	out := &Outcome{Application: app}

	result, err := s.analyzer.Analyze(ctx, app, repos)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("analyze %s: %w", appID, ctxErr)
	}
	if err != nil {
		log.WithError(err).Warn("analysis failed, keeping the stored result")
		out.Warnings = append(out.Warnings, err.Error())
		if result == nil {
			result = inventory.PendingResult(time.Now())
		}
		out.Result = result
		return out, nil
	}
	if result == nil {
		result = inventory.PendingResult(time.Now())
	}
	out.Result = result

	app.PerformanceScore = result.PerformanceScore
	app.UptimePercentage = result.UptimePercentage
	app.Status = result.Status
	app.IntegrationsCount = result.Sources

	s.persist(ctx, app, result, out, log)
	return out, nil
}

func (s *Service) persist(ctx context.Context, app *inventory.Application, result *inventory.AnalysisResult, out *Outcome, log logrus.FieldLogger) {
	warn := func(what string, err error) {
		log.WithError(err).Warnf("failed to %s", what)
		out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %v", what, err))
	}

	err := s.store.UpdateApplication(ctx, app.ID, store.AnalysisUpdate{
		PerformanceScore:  result.PerformanceScore,
		UptimePercentage:  result.UptimePercentage,
		Status:            result.Status,
		IntegrationsCount: result.Sources,
	})
	if err != nil {
		warn("update application", err)
	}

	if sample, ok := PerformanceSampleFor(app.ID, result); ok {
		if err := s.store.AppendPerformanceSample(ctx, sample); err != nil {
			warn("record performance sample", err)
		}
	}

	if err := s.store.AppendActivityLog(ctx, ActivityFor(app, result)); err != nil {
		warn("record activity", err)
	}

	if s.reports != nil {
		reportID := uuid.NewString()
		data, err := json.Marshal(&surface.Report{Application: app, Result: result, Warnings: out.Warnings})
		if err == nil {
			err = s.reports.PutReport(ctx, app.UserID, app.ID, reportID, data)
		}
		if err != nil {
			warn("store report", err)
		} else {
			out.ReportID = reportID
		}
	}
}

// PerformanceSampleFor derives the latency sample for a result. Results
// without a measured response time produce no sample.
func PerformanceSampleFor(appID string, result *inventory.AnalysisResult) (inventory.PerformanceSample, bool) {
	if result == nil || result.ResponseTimeMs <= 0 {
		return inventory.PerformanceSample{}, false
	}
	code := 200
	if result.ResponseTimeMs >= slowResponseMs {
		code = 500
	}
	return inventory.PerformanceSample{
		ApplicationID:    appID,
		ResponseTimeMs:   result.ResponseTimeMs,
		UptimePercentage: result.UptimePercentage,
		StatusCode:       code,
		CheckedAt:        result.AnalyzedAt,
	}, true
}

// ActivityFor builds the "analysis completed" activity entry.
func ActivityFor(app *inventory.Application, result *inventory.AnalysisResult) inventory.ActivityLog {
	id := app.ID
	return inventory.ActivityLog{
		UserID:        app.UserID,
		ApplicationID: &id,
		Type:          inventory.ActivitySoftwareAnalyzed,
		Title:         app.Name + " analysis completed",
		Description: fmt.Sprintf("Performance: %d/100, Uptime: %s%%, Status: %s",
			result.PerformanceScore,
			strconv.FormatFloat(result.UptimePercentage, 'f', -1, 64),
			result.Status),
		CreatedAt: result.AnalyzedAt,
	}
}

// keyedMutex serialises work per key while letting different keys proceed
// in parallel. Entries are dropped once no goroutine holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock acquires the mutex for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
