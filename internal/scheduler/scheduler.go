// Package scheduler periodically re-analyses every tracked application.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/softwatch/softwatch/internal/analysis"
	"github.com/softwatch/softwatch/pkg/inventory"
)

// Store lists the work a sweep covers.
type Store interface {
	ListUserIDs(ctx context.Context) ([]string, error)
	ListApplications(ctx context.Context, userID string) ([]inventory.Application, error)
}

// Analyzer runs one stored analysis.
type Analyzer interface {
	Analyze(ctx context.Context, appID string) (*analysis.Outcome, error)
}

// Summary reports the result of one sweep.
type Summary struct {
	Applications int
	Analyzed     int
	Failed       int
	Warnings     int
	Duration     time.Duration
}

// Scheduler runs sweeps on a cron schedule, at most Concurrency analyses at
// a time. Overlapping sweeps are skipped.
type Scheduler struct {
	store    Store
	analyzer Analyzer
	sem      *semaphore.Weighted
	log      logrus.FieldLogger

	cron    *cron.Cron
	running atomic.Bool
}

// New creates a Scheduler. concurrency below 1 is treated as 1.
func New(st Store, analyzer Analyzer, concurrency int, log logrus.FieldLogger) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		store:    st,
		analyzer: analyzer,
		sem:      semaphore.NewWeighted(int64(concurrency)),
		log:      log,
	}
}

// Start registers the sweep under spec (standard five-field cron syntax or
// a descriptor such as "@every 1h") and starts the cron runner.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.WithError(err).Error("scheduled sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	s.cron = c
	c.Start()
	s.log.WithField("schedule", spec).Info("re-analysis scheduler started")
	return nil
}

// Stop halts the cron runner and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// RunOnce analyses every application of every user. Individual failures
// are counted and logged; the sweep keeps going.
func (s *Scheduler) RunOnce(ctx context.Context) (*Summary, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("previous sweep still running, skipping")
		return &Summary{}, nil
	}
	defer s.running.Store(false)

	start := time.Now()
	users, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		summary Summary
	)
	for _, userID := range users {
		apps, err := s.store.ListApplications(ctx, userID)
		if err != nil {
			s.log.WithError(err).WithField("user_id", userID).Warn("failed to list applications")
			continue
		}
		for _, app := range apps {
			if err := s.sem.Acquire(ctx, 1); err != nil {
				wg.Wait()
				return nil, fmt.Errorf("sweep interrupted: %w", err)
			}
			summary.Applications++
			wg.Add(1)
			go func(appID string) {
				defer wg.Done()
				defer s.sem.Release(1)

				out, err := s.analyzer.Analyze(ctx, appID)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					summary.Failed++
					s.log.WithError(err).WithField("app_id", appID).Warn("scheduled analysis failed")
					return
				}
				summary.Analyzed++
				summary.Warnings += len(out.Warnings)
			}(app.ID)
		}
	}
	wg.Wait()

	summary.Duration = time.Since(start)
	s.log.WithFields(logrus.Fields{
		"applications": summary.Applications,
		"analyzed":     summary.Analyzed,
		"failed":       summary.Failed,
		"duration":     summary.Duration,
	}).Info("sweep complete")
	return &summary, nil
}
