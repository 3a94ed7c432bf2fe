package analysis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrJobNotFound is returned by Job lookups for unknown or expired IDs.
var ErrJobNotFound = errors.New("job not found")

// ErrServiceStopped fails jobs that had not started when Drain was called.
var ErrServiceStopped = errors.New("analysis service stopped")

// JobStatus is the lifecycle of an analysis job.
type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

// Job is a handle on one asynchronous analysis.
type Job struct {
	ID        string
	AppID     string
	CreatedAt time.Time

	mu         sync.Mutex
	status     JobStatus
	outcome    *Outcome
	err        error
	finishedAt time.Time
	done       chan struct{}
}

// JobView is the JSON form of a Job.
type JobView struct {
	ID         string     `json:"id"`
	AppID      string     `json:"app_id"`
	Status     JobStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	Outcome    *Outcome   `json:"outcome,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func newJob(appID string) *Job {
	return &Job{
		ID:        uuid.NewString(),
		AppID:     appID,
		CreatedAt: time.Now(),
		status:    JobQueued,
		done:      make(chan struct{}),
	}
}

// Status returns the current lifecycle state.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Done is closed once the job has completed or failed.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes or ctx is done.
func (j *Job) Wait(ctx context.Context) (*Outcome, error) {
	select {
	case <-j.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.outcome, j.err
}

// View snapshots the job for serialisation.
func (j *Job) View() JobView {
	j.mu.Lock()
	defer j.mu.Unlock()
	v := JobView{
		ID:        j.ID,
		AppID:     j.AppID,
		Status:    j.status,
		Outcome:   j.outcome,
		CreatedAt: j.CreatedAt,
	}
	if j.err != nil {
		v.Error = j.err.Error()
	}
	if !j.finishedAt.IsZero() {
		t := j.finishedAt
		v.FinishedAt = &t
	}
	return v
}

func (j *Job) setRunning() {
	j.mu.Lock()
	j.status = JobRunning
	j.mu.Unlock()
}

func (j *Job) finish(out *Outcome, err error) {
	j.mu.Lock()
	j.outcome = out
	j.err = err
	j.finishedAt = time.Now()
	if err != nil {
		j.status = JobFailed
	} else {
		j.status = JobCompleted
	}
	j.mu.Unlock()
	close(j.done)
}

func (j *Job) expired(now time.Time, retention time.Duration) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return !j.finishedAt.IsZero() && now.Sub(j.finishedAt) > retention
}

// Enqueue schedules an analysis of appID after delay and returns its handle
// immediately. The job outlives ctx's cancellation but inherits its values.
func (s *Service) Enqueue(ctx context.Context, appID string, delay time.Duration) *Job {
	job := newJob(appID)

	s.jobsMu.Lock()
	s.pruneLocked(time.Now())
	s.jobs[job.ID] = job
	s.jobsMu.Unlock()

	runCtx := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if !s.waitDelay(delay) {
			s.log.WithField("job_id", job.ID).WithField("app_id", appID).Warn("analysis job abandoned at shutdown")
			job.finish(nil, ErrServiceStopped)
			return
		}
		job.setRunning()
		out, err := s.Analyze(runCtx, appID)
		if err != nil {
			s.log.WithError(err).WithField("job_id", job.ID).Error("analysis job failed")
		}
		job.finish(out, err)
	}()
	return job
}

// waitDelay sleeps for delay and reports whether the job may still run.
func (s *Service) waitDelay(delay time.Duration) bool {
	if delay <= 0 {
		select {
		case <-s.stop:
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.stop:
		return false
	}
}

// Job returns a previously enqueued job.
func (s *Service) Job(id string) (*Job, error) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Drain stops the service and waits for in-flight jobs to finish or ctx to
// be done. Jobs still waiting out their delay, and jobs enqueued afterwards,
// fail with ErrServiceStopped.
func (s *Service) Drain(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) pruneLocked(now time.Time) {
	for id, job := range s.jobs {
		if job.expired(now, s.retention) {
			delete(s.jobs, id)
		}
	}
}
