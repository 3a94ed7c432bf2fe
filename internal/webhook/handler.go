package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/go-github/v53/github"
	"github.com/sirupsen/logrus"

	"github.com/softwatch/softwatch/internal/analysis"
	"github.com/softwatch/softwatch/pkg/inventory"
	"github.com/softwatch/softwatch/pkg/match"
)

// Store is the persistence a push needs.
type Store interface {
	TouchRepository(ctx context.Context, url string, lastCommitAt time.Time) (int64, error)
	ListRepositoryOwners(ctx context.Context, url string) ([]string, error)
	ListApplications(ctx context.Context, userID string) ([]inventory.Application, error)
	ListRepositories(ctx context.Context, userID string) ([]inventory.Repository, error)
}

// Enqueuer schedules re-analysis of an application.
type Enqueuer interface {
	Enqueue(ctx context.Context, appID string, delay time.Duration) *analysis.Job
}

// Handler processes incoming GitHub webhook events. A push to a default
// branch refreshes the stored last-commit time of the repository and
// re-analyses every application that matches it.
type Handler struct {
	webhookSecret []byte
	store         Store
	jobs          Enqueuer
	log           logrus.FieldLogger

	// Delay postpones re-analysis so a burst of pushes settles first.
	Delay time.Duration
	// OnRepositoriesChanged, when set, is called with each user whose
	// repository snapshot a push modified.
	OnRepositoriesChanged func(userID string)
	now                   func() time.Time
}

// NewHandler creates a new webhook Handler.
func NewHandler(webhookSecret []byte, st Store, jobs Enqueuer, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		webhookSecret: webhookSecret,
		store:         st,
		jobs:          jobs,
		log:           log,
		now:           time.Now,
	}
}

// PushResult summarises the effect of one push event.
type PushResult struct {
	Repository string   `json:"repository"`
	Touched    int64    `json:"touched"`
	Jobs       []string `json:"jobs"`
}

// ServeHTTP handles incoming webhook requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20)) // 10 MB limit
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get(github.SHA256SignatureHeader)
	if err := VerifySignature(body, signature, h.webhookSecret); err != nil {
		h.log.WithError(err).Warn("webhook signature verification failed")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	eventType := github.WebHookType(r)
	if eventType == "" {
		http.Error(w, "missing X-GitHub-Event header", http.StatusBadRequest)
		return
	}

	event, err := ParseEvent(eventType, body)
	if err != nil {
		h.log.WithError(err).WithField("event", eventType).Warn("webhook parse error")
		http.Error(w, "unsupported event", http.StatusBadRequest)
		return
	}

	resp := map[string]interface{}{"status": "accepted"}
	switch e := event.(type) {
	case *github.PingEvent:
		resp["status"] = "pong"
	case *github.PushEvent:
		result, err := h.handlePush(r.Context(), e)
		if err != nil {
			h.log.WithError(err).Error("handle push event")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if result != nil {
			resp["push"] = result
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) handlePush(ctx context.Context, e *github.PushEvent) (*PushResult, error) {
	if !isDefaultBranch(e) {
		return nil, nil
	}
	url := e.GetRepo().GetHTMLURL()
	if url == "" {
		return nil, nil
	}
	log := h.log.WithFields(logrus.Fields{"repository": url, "after": e.GetAfter()})

	touched, err := h.store.TouchRepository(ctx, url, pushTime(e, h.now()))
	if err != nil {
		return nil, fmt.Errorf("touch repository %s: %w", url, err)
	}
	result := &PushResult{Repository: url, Touched: touched, Jobs: []string{}}
	if touched == 0 {
		log.Debug("push for an untracked repository")
		return result, nil
	}

	owners, err := h.store.ListRepositoryOwners(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("list owners of %s: %w", url, err)
	}
	for _, userID := range owners {
		if h.OnRepositoriesChanged != nil {
			h.OnRepositoriesChanged(userID)
		}
		appIDs, err := h.matchingApplications(ctx, userID, url)
		if err != nil {
			return nil, err
		}
		for _, id := range appIDs {
			job := h.jobs.Enqueue(ctx, id, h.Delay)
			result.Jobs = append(result.Jobs, job.ID)
		}
	}

	log.WithField("jobs", len(result.Jobs)).Info("push queued re-analysis")
	return result, nil
}

// matchingApplications returns the applications of userID whose matched
// repository is url.
func (h *Handler) matchingApplications(ctx context.Context, userID, url string) ([]string, error) {
	apps, err := h.store.ListApplications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list applications for %s: %w", userID, err)
	}
	repos, err := h.store.ListRepositories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list repositories for %s: %w", userID, err)
	}

	var ids []string
	for _, app := range apps {
		repo, _, ok := match.Match(app.Name, app.Website, repos)
		if ok && repo.URL == url {
			ids = append(ids, app.ID)
		}
	}
	return ids, nil
}
