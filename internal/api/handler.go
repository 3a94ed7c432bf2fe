// Package api implements the hosted Softwatch REST API.
// It exposes applications, imported repositories, analysis jobs and
// activity, backed by Postgres and report blob storage.
package api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/softwatch/softwatch/internal/analysis"
	"github.com/softwatch/softwatch/internal/importer"
	"github.com/softwatch/softwatch/internal/scheduler"
	"github.com/softwatch/softwatch/internal/store"
	"github.com/softwatch/softwatch/pkg/inventory"
)

// Store is the read side of persistence the API serves from.
type Store interface {
	GetApplication(ctx context.Context, id string) (*inventory.Application, error)
	ListApplications(ctx context.Context, userID string) ([]inventory.Application, error)
	CreateApplication(ctx context.Context, app *inventory.Application) (*inventory.Application, error)
	ListRepositories(ctx context.Context, userID string) ([]inventory.Repository, error)
	ListPerformanceSamples(ctx context.Context, appID string, limit int) ([]inventory.PerformanceSample, error)
	ListActivity(ctx context.Context, userID string, limit int) ([]inventory.ActivityLog, error)
}

// Analyses runs and tracks application analyses.
type Analyses interface {
	Analyze(ctx context.Context, appID string) (*analysis.Outcome, error)
	Enqueue(ctx context.Context, appID string, delay time.Duration) *analysis.Job
	Job(id string) (*analysis.Job, error)
}

// Importer syncs repositories from source-control platforms.
type Importer interface {
	Sync(ctx context.Context, userID string, platform inventory.Platform, username string) (*importer.SyncResult, error)
	AutoDetect(ctx context.Context, userID string, platform inventory.Platform) ([]inventory.Application, error)
}

// Sweeper re-analyses every application on demand.
type Sweeper interface {
	RunOnce(ctx context.Context) (*scheduler.Summary, error)
}

// Handler is the top-level API handler for the hosted Softwatch service.
type Handler struct {
	store    Store
	analyses Analyses
	importer Importer
	reports  analysis.ReportStorage
	sweeper  Sweeper
	cache    *RepositoryCache
	log      logrus.FieldLogger
}

// Deps bundles the services a Handler delegates to. Reports and Sweeper
// are optional; their routes answer 404 and 503 respectively when unset.
type Deps struct {
	Store    Store
	Analyses Analyses
	Importer Importer
	Reports  analysis.ReportStorage
	Sweeper  Sweeper
	Cache    *RepositoryCache
	Log      logrus.FieldLogger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	if d.Cache == nil {
		d.Cache = NewRepositoryCacheFromEnv()
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	return &Handler{
		store:    d.Store,
		analyses: d.Analyses,
		importer: d.Importer,
		reports:  d.Reports,
		sweeper:  d.Sweeper,
		cache:    d.Cache,
		log:      d.Log,
	}
}

// RegisterRoutes registers all API routes on the given ServeMux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Write endpoints
	mux.HandleFunc("POST /api/users/{userID}/applications", h.handleCreateApplication)
	mux.HandleFunc("POST /api/applications/{appID}/analyze", h.handleAnalyze)
	mux.HandleFunc("POST /api/users/{userID}/imports", h.handleImport)
	mux.HandleFunc("POST /api/users/{userID}/auto-detect", h.handleAutoDetect)
	mux.HandleFunc("POST /api/admin/sweep", h.handleSweep)

	// Read endpoints
	mux.HandleFunc("GET /api/users/{userID}/applications", h.handleListApplications)
	mux.HandleFunc("GET /api/applications/{appID}", h.handleGetApplication)
	mux.HandleFunc("GET /api/applications/{appID}/performance", h.handlePerformance)
	mux.HandleFunc("GET /api/applications/{appID}/reports/{reportID}", h.handleGetReport)
	mux.HandleFunc("GET /api/jobs/{jobID}", h.handleGetJob)
	mux.HandleFunc("GET /api/users/{userID}/repositories", h.handleListRepositories)
	mux.HandleFunc("GET /api/users/{userID}/activity", h.handleActivity)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, analysis.ErrJobNotFound),
		errors.Is(err, analysis.ErrReportNotFound),
		errors.Is(err, importer.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, importer.ErrUnsupportedPlatform):
		return http.StatusBadRequest
	case errors.Is(err, importer.ErrUnauthorized):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError logs unexpected failures and writes the mapped status.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, what string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", r.URL.Path).Error(what)
	}
	writeError(w, status, fmt.Sprintf("%s: %v", what, err))
}

// decodeJSON reads a JSON request body, transparently inflating gzip
// payloads. Bodies are capped at 1 MB.
func decodeJSON(r *http.Request, v any) error {
	var body io.Reader = io.LimitReader(r.Body, 1<<20)
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return fmt.Errorf("invalid gzip body: %w", err)
		}
		defer gz.Close()
		body = gz
	}
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// queryLimit parses ?limit=, clamped to [1, max].
func queryLimit(r *http.Request, def, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
