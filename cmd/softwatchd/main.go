// Command softwatchd is the hosted Softwatch service.
// It serves the REST API, the GitHub push webhook and a health check, and
// re-analyses every application on a cron schedule.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/softwatch/softwatch/internal/analysis"
	"github.com/softwatch/softwatch/internal/api"
	"github.com/softwatch/softwatch/internal/importer"
	"github.com/softwatch/softwatch/internal/platform"
	"github.com/softwatch/softwatch/internal/scheduler"
	"github.com/softwatch/softwatch/internal/store"
	"github.com/softwatch/softwatch/internal/webhook"
	appconfig "github.com/softwatch/softwatch/pkg/config"
	"github.com/softwatch/softwatch/pkg/probe"
	"github.com/softwatch/softwatch/pkg/scoring"
)

type config struct {
	Port          string
	DatabaseURL   string
	APIKey        string
	WebhookSecret string
	WebhookDelay  time.Duration
	GitHubToken   string
	GitLabToken   string
	ConfigPath    string
	LogLevel      string

	ReportBackend    string // local, s3 or gcs
	LocalStoragePath string
	GCSBucket        string
	S3               analysis.S3Config
}

func loadConfig() config {
	return config{
		Port:          envOrDefault("PORT", "8080"),
		DatabaseURL:   envOrDefault("DATABASE_URL", "postgres://localhost:5432/softwatch?sslmode=disable"),
		APIKey:        os.Getenv("API_KEY"),
		WebhookSecret: os.Getenv("GITHUB_WEBHOOK_SECRET"),
		WebhookDelay:  time.Duration(envInt("WEBHOOK_DELAY_SECONDS", 30)) * time.Second,
		GitHubToken:   os.Getenv("GITHUB_TOKEN"),
		GitLabToken:   os.Getenv("GITLAB_TOKEN"),
		ConfigPath:    os.Getenv("CONFIG_PATH"),
		LogLevel:      envOrDefault("LOG_LEVEL", "info"),

		ReportBackend:    envOrDefault("REPORT_BACKEND", "local"),
		LocalStoragePath: envOrDefault("LOCAL_STORAGE_PATH", "/tmp/softwatch-data"),
		GCSBucket:        os.Getenv("GCS_BUCKET"),
		S3: analysis.S3Config{
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    os.Getenv("S3_REGION"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Prefix:    os.Getenv("S3_PREFIX"),
		},
	}
}

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	cfg := loadConfig()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("softwatchd exited")
	}
}

func run(cfg config, log *logrus.Logger) error {
	appCfg, err := loadAppConfig(cfg.ConfigPath)
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if err := platform.AutoMigrate(db, log); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize services
	st := store.New(db)

	reports, closeReports, err := newReportStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeReports()

	engineOpts, err := appCfg.EngineOptions()
	if err != nil {
		return err
	}
	engineOpts = append(engineOpts, scoring.WithLogger(log))
	engine := scoring.NewEngine(probe.NewHTTPProber(), engineOpts...)

	analyses := analysis.NewService(st, engine, reports, log)

	github, err := importer.NewGitHubSource(ctx, cfg.GitHubToken, appCfg.Import.GitHubBaseURL, appCfg.Import.PageSize)
	if err != nil {
		return err
	}
	gitlab, err := importer.NewGitLabSource(cfg.GitLabToken, appCfg.Import.GitLabBaseURL, appCfg.Import.PageSize)
	if err != nil {
		return err
	}
	imp := importer.New(st, importer.Options{
		AutoDetectLimit:     appCfg.Import.AutoDetectLimit,
		AutoDetectLanguages: appCfg.Import.AutoDetectLanguages,
	}, log, github, gitlab)

	sched := scheduler.New(st, analyses, appCfg.Scheduler.Concurrency, log)
	if appCfg.Scheduler.Schedule != "" {
		if err := sched.Start(ctx, appCfg.Scheduler.Schedule); err != nil {
			return err
		}
	}

	repoCache := api.NewRepositoryCacheFromEnv()

	webhookHandler := webhook.NewHandler([]byte(cfg.WebhookSecret), st, analyses, log)
	webhookHandler.Delay = cfg.WebhookDelay
	webhookHandler.OnRepositoriesChanged = repoCache.Invalidate

	apiHandler := api.NewHandler(api.Deps{
		Store:    st,
		Analyses: analyses,
		Importer: imp,
		Reports:  reports,
		Sweeper:  sched,
		Cache:    repoCache,
		Log:      log,
	})
	apiMux := http.NewServeMux()
	apiHandler.RegisterRoutes(apiMux)

	// Set up HTTP routes
	mux := http.NewServeMux()
	mux.Handle("/api/", api.APIKeyAuth(cfg.APIKey)(apiMux))
	mux.Handle("POST /v1/webhooks/github", webhookHandler)
	mux.HandleFunc("GET /healthz", healthHandler(st))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.RequestLogger(log)(api.CORS(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("starting softwatchd")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	sched.Stop()

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelDrain()
	if err := analyses.Drain(drainCtx); err != nil {
		log.WithError(err).Warn("analysis jobs still running at shutdown")
	}
	return nil
}

// newReportStorage selects the report backend. The returned func releases
// backend resources.
func newReportStorage(ctx context.Context, cfg config) (analysis.ReportStorage, func(), error) {
	noop := func() {}
	switch cfg.ReportBackend {
	case "", "local":
		return analysis.NewLocalStorage(cfg.LocalStoragePath), noop, nil
	case "s3":
		s, err := analysis.NewS3Storage(ctx, cfg.S3)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case "gcs":
		if cfg.GCSBucket == "" {
			return nil, nil, errors.New("GCS_BUCKET is required for the gcs report backend")
		}
		s, err := analysis.NewGCSStorage(ctx, cfg.GCSBucket)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown REPORT_BACKEND %q (want local, s3 or gcs)", cfg.ReportBackend)
	}
}

func loadAppConfig(path string) (*appconfig.Config, error) {
	if path == "" {
		return appconfig.DefaultConfig(), nil
	}
	return appconfig.Load(path)
}

type pinger interface {
	Ping(ctx context.Context) error
}

func healthHandler(p pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := p.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "database unreachable"})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}
