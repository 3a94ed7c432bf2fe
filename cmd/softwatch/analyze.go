package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/softwatch/softwatch/internal/analysis"
	"github.com/softwatch/softwatch/pkg/config"
	"github.com/softwatch/softwatch/pkg/inventory"
	"github.com/softwatch/softwatch/pkg/probe"
	"github.com/softwatch/softwatch/pkg/scoring"
	"github.com/softwatch/softwatch/pkg/surface"
)

// localUser owns reports saved by the CLI.
const localUser = "local"

func newAnalyzeCmd() *cobra.Command {
	var (
		appPath     string
		name        string
		website     string
		apiEndpoint string
		reposPath   string
		configPath  string
		outputFmt   string
		save        bool
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Score one application",
		Long: `Matches the application to a repository from --repos when possible and
scores it from repository signals. Otherwise probes the website and API
endpoint directly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), analyzeOpts{
				appPath:     appPath,
				name:        name,
				website:     website,
				apiEndpoint: apiEndpoint,
				reposPath:   reposPath,
				configPath:  configPath,
				outputFmt:   outputFmt,
				save:        save,
				verbose:     verbose,
			})
		},
	}

	cmd.Flags().StringVar(&appPath, "app", "", "Path to an application JSON file")
	cmd.Flags().StringVar(&name, "name", "", "Application name (when --app is not given)")
	cmd.Flags().StringVar(&website, "website", "", "Application website URL")
	cmd.Flags().StringVar(&apiEndpoint, "api", "", "Application API endpoint URL")
	cmd.Flags().StringVar(&reposPath, "repos", "", "Path to a repositories JSON file (see 'softwatch import')")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: search for .softwatch/config.yaml)")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text, json or markdown")
	cmd.Flags().BoolVar(&save, "save", false, "Save the report under the local report directory")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log probe and matching details")

	return cmd
}

type analyzeOpts struct {
	appPath     string
	name        string
	website     string
	apiEndpoint string
	reposPath   string
	configPath  string
	outputFmt   string
	save        bool
	verbose     bool
}

func runAnalyze(ctx context.Context, opts analyzeOpts) error {
	renderer, err := surface.ForFormat(opts.outputFmt)
	if err != nil {
		return err
	}

	app, err := loadApplication(opts)
	if err != nil {
		return err
	}

	var repos []inventory.Repository
	if opts.reposPath != "" {
		repos, err = inventory.LoadRepositories(opts.reposPath)
		if err != nil {
			return err
		}
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	engineOpts, err := cfg.EngineOptions()
	if err != nil {
		return err
	}
	engineOpts = append(engineOpts, scoring.WithLogger(newLogger(opts.verbose)))
	engine := scoring.NewEngine(probe.NewHTTPProber(), engineOpts...)

	fmt.Fprintf(os.Stderr, "Analyzing %s against %d repositories...\n", app.Name, len(repos))

	report := &surface.Report{Application: app}
	result, err := engine.Analyze(ctx, app, repos)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("analysis interrupted: %w", ctxErr)
	}
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("analysis incomplete: %v", err))
	}
	if result == nil {
		result = inventory.PendingResult(time.Now())
	}
	report.Result = result

	app.PerformanceScore = result.PerformanceScore
	app.UptimePercentage = result.UptimePercentage
	app.Status = result.Status
	app.IntegrationsCount = result.Sources

	if opts.save {
		saveReport(ctx, report)
	}

	if err := renderer.Render(os.Stdout, report); err != nil {
		return fmt.Errorf("rendering: %w", err)
	}
	return nil
}

// loadApplication reads --app, or builds an application from the inline flags.
func loadApplication(opts analyzeOpts) (*inventory.Application, error) {
	if opts.appPath != "" {
		data, err := os.ReadFile(opts.appPath)
		if err != nil {
			return nil, fmt.Errorf("reading application: %w", err)
		}
		var app inventory.Application
		if err := json.Unmarshal(data, &app); err != nil {
			return nil, fmt.Errorf("unmarshaling application: %w", err)
		}
		if strings.TrimSpace(app.Name) == "" {
			return nil, errors.New("application file has no name")
		}
		if app.ID == "" {
			app.ID = uuid.NewString()
		}
		return &app, nil
	}

	if strings.TrimSpace(opts.name) == "" {
		return nil, errors.New("either --app or --name is required")
	}
	return &inventory.Application{
		ID:          uuid.NewString(),
		UserID:      localUser,
		Name:        opts.name,
		Website:     opts.website,
		APIEndpoint: opts.apiEndpoint,
		Status:      inventory.StatusPending,
	}, nil
}

// saveReport persists a report to the local report directory. Failures are
// reported but do not fail the command.
func saveReport(ctx context.Context, report *surface.Report) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to marshal report: %v\n", err)
		return
	}

	store := analysis.NewLocalStorage(config.ReportDir())
	reportID := uuid.NewString()
	userID := firstNonEmpty(report.Application.UserID, localUser)
	if err := store.PutReport(ctx, userID, report.Application.ID, reportID, data); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save report: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "Report saved: %s/%s (under %s)\n", report.Application.ID, reportID, store.BaseDir)
}

// loadConfig reads the given config file, or searches upward from the
// working directory when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err == nil {
			path = config.FindConfigFile(wd)
		}
	}
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

// newLogger returns a stderr logger that stays quiet unless verbose is set.
func newLogger(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// firstNonEmpty returns the first non-empty string.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
