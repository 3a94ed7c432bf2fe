package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/softwatch/softwatch/internal/importer"
	"github.com/softwatch/softwatch/pkg/inventory"
)

func newImportCmd() *cobra.Command {
	var (
		platform   string
		username   string
		output     string
		baseURL    string
		configPath string
		suggest    bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Fetch a user's repositories into a JSON file",
		Long: `Lists the public repositories of a GitHub user or GitLab projects of a
GitLab user and writes them to a file usable with 'softwatch analyze --repos'.
Tokens are read from GITHUB_TOKEN or GITLAB_TOKEN when set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), importOpts{
				platform:   inventory.Platform(platform),
				username:   username,
				output:     output,
				baseURL:    baseURL,
				configPath: configPath,
				suggest:    suggest,
			})
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "github", "Platform: github or gitlab")
	cmd.Flags().StringVar(&username, "username", "", "Account to import (required)")
	cmd.Flags().StringVar(&output, "output", "repos.json", "File to write repositories to")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL for self-hosted instances")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: search for .softwatch/config.yaml)")
	cmd.Flags().BoolVar(&suggest, "suggest", false, "Also list the repositories auto-detection would add as applications")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

type importOpts struct {
	platform   inventory.Platform
	username   string
	output     string
	baseURL    string
	configPath string
	suggest    bool
}

func runImport(ctx context.Context, opts importOpts) error {
	if !opts.platform.Valid() {
		return fmt.Errorf("%w: %q", importer.ErrUnsupportedPlatform, opts.platform)
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	var src importer.Source
	switch opts.platform {
	case inventory.PlatformGitHub:
		src, err = importer.NewGitHubSource(ctx, os.Getenv("GITHUB_TOKEN"),
			firstNonEmpty(opts.baseURL, cfg.Import.GitHubBaseURL), cfg.Import.PageSize)
	case inventory.PlatformGitLab:
		src, err = importer.NewGitLabSource(os.Getenv("GITLAB_TOKEN"),
			firstNonEmpty(opts.baseURL, cfg.Import.GitLabBaseURL), cfg.Import.PageSize)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Fetching %s repositories for %s...\n", opts.platform, opts.username)
	repos, err := src.ListRepositories(ctx, opts.username)
	if err != nil {
		if errors.Is(err, importer.ErrUserNotFound) {
			return fmt.Errorf("%s user %q not found", opts.platform, opts.username)
		}
		return err
	}

	if err := inventory.SaveRepositories(opts.output, repos); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %d repositories to %s\n", len(repos), opts.output)

	if opts.suggest {
		im := importer.New(nil, importer.Options{
			AutoDetectLimit:     cfg.Import.AutoDetectLimit,
			AutoDetectLanguages: cfg.Import.AutoDetectLanguages,
		}, newLogger(false))
		for _, r := range im.Candidates(opts.platform, repos, nil) {
			fmt.Fprintf(os.Stdout, "%s\t%s\t%d stars\n", r.Name, firstNonEmpty(r.LanguageOrEmpty(), "Unknown"), r.Stars)
		}
	}
	return nil
}
