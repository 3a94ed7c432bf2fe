package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/softwatch/softwatch/internal/analysis"
	"github.com/softwatch/softwatch/pkg/config"
	"github.com/softwatch/softwatch/pkg/surface"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect reports saved with 'analyze --save'",
	}
	cmd.AddCommand(newReportListCmd(), newReportShowCmd())
	return cmd
}

func newReportListCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := listReports(firstNonEmpty(dir, config.ReportDir()))
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(os.Stderr, "No saved reports.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(os.Stdout, "%s\t%s\t%s\n", e.appID, e.reportID, e.modTime)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Report directory (default: ~/.cache/softwatch/reports)")
	return cmd
}

func newReportShowCmd() *cobra.Command {
	var (
		dir       string
		userID    string
		outputFmt string
	)
	cmd := &cobra.Command{
		Use:   "show APP_ID REPORT_ID",
		Short: "Render a saved report",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportShow(cmd.Context(), firstNonEmpty(dir, config.ReportDir()), userID, args[0], args[1], outputFmt)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Report directory (default: ~/.cache/softwatch/reports)")
	cmd.Flags().StringVar(&userID, "user", localUser, "Owner of the report")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text, json or markdown")
	return cmd
}

func runReportShow(ctx context.Context, dir, userID, appID, reportID, outputFmt string) error {
	renderer, err := surface.ForFormat(outputFmt)
	if err != nil {
		return err
	}
	data, err := analysis.NewLocalStorage(dir).GetReport(ctx, userID, appID, reportID)
	if err != nil {
		return err
	}
	var report surface.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return fmt.Errorf("unmarshaling report: %w", err)
	}
	return renderer.Render(os.Stdout, &report)
}

type reportEntry struct {
	appID    string
	reportID string
	modTime  string
}

// listReports walks dir for <user>/reports/<app>/<report>.json blobs,
// newest first.
func listReports(dir string) ([]reportEntry, error) {
	var entries []reportEntry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) != 4 || parts[1] != "reports" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, reportEntry{
			appID:    parts[2],
			reportID: strings.TrimSuffix(parts[3], ".json"),
			modTime:  info.ModTime().UTC().Format("2006-01-02T15:04:05Z"),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].modTime > entries[j].modTime })
	return entries, nil
}
