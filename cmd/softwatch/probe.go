package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/softwatch/softwatch/pkg/probe"
	"github.com/softwatch/softwatch/pkg/scoring"
)

func newProbeCmd() *cobra.Command {
	var (
		asAPI     bool
		timeout   time.Duration
		outputFmt string
	)

	cmd := &cobra.Command{
		Use:   "probe URL...",
		Short: "Probe URLs and show the tier each would score",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd.Context(), probeOpts{
				urls:      args,
				asAPI:     asAPI,
				timeout:   timeout,
				outputFmt: outputFmt,
			})
		},
	}

	cmd.Flags().BoolVar(&asAPI, "api", false, "Score results with the API tier table instead of the website table")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-request timeout (default: 10s for websites, 8s for APIs)")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text or json")

	return cmd
}

type probeOpts struct {
	urls      []string
	asAPI     bool
	timeout   time.Duration
	outputFmt string
}

// probeRow is one probed URL with its tier.
type probeRow struct {
	probe.Result
	Score  int     `json:"score"`
	Uptime float64 `json:"uptime"`
	Error  string  `json:"error,omitempty"`
}

func runProbe(ctx context.Context, opts probeOpts) error {
	table := scoring.WebsiteTiers
	timeout := probe.WebsiteTimeout
	if opts.asAPI {
		table = scoring.APITiers
		timeout = probe.APITimeout
	}
	if opts.timeout > 0 {
		timeout = opts.timeout
	}

	targets := make([]probe.Target, len(opts.urls))
	for i, u := range opts.urls {
		targets[i] = probe.Target{URL: u, Timeout: timeout}
	}

	fmt.Fprintf(os.Stderr, "Probing %d URLs (timeout %s)...\n", len(targets), timeout)
	results := probe.ProbeAll(ctx, probe.NewHTTPProber(), targets)

	rows := make([]probeRow, len(results))
	for i, r := range results {
		tier := table.Evaluate(r)
		rows[i] = probeRow{Result: r, Score: tier.Score, Uptime: tier.Uptime}
		if r.Err != nil {
			rows[i].Error = r.Err.Error()
		}
	}

	switch opts.outputFmt {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
		return nil
	case "", "text":
		return writeProbeTable(os.Stdout, rows)
	default:
		return fmt.Errorf("unknown output %q (want text or json)", opts.outputFmt)
	}
}

func writeProbeTable(w io.Writer, rows []probeRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "URL\tREACHABLE\tSTATUS\tTIME\tSCORE\tUPTIME")
	for _, r := range rows {
		status := "-"
		if r.StatusCode > 0 {
			status = fmt.Sprintf("%d", r.StatusCode)
		}
		fmt.Fprintf(tw, "%s\t%t\t%s\t%dms\t%d\t%.1f%%\n",
			r.URL, r.Reachable, status, r.ResponseTimeMs, r.Score, r.Uptime)
	}
	return tw.Flush()
}
