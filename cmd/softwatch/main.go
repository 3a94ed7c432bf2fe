// Package main provides the softwatch CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "softwatch",
		Short: "Health scoring for the software you depend on",
		Long: `Softwatch matches applications to their source repositories, probes
their websites and APIs, and derives a performance score, an uptime
estimate and a coarse health status.`,
		Version: version,
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newProbeCmd(),
		newImportCmd(),
		newReportCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
