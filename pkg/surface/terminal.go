package surface

import (
	"fmt"
	"io"
	"os"

	"github.com/softwatch/softwatch/pkg/inventory"
)

// TerminalRenderer renders a Report as colored terminal output.
type TerminalRenderer struct{}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

func statusColor(s inventory.Status) string {
	if noColor() {
		return ""
	}
	switch s {
	case inventory.StatusExcellent, inventory.StatusGood:
		return colorGreen
	case inventory.StatusFair:
		return colorYellow
	case inventory.StatusPoor:
		return colorRed
	default:
		return ""
	}
}

func noColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

func bold(s string) string {
	if noColor() {
		return s
	}
	return colorBold + s + colorReset
}

func dim(s string) string {
	if noColor() {
		return s
	}
	return colorDim + s + colorReset
}

func colored(s, color string) string {
	if noColor() || color == "" {
		return s
	}
	return color + s + colorReset
}

func (r *TerminalRenderer) Render(w io.Writer, report *Report) error {
	res := report.Result
	name := "application"
	if report.Application != nil {
		name = report.Application.Name
	}

	fmt.Fprintf(w, "%s\n\n", bold(fmt.Sprintf("%s: %s - Performance %d/100, Uptime %.2f%%",
		name, colored(string(res.Status), statusColor(res.Status)), res.PerformanceScore, res.UptimePercentage)))

	fmt.Fprintf(w, "Path: %s (confidence %d%%, %d sources)\n", res.Path, res.Confidence, res.Sources)
	if res.MatchedRepository != nil {
		fmt.Fprintf(w, "Repository: %s %s\n", res.MatchedRepository.Name,
			dim(fmt.Sprintf("[%s] %s", res.MatchedRepository.Rule, res.MatchedRepository.URL)))
	}
	if res.LiveURL != "" {
		fmt.Fprintf(w, "Live URL: %s (%dms)\n", res.LiveURL, res.ResponseTimeMs)
	} else if res.ResponseTimeMs > 0 {
		fmt.Fprintf(w, "Response time: %dms\n", res.ResponseTimeMs)
	}
	fmt.Fprintln(w)

	if len(res.Breakdown) == 0 {
		fmt.Fprintln(w, "Nothing to analyze.")
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "Breakdown:")
		for _, f := range res.Breakdown {
			fmt.Fprintf(w, "  (+%.1f) %s", f.Contribution, bold(f.Name))
			if f.Summary != "" {
				fmt.Fprintf(w, " %s", dim(f.Summary))
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	if len(report.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range report.Warnings {
			fmt.Fprintf(w, "  %s %s\n", colored("!", colorYellow), warn)
		}
		fmt.Fprintln(w)
	}

	return nil
}
