package surface

import (
	"fmt"
	"io"
	"strings"

	"github.com/softwatch/softwatch/pkg/inventory"
)

// MarkdownRenderer produces a Markdown summary, suitable for pasting into
// an issue or a chat message.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(w io.Writer, report *Report) error {
	_, err := io.WriteString(w, BuildMarkdownSummary(report))
	return err
}

// BuildMarkdownSummary formats the report as Markdown.
func BuildMarkdownSummary(report *Report) string {
	var sb strings.Builder
	res := report.Result

	name := "Application"
	if report.Application != nil {
		name = report.Application.Name
	}
	fmt.Fprintf(&sb, "## %s %s: %s\n\n", statusIcon(res.Status), name, res.Status)

	sb.WriteString("| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(&sb, "| Performance | %d/100 |\n", res.PerformanceScore)
	fmt.Fprintf(&sb, "| Uptime | %.2f%% |\n", res.UptimePercentage)
	if res.ResponseTimeMs > 0 {
		fmt.Fprintf(&sb, "| Response time | %dms |\n", res.ResponseTimeMs)
	}
	fmt.Fprintf(&sb, "| Path | %s |\n", res.Path)
	fmt.Fprintf(&sb, "| Confidence | %d%% |\n", res.Confidence)
	sb.WriteString("\n")

	if res.MatchedRepository != nil {
		fmt.Fprintf(&sb, "Matched [%s](%s) by `%s`.\n\n",
			res.MatchedRepository.Name, res.MatchedRepository.URL, res.MatchedRepository.Rule)
	}

	if len(res.Breakdown) > 0 {
		sb.WriteString("### Breakdown\n\n")
		for _, f := range res.Breakdown {
			fmt.Fprintf(&sb, "- **%s** (+%.1f)", f.Name, f.Contribution)
			if f.Summary != "" {
				fmt.Fprintf(&sb, ": %s", f.Summary)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(report.Warnings) > 0 {
		sb.WriteString("### Warnings\n\n")
		for _, warn := range report.Warnings {
			fmt.Fprintf(&sb, "- %s\n", warn)
		}
	}

	return sb.String()
}

func statusIcon(s inventory.Status) string {
	switch s {
	case inventory.StatusExcellent:
		return ":green_circle:"
	case inventory.StatusGood:
		return ":large_blue_circle:"
	case inventory.StatusFair:
		return ":yellow_circle:"
	case inventory.StatusPoor:
		return ":red_circle:"
	default:
		return ":white_circle:"
	}
}
