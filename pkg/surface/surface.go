// Package surface defines output rendering for Softwatch analysis reports.
// Implementations handle different output targets: terminal, Markdown, JSON.
package surface

import (
	"fmt"
	"io"

	"github.com/softwatch/softwatch/pkg/inventory"
)

// Report is one application's analysis outcome as shown to a user.
type Report struct {
	Application *inventory.Application    `json:"application"`
	Result      *inventory.AnalysisResult `json:"result"`
	Warnings    []string                  `json:"warnings,omitempty"`
}

// Renderer produces formatted output from a Report.
type Renderer interface {
	// Render writes the formatted report to the writer.
	Render(w io.Writer, report *Report) error
}

// ForFormat returns the renderer for a CLI --format value.
func ForFormat(format string) (Renderer, error) {
	switch format {
	case "", "text":
		return &TerminalRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	case "markdown", "md":
		return &MarkdownRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (want text, json or markdown)", format)
	}
}
