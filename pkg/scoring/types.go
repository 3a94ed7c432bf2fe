// Package scoring implements the Softwatch health scoring engine.
// It turns repository metadata and probe latencies into an explainable
// performance score, an uptime estimate and a status label.
package scoring

import (
	"math"
	"time"

	"github.com/softwatch/softwatch/pkg/discovery"
	"github.com/softwatch/softwatch/pkg/inventory"
)

// RepoContext is everything a repository factor may look at.
type RepoContext struct {
	Repo *inventory.Repository
	Live discovery.LiveURL
	Now  time.Time
}

// Factor is one weighted contribution to a repository-backed score.
type Factor interface {
	// Key returns the machine-readable factor identifier.
	Key() string
	// Name returns the human-readable factor name.
	Name() string
	// Evaluate computes the factor's point contribution.
	Evaluate(rc *RepoContext) inventory.FactorResult
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
