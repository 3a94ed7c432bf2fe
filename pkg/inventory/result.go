package inventory

import "time"

// Status is the coarse health tier derived from score and uptime.
type Status string

const (
	StatusExcellent Status = "excellent"
	StatusGood      Status = "good"
	StatusFair      Status = "fair"
	StatusPoor      Status = "poor"
	StatusPending   Status = "pending"
)

// Rank orders statuses: pending < poor < fair < good < excellent.
// Unknown values rank with pending.
func (s Status) Rank() int {
	switch s {
	case StatusPoor:
		return 1
	case StatusFair:
		return 2
	case StatusGood:
		return 3
	case StatusExcellent:
		return 4
	default:
		return 0
	}
}

// AnalysisPath records which scoring path produced a result.
type AnalysisPath string

const (
	PathRepository AnalysisPath = "repository"
	PathProbe      AnalysisPath = "probe"
	PathNone       AnalysisPath = "none"
)

// AnalysisResult is the output of one analysis run. It is recomputed on
// every invocation and never updated incrementally.
type AnalysisResult struct {
	PerformanceScore  int            `json:"performance_score"`
	UptimePercentage  float64        `json:"uptime_percentage"`
	Status            Status         `json:"status"`
	ResponseTimeMs    int            `json:"response_time_ms,omitempty"`
	Path              AnalysisPath   `json:"path"`
	Confidence        int            `json:"confidence"`
	MatchedRepository *RepositoryRef `json:"matched_repository,omitempty"`
	LiveURL           string         `json:"live_url,omitempty"`
	Sources           int            `json:"sources"`
	Breakdown         []FactorResult `json:"breakdown,omitempty"`
	AnalyzedAt        time.Time      `json:"analyzed_at"`
}

// RepositoryRef names the repository an application was matched to and the
// rule that matched it.
type RepositoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Rule string `json:"rule"`
}

// FactorResult is a single explainable contribution to the final score.
type FactorResult struct {
	Key          string  `json:"key"`          // machine key: "repo_health"
	Name         string  `json:"name"`         // human name: "Repository health"
	Value        float64 `json:"value"`        // raw factor value, usually 0..1
	Contribution float64 `json:"contribution"` // points added to the total
	Summary      string  `json:"summary,omitempty"`
}

// PendingResult is the fallback returned when analysis cannot complete.
func PendingResult(now time.Time) *AnalysisResult {
	return &AnalysisResult{
		PerformanceScore: 0,
		UptimePercentage: 0,
		Status:           StatusPending,
		Path:             PathNone,
		AnalyzedAt:       now,
	}
}
