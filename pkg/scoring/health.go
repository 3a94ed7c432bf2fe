package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/softwatch/softwatch/pkg/inventory"
)

// RepoHealth estimates repository health in [0,1] from popularity,
// commit recency, maturity and the fork-to-star ratio.
func RepoHealth(w Weights, repo *inventory.Repository, now time.Time) float64 {
	score := w.HealthBase
	score += math.Min(w.StarCap, math.Log10(float64(repo.Stars)+1)*w.StarLogFactor)
	score += math.Min(w.ForkCap, math.Log10(float64(repo.Forks)+1)*w.ForkLogFactor)
	score += stepBonus(w.RecencyBonuses, inventory.DaysSince(repo.LastCommitAt, now))

	if inventory.DaysSince(repo.CreatedAt, now) > w.MaturityAgeDays && repo.Stars > w.MaturityMinStars {
		score += w.MaturityBonus
	}

	if repo.Stars > 0 {
		ratio := float64(repo.Forks) / float64(repo.Stars)
		if ratio > w.CommunityMinRatio && ratio < w.CommunityMaxRatio {
			score += w.CommunityBonus
		}
	}

	return clamp(score, 0, 1)
}

// HealthFactor contributes HealthPoints scaled by RepoHealth.
type HealthFactor struct {
	Weights Weights
}

func (f *HealthFactor) Key() string  { return "repo_health" }
func (f *HealthFactor) Name() string { return "Repository health" }

func (f *HealthFactor) Evaluate(rc *RepoContext) inventory.FactorResult {
	v := RepoHealth(f.Weights, rc.Repo, rc.Now)
	return inventory.FactorResult{
		Key:          f.Key(),
		Name:         f.Name(),
		Value:        v,
		Contribution: v * f.Weights.HealthPoints,
		Summary: fmt.Sprintf("%d stars, %d forks, last commit %.0f days ago",
			rc.Repo.Stars, rc.Repo.Forks, inventory.DaysSince(rc.Repo.LastCommitAt, rc.Now)),
	}
}

// DeploymentFactor rewards a discovered live deployment, or grants a flat
// partial credit when none was found.
type DeploymentFactor struct {
	Weights Weights
}

func (f *DeploymentFactor) Key() string  { return "live_deployment" }
func (f *DeploymentFactor) Name() string { return "Live deployment" }

func (f *DeploymentFactor) Evaluate(rc *RepoContext) inventory.FactorResult {
	res := inventory.FactorResult{Key: f.Key(), Name: f.Name()}
	if !rc.Live.Found {
		res.Contribution = f.Weights.NoLiveCredit
		res.Summary = "no live deployment found"
		return res
	}
	res.Value = rc.Live.Score
	res.Contribution = rc.Live.Score * f.Weights.LivePoints
	res.Summary = fmt.Sprintf("%s answered in %dms", rc.Live.URL, rc.Live.ResponseTimeMs)
	return res
}
