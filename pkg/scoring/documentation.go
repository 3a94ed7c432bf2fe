package scoring

import (
	"time"

	"github.com/softwatch/softwatch/pkg/inventory"
)

// Documentation is a conservative proxy for documentation quality in [0,1].
// No repository content is read; only popularity and age are used.
func Documentation(w Weights, repo *inventory.Repository, now time.Time) float64 {
	score := w.DocumentationBase
	score += intStepBonus(w.DocumentationStars, repo.Stars)
	score += intStepBonus(w.DocumentationForks, repo.Forks)
	if inventory.DaysSince(repo.CreatedAt, now) > w.DocAgeDays && repo.Stars > w.DocMinStars {
		score += w.DocAgeBonus
	}
	return clamp(score, 0, 1)
}

// DocumentationFactor contributes DocumentationPoints scaled by Documentation.
type DocumentationFactor struct {
	Weights Weights
}

func (f *DocumentationFactor) Key() string  { return "documentation" }
func (f *DocumentationFactor) Name() string { return "Documentation" }

func (f *DocumentationFactor) Evaluate(rc *RepoContext) inventory.FactorResult {
	v := Documentation(f.Weights, rc.Repo, rc.Now)
	return inventory.FactorResult{
		Key:          f.Key(),
		Name:         f.Name(),
		Value:        v,
		Contribution: v * f.Weights.DocumentationPoints,
	}
}
