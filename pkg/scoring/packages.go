package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/softwatch/softwatch/pkg/inventory"
)

// PackageResult reports whether a repository looks like a published package.
type PackageResult struct {
	Found      bool    `json:"found"`
	Score      float64 `json:"score"`
	Platform   string  `json:"platform,omitempty"`
	Indicators int     `json:"indicators"`
}

type indicator func(name, desc string, repo *inventory.Repository) bool

type packageRegistry struct {
	languages    []string
	platform     string
	perIndicator float64
	indicators   []indicator
}

var registries = []packageRegistry{
	{
		languages:    []string{"JavaScript", "TypeScript"},
		platform:     "npm",
		perIndicator: 0.33,
		indicators: []indicator{
			func(n, _ string, _ *inventory.Repository) bool { return strings.Contains(n, "npm-") },
			func(n, _ string, _ *inventory.Repository) bool { return strings.Contains(n, "package") },
			func(n, _ string, _ *inventory.Repository) bool { return strings.HasPrefix(n, "@") },
			func(_, _ string, r *inventory.Repository) bool { return r.Stars > 100 && r.Forks > 20 },
			func(_, d string, _ *inventory.Repository) bool {
				return strings.Contains(d, "npm") || strings.Contains(d, "package")
			},
		},
	},
	{
		languages:    []string{"Python"},
		platform:     "PyPI",
		perIndicator: 0.33,
		indicators: []indicator{
			func(n, _ string, _ *inventory.Repository) bool { return strings.Contains(n, "py-") },
			func(n, _ string, _ *inventory.Repository) bool { return strings.HasSuffix(n, "-py") },
			func(n, _ string, _ *inventory.Repository) bool { return strings.HasPrefix(n, "python-") },
			func(_, _ string, r *inventory.Repository) bool { return r.Stars > 80 && r.Forks > 15 },
			func(_, d string, _ *inventory.Repository) bool { return strings.Contains(d, "pypi") },
		},
	},
	{
		languages:    []string{"Java"},
		platform:     "Maven Central",
		perIndicator: 0.4,
		indicators: []indicator{
			func(_, _ string, r *inventory.Repository) bool { return r.Stars > 150 },
			func(_, _ string, r *inventory.Repository) bool { return r.Forks > 30 },
			func(n, _ string, _ *inventory.Repository) bool { return strings.Contains(n, "maven") },
			func(_, d string, _ *inventory.Repository) bool { return strings.Contains(d, "maven") },
		},
	},
}

// PackagePublished counts per-language hints that the repository is
// published to a package registry. Name checks are case-sensitive,
// description checks are not.
func PackagePublished(w Weights, repo *inventory.Repository) PackageResult {
	lang := repo.LanguageOrEmpty()
	desc := strings.ToLower(repo.Description)

	for _, reg := range registries {
		if !containsString(reg.languages, lang) {
			continue
		}
		n := 0
		for _, ind := range reg.indicators {
			if ind(repo.Name, desc, repo) {
				n++
			}
		}
		if n >= w.PackageMinIndicators {
			return PackageResult{
				Found:      true,
				Score:      math.Min(1, float64(n)*reg.perIndicator),
				Platform:   reg.platform,
				Indicators: n,
			}
		}
		return PackageResult{Indicators: n}
	}
	return PackageResult{}
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// PackageFactor contributes PackagePoints when a package is detected.
type PackageFactor struct {
	Weights Weights
}

func (f *PackageFactor) Key() string  { return "package_published" }
func (f *PackageFactor) Name() string { return "Published package" }

func (f *PackageFactor) Evaluate(rc *RepoContext) inventory.FactorResult {
	pkg := PackagePublished(f.Weights, rc.Repo)
	res := inventory.FactorResult{Key: f.Key(), Name: f.Name()}
	if !pkg.Found {
		return res
	}
	res.Value = pkg.Score
	res.Contribution = pkg.Score * f.Weights.PackagePoints
	res.Summary = fmt.Sprintf("likely published to %s (%d indicators)", pkg.Platform, pkg.Indicators)
	return res
}
