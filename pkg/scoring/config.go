package scoring

// Weights holds every tunable constant of the scoring heuristics.
type Weights struct {
	// Repository path point weights.
	HealthPoints        float64
	LivePoints          float64
	NoLiveCredit        float64 // flat credit when no deployment is found
	DocumentationPoints float64
	PackagePoints       float64
	ScoreFloor          int
	ScoreCeiling        int

	// Repository health.
	HealthBase         float64
	StarLogFactor      float64
	StarCap            float64
	ForkLogFactor      float64
	ForkCap            float64
	MaturityAgeDays    float64
	MaturityMinStars   int
	MaturityBonus      float64
	CommunityMinRatio  float64
	CommunityMaxRatio  float64
	CommunityBonus     float64
	RecencyBonuses     []Step // days since last commit, first match wins
	DocumentationBase  float64
	DocumentationStars []IntStep
	DocumentationForks []IntStep
	DocAgeDays         float64
	DocMinStars        int
	DocAgeBonus        float64

	// Package detection.
	PackageMinIndicators int

	// Repository uptime.
	UptimeBase          float64
	UptimeRecency       []Step
	UptimeStarLogFactor float64
	UptimeStarCap       float64
	UptimeLiveBonus     float64
	UptimeForkMin       int
	UptimeForkBonus     float64
	UptimeFloor         float64
	UptimeCeiling       float64
}

// Step awards Bonus when a value is strictly below Below.
type Step struct {
	Below float64
	Bonus float64
}

// IntStep awards Bonus when a count is strictly above Above.
type IntStep struct {
	Above int
	Bonus float64
}

// DefaultWeights returns the default scoring weights.
func DefaultWeights() Weights {
	return Weights{
		HealthPoints:        40,
		LivePoints:          40,
		NoLiveCredit:        20,
		DocumentationPoints: 10,
		PackagePoints:       10,
		ScoreFloor:          50,
		ScoreCeiling:        100,

		HealthBase:        0.3,
		StarLogFactor:     0.15,
		StarCap:           0.35,
		ForkLogFactor:     0.08,
		ForkCap:           0.15,
		MaturityAgeDays:   365,
		MaturityMinStars:  5,
		MaturityBonus:     0.1,
		CommunityMinRatio: 0.05,
		CommunityMaxRatio: 0.3,
		CommunityBonus:    0.15,
		RecencyBonuses: []Step{
			{Below: 7, Bonus: 0.25},
			{Below: 30, Bonus: 0.20},
			{Below: 90, Bonus: 0.12},
			{Below: 180, Bonus: 0.06},
		},

		DocumentationBase: 0.5,
		DocumentationStars: []IntStep{
			{Above: 500, Bonus: 0.25},
			{Above: 100, Bonus: 0.20},
			{Above: 20, Bonus: 0.10},
		},
		DocumentationForks: []IntStep{
			{Above: 50, Bonus: 0.15},
			{Above: 10, Bonus: 0.08},
		},
		DocAgeDays:  180,
		DocMinStars: 10,
		DocAgeBonus: 0.1,

		PackageMinIndicators: 2,

		UptimeBase: 92,
		UptimeRecency: []Step{
			{Below: 14, Bonus: 4},
			{Below: 60, Bonus: 2.5},
			{Below: 180, Bonus: 1},
		},
		UptimeStarLogFactor: 1.5,
		UptimeStarCap:       3,
		UptimeLiveBonus:     2.5,
		UptimeForkMin:       20,
		UptimeForkBonus:     1,
		UptimeFloor:         90,
		UptimeCeiling:       100,
	}
}

func stepBonus(steps []Step, v float64) float64 {
	for _, s := range steps {
		if v < s.Below {
			return s.Bonus
		}
	}
	return 0
}

func intStepBonus(steps []IntStep, v int) float64 {
	for _, s := range steps {
		if v > s.Above {
			return s.Bonus
		}
	}
	return 0
}
