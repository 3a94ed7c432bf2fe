package scoring

import "github.com/softwatch/softwatch/pkg/probe"

// Tier is the score and uptime estimate derived from one probe.
type Tier struct {
	Score  int
	Uptime float64
}

// latencyStep applies when the response time is strictly above AboveMs.
type latencyStep struct {
	AboveMs int
	Tier    Tier
}

// TierTable maps probe latency to a Tier. Steps are checked slowest first.
type TierTable struct {
	Steps       []latencyStep
	Fastest     Tier
	Unreachable Tier
}

// WebsiteTiers is used for application websites and live deployments.
var WebsiteTiers = TierTable{
	Steps: []latencyStep{
		{AboveMs: 8000, Tier: Tier{50, 94.0}},
		{AboveMs: 5000, Tier: Tier{65, 96.0}},
		{AboveMs: 3000, Tier: Tier{78, 98.0}},
		{AboveMs: 1500, Tier: Tier{88, 99.2}},
		{AboveMs: 800, Tier: Tier{95, 99.7}},
	},
	Fastest:     Tier{100, 99.9},
	Unreachable: Tier{40, 90.0},
}

// APITiers is used for API endpoints. Unreachable APIs score neutral since
// a private API may simply refuse anonymous requests.
var APITiers = TierTable{
	Steps: []latencyStep{
		{AboveMs: 2000, Tier: Tier{68, 96.5}},
		{AboveMs: 1000, Tier: Tier{82, 98.5}},
		{AboveMs: 400, Tier: Tier{92, 99.5}},
	},
	Fastest:     Tier{100, 99.9},
	Unreachable: Tier{50, 95.0},
}

// Evaluate maps a probe result to its tier.
func (t TierTable) Evaluate(r probe.Result) Tier {
	if !r.Reachable {
		return t.Unreachable
	}
	for _, s := range t.Steps {
		if r.ResponseTimeMs > s.AboveMs {
			return s.Tier
		}
	}
	return t.Fastest
}
