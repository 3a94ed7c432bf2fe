package scoring

import (
	"fmt"

	"github.com/softwatch/softwatch/pkg/inventory"
)

// Threshold is one row of a status table. With Exclusive set, both values
// must be strictly above the minimums.
type Threshold struct {
	Status    inventory.Status `yaml:"status" json:"status"`
	MinScore  float64          `yaml:"min_score" json:"min_score"`
	MinUptime float64          `yaml:"min_uptime" json:"min_uptime"`
	Exclusive bool             `yaml:"exclusive,omitempty" json:"exclusive,omitempty"`
}

func (t Threshold) admits(score int, uptime float64) bool {
	if t.Exclusive {
		return float64(score) > t.MinScore && uptime > t.MinUptime
	}
	return float64(score) >= t.MinScore && uptime >= t.MinUptime
}

// Thresholds is a status table ordered from best to worst. Anything that
// matches no row is pending.
type Thresholds []Threshold

// DefaultThresholds is the permissive table used unless configured otherwise.
func DefaultThresholds() Thresholds {
	return Thresholds{
		{Status: inventory.StatusExcellent, MinScore: 85, MinUptime: 98},
		{Status: inventory.StatusGood, MinScore: 70, MinUptime: 96},
		{Status: inventory.StatusFair, MinScore: 55, MinUptime: 93},
		{Status: inventory.StatusPoor, MinScore: 0, MinUptime: 0, Exclusive: true},
	}
}

// StrictThresholds is the older, stricter table.
func StrictThresholds() Thresholds {
	return Thresholds{
		{Status: inventory.StatusExcellent, MinScore: 90, MinUptime: 99.5},
		{Status: inventory.StatusGood, MinScore: 80, MinUptime: 99.0},
		{Status: inventory.StatusFair, MinScore: 70, MinUptime: 98.0},
		{Status: inventory.StatusPoor, MinScore: 50, MinUptime: 95.0},
	}
}

// Status returns the first row admitting score and uptime.
func (ts Thresholds) Status(score int, uptime float64) inventory.Status {
	for _, t := range ts {
		if t.admits(score, uptime) {
			return t.Status
		}
	}
	return inventory.StatusPending
}

// Validate checks that rows are ordered best first with non-increasing
// minimums, which keeps Status monotonic.
func (ts Thresholds) Validate() error {
	for i, t := range ts {
		if t.Status.Rank() == 0 {
			return fmt.Errorf("threshold %d: invalid status %q", i, t.Status)
		}
		if i == 0 {
			continue
		}
		prev := ts[i-1]
		if t.Status.Rank() >= prev.Status.Rank() {
			return fmt.Errorf("threshold %d: %s must rank below %s", i, t.Status, prev.Status)
		}
		if t.MinScore > prev.MinScore || t.MinUptime > prev.MinUptime {
			return fmt.Errorf("threshold %d: %s minimums exceed %s", i, t.Status, prev.Status)
		}
	}
	return nil
}
