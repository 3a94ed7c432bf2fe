package scoring

import (
	"math"
	"time"

	"github.com/softwatch/softwatch/pkg/inventory"
)

// RepositoryUptime estimates availability for a repository-backed
// application. The result is clamped to [UptimeFloor, UptimeCeiling] and
// rounded to two decimals.
func RepositoryUptime(w Weights, repo *inventory.Repository, liveFound bool, now time.Time) float64 {
	uptime := w.UptimeBase
	uptime += stepBonus(w.UptimeRecency, inventory.DaysSince(repo.LastCommitAt, now))
	uptime += math.Min(w.UptimeStarCap, math.Log10(float64(repo.Stars)+1)*w.UptimeStarLogFactor)
	if liveFound {
		uptime += w.UptimeLiveBonus
	}
	if repo.Forks > w.UptimeForkMin {
		uptime += w.UptimeForkBonus
	}
	return round2(clamp(uptime, w.UptimeFloor, w.UptimeCeiling))
}
