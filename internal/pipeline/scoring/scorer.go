// internal/pipeline/scoring/scorer.go
package scoring

import (
	"time"

	"safety-pipeline/internal/models"
)

// Tier is the coarse urgency bucket derived from the numeric score.
type Tier string

const (
	TierLow      Tier = "low"
	TierMedium   Tier = "medium"
	TierHigh     Tier = "high"
	TierCritical Tier = "critical"
)

// UrgencyScore is the derived value for one incident and one observer.
// It is never persisted; recompute on demand.
type UrgencyScore struct {
	Score int  `json:"score"`
	Tier  Tier `json:"tier"`
}

// Context carries the evaluation inputs that are not part of the
// incident itself. Observer may be nil when no viewer position is known;
// distance terms are skipped in that case.
type Context struct {
	Observer *models.LatLng
	IsNight  bool
	IsUrban  bool
}

// Region is the designated urban zone: recency decay and distance
// brackets are steeper inside it. Sparse-connectivity areas outside see
// delayed reports, so their decay is gentler.
type Region struct {
	Center   models.LatLng
	RadiusKm float64
}

// ContextFor derives the evaluation context for an incident from the
// configured urban region and the evaluation time. The time is expected
// to already be in the deployment's local zone.
func ContextFor(inc models.Incident, observer *models.LatLng, region Region, now time.Time) Context {
	return Context{
		Observer: observer,
		IsNight:  IsNight(now),
		IsUrban:  region.RadiusKm > 0 && models.HaversineMeters(inc.Location(), region.Center) <= region.RadiusKm*1000,
	}
}

// IsNight reports whether the local hour falls in [19:00, 05:00).
func IsNight(t time.Time) bool {
	h := t.Hour()
	return h >= 19 || h < 5
}

// Score computes the urgency of an incident for one observer. Pure and
// deterministic: no I/O, no clock reads. Callers must filter incidents
// without coordinates before scoring.
func Score(inc models.Incident, sctx Context, now time.Time) UrgencyScore {
	score := typeBaseWeight(inc.Type)
	score += statusAdjustment(inc.Status)

	age := now.Sub(inc.CreatedAt)
	score += recencyAdjustment(age, sctx.IsUrban)

	var distanceM float64 = -1
	if sctx.Observer != nil {
		distanceM = models.HaversineMeters(*sctx.Observer, inc.Location())
		score += distanceAdjustment(distanceM, sctx.IsUrban)
	}

	if sctx.IsNight && isTimeCritical(inc.Type) {
		score += 20
		// Isolation risk: a distant observer at night has fewer options.
		if distanceM > 3000 {
			score += 10
		}
	}

	// Stale self-triggered panics must not dominate the map forever.
	if inc.Type == models.IncidentPanic && age > 30*time.Minute {
		score -= 50
	}

	if score < 0 {
		score = 0
	}

	return UrgencyScore{Score: score, Tier: TierFor(score)}
}

// TierFor buckets a score into a tier.
func TierFor(score int) Tier {
	switch {
	case score >= 120:
		return TierCritical
	case score >= 90:
		return TierHigh
	case score >= 60:
		return TierMedium
	default:
		return TierLow
	}
}

func typeBaseWeight(t models.IncidentType) int {
	switch t {
	case models.IncidentPanic:
		return 90
	case models.IncidentRobbery, models.IncidentAssault, models.IncidentType("kidnapping"):
		return 70
	case models.IncidentCrash, models.IncidentAccident:
		return 55
	case models.IncidentSuspicious:
		return 40
	default:
		return 25
	}
}

func statusAdjustment(s models.IncidentStatus) int {
	switch s {
	case models.StatusEnRoute:
		return 25
	case models.StatusOnScene:
		return 10
	case models.StatusResolved:
		return -40
	default:
		return 0
	}
}

func recencyAdjustment(age time.Duration, urban bool) int {
	if urban {
		switch {
		case age < 5*time.Minute:
			return 25
		case age < 15*time.Minute:
			return 15
		default:
			return -20
		}
	}
	switch {
	case age < 15*time.Minute:
		return 30
	case age < 45*time.Minute:
		return 20
	default:
		return -5
	}
}

func distanceAdjustment(distanceM float64, urban bool) int {
	if urban {
		switch {
		case distanceM < 1000:
			return 25
		case distanceM < 3000:
			return 15
		default:
			return -20
		}
	}
	switch {
	case distanceM < 5000:
		return 30
	case distanceM < 15000:
		return 20
	default:
		return -5
	}
}

func isTimeCritical(t models.IncidentType) bool {
	switch t {
	case models.IncidentPanic, models.IncidentRobbery, models.IncidentAssault, models.IncidentType("kidnapping"):
		return true
	default:
		return false
	}
}
