// internal/pipeline/scoring/glow.go
package scoring

// Glow is the map-rendering intensity ladder for a tier. Data only; the
// pipeline never acts on it.
type Glow struct {
	RadiusM float64 `json:"radiusM"`
	Opacity float64 `json:"opacity"`
}

// Glow returns the visual intensity for a tier. Night renders slightly
// hotter so alerts stay readable against a dark basemap.
func (t Tier) Glow(night bool) Glow {
	var g Glow
	switch t {
	case TierCritical:
		g = Glow{RadiusM: 500, Opacity: 0.9}
	case TierHigh:
		g = Glow{RadiusM: 350, Opacity: 0.75}
	case TierMedium:
		g = Glow{RadiusM: 220, Opacity: 0.6}
	default:
		g = Glow{RadiusM: 120, Opacity: 0.45}
	}
	if night {
		g.Opacity += 0.05
		if g.Opacity > 1 {
			g.Opacity = 1
		}
	}
	return g
}
