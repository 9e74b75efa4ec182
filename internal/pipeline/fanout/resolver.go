// internal/pipeline/fanout/resolver.go
package fanout

import (
	"context"

	"safety-pipeline/internal/common/logger"
	"safety-pipeline/internal/common/metrics"
	"safety-pipeline/internal/models"
	"safety-pipeline/internal/pipeline/geoindex"
)

// Resolver expands one NotificationEvent into its candidate recipient set.
type Resolver struct {
	geo             geoindex.Index
	defaultRadiusKm float64
	logger          logger.Logger
}

func NewResolver(geo geoindex.Index, defaultRadiusKm float64, log logger.Logger) *Resolver {
	return &Resolver{
		geo:             geo,
		defaultRadiusKm: defaultRadiusKm,
		logger:          log.WithFields(map[string]interface{}{"component": "fanout"}),
	}
}

// ResolveTargets computes the candidate recipients for an event. An
// explicit target list is authoritative and skips the geo lookup. The
// triggering user is never a target. Ghost-mode watchers are excluded
// unless the event is critical: the one case where safety outranks
// privacy. An empty result is a valid outcome, not an error.
func (r *Resolver) ResolveTargets(ctx context.Context, event *models.NotificationEvent) ([]string, error) {
	if len(event.TargetUserIDs) > 0 {
		targets := dedupeExcluding(event.TargetUserIDs, event.TriggeredBy)
		metrics.FanoutCandidates.Observe(float64(len(targets)))
		return targets, nil
	}

	if event.Location == nil {
		r.logger.Debug("event has no location and no explicit targets", map[string]interface{}{
			"eventType": event.EventType,
			"relatedId": event.RelatedID,
		})
		metrics.FanoutCandidates.Observe(0)
		return nil, nil
	}

	radiusKm := event.RadiusKm
	if radiusKm <= 0 {
		radiusKm = r.defaultRadiusKm
	}
	radiusM := radiusKm * 1000

	watchers, err := r.geo.QueryNear(ctx, event.Location.Lat, event.Location.Lng, radiusM, event.TriggeredBy)
	if err != nil {
		return nil, err
	}

	center := *event.Location
	targets := make([]string, 0, len(watchers))
	seen := make(map[string]struct{}, len(watchers))
	for _, w := range watchers {
		if w.UserID == "" || w.UserID == event.TriggeredBy {
			continue
		}
		if w.GhostMode && event.Priority != models.PriorityCritical {
			continue
		}
		// The index query is approximate at the boundary; re-check with
		// an inclusive great-circle test.
		if models.HaversineMeters(center, models.LatLng{Lat: w.Lat, Lng: w.Lng}) > radiusM {
			continue
		}
		if _, dup := seen[w.UserID]; dup {
			continue
		}
		seen[w.UserID] = struct{}{}
		targets = append(targets, w.UserID)
	}

	metrics.FanoutCandidates.Observe(float64(len(targets)))
	return targets, nil
}

func dedupeExcluding(ids []string, exclude string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" || id == exclude {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
