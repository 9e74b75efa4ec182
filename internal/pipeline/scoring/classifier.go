// internal/pipeline/scoring/classifier.go
package scoring

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"safety-pipeline/internal/common/logger"
	"safety-pipeline/internal/models"
)

// Classifier derives a priority for incident events that arrive without
// one, from the urgency score evaluated at the incident's own location.
type Classifier struct {
	db     *sql.DB
	region Region
	logger logger.Logger
}

func NewClassifier(db *sql.DB, region Region, log logger.Logger) *Classifier {
	return &Classifier{
		db:     db,
		region: region,
		logger: log.WithFields(map[string]interface{}{"component": "scoring"}),
	}
}

// Classify returns a priority for the event, or false when the event is
// not an incident, the incident is unknown, or it has no coordinates.
func (c *Classifier) Classify(ctx context.Context, event *models.NotificationEvent) (models.Priority, bool) {
	if event.RelatedType != "incident" {
		return "", false
	}

	inc, err := c.loadIncident(ctx, event.RelatedID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.logger.Warn("incident lookup failed", map[string]interface{}{
				"incidentId": event.RelatedID,
				"error":      err.Error(),
			})
		}
		return "", false
	}
	if !inc.HasCoordinates() {
		return "", false
	}

	now := time.Now()
	result := Score(*inc, ContextFor(*inc, nil, c.region, now), now)

	switch result.Tier {
	case TierCritical:
		return models.PriorityCritical, true
	case TierHigh:
		return models.PriorityImportant, true
	default:
		return models.PriorityInfo, true
	}
}

func (c *Classifier) loadIncident(ctx context.Context, id string) (*models.Incident, error) {
	query := `SELECT id, type, status, latitude, longitude, created_at, confidence_score
		FROM incidents WHERE id = $1`

	var inc models.Incident
	err := c.db.QueryRowContext(ctx, query, id).Scan(
		&inc.ID, &inc.Type, &inc.Status, &inc.Latitude, &inc.Longitude,
		&inc.CreatedAt, &inc.ConfidenceScore,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("query incident: %w", err)
	}
	return &inc, nil
}
