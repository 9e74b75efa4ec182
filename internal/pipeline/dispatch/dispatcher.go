// internal/pipeline/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"safety-pipeline/internal/common/logger"
	"safety-pipeline/internal/common/metrics"
	"safety-pipeline/internal/models"
	"safety-pipeline/internal/pipeline/dedup"
)

var (
	ErrNotificationSendFailed = errors.New("NOTIFICATION_SEND_FAILED")
)

// PushTransport hands a push payload to the delivery boundary for one
// recipient. Best effort: the in-app record is the channel of record.
type PushTransport interface {
	Publish(ctx context.Context, userID string, payload models.ClientNotification) error
}

// MailSender is the optional critical-priority escalation channel.
type MailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type Config struct {
	MailEnabled bool
}

// Result reports one dispatch batch. Partial failure is a count, never
// an error: notification delivery must not block the incident flow.
type Result struct {
	Sent         int `json:"sent"`
	Deduplicated int `json:"deduplicated"`
	Failed       int `json:"failed"`
}

// Dispatcher turns approved (recipient, event) pairs into persisted
// notification records and push payloads.
type Dispatcher struct {
	config *Config
	db     *sql.DB
	ledger *dedup.Ledger
	push   PushTransport
	mail   MailSender
	logger logger.Logger
}

func NewDispatcher(config *Config, db *sql.DB, ledger *dedup.Ledger, push PushTransport, mail MailSender, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		config: config,
		db:     db,
		ledger: ledger,
		push:   push,
		mail:   mail,
		logger: log.WithFields(map[string]interface{}{"component": "dispatch"}),
	}
}

// Dispatch persists one notification record per candidate not yet in
// the dedup window, publishes the push payload, and records the dedup
// claim after the send. One failing recipient never aborts the batch.
func (d *Dispatcher) Dispatch(ctx context.Context, event *models.NotificationEvent, candidates []string) *Result {
	fresh, suppressed := d.ledger.FilterAlreadyNotified(ctx, event, candidates)
	result := &Result{Deduplicated: suppressed}

	if len(fresh) == 0 {
		return result
	}

	payload := BuildClientNotification(event)

	for _, userID := range fresh {
		if err := d.persistRecord(ctx, event, userID); err != nil {
			d.logger.Error("notification insert failed", map[string]interface{}{
				"userId":    userID,
				"relatedId": event.RelatedID,
				"error":     err.Error(),
			})
			metrics.NotificationsFailed.Inc()
			result.Failed++
			continue
		}

		if err := d.push.Publish(ctx, userID, payload); err != nil {
			// Push is best effort; the persisted record still reaches the
			// user through the in-app subscription.
			d.logger.Warn("push publish failed", map[string]interface{}{
				"userId": userID,
				"error":  err.Error(),
			})
			metrics.PushPublishFailures.Inc()
		}

		if d.config.MailEnabled && d.mail != nil && event.Priority == models.PriorityCritical {
			d.escalateByMail(ctx, userID, event)
		}

		if _, err := d.ledger.Record(ctx, event.RelatedID, event.EventType, userID); err != nil {
			d.logger.Warn("dedup record failed", map[string]interface{}{
				"userId":    userID,
				"relatedId": event.RelatedID,
				"error":     err.Error(),
			})
		}

		metrics.NotificationsSent.WithLabelValues(event.EventType).Inc()
		result.Sent++
	}

	return result
}

func (d *Dispatcher) persistRecord(ctx context.Context, event *models.NotificationEvent, userID string) error {
	record := models.Notification{
		ID:         uuid.New().String(),
		UserID:     userID,
		Type:       event.EventType,
		Title:      event.Title,
		Body:       event.Body,
		Priority:   models.NotificationPriority(event.Priority),
		EntityID:   event.RelatedID,
		EntityType: event.RelatedType,
		ActorID:    event.TriggeredBy,
		CreatedAt:  time.Now().UTC(),
	}

	data := map[string]interface{}{"url": event.URL}
	if event.Location != nil {
		data["lat"] = event.Location.Lat
		data["lng"] = event.Location.Lng
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	query := `INSERT INTO notifications
		(id, user_id, type, title, body, priority, entity_id, entity_type, actor_id, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = d.db.ExecContext(ctx, query,
		record.ID, record.UserID, record.Type, record.Title, record.Body,
		record.Priority, record.EntityID, record.EntityType, record.ActorID,
		dataJSON, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotificationSendFailed, err)
	}
	return nil
}

func (d *Dispatcher) escalateByMail(ctx context.Context, userID string, event *models.NotificationEvent) {
	var email string
	err := d.db.QueryRowContext(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if err != nil || email == "" {
		d.logger.Debug("no email for critical escalation", map[string]interface{}{
			"userId": userID,
		})
		return
	}

	if err := d.mail.SendEmail(ctx, email, event.Title, event.Body); err != nil {
		d.logger.Warn("mail escalation failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
	}
}

// BuildClientNotification constructs the push payload for an event. The
// tag keys the tray's replace-not-stack behavior; delivery attributes
// come straight from priority.
func BuildClientNotification(event *models.NotificationEvent) models.ClientNotification {
	n := models.ClientNotification{
		Title: event.Title,
		Body:  event.Body,
		Tag:   fmt.Sprintf("%s_%s", event.RelatedType, event.RelatedID),
		Data: models.ClientNotificationData{
			URL:         event.URL,
			RelatedType: event.RelatedType,
			RelatedID:   event.RelatedID,
			Priority:    event.Priority,
		},
	}

	if event.Location != nil {
		lat, lng := event.Location.Lat, event.Location.Lng
		n.Data.Lat = &lat
		n.Data.Lng = &lng
	}

	switch event.Priority {
	case models.PriorityCritical:
		n.RequireInteraction = true
		n.Renotify = true
	case models.PriorityInfo:
		n.Silent = true
	}

	return n
}
