// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"time"

	"safety-pipeline/internal/common/errors"
	"safety-pipeline/internal/common/logger"
	"safety-pipeline/internal/common/metrics"
	"safety-pipeline/internal/common/observability"
	"safety-pipeline/internal/models"
	"safety-pipeline/internal/pipeline/dispatch"
)

// Outcome classifies how an event left the pipeline.
const (
	OutcomeDelivered        = "delivered"
	OutcomeNoRecipients     = "no_recipients"
	OutcomeAllDeduplicated  = "all_deduplicated"
	OutcomeAllFailed        = "all_failed"
	OutcomeResolutionFailed = "resolution_failed"
)

// PriorityClassifier derives a priority for events that omit one.
type PriorityClassifier interface {
	Classify(ctx context.Context, event *models.NotificationEvent) (models.Priority, bool)
}

// TargetResolver yields the recipient set for one event.
type TargetResolver interface {
	ResolveTargets(ctx context.Context, event *models.NotificationEvent) ([]string, error)
}

// NotificationDispatcher fans the event out to approved recipients.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, event *models.NotificationEvent, candidates []string) *dispatch.Result
}

// Result is the per-event processing summary surfaced to callers and logs.
type Result struct {
	Candidates   int    `json:"candidates"`
	Sent         int    `json:"sent"`
	Deduplicated int    `json:"deduplicated"`
	Failed       int    `json:"failed"`
	Outcome      string `json:"outcome"`
}

// Pipeline wires resolution and dispatch into the single consume path.
type Pipeline struct {
	resolver   TargetResolver
	dispatcher NotificationDispatcher
	classifier PriorityClassifier
	obs        *observability.Observability
	logger     logger.Logger
}

func New(resolver TargetResolver, dispatcher NotificationDispatcher, classifier PriorityClassifier, obs *observability.Observability, log logger.Logger) *Pipeline {
	return &Pipeline{
		resolver:   resolver,
		dispatcher: dispatcher,
		classifier: classifier,
		obs:        obs,
		logger:     log.WithFields(map[string]interface{}{"component": "pipeline"}),
	}
}

// Process runs one event through resolution, dedup and dispatch.
// An empty recipient set is a normal outcome, not an error.
func (p *Pipeline) Process(ctx context.Context, event *models.NotificationEvent) (*Result, error) {
	start := time.Now()

	if err := validateEvent(event); err != nil {
		return nil, err
	}

	event = p.withPriority(ctx, event)

	candidates, err := p.resolver.ResolveTargets(ctx, event)
	if err != nil {
		p.record(ctx, start, OutcomeResolutionFailed)
		return nil, err
	}

	if len(candidates) == 0 {
		p.logger.Debug("no recipients for event", map[string]interface{}{
			"eventType": event.EventType,
			"relatedId": event.RelatedID,
		})
		result := &Result{Outcome: OutcomeNoRecipients}
		p.record(ctx, start, result.Outcome)
		return result, nil
	}

	dr := p.dispatcher.Dispatch(ctx, event, candidates)
	result := &Result{
		Candidates:   len(candidates),
		Sent:         dr.Sent,
		Deduplicated: dr.Deduplicated,
		Failed:       dr.Failed,
		Outcome:      classify(dr),
	}

	p.logger.Info("event processed", map[string]interface{}{
		"eventType":    event.EventType,
		"relatedId":    event.RelatedID,
		"candidates":   result.Candidates,
		"sent":         result.Sent,
		"deduplicated": result.Deduplicated,
		"failed":       result.Failed,
		"outcome":      result.Outcome,
	})
	p.record(ctx, start, result.Outcome)
	return result, nil
}

// withPriority defaults a missing priority, scoring incident events
// when a classifier is wired. Events stay immutable: defaulting works
// on a copy.
func (p *Pipeline) withPriority(ctx context.Context, event *models.NotificationEvent) *models.NotificationEvent {
	if event.Priority != "" {
		return event
	}

	defaulted := *event
	if p.classifier != nil {
		if priority, ok := p.classifier.Classify(ctx, event); ok {
			defaulted.Priority = priority
			return &defaulted
		}
	}
	defaulted.Priority = models.PriorityImportant
	return &defaulted
}

func (p *Pipeline) record(ctx context.Context, start time.Time, outcome string) {
	metrics.EventsProcessed.WithLabelValues(outcome).Inc()
	if p.obs != nil {
		p.obs.RecordEventProcessed(ctx, outcome)
		p.obs.RecordEventDuration(ctx, time.Since(start), outcome)
	}
}

func classify(dr *dispatch.Result) string {
	switch {
	case dr.Sent > 0:
		return OutcomeDelivered
	case dr.Failed > 0:
		return OutcomeAllFailed
	default:
		return OutcomeAllDeduplicated
	}
}

func validateEvent(event *models.NotificationEvent) error {
	if event == nil {
		return errors.NewMalformedInputError("event is nil")
	}
	if event.EventType == "" {
		return errors.NewMalformedInputError("eventType is required")
	}
	if event.RelatedID == "" || event.RelatedType == "" {
		return errors.NewMalformedInputError("relatedId and relatedType are required")
	}
	if event.Title == "" {
		return errors.NewMalformedInputError("title is required")
	}
	return nil
}
