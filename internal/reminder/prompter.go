// internal/reminder/prompter.go
package reminder

import (
	"context"

	"safety-pipeline/internal/models"
	"safety-pipeline/internal/pipeline"
)

// EventSink accepts a NotificationEvent for processing.
type EventSink interface {
	Process(ctx context.Context, event *models.NotificationEvent) (*pipeline.Result, error)
}

// PipelinePrompter delivers reminders through the notification pipeline
// itself, as info-priority events targeted at the session's user. The
// dedup ledger then throttles repeats across close polls for free.
type PipelinePrompter struct {
	sink   EventSink
	userID string
}

func NewPipelinePrompter(sink EventSink, userID string) *PipelinePrompter {
	return &PipelinePrompter{sink: sink, userID: userID}
}

func (p *PipelinePrompter) Prompt(ctx context.Context, r Reminder) error {
	event := &models.NotificationEvent{
		EventType:     "reminder",
		RelatedType:   r.Type,
		RelatedID:     r.EntityID,
		Title:         "Are you safe?",
		Body:          r.Message,
		Priority:      models.PriorityInfo,
		TargetUserIDs: []string{p.userID},
	}
	_, err := p.sink.Process(ctx, event)
	return err
}
