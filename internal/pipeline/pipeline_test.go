// internal/pipeline/pipeline_test.go
package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "safety-pipeline/internal/common/errors"
	"safety-pipeline/internal/common/logger"
	"safety-pipeline/internal/models"
	"safety-pipeline/internal/pipeline/dispatch"
)

// ==========================
// Test Helper Functions
// ==========================

type stubResolver struct {
	targets []string
	err     error
	calls   int
}

func (s *stubResolver) ResolveTargets(context.Context, *models.NotificationEvent) ([]string, error) {
	s.calls++
	return s.targets, s.err
}

type stubDispatcher struct {
	result     *dispatch.Result
	calls      int
	got        []string
	onDispatch func(event *models.NotificationEvent)
}

func (s *stubDispatcher) Dispatch(_ context.Context, event *models.NotificationEvent, candidates []string) *dispatch.Result {
	s.calls++
	s.got = candidates
	if s.onDispatch != nil {
		s.onDispatch(event)
	}
	return s.result
}

func validEvent() *models.NotificationEvent {
	return &models.NotificationEvent{
		EventType:   "incident_reported",
		RelatedType: "incident",
		RelatedID:   "incident-7",
		Title:       "Incident nearby",
		Priority:    models.PriorityImportant,
	}
}

func newPipeline(r *stubResolver, d *stubDispatcher, t *testing.T) *Pipeline {
	return New(r, d, nil, nil, logger.NewTestLogger(t))
}

type stubClassifier struct {
	priority models.Priority
	ok       bool
}

func (s *stubClassifier) Classify(context.Context, *models.NotificationEvent) (models.Priority, bool) {
	return s.priority, s.ok
}

// ==========================
// Core Functionality Tests
// ==========================

func TestProcess_DeliveredOutcome(t *testing.T) {
	resolver := &stubResolver{targets: []string{"user-a", "user-b", "user-c"}}
	dispatcher := &stubDispatcher{result: &dispatch.Result{Sent: 2, Deduplicated: 1}}
	p := newPipeline(resolver, dispatcher, t)

	result, err := p.Process(context.Background(), validEvent())

	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, result.Outcome)
	assert.Equal(t, 3, result.Candidates)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 1, result.Deduplicated)
	assert.Equal(t, []string{"user-a", "user-b", "user-c"}, dispatcher.got)
}

func TestProcess_NoRecipientsIsNormal(t *testing.T) {
	resolver := &stubResolver{targets: nil}
	dispatcher := &stubDispatcher{}
	p := newPipeline(resolver, dispatcher, t)

	result, err := p.Process(context.Background(), validEvent())

	require.NoError(t, err)
	assert.Equal(t, OutcomeNoRecipients, result.Outcome)
	assert.Zero(t, result.Candidates)
	assert.Equal(t, 0, dispatcher.calls, "dispatch must not run with no recipients")
}

func TestProcess_AllDeduplicatedDistinctFromNoRecipients(t *testing.T) {
	resolver := &stubResolver{targets: []string{"user-a", "user-b"}}
	dispatcher := &stubDispatcher{result: &dispatch.Result{Deduplicated: 2}}
	p := newPipeline(resolver, dispatcher, t)

	result, err := p.Process(context.Background(), validEvent())

	require.NoError(t, err)
	assert.Equal(t, OutcomeAllDeduplicated, result.Outcome)
	assert.Equal(t, 2, result.Candidates)
	assert.Equal(t, 2, result.Deduplicated)
}

func TestProcess_AllFailedOutcome(t *testing.T) {
	resolver := &stubResolver{targets: []string{"user-a"}}
	dispatcher := &stubDispatcher{result: &dispatch.Result{Failed: 1}}
	p := newPipeline(resolver, dispatcher, t)

	result, err := p.Process(context.Background(), validEvent())

	require.NoError(t, err)
	assert.Equal(t, OutcomeAllFailed, result.Outcome)
	assert.Equal(t, 1, result.Failed)
}

func TestProcess_ResolverErrorSurfaces(t *testing.T) {
	resolver := &stubResolver{err: errors.New("index unreachable")}
	dispatcher := &stubDispatcher{}
	p := newPipeline(resolver, dispatcher, t)

	result, err := p.Process(context.Background(), validEvent())

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 0, dispatcher.calls)
}

// ==========================
// Priority Defaulting Tests
// ==========================

func TestProcess_ScoredPriorityAppliedWhenMissing(t *testing.T) {
	resolver := &stubResolver{targets: []string{"user-a"}}
	dispatcher := &stubDispatcher{result: &dispatch.Result{Sent: 1}}
	var seen models.Priority
	dispatcher.onDispatch = func(event *models.NotificationEvent) { seen = event.Priority }
	p := New(resolver, dispatcher, &stubClassifier{priority: models.PriorityCritical, ok: true}, nil, logger.NewTestLogger(t))

	event := validEvent()
	event.Priority = ""
	_, err := p.Process(context.Background(), event)

	require.NoError(t, err)
	assert.Equal(t, models.PriorityCritical, seen)
	assert.Empty(t, event.Priority, "caller's event must not be mutated")
}

func TestProcess_MissingPriorityFallsBackToImportant(t *testing.T) {
	resolver := &stubResolver{targets: []string{"user-a"}}
	dispatcher := &stubDispatcher{result: &dispatch.Result{Sent: 1}}
	var seen models.Priority
	dispatcher.onDispatch = func(event *models.NotificationEvent) { seen = event.Priority }
	p := New(resolver, dispatcher, &stubClassifier{}, nil, logger.NewTestLogger(t))

	event := validEvent()
	event.Priority = ""
	_, err := p.Process(context.Background(), event)

	require.NoError(t, err)
	assert.Equal(t, models.PriorityImportant, seen)
}

func TestProcess_ExplicitPriorityNotReclassified(t *testing.T) {
	resolver := &stubResolver{targets: []string{"user-a"}}
	dispatcher := &stubDispatcher{result: &dispatch.Result{Sent: 1}}
	var seen models.Priority
	dispatcher.onDispatch = func(event *models.NotificationEvent) { seen = event.Priority }
	p := New(resolver, dispatcher, &stubClassifier{priority: models.PriorityCritical, ok: true}, nil, logger.NewTestLogger(t))

	_, err := p.Process(context.Background(), validEvent())

	require.NoError(t, err)
	assert.Equal(t, models.PriorityImportant, seen)
}

// ==========================
// Validation Tests
// ==========================

func TestProcess_RejectsMalformedEvents(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.NotificationEvent)
	}{
		{"missing event type", func(e *models.NotificationEvent) { e.EventType = "" }},
		{"missing related id", func(e *models.NotificationEvent) { e.RelatedID = "" }},
		{"missing related type", func(e *models.NotificationEvent) { e.RelatedType = "" }},
		{"missing title", func(e *models.NotificationEvent) { e.Title = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &stubResolver{}
			p := newPipeline(resolver, &stubDispatcher{}, t)
			event := validEvent()
			tt.mutate(event)

			_, err := p.Process(context.Background(), event)

			require.Error(t, err)
			var stdErr *stderrors.StandardError
			require.ErrorAs(t, err, &stdErr)
			assert.Equal(t, stderrors.ErrCodeMalformedInput, stdErr.Code)
			assert.Equal(t, 0, resolver.calls)
		})
	}
}

func TestProcess_NilEventRejected(t *testing.T) {
	p := newPipeline(&stubResolver{}, &stubDispatcher{}, t)

	_, err := p.Process(context.Background(), nil)

	assert.Error(t, err)
}
