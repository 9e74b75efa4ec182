// internal/reminder/supervisor.go
package reminder

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"

	"safety-pipeline/internal/common/logger"
)

// Supervisor owns one Scheduler per active user session. Session
// teardown stops the owning scheduler so no timers outlive it.
type Supervisor struct {
	config *Config
	store  Store
	sink   EventSink
	clock  clockwork.Clock
	logger logger.Logger

	mu     sync.Mutex
	active map[string]*Scheduler
}

func NewSupervisor(config *Config, store Store, sink EventSink, clock clockwork.Clock, log logger.Logger) *Supervisor {
	return &Supervisor{
		config: config,
		store:  store,
		sink:   sink,
		clock:  clock,
		logger: log.WithFields(map[string]interface{}{"component": "reminder-supervisor"}),
		active: make(map[string]*Scheduler),
	}
}

// StartSession begins polling for one user. A second call for the same
// user is a no-op until the first session ends.
func (s *Supervisor) StartSession(ctx context.Context, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, running := s.active[userID]; running {
		return
	}

	sched := NewScheduler(s.config, userID, s.store, NewPipelinePrompter(s.sink, userID), s.clock, s.logger)
	s.active[userID] = sched
	sched.Start(ctx)
	s.logger.Debug("reminder session started", map[string]interface{}{"userId": userID})
}

// EndSession stops the user's scheduler, if any.
func (s *Supervisor) EndSession(userID string) {
	s.mu.Lock()
	sched, ok := s.active[userID]
	delete(s.active, userID)
	s.mu.Unlock()
	if ok {
		sched.Stop()
	}
}

// Dismiss forwards a session-scoped dismissal to the user's scheduler.
func (s *Supervisor) Dismiss(userID, reminderType, entityID string) {
	s.mu.Lock()
	sched, ok := s.active[userID]
	s.mu.Unlock()
	if ok {
		sched.Dismiss(reminderType, entityID)
	}
}

// SessionSource lists users who currently have an open entity and
// should have a reminder loop running.
type SessionSource interface {
	ActiveSessionUsers(ctx context.Context) ([]string, error)
}

// Run reconciles running schedulers against the session source until the
// context is cancelled: new sessions start a loop, gone sessions stop it.
func (s *Supervisor) Run(ctx context.Context, source SessionSource) {
	s.sync(ctx, source)

	ticker := s.clock.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			s.sync(ctx, source)
		case <-ctx.Done():
			s.StopAll()
			return
		}
	}
}

func (s *Supervisor) sync(ctx context.Context, source SessionSource) {
	users, err := source.ActiveSessionUsers(ctx)
	if err != nil {
		s.logger.Warn("session listing failed", map[string]interface{}{"error": err.Error()})
		return
	}

	current := make(map[string]struct{}, len(users))
	for _, userID := range users {
		current[userID] = struct{}{}
		s.StartSession(ctx, userID)
	}

	s.mu.Lock()
	var gone []string
	for userID := range s.active {
		if _, ok := current[userID]; !ok {
			gone = append(gone, userID)
		}
	}
	s.mu.Unlock()
	for _, userID := range gone {
		s.EndSession(userID)
	}
}

// StopAll tears down every running scheduler.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	schedulers := make([]*Scheduler, 0, len(s.active))
	for _, sched := range s.active {
		schedulers = append(schedulers, sched)
	}
	s.active = make(map[string]*Scheduler)
	s.mu.Unlock()

	for _, sched := range schedulers {
		sched.Stop()
	}
}
