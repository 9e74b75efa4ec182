// internal/reminder/scheduler.go
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"safety-pipeline/internal/common/logger"
	"safety-pipeline/internal/common/metrics"
)

const (
	TypePanic       = "panic"
	TypeLookAfterMe = "lookAfterMe"
)

// PanicSession is the user's open panic alert, if any.
type PanicSession struct {
	ID        string
	StartedAt time.Time
}

// LookAfterMeSession is the user's open journey-watch session, if any.
type LookAfterMeSession struct {
	ID            string
	DepartedAt    time.Time
	LastCheckInAt time.Time
}

// Store reads the user's open entities. The scheduler only observes
// them; it never changes their status.
type Store interface {
	ActivePanicSession(ctx context.Context, userID string) (*PanicSession, error)
	ActiveLookAfterMe(ctx context.Context, userID string) (*LookAfterMeSession, error)
}

// Reminder is one calm "are you safe" prompt.
type Reminder struct {
	Type     string
	EntityID string
	Message  string
}

// Key is the session-scoped dismissal key for this reminder.
func (r Reminder) Key() string {
	return fmt.Sprintf("%s-%s", r.Type, r.EntityID)
}

// Prompter surfaces a reminder to the user.
type Prompter interface {
	Prompt(ctx context.Context, r Reminder) error
}

type Config struct {
	PollInterval           time.Duration
	PanicAfter             time.Duration
	LookAfterMeInactivity  time.Duration
	LookAfterMeLongSession time.Duration
}

// Scheduler runs one polling loop per authenticated user session. Each
// poll surfaces at most one reminder, panic checked before look-after-me.
// Dismissals live only in this scheduler's memory: a restart re-offers
// every reminder until the user acts on the underlying entity.
type Scheduler struct {
	config   *Config
	userID   string
	store    Store
	prompter Prompter
	clock    clockwork.Clock
	logger   logger.Logger

	mu        sync.Mutex
	dismissed map[string]struct{}

	stopOnce sync.Once
	done     chan struct{}
	finished chan struct{}
}

func NewScheduler(config *Config, userID string, store Store, prompter Prompter, clock clockwork.Clock, log logger.Logger) *Scheduler {
	return &Scheduler{
		config:   config,
		userID:   userID,
		store:    store,
		prompter: prompter,
		clock:    clock,
		logger: log.WithFields(map[string]interface{}{
			"component": "reminder",
			"userId":    userID,
		}),
		dismissed: make(map[string]struct{}),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
	}
}

// Start runs one immediate check, then polls on the configured interval
// until Stop or context cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx)
}

// Stop tears the loop down. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	<-s.finished
}

// Dismiss stops re-prompting for one specific entity until restart. It
// never touches the entity itself.
func (s *Scheduler) Dismiss(reminderType, entityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dismissed[Reminder{Type: reminderType, EntityID: entityID}.Key()] = struct{}{}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.finished)

	s.check(ctx)

	ticker := s.clock.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			s.check(ctx)
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// check surfaces at most one reminder per poll, first match wins.
func (s *Scheduler) check(ctx context.Context) {
	if r := s.duePanicReminder(ctx); r != nil {
		s.surface(ctx, *r)
		return
	}
	if r := s.dueLookAfterMeReminder(ctx); r != nil {
		s.surface(ctx, *r)
	}
}

func (s *Scheduler) duePanicReminder(ctx context.Context) *Reminder {
	session, err := s.store.ActivePanicSession(ctx, s.userID)
	if err != nil {
		s.logger.Warn("panic session lookup failed", map[string]interface{}{"error": err.Error()})
		return nil
	}
	if session == nil {
		return nil
	}
	if s.clock.Since(session.StartedAt) < s.config.PanicAfter {
		return nil
	}
	return &Reminder{
		Type:     TypePanic,
		EntityID: session.ID,
		Message:  "Your panic alert has been active for a while. Are you safe?",
	}
}

func (s *Scheduler) dueLookAfterMeReminder(ctx context.Context) *Reminder {
	session, err := s.store.ActiveLookAfterMe(ctx, s.userID)
	if err != nil {
		s.logger.Warn("look-after-me lookup failed", map[string]interface{}{"error": err.Error()})
		return nil
	}
	if session == nil {
		return nil
	}

	lastSeen := session.LastCheckInAt
	if lastSeen.IsZero() {
		lastSeen = session.DepartedAt
	}

	switch {
	case s.clock.Since(session.DepartedAt) >= s.config.LookAfterMeLongSession:
		return &Reminder{
			Type:     TypeLookAfterMe,
			EntityID: session.ID,
			Message:  "Your Look After Me session has been running for a long time. Still on your way?",
		}
	case s.clock.Since(lastSeen) >= s.config.LookAfterMeInactivity:
		return &Reminder{
			Type:     TypeLookAfterMe,
			EntityID: session.ID,
			Message:  "You haven't checked in for a while. Everything okay?",
		}
	default:
		return nil
	}
}

func (s *Scheduler) surface(ctx context.Context, r Reminder) {
	s.mu.Lock()
	_, dismissed := s.dismissed[r.Key()]
	s.mu.Unlock()
	if dismissed {
		return
	}

	if err := s.prompter.Prompt(ctx, r); err != nil {
		s.logger.Warn("reminder prompt failed", map[string]interface{}{
			"type":     r.Type,
			"entityId": r.EntityID,
			"error":    err.Error(),
		})
		return
	}
	metrics.RemindersSurfaced.WithLabelValues(r.Type).Inc()
}
