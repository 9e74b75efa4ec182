// internal/pipeline/dedup/ledger.go
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"safety-pipeline/internal/common/logger"
	"safety-pipeline/internal/common/metrics"
	"safety-pipeline/internal/models"
)

var (
	ErrLedgerUnavailable = errors.New("LEDGER_UNAVAILABLE")
)

// Ledger is the time-windowed record of (entity, event-type, recipient)
// tuples already notified. It filters; it never sends. Records are
// written by the dispatcher after a successful send, so a crash before
// persistence cannot suppress a legitimate resend.
type Ledger struct {
	rdb    *redis.Client
	window time.Duration
	logger logger.Logger
}

func NewLedger(rdb *redis.Client, window time.Duration, log logger.Logger) *Ledger {
	return &Ledger{
		rdb:    rdb,
		window: window,
		logger: log.WithFields(map[string]interface{}{"component": "dedup"}),
	}
}

// Window returns the configured suppression window.
func (l *Ledger) Window() time.Duration {
	return l.window
}

func (l *Ledger) key(entityID, eventType, userID string) string {
	return fmt.Sprintf("dedup:%s:%s:%s", entityID, eventType, userID)
}

// AlreadyNotified reports whether the tuple was notified within the window.
func (l *Ledger) AlreadyNotified(ctx context.Context, entityID, eventType, userID string) (bool, error) {
	n, err := l.rdb.Exists(ctx, l.key(entityID, eventType, userID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return n > 0, nil
}

// FilterAlreadyNotified returns the candidates not yet notified for this
// event, plus the count suppressed. A ledger read failure fails open for
// that candidate: a duplicate notification is the acceptable best-effort
// cost, a silently dropped one is not.
func (l *Ledger) FilterAlreadyNotified(ctx context.Context, event *models.NotificationEvent, candidates []string) (fresh []string, suppressed int) {
	fresh = make([]string, 0, len(candidates))
	for _, userID := range candidates {
		notified, err := l.AlreadyNotified(ctx, event.RelatedID, event.EventType, userID)
		if err != nil {
			l.logger.Warn("ledger read failed, failing open", map[string]interface{}{
				"userId":    userID,
				"relatedId": event.RelatedID,
				"error":     err.Error(),
			})
			fresh = append(fresh, userID)
			continue
		}
		if notified {
			suppressed++
			metrics.DedupSuppressed.Inc()
			continue
		}
		fresh = append(fresh, userID)
	}
	return fresh, suppressed
}

// Record claims the tuple for the current window. SET NX with a TTL is
// the atomic insert-if-absent the window semantics need; a concurrent
// claim that loses the race reports claimed=false.
func (l *Ledger) Record(ctx context.Context, entityID, eventType, userID string) (claimed bool, err error) {
	ok, err := l.rdb.SetNX(ctx, l.key(entityID, eventType, userID), time.Now().UTC().Format(time.RFC3339Nano), l.window).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return ok, nil
}
