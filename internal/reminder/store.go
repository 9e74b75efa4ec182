// internal/reminder/store.go
package reminder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore reads open sessions from the incident store.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ActivePanicSession(ctx context.Context, userID string) (*PanicSession, error) {
	query := `SELECT id, started_at FROM panic_sessions
		WHERE user_id = $1 AND status = 'active'
		ORDER BY started_at DESC LIMIT 1`

	var session PanicSession
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&session.ID, &session.StartedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query panic session: %w", err)
	}
	return &session, nil
}

// ActiveSessionUsers lists users with at least one open panic or
// look-after-me session.
func (s *PostgresStore) ActiveSessionUsers(ctx context.Context) ([]string, error) {
	query := `SELECT user_id FROM panic_sessions WHERE status = 'active'
		UNION
		SELECT user_id FROM look_after_me_sessions WHERE status = 'active'`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active sessions: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan session user: %w", err)
		}
		users = append(users, userID)
	}
	return users, rows.Err()
}

func (s *PostgresStore) ActiveLookAfterMe(ctx context.Context, userID string) (*LookAfterMeSession, error) {
	query := `SELECT id, departed_at, COALESCE(last_check_in_at, departed_at) FROM look_after_me_sessions
		WHERE user_id = $1 AND status = 'active'
		ORDER BY departed_at DESC LIMIT 1`

	var session LookAfterMeSession
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&session.ID, &session.DepartedAt, &session.LastCheckInAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query look-after-me session: %w", err)
	}
	return &session, nil
}
