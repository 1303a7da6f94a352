package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/storeadmin-io/storeadmin/internal/models"
)

// CreateSession stores a session. An empty ID is assigned a fresh UUID.
func (s *Store) CreateSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO sessions (id, user_id, token_hash, remember, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)`),
		session.ID, session.UserID, session.TokenHash, session.Remember, session.CreatedAt.UTC(), session.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSessionByTokenHash looks a session up by the hash of its cookie token.
// Expired rows are returned as-is; callers decide what expiry means.
func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	var session models.Session
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT id, user_id, token_hash, remember, created_at, expires_at FROM sessions WHERE token_hash = ?`),
		tokenHash,
	).Scan(&session.ID, &session.UserID, &session.TokenHash, &session.Remember, &session.CreatedAt, &session.ExpiresAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

// DeleteSessionByTokenHash removes a session. Deleting a missing session is not an error.
func (s *Store) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM sessions WHERE token_hash = ?`), tokenHash); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all sessions that have passed their expiration time.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM sessions WHERE expires_at <= ?`), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
