package auth

import (
	"context"
	"time"

	"github.com/storeadmin-io/storeadmin/internal/models"
)

// UserStore is the credential store. Lookups that match nothing return
// store.ErrNotFound; inserting a taken email returns store.ErrDuplicateEmail.
type UserStore interface {
	CreateUser(ctx context.Context, email, name, passwordHash string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// SessionStore persists sessions keyed by the hash of their cookie token.
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}
