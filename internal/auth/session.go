package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/storeadmin-io/storeadmin/internal/errutil"
	"github.com/storeadmin-io/storeadmin/internal/models"
	"github.com/storeadmin-io/storeadmin/internal/store"
)

const (
	SessionCookieName = "session"
	sessionTokenBytes = 32
	loginPath         = "/login"
)

type contextKey string

const userContextKey contextKey = "user"

// GenerateSessionToken returns a random cookie token and the hash stored for it.
func GenerateSessionToken() (token, tokenHash string, err error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_FAILED").Wrap(err)
	}
	token = hex.EncodeToString(b)
	return token, HashSessionToken(token), nil
}

// HashSessionToken returns the hex sha256 of a cookie token.
func HashSessionToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// SessionConfig controls cookie attributes and server-side lifetimes.
type SessionConfig struct {
	// Lifetime applies to sessions without "remember me". Their cookie
	// carries no expiry and is dropped when the browser closes.
	Lifetime time.Duration
	// RememberLifetime applies to "remember me" sessions, both on the
	// server and as the cookie's Max-Age.
	RememberLifetime time.Duration
	Secure           bool
}

// SessionManager binds requests to users through the session cookie.
type SessionManager struct {
	sessions SessionStore
	users    UserStore
	cfg      SessionConfig
	logger   *slog.Logger
	now      func() time.Time
}

func NewSessionManager(sessions SessionStore, users UserStore, cfg SessionConfig, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		sessions: sessions,
		users:    users,
		cfg:      cfg,
		logger:   logger.With("component", "sessions"),
		now:      time.Now,
	}
}

// Login creates a session for user and sets the cookie on w.
func (m *SessionManager) Login(ctx context.Context, w http.ResponseWriter, user *models.User, remember bool) (*models.Session, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, err
	}

	lifetime := m.cfg.Lifetime
	if remember {
		lifetime = m.cfg.RememberLifetime
	}

	now := m.now().UTC()
	session := &models.Session{
		UserID:    user.ID,
		TokenHash: tokenHash,
		Remember:  remember,
		CreatedAt: now,
		ExpiresAt: now.Add(lifetime),
	}
	if err := m.sessions.CreateSession(ctx, session); err != nil {
		return nil, oops.Code("SESSION_CREATE_FAILED").With("user_id", user.ID).Wrap(err)
	}

	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		cookie.Expires = session.ExpiresAt
		cookie.MaxAge = int(lifetime.Seconds())
	}
	http.SetCookie(w, cookie)

	m.logger.InfoContext(ctx, "session created", "user_id", user.ID, "remember", remember)
	return session, nil
}

// Logout deletes the request's session, if any, and clears the cookie.
// Calling it without a session is not an error.
func (m *SessionManager) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	defer m.clearCookie(w)

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	if err := m.sessions.DeleteSessionByTokenHash(ctx, HashSessionToken(cookie.Value)); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").Wrap(err)
	}
	return nil
}

// Current resolves the request's session and its user. Missing, unknown and
// expired sessions return SESSION_INVALID or SESSION_EXPIRED.
func (m *SessionManager) Current(ctx context.Context, r *http.Request) (*models.Session, *models.User, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil, oops.Code("SESSION_INVALID").Errorf("no session cookie")
	}

	tokenHash := HashSessionToken(cookie.Value)
	session, err := m.sessions.GetSessionByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, oops.Code("SESSION_INVALID").Errorf("unknown session")
		}
		return nil, nil, oops.Code("SESSION_LOOKUP_FAILED").Wrap(err)
	}

	if session.IsExpired(m.now()) {
		if err := m.sessions.DeleteSessionByTokenHash(ctx, tokenHash); err != nil {
			m.logger.WarnContext(ctx, "failed to delete expired session", "error", err)
		}
		return nil, nil, oops.Code("SESSION_EXPIRED").With("expired_at", session.ExpiresAt).Errorf("session expired")
	}

	user, err := m.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, oops.Code("SESSION_INVALID").Errorf("session user no longer exists")
		}
		return nil, nil, oops.Code("SESSION_LOOKUP_FAILED").Wrap(err)
	}
	return session, user, nil
}

// RequireAuth redirects requests without a valid session to the login page
// and stores the user in the context of the rest. A user already placed in
// the context by LoadUser is trusted as is.
func (m *SessionManager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}

		_, user, err := m.Current(r.Context(), r)
		if err != nil {
			if isUnauthenticated(err) {
				if _, cookieErr := r.Cookie(SessionCookieName); cookieErr == nil {
					m.clearCookie(w)
				}
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			errutil.LogError(m.logger, "session lookup failed", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// LoadUser stores the user in the context when a valid session exists and
// lets every request through.
func (m *SessionManager) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, user, err := m.Current(r.Context(), r); err == nil {
			r = r.WithContext(WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

// Cleanup deletes expired sessions.
func (m *SessionManager) Cleanup(ctx context.Context) (int64, error) {
	n, err := m.sessions.DeleteExpiredSessions(ctx, m.now())
	if err != nil {
		return 0, oops.Code("SESSION_CLEANUP_FAILED").Wrap(err)
	}
	return n, nil
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (m *SessionManager) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.Cleanup(ctx)
			if err != nil {
				errutil.LogError(m.logger, "session cleanup failed", err)
				continue
			}
			if n > 0 {
				m.logger.Info("expired sessions removed", "count", n)
			}
		}
	}
}

func (m *SessionManager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func isUnauthenticated(err error) bool {
	return errutil.HasCode(err, "SESSION_INVALID") || errutil.HasCode(err, "SESSION_EXPIRED")
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the authenticated user stored by RequireAuth or LoadUser.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok && user != nil
}
