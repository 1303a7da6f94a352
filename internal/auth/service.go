package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/storeadmin-io/storeadmin/internal/errutil"
	"github.com/storeadmin-io/storeadmin/internal/models"
	"github.com/storeadmin-io/storeadmin/internal/store"
)

// ResetMailer delivers password reset links.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, to, resetURL string) error
}

// Hasher is a PasswordHasher able to produce a throwaway digest for timing parity.
type Hasher interface {
	PasswordHasher
	DummyDigest() (string, error)
}

// SignupInput is the submitted signup form.
type SignupInput struct {
	Email         string
	Name          string
	Password      string
	PasswordCheck string
}

// ServiceConfig holds the settings the flows need beyond their collaborators.
type ServiceConfig struct {
	// BaseURL prefixes reset links, e.g. https://admin.example.com
	BaseURL     string
	ResetMaxAge time.Duration
}

// Service runs the signup, login and password reset flows.
type Service struct {
	users       UserStore
	hasher      Hasher
	signer      *Signer
	mailer      ResetMailer
	cfg         ServiceConfig
	logger      *slog.Logger
	dummyDigest string
}

func NewService(users UserStore, hasher Hasher, signer *Signer, mailer ResetMailer, cfg ServiceConfig, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ResetMaxAge <= 0 {
		cfg.ResetMaxAge = DefaultResetMaxAge
	}
	dummy, err := hasher.DummyDigest()
	if err != nil {
		return nil, err
	}
	return &Service{
		users:       users,
		hasher:      hasher,
		signer:      signer,
		mailer:      mailer,
		cfg:         cfg,
		logger:      logger.With("component", "auth"),
		dummyDigest: dummy,
	}, nil
}

// Signup creates a user. New users are not logged in.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, oops.Code("AUTH_MISSING_FIELDS").Errorf("email and password are required")
	}

	_, err := s.users.GetUserByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, oops.Code("AUTH_EMAIL_TAKEN").With("email", in.Email).Errorf("email address already exists")
	case !errors.Is(err, store.ErrNotFound):
		return nil, oops.Code("SIGNUP_FAILED").With("operation", "get user by email").Wrap(err)
	}

	if in.Password != in.PasswordCheck {
		return nil, oops.Code("AUTH_PASSWORD_MISMATCH").Errorf("password not matching")
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, in.Email, in.Name, digest)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, oops.Code("AUTH_EMAIL_TAKEN").With("email", in.Email).Errorf("email address already exists")
		}
		return nil, oops.Code("SIGNUP_FAILED").With("operation", "create user").Wrap(err)
	}

	s.logger.InfoContext(ctx, "user signed up", "user_id", user.ID)
	return user, nil
}

// Authenticate checks credentials. Unknown email and wrong password both
// return AUTH_INVALID_CREDENTIALS after the same amount of hashing work.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, lookupErr := s.users.GetUserByEmail(ctx, email)

	target := s.dummyDigest
	exists := false
	switch {
	case lookupErr == nil:
		target = user.Password
		exists = true
	case !errors.Is(lookupErr, store.ErrNotFound):
		return nil, oops.Code("LOGIN_FAILED").With("operation", "get user by email").Wrap(lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(password, target)
	if verifyErr != nil && exists {
		errutil.LogError(s.logger, "stored digest could not be verified", verifyErr)
	}

	if !exists || !valid {
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid email or password")
	}

	if s.hasher.NeedsUpgrade(user.Password) {
		s.upgradeDigest(ctx, user, password)
	}

	s.logger.InfoContext(ctx, "user authenticated", "user_id", user.ID)
	return user, nil
}

// upgradeDigest rehashes with the configured algorithm. Failures only cost
// a log line.
func (s *Service) upgradeDigest(ctx context.Context, user *models.User, password string) {
	digest, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogError(s.logger, "password rehash failed", err)
		return
	}
	if err := s.users.UpdatePassword(ctx, user.ID, digest); err != nil {
		s.logger.WarnContext(ctx, "failed to store upgraded digest", "user_id", user.ID, "error", err)
		return
	}
	user.Password = digest
}

// RequestPasswordReset mails a reset link when email belongs to a user and
// returns the issued token. An unknown email returns "" and no error, so
// callers respond identically either way. Mail delivery failures are logged,
// never returned.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", oops.Code("RESET_REQUEST_FAILED").With("operation", "get user by email").Wrap(err)
	}

	token, err := s.signer.Issue(user.Email, PurposePasswordReset)
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").With("operation", "issue token").Wrap(err)
	}

	if s.mailer != nil {
		if err := s.mailer.SendPasswordReset(ctx, user.Email, s.ResetURL(token)); err != nil {
			errutil.LogError(s.logger, "failed to send password reset email", err)
		}
	}

	s.logger.InfoContext(ctx, "password reset requested", "user_id", user.ID)
	return token, nil
}

// ResetURL builds the link embedded in reset emails.
func (s *Service) ResetURL(token string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/reset_password_request?token=" + url.QueryEscape(token)
}

// VerifyResetToken returns the email a reset token was issued for.
func (s *Service) VerifyResetToken(token string) (string, bool) {
	return s.signer.Verify(token, PurposePasswordReset, s.cfg.ResetMaxAge)
}
