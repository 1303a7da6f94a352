package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/storeadmin-io/storeadmin/internal/errutil"
	"github.com/storeadmin-io/storeadmin/internal/store"
)

type serviceFixture struct {
	svc    *Service
	store  *memStore
	mailer *recordingMailer
	clock  *fakeClock
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	st := newMemStore()
	mailer := &recordingMailer{}
	clock := newFakeClock()
	signer := newTestSigner(t, clock)

	svc, err := NewService(st, fastHasher(), signer, mailer, ServiceConfig{
		BaseURL:     "http://localhost:5000/",
		ResetMaxAge: time.Hour,
	}, nil)
	require.NoError(t, err)
	return &serviceFixture{svc: svc, store: st, mailer: mailer, clock: clock}
}

func TestSignup(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh email creates one user with a digest", func(t *testing.T) {
		f := newServiceFixture(t)
		user, err := f.svc.Signup(ctx, SignupInput{Email: "a@x.com", Name: "A", Password: "p1", PasswordCheck: "p1"})
		require.NoError(t, err)

		assert.Equal(t, 1, f.store.userCount())
		assert.Equal(t, "A", user.Name)
		assert.NotEqual(t, "p1", user.Password)
		assert.True(t, strings.HasPrefix(user.Password, "pbkdf2:sha256:"))
	})

	t.Run("existing email rejected", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.svc.Signup(ctx, SignupInput{Email: "a@x.com", Name: "A", Password: "p1", PasswordCheck: "p1"})
		require.NoError(t, err)

		_, err = f.svc.Signup(ctx, SignupInput{Email: "a@x.com", Name: "B", Password: "p2", PasswordCheck: "p2"})
		errutil.AssertErrorCode(t, err, "AUTH_EMAIL_TAKEN")
		assert.Equal(t, 1, f.store.userCount())
	})

	t.Run("existing email reported before mismatch", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.svc.Signup(ctx, SignupInput{Email: "a@x.com", Password: "p1", PasswordCheck: "p1"})
		require.NoError(t, err)

		_, err = f.svc.Signup(ctx, SignupInput{Email: "a@x.com", Password: "p1", PasswordCheck: "p2"})
		errutil.AssertErrorCode(t, err, "AUTH_EMAIL_TAKEN")
	})

	t.Run("mismatch creates nothing", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.svc.Signup(ctx, SignupInput{Email: "a@x.com", Name: "A", Password: "p1", PasswordCheck: "p2"})
		errutil.AssertErrorCode(t, err, "AUTH_PASSWORD_MISMATCH")
		assert.Equal(t, 0, f.store.userCount())
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newServiceFixture(t)
		for _, in := range []SignupInput{
			{Email: "", Password: "p1", PasswordCheck: "p1"},
			{Email: "   ", Password: "p1", PasswordCheck: "p1"},
			{Email: "a@x.com", Password: "", PasswordCheck: ""},
		} {
			_, err := f.svc.Signup(ctx, in)
			errutil.AssertErrorCode(t, err, "AUTH_MISSING_FIELDS")
		}
		assert.Equal(t, 0, f.store.userCount())
	})

	t.Run("concurrent signups leave one user", func(t *testing.T) {
		f := newServiceFixture(t)
		const n = 10
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = f.svc.Signup(ctx, SignupInput{Email: "race@x.com", Password: "p1", PasswordCheck: "p1"})
			}(i)
		}
		wg.Wait()

		ok := 0
		for _, err := range errs {
			if err == nil {
				ok++
				continue
			}
			errutil.AssertErrorCode(t, err, "AUTH_EMAIL_TAKEN")
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, 1, f.store.userCount())
	})
}

func TestSignup_StoreFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("lookup failure", func(t *testing.T) {
		users := &mockUserStore{}
		users.On("GetUserByEmail", mock.Anything, "a@x.com").Return(nil, errors.New("db down"))
		svc, err := NewService(users, fastHasher(), newTestSigner(t, newFakeClock()), nil, ServiceConfig{}, nil)
		require.NoError(t, err)

		_, err = svc.Signup(ctx, SignupInput{Email: "a@x.com", Password: "p1", PasswordCheck: "p1"})
		errutil.AssertErrorCode(t, err, "SIGNUP_FAILED")
	})

	t.Run("insert race maps to taken", func(t *testing.T) {
		users := &mockUserStore{}
		users.On("GetUserByEmail", mock.Anything, "a@x.com").Return(nil, store.ErrNotFound)
		users.On("CreateUser", mock.Anything, "a@x.com", "A", mock.AnythingOfType("string")).Return(nil, store.ErrDuplicateEmail)
		svc, err := NewService(users, fastHasher(), newTestSigner(t, newFakeClock()), nil, ServiceConfig{}, nil)
		require.NoError(t, err)

		_, err = svc.Signup(ctx, SignupInput{Email: "a@x.com", Name: "A", Password: "p1", PasswordCheck: "p1"})
		errutil.AssertErrorCode(t, err, "AUTH_EMAIL_TAKEN")
		users.AssertExpectations(t)
	})
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	_, err := f.svc.Signup(ctx, SignupInput{Email: "a@x.com", Name: "A", Password: "p1", PasswordCheck: "p1"})
	require.NoError(t, err)

	t.Run("correct credentials", func(t *testing.T) {
		user, err := f.svc.Authenticate(ctx, "a@x.com", "p1")
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", user.Email)
	})

	t.Run("wrong password and unknown email fail identically", func(t *testing.T) {
		_, wrongPassword := f.svc.Authenticate(ctx, "a@x.com", "nope")
		_, unknownEmail := f.svc.Authenticate(ctx, "b@x.com", "p1")

		errutil.AssertErrorCode(t, wrongPassword, "AUTH_INVALID_CREDENTIALS")
		errutil.AssertErrorCode(t, unknownEmail, "AUTH_INVALID_CREDENTIALS")
		assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	})

	t.Run("email match is case sensitive", func(t *testing.T) {
		_, err := f.svc.Authenticate(ctx, "A@X.COM", "p1")
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
	})
}

func TestAuthenticate_UpgradesDigest(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	legacy, err := (&BcryptHasher{cost: 4}).Hash("p1")
	require.NoError(t, err)
	user, err := f.store.CreateUser(ctx, "old@x.com", "Old", legacy)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, "old@x.com", "p1")
	require.NoError(t, err)

	stored, err := f.store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.Password, "pbkdf2:sha256:1000$"))

	_, err = f.svc.Authenticate(ctx, "old@x.com", "p1")
	assert.NoError(t, err, "upgraded digest still verifies")
}

func TestAuthenticate_CorruptDigest(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	_, err := f.store.CreateUser(ctx, "bad@x.com", "Bad", "p1")
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, "bad@x.com", "p1")
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
}

func TestAuthenticate_LookupFailure(t *testing.T) {
	users := &mockUserStore{}
	users.On("GetUserByEmail", mock.Anything, "a@x.com").Return(nil, errors.New("db down"))
	svc, err := NewService(users, fastHasher(), newTestSigner(t, newFakeClock()), nil, ServiceConfig{}, nil)
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), "a@x.com", "p1")
	errutil.AssertErrorCode(t, err, "LOGIN_FAILED")
}

func TestRequestPasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("known email mails a verifiable link", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.svc.Signup(ctx, SignupInput{Email: "a@x.com", Password: "p1", PasswordCheck: "p1"})
		require.NoError(t, err)

		token, err := f.svc.RequestPasswordReset(ctx, "a@x.com")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		require.Len(t, f.mailer.sent, 1)
		assert.Equal(t, "a@x.com", f.mailer.sent[0].to)

		link, err := url.Parse(f.mailer.sent[0].url)
		require.NoError(t, err)
		assert.Equal(t, "localhost:5000", link.Host)
		assert.Equal(t, "/reset_password_request", link.Path)
		assert.Equal(t, token, link.Query().Get("token"))

		email, ok := f.svc.VerifyResetToken(token)
		assert.True(t, ok)
		assert.Equal(t, "a@x.com", email)

		f.clock.Advance(time.Hour + time.Second)
		_, ok = f.svc.VerifyResetToken(token)
		assert.False(t, ok)
	})

	t.Run("unknown email sends nothing", func(t *testing.T) {
		f := newServiceFixture(t)
		token, err := f.svc.RequestPasswordReset(ctx, "nobody@x.com")
		require.NoError(t, err)
		assert.Empty(t, token)
		assert.Empty(t, f.mailer.sent)
	})

	t.Run("mailer failure is not surfaced", func(t *testing.T) {
		f := newServiceFixture(t)
		f.mailer.err = errors.New("smtp down")
		_, err := f.svc.Signup(ctx, SignupInput{Email: "a@x.com", Password: "p1", PasswordCheck: "p1"})
		require.NoError(t, err)

		token, err := f.svc.RequestPasswordReset(ctx, "a@x.com")
		assert.NoError(t, err)
		assert.NotEmpty(t, token)
	})

	t.Run("lookup failure", func(t *testing.T) {
		users := &mockUserStore{}
		users.On("GetUserByEmail", mock.Anything, "a@x.com").Return(nil, errors.New("db down"))
		svc, err := NewService(users, fastHasher(), newTestSigner(t, newFakeClock()), nil, ServiceConfig{}, nil)
		require.NoError(t, err)

		_, err = svc.RequestPasswordReset(ctx, "a@x.com")
		errutil.AssertErrorCode(t, err, "RESET_REQUEST_FAILED")
	})
}

func TestNewService_DefaultsResetMaxAge(t *testing.T) {
	svc, err := NewService(newMemStore(), fastHasher(), newTestSigner(t, newFakeClock()), nil, ServiceConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultResetMaxAge, svc.cfg.ResetMaxAge)
}

var _ UserStore = (*memStore)(nil)
var _ SessionStore = (*memStore)(nil)
var _ UserStore = (*mockUserStore)(nil)
