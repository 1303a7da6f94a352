package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/storeadmin-io/storeadmin/internal/config"
	"github.com/storeadmin-io/storeadmin/internal/database"
	"github.com/storeadmin-io/storeadmin/internal/models"
)

// StoreTestSuite exercises the store against a migrated SQLite file.
type StoreTestSuite struct {
	suite.Suite
	db    *database.DB
	store *Store
	ctx   context.Context
}

func (s *StoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	db, err := database.Open(s.ctx, config.DatabaseConfig{
		Type:       database.TypeSQLite,
		Path:       filepath.Join(s.T().TempDir(), "store.db"),
		MaxRetries: 1,
		RetryDelay: 1,
	})
	s.Require().NoError(err)
	s.Require().NoError(db.Migrate(s.ctx))
	s.db = db
	s.store = New(db)
}

func (s *StoreTestSuite) TearDownTest() {
	s.db.Close()
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) TestCreateAndGetUser() {
	user, err := s.store.CreateUser(s.ctx, "a@x.com", "A", "digest")
	s.Require().NoError(err)
	s.NotEmpty(user.ID)

	byEmail, err := s.store.GetUserByEmail(s.ctx, "a@x.com")
	s.Require().NoError(err)
	s.Equal(user.ID, byEmail.ID)
	s.Equal("A", byEmail.Name)
	s.Equal("digest", byEmail.Password)

	byID, err := s.store.GetUserByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Equal("a@x.com", byID.Email)
}

func (s *StoreTestSuite) TestGetUserNotFound() {
	_, err := s.store.GetUserByEmail(s.ctx, "nobody@x.com")
	s.ErrorIs(err, ErrNotFound)
}

func (s *StoreTestSuite) TestEmailIsCaseSensitive() {
	_, err := s.store.CreateUser(s.ctx, "a@x.com", "A", "digest")
	s.Require().NoError(err)

	_, err = s.store.GetUserByEmail(s.ctx, "A@X.COM")
	s.ErrorIs(err, ErrNotFound)
}

func (s *StoreTestSuite) TestDuplicateEmail() {
	_, err := s.store.CreateUser(s.ctx, "a@x.com", "A", "digest")
	s.Require().NoError(err)

	_, err = s.store.CreateUser(s.ctx, "a@x.com", "B", "other")
	s.ErrorIs(err, ErrDuplicateEmail)

	n, err := s.store.CountUsers(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *StoreTestSuite) TestConcurrentDuplicateEmail() {
	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.store.CreateUser(s.ctx, "race@x.com", "R", "digest")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.ErrorIs(err, ErrDuplicateEmail)
	}
	s.Equal(1, succeeded)

	n, err := s.store.CountUsers(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *StoreTestSuite) TestUpdatePassword() {
	user, err := s.store.CreateUser(s.ctx, "a@x.com", "A", "old")
	s.Require().NoError(err)

	s.Require().NoError(s.store.UpdatePassword(s.ctx, user.ID, "new"))
	got, err := s.store.GetUserByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Equal("new", got.Password)

	s.ErrorIs(s.store.UpdatePassword(s.ctx, "missing", "x"), ErrNotFound)
}

func (s *StoreTestSuite) TestSessionLifecycle() {
	user, err := s.store.CreateUser(s.ctx, "a@x.com", "A", "digest")
	s.Require().NoError(err)

	session := &models.Session{
		UserID:    user.ID,
		TokenHash: "abc123",
		Remember:  true,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	s.Require().NoError(s.store.CreateSession(s.ctx, session))
	s.NotEmpty(session.ID)

	got, err := s.store.GetSessionByTokenHash(s.ctx, "abc123")
	s.Require().NoError(err)
	s.Equal(user.ID, got.UserID)
	s.True(got.Remember)
	s.WithinDuration(session.ExpiresAt, got.ExpiresAt, time.Second)

	s.Require().NoError(s.store.DeleteSessionByTokenHash(s.ctx, "abc123"))
	_, err = s.store.GetSessionByTokenHash(s.ctx, "abc123")
	s.ErrorIs(err, ErrNotFound)

	s.NoError(s.store.DeleteSessionByTokenHash(s.ctx, "abc123"), "deleting twice is fine")
}

func (s *StoreTestSuite) TestDeleteExpiredSessions() {
	user, err := s.store.CreateUser(s.ctx, "a@x.com", "A", "digest")
	s.Require().NoError(err)

	now := time.Now().UTC()
	s.Require().NoError(s.store.CreateSession(s.ctx, &models.Session{UserID: user.ID, TokenHash: "old", ExpiresAt: now.Add(-time.Hour)}))
	s.Require().NoError(s.store.CreateSession(s.ctx, &models.Session{UserID: user.ID, TokenHash: "fresh", ExpiresAt: now.Add(time.Hour)}))

	n, err := s.store.DeleteExpiredSessions(s.ctx, now)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	_, err = s.store.GetSessionByTokenHash(s.ctx, "old")
	s.ErrorIs(err, ErrNotFound)
	_, err = s.store.GetSessionByTokenHash(s.ctx, "fresh")
	s.NoError(err)
}

func (s *StoreTestSuite) TestListings() {
	_, err := s.db.Exec(`INSERT INTO categories (name) VALUES ('Apple'), ('Samsung')`)
	s.Require().NoError(err)
	_, err = s.db.Exec(`INSERT INTO products (name, description, price, category_id, image_key) VALUES
		('iPhone', 'phone', 999.5, 1, 'img/iphone.png'),
		('Cable', '', 5, NULL, '')`)
	s.Require().NoError(err)
	_, err = s.db.Exec(`INSERT INTO clients (name, email, phone) VALUES ('Jane', 'jane@x.com', '555')`)
	s.Require().NoError(err)

	categories, err := s.store.ListCategories(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(categories, 2)
	s.Equal("Apple", categories[0].Name)

	products, err := s.store.ListProducts(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(products, 2)
	s.Equal("iPhone", products[0].Name)
	s.Equal("Apple", products[0].CategoryName)
	s.InDelta(999.5, products[0].Price, 0.001)
	s.Require().NotNil(products[0].CategoryID)
	s.Equal(int64(1), *products[0].CategoryID)
	s.Nil(products[1].CategoryID)
	s.Empty(products[1].CategoryName)

	clients, err := s.store.ListClients(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(clients, 1)
	s.Equal("jane@x.com", clients[0].Email)
	s.False(clients[0].CreatedAt.IsZero())
}

func (s *StoreTestSuite) TestEmptyListings() {
	products, err := s.store.ListProducts(s.ctx)
	s.Require().NoError(err)
	s.Empty(products)
	s.NotNil(products)
}
