package store

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/storeadmin-io/storeadmin/internal/database"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicateEmail is returned when a user insert hits the email unique constraint.
	ErrDuplicateEmail = errors.New("store: email already registered")
)

// Store handles all database operations
type Store struct {
	db     *sql.DB
	dbType string
}

// New creates a new store instance
func New(db *database.DB) *Store {
	return &Store{db: db.DB, dbType: db.Type}
}

// NewWithDB builds a store over an already opened handle, e.g. a sqlmock.
func NewWithDB(db *sql.DB, dbType string) *Store {
	return &Store{db: db, dbType: dbType}
}

func (s *Store) q(query string) string {
	return database.Rebind(s.dbType, query)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
