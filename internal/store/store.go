// Package store provides transactional access to persisted principals.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/isdelr/listings-be/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("unique constraint violated")
)

// Store hands out transactions over the user records.
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)
	Ping(ctx context.Context) error
}

// Tx is a transaction. If any Find/Insert/Update method errors the
// transaction is considered failed and should be rolled back.
// Tx is not safe for concurrent use.
type Tx interface {
	Commit() error
	Rollback() error

	// FindUserByID, FindUserByEmail and FindUserByUsername return ErrNotFound
	// when no user matches.
	FindUserByID(id string) (models.User, error)
	FindUserByEmail(email string) (models.User, error)
	FindUserByUsername(name string) (models.User, error)

	// InsertUser returns ErrConflict if the id, email or name is taken.
	InsertUser(u *models.User) error

	// UpdatePasswordHash returns ErrNotFound if no user has the given id.
	UpdatePasswordHash(id, hash string, updatedAt time.Time) error
}
