package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/listings-be/internal/models"
	"github.com/isdelr/listings-be/internal/store"
)

// CreateUserInput carries the fields accepted by the administrative create.
// ID and the timestamps are optional and generated when zero.
type CreateUserInput struct {
	ID        string
	Name      string
	Email     string
	Password  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	CreateUser(ctx context.Context, in CreateUserInput) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
}

// UserService provides business logic for user management.
type UserService struct {
	store  store.Store
	hasher PasswordHasher

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(s store.Store, hasher PasswordHasher) *UserService {
	return &UserService{store: s, hasher: hasher, NowFunc: time.Now}
}

// CreateUser stores a user, hashing the supplied password.
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (models.User, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.User{}, err
	}

	now := s.NowFunc().UTC()
	user := models.User{
		ID:           in.ID,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    in.CreatedAt.UTC(),
		UpdatedAt:    in.UpdatedAt.UTC(),
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if in.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if in.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	err = inTx(ctx, s.store, func(tx store.Tx) error {
		return insertUnique(tx, &user)
	})
	if err != nil {
		return models.User{}, err
	}
	return user.Sanitized(), nil
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := inTx(ctx, s.store, func(tx store.Tx) error {
		var txErr error
		user, txErr = tx.FindUserByID(id)
		if errors.Is(txErr, store.ErrNotFound) {
			return ErrNotFound
		}
		if txErr != nil {
			return storeErr(txErr)
		}
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	return user.Sanitized(), nil
}
