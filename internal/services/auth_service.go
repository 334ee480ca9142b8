package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/listings-be/internal/models"
	"github.com/isdelr/listings-be/internal/store"
	"github.com/rs/zerolog/log"
)

// PasswordHasher produces and checks password digests.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) (bool, error)
	NeedsRehash(digest string) bool
}

// TokenIssuer signs bearer tokens.
type TokenIssuer interface {
	Issue(subject string, ttl time.Duration) (string, error)
}

// Token is the response of a successful login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// AuthServiceProvider defines the interface for authentication services.
type AuthServiceProvider interface {
	Register(ctx context.Context, name, email, password string) (models.User, error)
	Login(ctx context.Context, username, password string) (Token, error)
	ResolvePrincipal(ctx context.Context, username string) (models.User, error)
	EnsureUser(ctx context.Context, name, email, password string) error
}

// AuthService implements registration, login and token subject resolution.
type AuthService struct {
	store    store.Store
	hasher   PasswordHasher
	tokens   TokenIssuer
	tokenTTL time.Duration

	// comparisonHash is verified against when no user was found, so that
	// unknown and known usernames take the same time to reject.
	comparisonHash string

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(s store.Store, hasher PasswordHasher, tokens TokenIssuer, tokenTTL time.Duration) (*AuthService, error) {
	if tokenTTL <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", tokenTTL)
	}

	random := make([]byte, 16)
	if _, err := rand.Read(random); err != nil {
		return nil, err
	}
	hash, err := hasher.Hash(hex.EncodeToString(random))
	if err != nil {
		return nil, err
	}

	return &AuthService{
		store:          s,
		hasher:         hasher,
		tokens:         tokens,
		tokenTTL:       tokenTTL,
		comparisonHash: hash,
		NowFunc:        time.Now,
	}, nil
}

// Register creates a principal. Nothing is written when the email or the
// name is already taken.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (models.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, err
	}

	now := s.NowFunc().UTC()
	user := models.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = inTx(ctx, s.store, func(tx store.Tx) error {
		return insertUnique(tx, &user)
	})
	if err != nil {
		return models.User{}, err
	}
	return user.Sanitized(), nil
}

// Login checks the credentials and issues a bearer token for the principal.
func (s *AuthService) Login(ctx context.Context, username, password string) (Token, error) {
	user, err := s.authenticate(ctx, username, password)
	if err != nil {
		return Token{}, err
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, password)
	}

	accessToken, err := s.tokens.Issue(user.Name, s.tokenTTL)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: accessToken, TokenType: "bearer"}, nil
}

// ResolvePrincipal returns the principal a token subject refers to.
func (s *AuthService) ResolvePrincipal(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := inTx(ctx, s.store, func(tx store.Tx) error {
		var txErr error
		user, txErr = tx.FindUserByUsername(username)
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

// EnsureUser registers the principal unless one with the same name exists.
// It is used to seed the configured demo account.
func (s *AuthService) EnsureUser(ctx context.Context, name, email, password string) error {
	_, err := s.ResolvePrincipal(ctx, name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	_, err = s.Register(ctx, name, email, password)
	return err
}

func (s *AuthService) authenticate(ctx context.Context, username, password string) (models.User, error) {
	var user models.User
	err := inTx(ctx, s.store, func(tx store.Tx) error {
		var txErr error
		if strings.Contains(username, "@") {
			user, txErr = tx.FindUserByEmail(username)
		} else {
			user, txErr = tx.FindUserByUsername(username)
		}
		if errors.Is(txErr, store.ErrNotFound) {
			return ErrNotFound
		}
		if txErr != nil {
			return storeErr(txErr)
		}
		return nil
	})

	if errors.Is(err, ErrNotFound) {
		_, _ = s.hasher.Verify(password, s.comparisonHash)
		return models.User{}, ErrUnauthorized
	}
	if err != nil {
		return models.User{}, err
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Stored password digest is unreadable")
		return models.User{}, ErrUnauthorized
	}
	if !ok {
		return models.User{}, ErrUnauthorized
	}
	return user, nil
}

// rehash upgrades the stored digest to the current hashing parameters.
// Failures are logged; the login itself has already succeeded.
func (s *AuthService) rehash(ctx context.Context, user models.User, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to rehash password")
		return
	}

	err = inTx(ctx, s.store, func(tx store.Tx) error {
		return tx.UpdatePasswordHash(user.ID, hash, s.NowFunc().UTC())
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to store rehashed password")
		return
	}
	log.Info().Str("user_id", user.ID).Msg("Upgraded password digest")
}

// insertUnique inserts u after checking that its email, name and id are free.
func insertUnique(tx store.Tx, u *models.User) error {
	if _, err := tx.FindUserByEmail(u.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return storeErr(err)
	}

	if _, err := tx.FindUserByUsername(u.Name); err == nil {
		return ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return storeErr(err)
	}

	if _, err := tx.FindUserByID(u.ID); err == nil {
		return ErrIDTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return storeErr(err)
	}

	err := tx.InsertUser(u)
	if errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	if err != nil {
		return storeErr(err)
	}
	return nil
}
