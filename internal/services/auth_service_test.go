package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/isdelr/listings-be/internal/auth"
	"github.com/isdelr/listings-be/internal/database"
	"github.com/isdelr/listings-be/internal/models"
	"github.com/isdelr/listings-be/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var (
	testSecret = []byte("test-secret-key-must-be-32-bytes")
	testNow    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

// countingStore records the number of inserts and digest updates that reach
// the underlying store.
type countingStore struct {
	store.Store
	inserts int
	updates int
}

func (s *countingStore) BeginTx(ctx context.Context) (store.Tx, error) {
	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &countingTx{Tx: tx, s: s}, nil
}

type countingTx struct {
	store.Tx
	s *countingStore
}

func (t *countingTx) InsertUser(u *models.User) error {
	t.s.inserts++
	return t.Tx.InsertUser(u)
}

func (t *countingTx) UpdatePasswordHash(id, hash string, updatedAt time.Time) error {
	t.s.updates++
	return t.Tx.UpdatePasswordHash(id, hash, updatedAt)
}

func newHasher(t *testing.T, cost int) *auth.Hasher {
	t.Helper()
	cfg := auth.DefaultHasherConfig()
	cfg.BcryptCost = cost
	h, err := auth.NewHasher(cfg)
	require.NoError(t, err)
	return h
}

func newTokens(t *testing.T) *auth.TokenManager {
	t.Helper()
	m, err := auth.NewTokenManager(testSecret, "HS256", auth.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return m
}

func newAuthService(t *testing.T, s store.Store, cost int) *AuthService {
	t.Helper()
	svc, err := NewAuthService(s, newHasher(t, cost), newTokens(t), 15*time.Minute)
	require.NoError(t, err)
	svc.NowFunc = func() time.Time { return testNow }
	return svc
}

func storedUser(t *testing.T, s store.Store, email string) models.User {
	t.Helper()
	tx, err := s.BeginTx(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	u, err := tx.FindUserByEmail(email)
	require.NoError(t, err)
	return u
}

func TestAuthService_Register(t *testing.T) {
	s := &countingStore{Store: store.NewMemoryStore()}
	svc := newAuthService(t, s, bcrypt.MinCost)

	user, err := svc.Register(context.Background(), "Alice", "a@x.com", "pw1")
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "a@x.com", user.Email)
	assert.Empty(t, user.PasswordHash)
	assert.Equal(t, testNow, user.CreatedAt)
	assert.Equal(t, testNow, user.UpdatedAt)
	assert.Equal(t, 1, s.inserts)

	stored := storedUser(t, s, "a@x.com")
	assert.Equal(t, user.ID, stored.ID)
	assert.NotEqual(t, "pw1", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("pw1")))
}

func TestAuthService_RegisterConflict(t *testing.T) {
	s := &countingStore{Store: store.NewMemoryStore()}
	svc := newAuthService(t, s, bcrypt.MinCost)

	first, err := svc.Register(context.Background(), "Alice", "a@x.com", "pw1")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "Alicia", "a@x.com", "pw2")
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.Register(context.Background(), "Alice", "other@x.com", "pw2")
	assert.ErrorIs(t, err, ErrUsernameTaken)
	assert.ErrorIs(t, err, ErrConflict)

	assert.Equal(t, 1, s.inserts)
	stored := storedUser(t, s, "a@x.com")
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, "Alice", stored.Name)
}

func TestAuthService_RegisterRejectsOversizedPassword(t *testing.T) {
	s := &countingStore{Store: store.NewMemoryStore()}
	svc := newAuthService(t, s, bcrypt.MinCost)

	_, err := svc.Register(context.Background(), "Alice", "a@x.com", string(make([]byte, 100)))
	assert.ErrorIs(t, err, auth.ErrEncoding)
	assert.Zero(t, s.inserts)
}

func TestAuthService_Login(t *testing.T) {
	s := store.NewMemoryStore()
	svc := newAuthService(t, s, bcrypt.MinCost)
	tokens := newTokens(t)

	_, err := svc.Register(context.Background(), "Alice", "a@x.com", "pw1")
	require.NoError(t, err)

	for _, username := range []string{"Alice", "a@x.com"} {
		t.Run(username, func(t *testing.T) {
			token, err := svc.Login(context.Background(), username, "pw1")
			require.NoError(t, err)
			assert.Equal(t, "bearer", token.TokenType)

			subject, err := tokens.Verify(token.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, "Alice", subject)
		})
	}
}

func TestAuthService_LoginFailures(t *testing.T) {
	s := store.NewMemoryStore()
	svc := newAuthService(t, s, bcrypt.MinCost)

	_, err := svc.Register(context.Background(), "Alice", "a@x.com", "pw1")
	require.NoError(t, err)

	tests := map[string]struct {
		username string
		password string
	}{
		"wrong password":  {"Alice", "pw2"},
		"empty password":  {"Alice", ""},
		"unknown user":    {"Bob", "pw1"},
		"unknown email":   {"b@x.com", "pw1"},
		"case mismatched": {"alice", "pw1"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			token, err := svc.Login(context.Background(), tc.username, tc.password)
			assert.ErrorIs(t, err, ErrUnauthorized)
			assert.Empty(t, token.AccessToken)
		})
	}
}

func TestAuthService_LoginWithCorruptDigest(t *testing.T) {
	s := store.NewMemoryStore()
	tx, err := s.BeginTx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.InsertUser(&models.User{ID: "u-1", Name: "Alice", Email: "a@x.com", PasswordHash: "pw1"}))
	require.NoError(t, tx.Commit())

	svc := newAuthService(t, s, bcrypt.MinCost)
	_, err = svc.Login(context.Background(), "Alice", "pw1")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthService_LoginUpgradesDigest(t *testing.T) {
	s := &countingStore{Store: store.NewMemoryStore()}

	old := newAuthService(t, s, bcrypt.MinCost)
	_, err := old.Register(context.Background(), "Alice", "a@x.com", "pw1")
	require.NoError(t, err)

	upgraded := newAuthService(t, s, bcrypt.MinCost+1)
	_, err = upgraded.Login(context.Background(), "Alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.updates)

	cost, err := bcrypt.Cost([]byte(storedUser(t, s, "a@x.com").PasswordHash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)

	// Once upgraded the digest is left alone.
	_, err = upgraded.Login(context.Background(), "Alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.updates)
}

func TestAuthService_ResolvePrincipal(t *testing.T) {
	s := store.NewMemoryStore()
	svc := newAuthService(t, s, bcrypt.MinCost)

	registered, err := svc.Register(context.Background(), "Alice", "a@x.com", "pw1")
	require.NoError(t, err)

	user, err := svc.ResolvePrincipal(context.Background(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.Empty(t, user.PasswordHash)

	_, err = svc.ResolvePrincipal(context.Background(), "Bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuthService_EnsureUser(t *testing.T) {
	s := &countingStore{Store: store.NewMemoryStore()}
	svc := newAuthService(t, s, bcrypt.MinCost)

	require.NoError(t, svc.EnsureUser(context.Background(), "ubuntu", "ubuntu@localhost", "demo-pass"))
	require.NoError(t, svc.EnsureUser(context.Background(), "ubuntu", "ubuntu@localhost", "demo-pass"))
	assert.Equal(t, 1, s.inserts)

	_, err := svc.Login(context.Background(), "ubuntu", "demo-pass")
	assert.NoError(t, err)
}

func TestAuthService_StoreFailures(t *testing.T) {
	ioErr := errors.New("disk I/O error")

	tests := map[string]func(mock sqlmock.Sqlmock){
		"begin fails": func(mock sqlmock.Sqlmock) {
			mock.ExpectBegin().WillReturnError(ioErr)
		},
		"lookup fails": func(mock sqlmock.Sqlmock) {
			mock.ExpectBegin()
			mock.ExpectQuery("SELECT (.+) FROM users WHERE email = ?").WillReturnError(ioErr)
			mock.ExpectRollback()
		},
		"insert fails": func(mock sqlmock.Sqlmock) {
			mock.ExpectBegin()
			mock.ExpectQuery("SELECT (.+) FROM users WHERE email = ?").WillReturnRows(sqlmock.NewRows(nil))
			mock.ExpectQuery("SELECT (.+) FROM users WHERE name = ?").WillReturnRows(sqlmock.NewRows(nil))
			mock.ExpectQuery("SELECT (.+) FROM users WHERE id = ?").WillReturnRows(sqlmock.NewRows(nil))
			mock.ExpectExec("INSERT INTO users").WillReturnError(ioErr)
			mock.ExpectRollback()
		},
		"commit fails": func(mock sqlmock.Sqlmock) {
			mock.ExpectBegin()
			mock.ExpectQuery("SELECT (.+) FROM users WHERE email = ?").WillReturnRows(sqlmock.NewRows(nil))
			mock.ExpectQuery("SELECT (.+) FROM users WHERE name = ?").WillReturnRows(sqlmock.NewRows(nil))
			mock.ExpectQuery("SELECT (.+) FROM users WHERE id = ?").WillReturnRows(sqlmock.NewRows(nil))
			mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit().WillReturnError(ioErr)
		},
	}

	for name, setup := range tests {
		t.Run(name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			t.Cleanup(func() { db.Close() })

			svc, err := NewAuthService(store.NewSQLStore(db, database.DriverSQLite), newHasher(t, bcrypt.MinCost), newTokens(t), time.Minute)
			require.NoError(t, err)

			setup(mock)
			_, err = svc.Register(context.Background(), "Alice", "a@x.com", "pw1")
			assert.ErrorIs(t, err, ErrStore)
			assert.ErrorIs(t, err, ioErr)
			assert.NotErrorIs(t, err, ErrConflict)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestNewAuthService_InvalidTTL(t *testing.T) {
	_, err := NewAuthService(store.NewMemoryStore(), newHasher(t, bcrypt.MinCost), newTokens(t), 0)
	assert.Error(t, err)
}
