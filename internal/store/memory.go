package store

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/isdelr/listings-be/internal/models"
)

// MemoryStore keeps users in process memory. Transactions are serialized:
// BeginTx holds the store lock until Commit or Rollback.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]models.User)}
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) BeginTx(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	working := make(map[string]models.User, len(s.users))
	for id, u := range s.users {
		working[id] = u
	}
	return &memoryTx{store: s, users: working}, nil
}

type memoryTx struct {
	store *MemoryStore
	users map[string]models.User
	done  bool
}

func (t *memoryTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.store.users = t.users
	t.store.mu.Unlock()
	return nil
}

func (t *memoryTx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (t *memoryTx) FindUserByID(id string) (models.User, error) {
	return t.find(func(u models.User) bool { return u.ID == id })
}

func (t *memoryTx) FindUserByEmail(email string) (models.User, error) {
	return t.find(func(u models.User) bool { return u.Email == email })
}

func (t *memoryTx) FindUserByUsername(name string) (models.User, error) {
	return t.find(func(u models.User) bool { return u.Name == name })
}

func (t *memoryTx) InsertUser(u *models.User) error {
	if t.done {
		return sql.ErrTxDone
	}
	for _, existing := range t.users {
		if existing.ID == u.ID || existing.Email == u.Email || existing.Name == u.Name {
			return ErrConflict
		}
	}
	t.users[u.ID] = *u
	return nil
}

func (t *memoryTx) UpdatePasswordHash(id, hash string, updatedAt time.Time) error {
	if t.done {
		return sql.ErrTxDone
	}
	u, ok := t.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = updatedAt
	t.users[id] = u
	return nil
}

func (t *memoryTx) find(match func(models.User) bool) (models.User, error) {
	if t.done {
		return models.User{}, sql.ErrTxDone
	}
	for _, u := range t.users {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, ErrNotFound
}
