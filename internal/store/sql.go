package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/isdelr/listings-be/internal/database"
	"github.com/isdelr/listings-be/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const userColumns = "id, name, email, password_hash, created_at, updated_at"

// SQLStore is a Store backed by database/sql.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQLStore wraps db. driver selects the placeholder dialect.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx, driver: s.driver}, nil
}

type sqlTx struct {
	tx     *sql.Tx
	driver string
}

func (t *sqlTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqlTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqlTx) FindUserByID(id string) (models.User, error) {
	return t.findOne("SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

func (t *sqlTx) FindUserByEmail(email string) (models.User, error) {
	return t.findOne("SELECT "+userColumns+" FROM users WHERE email = ?", email)
}

func (t *sqlTx) FindUserByUsername(name string) (models.User, error) {
	return t.findOne("SELECT "+userColumns+" FROM users WHERE name = ?", name)
}

func (t *sqlTx) InsertUser(u *models.User) error {
	_, err := t.tx.Exec(
		database.Rebind(t.driver, "INSERT INTO users("+userColumns+") VALUES(?, ?, ?, ?, ?, ?)"),
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	)
	return MapDBErr(err)
}

func (t *sqlTx) UpdatePasswordHash(id, hash string, updatedAt time.Time) error {
	res, err := t.tx.Exec(
		database.Rebind(t.driver, "UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?"),
		hash, updatedAt.UTC(), id,
	)
	if err != nil {
		return MapDBErr(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *sqlTx) findOne(query string, arg string) (models.User, error) {
	var u models.User
	row := t.tx.QueryRow(database.Rebind(t.driver, query), arg)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return models.User{}, MapDBErr(err)
	}
	return u, nil
}

// MapDBErr maps driver errors to ErrNotFound and ErrConflict.
// If err is nil, MapDBErr returns nil.
func MapDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var sErr *sqlite.Error
	if errors.As(err, &sErr) {
		switch code := sErr.Code(); {
		case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return ErrConflict
		case code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sErr.Error(), "UNIQUE constraint failed"):
			// Connections without extended result codes only report the primary code.
			return ErrConflict
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}

	return err
}
