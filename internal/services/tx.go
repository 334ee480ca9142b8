package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/isdelr/listings-be/internal/store"
)

var (
	ErrConflict      = errors.New("conflict")
	ErrEmailTaken    = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrUsernameTaken = fmt.Errorf("%w: username already taken", ErrConflict)
	ErrIDTaken       = fmt.Errorf("%w: id already in use", ErrConflict)
	ErrUnauthorized  = errors.New("incorrect username or password")
	ErrNotFound      = errors.New("user not found")

	// ErrStore wraps infrastructure failures of the store.
	ErrStore = errors.New("store failure")
)

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStore, err)
}

// inTx runs f inside a store transaction. The transaction is committed when f
// returns nil and rolled back otherwise.
func inTx(ctx context.Context, s store.Store, f func(tx store.Tx) error) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return storeErr(err)
	}

	err = f(tx)
	if err != nil {
		rBackErr := tx.Rollback()
		if rBackErr != nil {
			err = errors.Join(err, storeErr(rBackErr))
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return storeErr(err)
	}
	return nil
}
