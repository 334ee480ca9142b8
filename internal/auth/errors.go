package auth

import "errors"

// Password hashing errors.
var (
	// ErrEncoding is returned for input the hasher cannot process: empty or
	// oversized passwords and digests in an unknown or corrupt format.
	ErrEncoding = errors.New("password: encoding error")
)

// Token errors. Every verification failure also matches ErrUnauthenticated.
var (
	ErrUnauthenticated       = errors.New("token: unauthenticated")
	ErrTokenInvalidSignature = errors.New("token: invalid signature")
	ErrTokenExpired          = errors.New("token: expired")
	ErrTokenMalformed        = errors.New("token: malformed")
	ErrTokenMissingSubject   = errors.New("token: missing subject")

	// ErrSigning signals an unusable signing configuration or an unsignable claim set.
	ErrSigning = errors.New("token: signing error")
)
