package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretBytes is the shortest HMAC secret accepted.
const MinSecretBytes = 32

// Claims is the claim set carried by a bearer token. Only registered claims
// are used: sub, exp, iat and jti.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HMAC-signed bearer tokens.
// It is read-only after construction and safe for concurrent use.
type TokenManager struct {
	method *jwt.SigningMethodHMAC
	key    []byte
	now    func() time.Time
}

// TokenOption configures a TokenManager.
type TokenOption func(*TokenManager)

// WithClock replaces the clock used for issuing and validating tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewTokenManager returns a TokenManager for an HS256, HS384 or HS512 secret.
// Any configuration problem is reported as ErrSigning.
func NewTokenManager(secret []byte, algorithm string, opts ...TokenOption) (*TokenManager, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: secret key is not set", ErrSigning)
	}
	if len(secret) < MinSecretBytes {
		return nil, fmt.Errorf("%w: secret key must be at least %d bytes", ErrSigning, MinSecretBytes)
	}

	var method *jwt.SigningMethodHMAC
	switch algorithm {
	case jwt.SigningMethodHS256.Alg():
		method = jwt.SigningMethodHS256
	case jwt.SigningMethodHS384.Alg():
		method = jwt.SigningMethodHS384
	case jwt.SigningMethodHS512.Alg():
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrSigning, algorithm)
	}

	key := make([]byte, len(secret))
	copy(key, secret)

	m := &TokenManager{
		method: method,
		key:    key,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Issue creates a signed token for subject that expires after ttl.
func (m *TokenManager) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrSigning)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("%w: ttl must be positive", ErrSigning)
	}

	// Claims carry whole seconds, so the issue time is truncated to match iat.
	now := m.now().Truncate(time.Second)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSigning, err)
	}
	return signed, nil
}

// Verify checks the token signature and expiry and returns its subject.
func (m *TokenManager) Verify(tokenStr string) (string, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
		jwt.WithStrictDecoding(),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		// The algorithm is already pinned by WithValidMethods.
		return m.key, nil
	})
	if err != nil {
		return "", mapJWTError(token, err)
	}
	if !token.Valid {
		return "", tokenError(ErrTokenMalformed, errors.New("token is not valid"))
	}
	if claims.Subject == "" {
		return "", tokenError(ErrTokenMissingSubject, errors.New("sub claim is empty"))
	}
	return claims.Subject, nil
}

func tokenError(kind, cause error) error {
	return fmt.Errorf("%w: %w: %w", ErrUnauthenticated, kind, cause)
}

// mapJWTError translates jwt library errors to the package's token errors.
// A signature segment that fails strict decoding after a valid header and
// claims has been altered, so it counts as an invalid signature.
func mapJWTError(token *jwt.Token, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return tokenError(ErrTokenInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenMalformed) && token != nil && token.Method != nil && errors.As(err, new(base64.CorruptInputError)):
		return tokenError(ErrTokenInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return tokenError(ErrTokenExpired, err)
	default:
		return tokenError(ErrTokenMalformed, err)
	}
}
