package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/isdelr/listings-be/internal/models"
	"github.com/rs/zerolog/log"
)

type contextKey string

// UserKey is the context key for the authenticated principal.
const UserKey = contextKey("user")

// TokenVerifier verifies a bearer token and returns its subject.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// PrincipalResolver looks up the principal named by a token subject.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, username string) (models.User, error)
}

// UserFromContext returns the principal stored by Middleware.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(UserKey).(models.User)
	return user, ok
}

// Middleware protects routes with bearer token authentication. Every failure
// is answered with the same 401; the reason is only logged.
func Middleware(verifier TokenVerifier, resolver PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := BearerToken(r)
			if !ok {
				Unauthenticated(w, "Not authenticated")
				return
			}

			subject, err := verifier.Verify(tokenStr)
			if err != nil {
				log.Warn().Err(err).Str("path", r.URL.Path).Msg("Rejected bearer token")
				Unauthenticated(w, "Could not validate credentials")
				return
			}

			user, err := resolver.ResolvePrincipal(r.Context(), subject)
			if err != nil {
				log.Warn().Err(err).Str("subject", subject).Msg("Token subject could not be resolved")
				Unauthenticated(w, "Could not validate credentials")
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, user.Sanitized())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Unauthenticated writes a 401 challenge with a JSON detail body.
func Unauthenticated(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(map[string]string{"detail": detail}); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
