package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// Authenticator decides whether a request may reach the market data API.
// Identity management lives in the marketplace platform; this server only
// verifies the credential it is handed.
type Authenticator interface {
	Authenticate(r *http.Request) error
}

// AuthError carries the message returned to rejected callers.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// TokenAuthenticator checks a static bearer token.
type TokenAuthenticator struct {
	token string
}

// NewTokenAuthenticator creates a new token authenticator
func NewTokenAuthenticator(token string) *TokenAuthenticator {
	return &TokenAuthenticator{token: token}
}

// Authenticate verifies the Authorization header against the configured token.
func (a *TokenAuthenticator) Authenticate(r *http.Request) error {
	header := r.Header.Get("Authorization")
	if header == "" {
		return &AuthError{Message: "Authorization required"}
	}

	token := strings.TrimPrefix(header, "Bearer ")
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
		return &AuthError{Message: "Invalid token"}
	}

	return nil
}

// PassthroughAuthenticator accepts every request. Used when no API token is
// configured (local development, or auth terminated upstream).
type PassthroughAuthenticator struct{}

// Authenticate always succeeds.
func (PassthroughAuthenticator) Authenticate(r *http.Request) error { return nil }

// AuthMiddleware rejects requests the authenticator refuses with a 401.
func AuthMiddleware(auth Authenticator, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := auth.Authenticate(r); err != nil {
				log.Warn().Str("path", r.URL.Path).Msg("Rejected unauthenticated request")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"success":false,"error":"` + err.Error() + `"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
