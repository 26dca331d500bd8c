package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kuitang/notewise/internal/errs"
	"github.com/kuitang/notewise/internal/obs"
)

// Context keys for auth data
type contextKey string

const (
	userIDKey contextKey = "userID"
)

// Middleware authenticates requests with bearer access tokens.
type Middleware struct {
	tokens *Tokens
	realm  string
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(tokens *Tokens, realm string) *Middleware {
	return &Middleware{tokens: tokens, realm: realm}
}

// RequireAuth is middleware that requires a valid bearer token.
// Returns 401 with a WWW-Authenticate challenge if the token is absent or invalid.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r)
		if err != nil {
			m.unauthorized(w, r, "", err)
			return
		}

		claims, err := m.tokens.Verify(token)
		if err != nil {
			m.unauthorized(w, r, "invalid_token", err)
			return
		}

		ctx := WithUserID(r.Context(), claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithUserID stores the authenticated user id in ctx, including the log
// correlation fields.
func WithUserID(ctx context.Context, userID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return obs.WithUserID(ctx, userID)
}

// UserIDFromContext retrieves the authenticated user id from the request context.
// Returns the user ID and true if present, or empty string and false if not authenticated.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// extractBearerToken extracts the Bearer token from the Authorization header.
func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrNoToken
	}

	const bearerPrefix = "Bearer "
	if len(authHeader) < len(bearerPrefix) || !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		return "", fmt.Errorf("%w: expected Bearer scheme", ErrMalformedToken)
	}

	token := strings.TrimSpace(authHeader[len(bearerPrefix):])
	if token == "" {
		return "", ErrNoToken
	}

	return token, nil
}

// unauthorized writes a 401 response with a WWW-Authenticate challenge
// (RFC 6750) and a JSON error body. Token details are logged, not returned.
func (m *Middleware) unauthorized(w http.ResponseWriter, r *http.Request, errorType string, cause error) {
	obs.From(r.Context()).Info("auth_rejected", "reason", cause.Error())

	challenge := fmt.Sprintf(`Bearer realm="%s"`, m.realm)
	if errorType != "" {
		description := "the access token is invalid"
		if errors.Is(cause, ErrTokenExpired) {
			description = "the access token expired"
		}
		challenge += fmt.Sprintf(`, error="%s", error_description="%s"`, errorType, description)
	}
	w.Header().Set("WWW-Authenticate", challenge)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "authentication required",
		"code":  string(errs.Unauthenticated),
	})
}
