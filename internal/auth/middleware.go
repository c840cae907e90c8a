package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// ClaimsKey is the context key for JWT claims
	ClaimsKey contextKey = "claims"
	// IdentityKey is the context key for the authenticated caller
	IdentityKey contextKey = "identity"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ClaimsFromContext extracts the JWT claims from the request context
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(ClaimsKey).(*Claims); ok {
		return claims
	}
	return nil
}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(Identity)
	return id, ok && id.ID != ""
}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// Public paths that don't require authentication
var publicPaths = map[string]bool{
	"/health":            true,
	"/metrics":           true,
	"/api/auth/login":    true,
	"/api/auth/register": true,
}

// isPublicPath checks if the given path is public (no auth required)
func isPublicPath(path string) bool {
	return publicPaths[path]
}

// sendErrorResponse sends a standardized error response
func sendErrorResponse(w http.ResponseWriter, message, code string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := ErrorResponse{
		Error: message,
		Code:  code,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// sendTokenExpirationWarning adds a warning header when token expires soon
func sendTokenExpirationWarning(w http.ResponseWriter, claims *Claims) {
	if claims.ExpiresAt == nil || !claims.IsExpiringSoon(time.Hour) {
		return
	}
	timeUntilExpiry := time.Until(claims.ExpiresAt.Time)
	if timeUntilExpiry > 0 {
		w.Header().Set("X-Token-Expires-At", claims.ExpiresAt.Time.Format(time.RFC3339))
		w.Header().Set("X-Token-Expires-In", timeUntilExpiry.Round(time.Second).String())
	}
}

// validateTokenFormat performs basic token format validation
func validateTokenFormat(tokenString string) error {
	if len(tokenString) == 0 {
		return errors.New("token cannot be empty")
	}
	if len(tokenString) > 8192 { // 8KB limit
		return errors.New("token size exceeds maximum allowed")
	}
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return errors.New("invalid JWT token format")
	}
	return nil
}

// classify maps a token validation failure to a response message and code.
// The message never echoes the underlying parser error.
func classify(err error) (string, string) {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "Token has expired", "TOKEN_EXPIRED"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "Invalid token signature", "INVALID_SIGNATURE"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "Token is malformed", "MALFORMED_TOKEN"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "Invalid token signing method", "INVALID_SIGNING_METHOD"
	}
	return "Invalid or expired token", "INVALID_TOKEN"
}

// AuthMiddleware validates JWT tokens and sets user context
func AuthMiddleware(jwtManager *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				sendErrorResponse(w, "Authorization header required", "MISSING_AUTH_HEADER", http.StatusUnauthorized)
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				sendErrorResponse(w, "Invalid authorization header format. Expected: Bearer <token>", "INVALID_AUTH_FORMAT", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			if tokenString == "" {
				sendErrorResponse(w, "Token is required", "MISSING_TOKEN", http.StatusUnauthorized)
				return
			}

			if err := validateTokenFormat(tokenString); err != nil {
				sendErrorResponse(w, "Invalid token format", "INVALID_TOKEN_FORMAT", http.StatusUnauthorized)
				return
			}

			claims, err := jwtManager.ValidateToken(tokenString)
			if err != nil {
				msg, code := classify(err)
				sendErrorResponse(w, msg, code, http.StatusUnauthorized)
				return
			}

			if strings.TrimSpace(claims.Subject) == "" {
				sendErrorResponse(w, "Invalid user ID in token", "INVALID_USER_ID", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			ctx = WithIdentity(ctx, claims.Identity())

			sendTokenExpirationWarning(w, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
