package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"procurement-api/internal/apperr"
	"procurement-api/internal/logging"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// ClaimsKey is the context key for JWT claims
const ClaimsKey contextKey = "claims"

// Error codes specific to token checks.
const (
	CodeMissingAuthHeader       = "MISSING_AUTH_HEADER"
	CodeInvalidAuthFormat       = "INVALID_AUTH_FORMAT"
	CodeInvalidTokenFormat      = "INVALID_TOKEN_FORMAT"
	CodeTokenExpired            = "TOKEN_EXPIRED"
	CodeInvalidSigningMethod    = "INVALID_SIGNING_METHOD"
	CodeMalformedToken          = "MALFORMED_TOKEN"
	CodeInvalidToken            = "INVALID_TOKEN"
	CodeNoRoles                 = "NO_ROLES"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
)

const maxTokenSize = 8192

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, c)
}

// ClaimsFromContext extracts the JWT claims from the request context
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(ClaimsKey).(*Claims); ok {
		return claims
	}
	return nil
}

// UserIDFromContext extracts the user ID from the request context
func UserIDFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.UserID()
	}
	return ""
}

func deny(w http.ResponseWriter, status int, code, message string) {
	apperr.WriteError(w, &apperr.AppError{Status: status, Code: code, Message: message})
}

// sendTokenExpirationWarning adds a warning header when token expires soon
func sendTokenExpirationWarning(w http.ResponseWriter, expiresAt time.Time) {
	timeUntilExpiry := time.Until(expiresAt)
	if timeUntilExpiry <= time.Hour && timeUntilExpiry > 0 {
		w.Header().Set("X-Token-Expires-At", expiresAt.Format(time.RFC3339))
		w.Header().Set("X-Token-Expires-In", timeUntilExpiry.Round(time.Second).String())
	}
}

// validateTokenFormat performs basic token format validation
func validateTokenFormat(tokenString string) error {
	if len(tokenString) == 0 {
		return errors.New("token cannot be empty")
	}
	if len(tokenString) > maxTokenSize {
		return errors.New("token size exceeds maximum allowed")
	}
	if strings.Count(tokenString, ".") != 2 {
		return errors.New("invalid JWT token format")
	}
	return nil
}

// classify maps a token validation error to an envelope code and message.
func classify(err error) (string, string) {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return CodeTokenExpired, "Token has expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return CodeInvalidSigningMethod, "Invalid token signing method"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return CodeMalformedToken, "Token is malformed"
	default:
		return CodeInvalidToken, "Invalid or expired token"
	}
}

// AuthMiddleware validates bearer tokens and stores the claims in the request context.
func AuthMiddleware(jwtManager *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				deny(w, http.StatusUnauthorized, CodeMissingAuthHeader, "Authorization header required")
				return
			}

			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				deny(w, http.StatusUnauthorized, CodeInvalidAuthFormat, "Invalid authorization header format. Expected: Bearer <token>")
				return
			}
			tokenString = strings.TrimSpace(tokenString)

			if err := validateTokenFormat(tokenString); err != nil {
				deny(w, http.StatusUnauthorized, CodeInvalidTokenFormat, "Invalid token format: "+err.Error())
				return
			}

			claims, err := jwtManager.ValidateToken(tokenString)
			if err != nil {
				code, msg := classify(err)
				logging.FromContext(r.Context()).Debug("token rejected", zap.String("code", code), zap.Error(err))
				deny(w, http.StatusUnauthorized, code, msg)
				return
			}

			if claims.UserID() == "" {
				deny(w, http.StatusUnauthorized, CodeInvalidToken, "Invalid user ID in token")
				return
			}
			if len(claims.Roles) == 0 {
				deny(w, http.StatusUnauthorized, CodeNoRoles, "No roles assigned to user")
				return
			}

			if claims.ExpiresAt != nil {
				sendTokenExpirationWarning(w, claims.ExpiresAt.Time)
			}

			ctx := WithClaims(r.Context(), claims)
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With(zap.String("user_id", claims.UserID())))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MustRole creates middleware that requires any of the given roles
func MustRole(requiredRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				apperr.WriteError(w, apperr.Unauthorized("Authentication required"))
				return
			}

			if len(requiredRoles) == 0 {
				apperr.WriteError(w, apperr.Internal(nil, "no roles specified for this endpoint"))
				return
			}

			if !claims.HasRole(requiredRoles...) {
				deny(w, http.StatusForbidden, CodeInsufficientPermissions, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
