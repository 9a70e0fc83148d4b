package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"portfolio-backend/internal/shared/auth"
	"portfolio-backend/internal/shared/server/respond"
	"portfolio-backend/internal/shared/telemetry"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = "session"

// UnauthenticatedMessage is shown when an action needs a signed-in user.
const UnauthenticatedMessage = "User not authenticated. Please sign in again."

const (
	userIDKey      = "userId"
	userEmailKey   = "userEmail"
	userNameKey    = "userName"
	userPictureKey = "userPicture"
	claimsKey      = "sessionClaims"
)

// Auth resolves the session token from the Authorization header or the session cookie.
// Requests without a token continue anonymously; a bad or revoked token is rejected.
func Auth(signer *auth.Signer, revoked auth.RevocationList) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		token, ok := tokenFromRequest(c)
		if !ok {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		if token == "" {
			c.Next()
			return
		}

		claims, err := signer.Verify(token)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		if revoked != nil && claims.ID != "" {
			isRevoked, err := revoked.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				// Fail open; the signature and expiry already checked out.
				telemetry.Warn("auth.revocation_check_failed", map[string]any{
					"request_id": RequestIDFromContext(c),
					"err":        err,
				})
			} else if isRevoked {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", "session has ended", nil)
				return
			}
		}

		c.Set(claimsKey, claims)
		c.Set(userIDKey, claims.Subject)
		if claims.Email != "" {
			c.Set(userEmailKey, claims.Email)
		}
		if claims.Name != "" {
			c.Set(userNameKey, claims.Name)
		}
		if claims.Picture != "" {
			c.Set(userPictureKey, claims.Picture)
		}
		c.Next()
	}
}

// RequireUser rejects anonymous requests.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserIDFromContext(c) == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthenticated", UnauthenticatedMessage, nil)
			return
		}
		c.Next()
	}
}

// tokenFromRequest returns ok=false for a malformed Authorization header.
func tokenFromRequest(c *gin.Context) (string, bool) {
	if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
		if !strings.HasPrefix(header, "Bearer ") {
			return "", false
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
		return token, token != ""
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(cookie), true
	}
	return "", true
}

// ClaimsFromContext returns the verified session claims, or nil for anonymous requests.
func ClaimsFromContext(c *gin.Context) *auth.Claims {
	if c == nil {
		return nil
	}
	val, _ := c.Get(claimsKey)
	claims, _ := val.(*auth.Claims)
	return claims
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	return stringFromContext(c, userIDKey)
}

// UserEmailFromContext fetches the user email set by the auth middleware.
func UserEmailFromContext(c *gin.Context) string {
	return stringFromContext(c, userEmailKey)
}

// UserNameFromContext fetches the user display name set by the auth middleware.
func UserNameFromContext(c *gin.Context) string {
	return stringFromContext(c, userNameKey)
}

// UserPictureFromContext fetches the user picture set by the auth middleware.
func UserPictureFromContext(c *gin.Context) string {
	return stringFromContext(c, userPictureKey)
}

func stringFromContext(c *gin.Context, key string) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(key)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
