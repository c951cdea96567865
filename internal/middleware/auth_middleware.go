package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bspcp/membership-backend/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MemberContextKey is the key used to store member information in Gin context
const MemberContextKey = "member"

// AdminContextKey is the key used to store admin information in Gin context
const AdminContextKey = "admin"

// MemberContext represents the authenticated member's information
type MemberContext struct {
	MemberID int64 `json:"member_id"`
}

// AdminContext represents the authenticated admin's information
type AdminContext struct {
	AdminID uuid.UUID `json:"admin_id"`
}

// extractBearer pulls the token out of the Authorization header. A non-nil
// gin.H means the request must be rejected with that payload.
func extractBearer(c *gin.Context) (string, gin.H) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", gin.H{
			"error":   "unauthorized",
			"message": "Authorization header is required",
			"code":    "MISSING_AUTH_HEADER",
		}
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", gin.H{
			"error":   "unauthorized",
			"message": "Invalid authorization header format. Expected: Bearer <token>",
			"code":    "INVALID_AUTH_FORMAT",
		}
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return "", gin.H{
			"error":   "unauthorized",
			"message": "Token cannot be empty",
			"code":    "INVALID_AUTH_FORMAT",
		}
	}
	return tokenString, nil
}

// tokenErrorPayload maps a validation failure to the response body.
// Expired tokens get a distinct code so clients can prompt for re-login
// instead of treating the session as tampered.
func tokenErrorPayload(err error) gin.H {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return gin.H{
			"error":   "token_expired",
			"message": "Session token has expired. Please log in again.",
			"code":    "TOKEN_EXPIRED",
		}
	}
	return gin.H{
		"error":   "invalid_token",
		"message": "Invalid session token",
		"code":    "INVALID_TOKEN",
	}
}

// MemberAuth validates member-realm session tokens
func MemberAuth(jwtService *jwt.Service, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, reject := extractBearer(c)
		if reject != nil {
			c.JSON(http.StatusUnauthorized, reject)
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateSessionToken(tokenString, jwt.RealmMember)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"path": c.Request.URL.Path,
				"ip":   c.ClientIP(),
			}).WithError(err).Warn("Member auth failed")
			c.JSON(http.StatusUnauthorized, tokenErrorPayload(err))
			c.Abort()
			return
		}

		c.Set(MemberContextKey, MemberContext{MemberID: claims.MemberID})
		c.Next()
	}
}

// AdminAuth validates admin-realm session tokens. A member token on an
// admin route fails realm validation and is rejected as invalid.
func AdminAuth(jwtService *jwt.Service, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, reject := extractBearer(c)
		if reject != nil {
			c.JSON(http.StatusUnauthorized, reject)
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateSessionToken(tokenString, jwt.RealmAdmin)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"path": c.Request.URL.Path,
				"ip":   c.ClientIP(),
			}).WithError(err).Warn("Admin auth failed")
			c.JSON(http.StatusUnauthorized, tokenErrorPayload(err))
			c.Abort()
			return
		}

		adminID, err := uuid.Parse(claims.AdminID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token",
				"message": "Invalid session token",
				"code":    "INVALID_TOKEN",
			})
			c.Abort()
			return
		}

		c.Set(AdminContextKey, AdminContext{AdminID: adminID})
		c.Next()
	}
}

// GetMemberContext retrieves the member context from Gin context
func GetMemberContext(c *gin.Context) (MemberContext, bool) {
	value, exists := c.Get(MemberContextKey)
	if !exists {
		return MemberContext{}, false
	}
	ctx, ok := value.(MemberContext)
	return ctx, ok
}

// MustGetMemberContext retrieves the member context or panics (use only after MemberAuth)
func MustGetMemberContext(c *gin.Context) MemberContext {
	ctx, exists := GetMemberContext(c)
	if !exists {
		panic("member context not found - ensure MemberAuth is applied")
	}
	return ctx
}

// GetAdminContext retrieves the admin context from Gin context
func GetAdminContext(c *gin.Context) (AdminContext, bool) {
	value, exists := c.Get(AdminContextKey)
	if !exists {
		return AdminContext{}, false
	}
	ctx, ok := value.(AdminContext)
	return ctx, ok
}

// MustGetAdminContext retrieves the admin context or panics (use only after AdminAuth)
func MustGetAdminContext(c *gin.Context) AdminContext {
	ctx, exists := GetAdminContext(c)
	if !exists {
		panic("admin context not found - ensure AdminAuth is applied")
	}
	return ctx
}
