package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/propertyhub/backoffice/pkg/jwt"
	"github.com/sirupsen/logrus"
)

// UserContextKey is the key used to store user information in Gin context
const UserContextKey = "user"

// Roles carried in access tokens
const (
	RoleAdmin = "admin"
	RoleAgent = "agent"
	RoleUser  = "user"
)

// UserContext represents the authenticated user's information
type UserContext struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Roles  []string  `json:"roles"`
}

// HasRole reports whether the user holds any of the given roles
func (u UserContext) HasRole(roles ...string) bool {
	for _, required := range roles {
		for _, role := range u.Roles {
			if role == required {
				return true
			}
		}
	}
	return false
}

type authFailure struct {
	status  int
	error   string
	message string
	code    string
}

// authenticate parses the bearer token; a nil failure with ok=false means no header was sent
func authenticate(c *gin.Context, jwtService *jwt.Service) (UserContext, *authFailure, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return UserContext{}, nil, false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return UserContext{}, &authFailure{
			status:  http.StatusUnauthorized,
			error:   "unauthorized",
			message: "Invalid authorization header format. Expected: Bearer <token>",
			code:    "INVALID_AUTH_FORMAT",
		}, false
	}
	tokenString := strings.TrimSpace(parts[1])

	claims, err := jwtService.ValidateAccessToken(tokenString)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return UserContext{}, &authFailure{
				status:  http.StatusUnauthorized,
				error:   "token_expired",
				message: "Access token has expired",
				code:    "TOKEN_EXPIRED",
			}, false
		}
		return UserContext{}, &authFailure{
			status:  http.StatusUnauthorized,
			error:   "invalid_token",
			message: "Invalid access token",
			code:    "INVALID_TOKEN",
		}, false
	}

	return UserContext{UserID: claims.UserID, Email: claims.Email, Roles: claims.Roles}, nil, true
}

func abortAuth(c *gin.Context, logger *logrus.Logger, f *authFailure) {
	logger.WithFields(logrus.Fields{
		"path": c.Request.URL.Path,
		"ip":   c.ClientIP(),
		"code": f.code,
	}).Warn("Authentication failed")
	c.AbortWithStatusJSON(f.status, gin.H{
		"error":   f.error,
		"message": f.message,
		"code":    f.code,
	})
}

// AuthMiddleware creates a middleware that requires a valid access token
func AuthMiddleware(jwtService *jwt.Service, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, failure, ok := authenticate(c, jwtService)
		if !ok && failure == nil {
			failure = &authFailure{
				status:  http.StatusUnauthorized,
				error:   "unauthorized",
				message: "Authorization header is required",
				code:    "MISSING_AUTH_HEADER",
			}
		}
		if failure != nil {
			abortAuth(c, logger, failure)
			return
		}

		c.Set(UserContextKey, user)
		c.Next()
	}
}

// OptionalAuth attaches the user when a token is sent and lets anonymous
// requests through. A malformed or expired token is still rejected.
func OptionalAuth(jwtService *jwt.Service, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, failure, ok := authenticate(c, jwtService)
		if failure != nil {
			abortAuth(c, logger, failure)
			return
		}
		if ok {
			c.Set(UserContextKey, user)
		}
		c.Next()
	}
}

// RequireRole creates a middleware that checks if user has required role
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "User context not found. Auth middleware may not be applied.",
				"code":    "MISSING_USER_CONTEXT",
			})
			return
		}

		if !userCtx.HasRole(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "You don't have permission to access this resource",
				"code":    "INSUFFICIENT_PERMISSIONS",
			})
			return
		}

		c.Next()
	}
}

// GetUserContext retrieves the user context from Gin context
func GetUserContext(c *gin.Context) (UserContext, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return UserContext{}, false
	}

	userCtx, ok := value.(UserContext)
	if !ok {
		return UserContext{}, false
	}

	return userCtx, true
}
