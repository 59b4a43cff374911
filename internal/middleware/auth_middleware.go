package middleware

import (
	"net/http"
	"strings"

	"aarohyatrika/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthRequired resolves the request principal from a bearer token and sets
// user_id and role on the context.
func AuthRequired(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			// Websocket clients from browsers cannot set headers; accept the
			// token as a query parameter there.
			if token := c.Query("token"); token != "" {
				authHeader = "Bearer " + token
			}
		}
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Bearer token required"})
			c.Abort()
			return
		}

		claims, err := utils.ParseToken(tokenString, jwtSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID in token"})
			c.Abort()
			return
		}

		c.Set(utils.ContextUserID, userID)
		c.Set(utils.ContextRole, claims.Role)

		c.Next()
	}
}

// RoleRequired gates a route group to one role. Roles are fixed at account
// creation, so the token claim is authoritative.
func RoleRequired(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		contextRole, exists := c.Get(utils.ContextRole)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Role not found"})
			c.Abort()
			return
		}

		if roleStr, ok := contextRole.(string); !ok || roleStr != role {
			c.JSON(http.StatusForbidden, gin.H{"error": role + " access required"})
			c.Abort()
			return
		}

		c.Next()
	}
}

func DriverRequired() gin.HandlerFunc {
	return RoleRequired("driver")
}

func RiderRequired() gin.HandlerFunc {
	return RoleRequired("rider")
}
