package middleware

import (
	"net/http"
	"strings"

	"chat-server/internal/auth"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware verifies the bearer credential on REST routes and stores
// the resolved user id on the request context.
func AuthMiddleware(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing token"})
			return
		}

		identity, err := verifier.Verify(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
			return
		}

		c.Set("userID", identity.UserID)
		c.Next()
	}
}

func MustUserID(c *gin.Context) uint {
	v, _ := c.Get("userID")
	return v.(uint)
}
