package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jobtrail/core/internal/pkg/jwt"
	"github.com/jobtrail/core/internal/pkg/response"
)

// Auth returns a middleware that enforces a valid session token on
// mutating/admin routes. Tokens are issued by the auth handler against the
// configured shared secret.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := jwt.Parse(extractToken(c)); err != nil {
			response.Unauthorized(c)
			return
		}
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return strings.TrimSpace(c.Query("token"))
	}
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return header
}
