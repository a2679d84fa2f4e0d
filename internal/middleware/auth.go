package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/playmatatu/duelcore/internal/config"
)

// callerIDKey is the gin context key AuthMiddleware sets and handlers read.
const callerIDKey = "caller_id"

// AuthMiddleware validates a bearer JWT issued by the platform's identity
// service and sets the caller's id in the request context, the same
// bearer-HS256-claims pattern as the original AuthMiddleware.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		rawToken := strings.TrimPrefix(header, "Bearer ")

		parsed, err := jwt.Parse(rawToken, func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !parsed.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		callerIDf, ok := claims["user_id"].(float64)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(callerIDKey, int64(callerIDf))
		c.Next()
	}
}

// CallerID reads the id AuthMiddleware attached to the context. It must
// only be called from a handler behind AuthMiddleware.
func CallerID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(callerIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
