package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"bookswap/services"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware - аутентификация по Bearer токену из таблицы
// user_tokens. Кладет user_id в контекст запроса, дальше сервисы
// получают личность явно и глобальное состояние не читают.
func AuthMiddleware() gin.HandlerFunc {
	userService := services.NewUserService()
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		userID, err := userService.ResolveToken(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			c.Abort()
			return
		}
		if userID == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

// TestAuthMiddleware - middleware для тестовой аутентификации,
// принимает user_id напрямую из заголовка X-User-ID
func TestAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDHeader := c.GetHeader("X-User-ID")
		if userIDHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required: provide X-User-ID header"})
			c.Abort()
			return
		}
		userID, err := strconv.ParseInt(userIDHeader, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid X-User-ID format"})
			c.Abort()
			return
		}
		c.Set("user_id", userID)
		c.Next()
	}
}
