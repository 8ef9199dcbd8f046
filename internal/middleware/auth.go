package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"voice_eval/internal/auth"
)

const claimsKey = "auth.claims"

// Auth 要求登录，token从cookie或Authorization头读取
func Auth(tokens *auth.TokenManager, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := authenticate(c, tokens, cookieName)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "请先登录",
			})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// OptionalAuth 有合法token时记录当前用户，否则匿名放行
func OptionalAuth(tokens *auth.TokenManager, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := authenticate(c, tokens, cookieName); ok {
			c.Set(claimsKey, claims)
		}
		c.Next()
	}
}

// Claims 取当前请求的登录信息
func Claims(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

func authenticate(c *gin.Context, tokens *auth.TokenManager, cookieName string) (*auth.Claims, bool) {
	token := bearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token, _ = c.Cookie(cookieName)
	}
	if token == "" {
		return nil, false
	}

	claims, err := tokens.Validate(token)
	if err != nil {
		return nil, false
	}
	return claims, true
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
