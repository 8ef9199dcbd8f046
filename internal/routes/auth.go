package routes

import (
	"github.com/gin-gonic/gin"

	"voice_eval/internal/handlers"
	"voice_eval/internal/middleware"
)

// RegisterAuthRoutes 注册登录相关路由
func RegisterAuthRoutes(r *gin.Engine, deps Dependencies) {
	h := handlers.NewAuthHandler(deps.Users, deps.Tokens, deps.Config.Auth)
	cookie := deps.Config.Auth.CookieName

	group := r.Group("/api/auth")
	group.POST("/register", h.Register)
	group.POST("/login", h.Login)
	group.POST("/logout", h.Logout)
	group.GET("/me", middleware.OptionalAuth(deps.Tokens, cookie), h.Me)
}
