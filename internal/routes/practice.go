package routes

import (
	"github.com/gin-gonic/gin"

	"voice_eval/internal/handlers"
	"voice_eval/internal/middleware"
)

// RegisterPracticeRoutes 注册练习记录路由
func RegisterPracticeRoutes(r *gin.Engine, deps Dependencies) {
	h := handlers.NewPracticeHandler(deps.Practices)

	group := r.Group("/api/practice", middleware.Auth(deps.Tokens, deps.Config.Auth.CookieName))
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/stats", h.Stats)
}

// RegisterDebugRoutes 注册调试路由
func RegisterDebugRoutes(r *gin.Engine, deps Dependencies) {
	h := handlers.NewDebugHandler(deps.Users, deps.Config, deps.HasDatabase)

	r.GET("/api/debug/users", h.Users)
	r.GET("/api/test-env", h.TestEnv)
}
