package routes

import (
	"github.com/gin-gonic/gin"

	"voice_eval/internal/handlers"
	"voice_eval/internal/middleware"
)

// RegisterEvaluateRoutes 注册评测WebSocket通道
func RegisterEvaluateRoutes(r *gin.Engine, deps Dependencies) {
	h := handlers.NewEvaluateHandler(deps.Evaluations, deps.Practices, deps.Config.WebSocket, deps.Logger)

	r.GET("/ws/evaluate", middleware.OptionalAuth(deps.Tokens, deps.Config.Auth.CookieName), h.HandleWebSocket)
}
