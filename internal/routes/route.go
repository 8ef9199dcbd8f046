package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voice_eval/internal/auth"
	"voice_eval/internal/config"
	"voice_eval/internal/handlers"
	"voice_eval/internal/services"
)

// Dependencies 路由需要的服务
type Dependencies struct {
	Config      *config.Config
	Tokens      *auth.TokenManager
	Users       *services.UserService
	Practices   *services.PracticeService
	Evaluations *services.EvaluationService
	HasDatabase bool
	Logger      *zap.Logger
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, deps Dependencies) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r.GET("/health", handlers.Health)

	// 注册认证路由
	RegisterAuthRoutes(r, deps)

	// 注册练习记录路由
	RegisterPracticeRoutes(r, deps)

	// 注册调试路由
	RegisterDebugRoutes(r, deps)

	// 注册评测通道
	RegisterEvaluateRoutes(r, deps)
}
