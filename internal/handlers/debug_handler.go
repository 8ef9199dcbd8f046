package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"voice_eval/internal/config"
	"voice_eval/internal/services"
)

// DebugHandler 开发调试接口
type DebugHandler struct {
	users       *services.UserService
	config      *config.Config
	hasDatabase bool
	now         func() time.Time
}

// NewDebugHandler 创建调试处理器
func NewDebugHandler(users *services.UserService, cfg *config.Config, hasDatabase bool) *DebugHandler {
	return &DebugHandler{users: users, config: cfg, hasDatabase: hasDatabase, now: time.Now}
}

// Users 列出所有用户，生产环境不可用
func (h *DebugHandler) Users(c *gin.Context) {
	if h.config.IsProduction() {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"message": "此接口仅在开发环境可用",
		})
		return
	}

	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(users),
		"users":   users,
		"message": "用户列表（密码已自动过滤）",
	})
}

// TestEnv 检查凭证是否配置，只返回前缀
func (h *DebugHandler) TestEnv(c *gin.Context) {
	ise := h.config.ISE
	c.JSON(http.StatusOK, gin.H{
		"hasAppId":     ise.AppID != "",
		"hasApiKey":    ise.APIKey != "",
		"hasApiSecret": ise.APISecret != "",
		"hasDatabase":  h.hasDatabase,
		"hasJwtSecret": h.config.Auth.JWTSecret != "",
		"appIdPrefix":  prefix(ise.AppID),
		"apiKeyPrefix": prefix(ise.APIKey),
		"serverTime":   h.now().UTC().Format(http.TimeFormat),
	})
}

func prefix(s string) string {
	if s == "" {
		return "missing"
	}
	if len(s) <= 4 {
		return s
	}
	return s[:4]
}
