package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voice_eval/internal/auth"
	"voice_eval/internal/config"
	"voice_eval/internal/middleware"
	"voice_eval/internal/services"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthHandler 注册、登录、登出
type AuthHandler struct {
	users  *services.UserService
	tokens *auth.TokenManager
	config config.AuthConfig
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(users *services.UserService, tokens *auth.TokenManager, cfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, config: cfg}
}

// Register 注册
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, badRequest("请求格式错误"))
		return
	}

	user, token, err := h.users.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setToken(c, token)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "注册成功",
		"user":    user,
	})
}

// Login 登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, badRequest("请求格式错误"))
		return
	}

	user, token, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setToken(c, token)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "登录成功",
		"user":    user,
	})
}

// Logout 登出，清除cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.config.CookieName, "", -1, "/", "", h.config.SecureCookie, true)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "登出成功",
	})
}

// Me 当前登录用户
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		respondError(c, &APIError{Status: http.StatusUnauthorized, Message: "请先登录"})
		return
	}

	user, err := h.users.GetUser(c.Request.Context(), claims.UserID)
	if err != nil {
		respondError(c, &APIError{Status: http.StatusUnauthorized, Message: "请先登录"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    user,
	})
}

func (h *AuthHandler) setToken(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.config.CookieName, token, int(h.tokens.TTL().Seconds()), "/", "", h.config.SecureCookie, true)
}
