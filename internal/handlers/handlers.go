// Package handlers 提供HTTP和WebSocket接口处理器
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health 健康检查
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "voice_eval",
		"time":    time.Now().Format(time.RFC3339),
	})
}
