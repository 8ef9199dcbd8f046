package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"voice_eval/internal/middleware"
	"voice_eval/internal/models"
	"voice_eval/internal/services"
)

// PracticeHandler 练习记录接口，需要登录
type PracticeHandler struct {
	practices *services.PracticeService
}

// NewPracticeHandler 创建练习记录处理器
func NewPracticeHandler(practices *services.PracticeService) *PracticeHandler {
	return &PracticeHandler{practices: practices}
}

// Create 保存练习记录
func (h *PracticeHandler) Create(c *gin.Context) {
	claims, _ := middleware.Claims(c)

	var in services.PracticeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, badRequest("请求格式错误"))
		return
	}

	p, err := h.practices.Save(c.Request.Context(), claims.UserID, in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"id":          p.ID,
			"type":        p.Type,
			"content":     p.Content,
			"total_score": p.TotalScore,
			"created_at":  p.CreatedAt,
		},
	})
}

// List 分页查询练习记录
func (h *PracticeHandler) List(c *gin.Context) {
	claims, _ := middleware.Claims(c)

	filter := models.PracticeFilter{
		Type:   models.PracticeType(c.Query("type")),
		Limit:  queryInt(c, "limit", 20),
		Offset: queryInt(c, "offset", 0),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		respondError(c, services.ErrInvalidPracticeType)
		return
	}

	list, total, err := h.practices.List(c.Request.Context(), claims.UserID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []models.Practice{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    list,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// Stats 练习统计
func (h *PracticeHandler) Stats(c *gin.Context) {
	claims, _ := middleware.Claims(c)

	stats, err := h.practices.Stats(c.Request.Context(), claims.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
	})
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}
