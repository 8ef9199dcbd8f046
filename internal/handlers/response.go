package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"voice_eval/internal/auth"
	"voice_eval/internal/models"
	"voice_eval/internal/services"
)

// APIError 带HTTP状态码的接口错误
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

var errorStatus = map[error]int{
	services.ErrMissingFields:         http.StatusBadRequest,
	services.ErrMissingLogin:          http.StatusBadRequest,
	services.ErrInvalidEmail:          http.StatusBadRequest,
	services.ErrPasswordTooShort:      http.StatusBadRequest,
	services.ErrEmailTaken:            http.StatusBadRequest,
	services.ErrMissingPracticeFields: http.StatusBadRequest,
	services.ErrInvalidPracticeType:   http.StatusBadRequest,
	services.ErrInvalidCredentials:    http.StatusUnauthorized,
	auth.ErrInvalidToken:              http.StatusUnauthorized,
	models.ErrNotFound:                http.StatusNotFound,
}

// toAPIError 将业务错误转换为接口错误，未知错误返回500
func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	for target, status := range errorStatus {
		if errors.Is(err, target) {
			return &APIError{Status: status, Message: target.Error()}
		}
	}
	return &APIError{Status: http.StatusInternalServerError, Message: "服务器错误"}
}

func respondError(c *gin.Context, err error) {
	apiErr := toAPIError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		c.Error(err)
	}
	c.JSON(apiErr.Status, gin.H{
		"success": false,
		"message": apiErr.Message,
	})
}

func badRequest(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Message: message}
}
