package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RespondSuccess 统一的成功响应格式
func RespondSuccess(c *gin.Context, data interface{}, meta interface{}) {
	resp := gin.H{
		"code": 200,
		"data": data,
	}
	if meta != nil {
		resp["meta"] = meta
	}
	c.JSON(http.StatusOK, resp)
}

// RespondError 统一的错误响应格式
func RespondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
