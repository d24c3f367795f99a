package controllers

import (
	"estate-chat/services"

	"github.com/gin-gonic/gin"
)

func WSController(ctx *gin.Context) {
	services.HandleWebSocket(ctx)
}
