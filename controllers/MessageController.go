package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"estate-chat/services"
	"estate-chat/utils"
)

// SendMessageHandler 往会话里发一条消息
// 和 WebSocket 的 send 命令走同一个服务入口，校验和推送行为完全一致
func SendMessageHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	conversationID := c.Param("conversation_id")

	var input struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	view, err := services.Chat.SendMessage(c.Request.Context(), userID, conversationID, input.Content)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, view, nil)
}

// MarkMessageReadHandler 接收方把单条消息置为已读
func MarkMessageReadHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	messageID, err := strconv.ParseUint(c.Param("message_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message id"})
		return
	}

	view, err := services.Chat.MarkMessageRead(c.Request.Context(), userID, uint(messageID))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, view, nil)
}
