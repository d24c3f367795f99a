package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"estate-chat/services"
	"estate-chat/utils"
)

// GetConversations 当前用户的会话列表，按最近消息倒序分页
func GetConversations(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	page, pageSize := pageParams(c)

	views, err := services.Chat.ListConversationsForUser(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, views, gin.H{"page": page, "pageSize": pageSize})
}

// CreateConversationHandler 获取或创建与指定用户的会话
// 同一对用户加同一房源重复请求返回同一个会话，不会建出第二条
func CreateConversationHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var requestData struct {
		ParticipantID uint `json:"participant_id" binding:"required"`
		PropertyID    uint `json:"property_id"` // 可选，0 表示与房源无关
	}
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	view, err := services.Chat.GetOrCreateConversation(c.Request.Context(), userID, requestData.ParticipantID, requestData.PropertyID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, view, nil)
}

// GetMessagesByConversationID 会话内的消息，按时间升序分页
func GetMessagesByConversationID(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	conversationID := c.Param("conversation_id")
	page, pageSize := pageParams(c)

	views, err := services.Chat.ListMessages(c.Request.Context(), userID, conversationID, page, pageSize)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, views, gin.H{"page": page, "pageSize": pageSize})
}

// MarkConversationReadHandler 把会话里发给我的消息全部置为已读
func MarkConversationReadHandler(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	conversationID := c.Param("conversation_id")

	affected, err := services.Chat.MarkConversationRead(c.Request.Context(), userID, conversationID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"updated": affected}, nil)
}
