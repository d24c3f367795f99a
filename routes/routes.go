package routes

import (
	"estate-chat/controllers"
	"estate-chat/middlewares"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes() *gin.Engine {
	r := gin.Default()

	// 配置跨域中间件
	corsConfig := cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}
	r.Use(cors.New(corsConfig))

	// WebSocket 升级前在 handler 里自行校验 token
	r.GET("/ws", controllers.WSController)

	protected := r.Group("/api")
	protected.Use(middlewares.TokenAuthMiddleware())
	{
		protected.GET("/conversations", controllers.GetConversations)
		protected.POST("/conversations", controllers.CreateConversationHandler)
		protected.GET("/conversations/:conversation_id/messages", controllers.GetMessagesByConversationID)
		protected.POST("/conversations/:conversation_id/messages", controllers.SendMessageHandler)
		protected.PUT("/conversations/:conversation_id/read", controllers.MarkConversationReadHandler)
		protected.PUT("/messages/:message_id/read", controllers.MarkMessageReadHandler)
	}

	return r
}
