package main

import (
	"log"

	"estate-chat/config"
	"estate-chat/models"
	"estate-chat/routes"
	"estate-chat/services"
)

func main() {
	// 初始化数据库
	config.InitDB()
	// 自动迁移
	models.Migrate()
	// 初始化聊天服务和连接管理器
	services.InitChat(config.DB)
	go services.Manager.Run()
	// 注册路由
	r := routes.RegisterRoutes()

	// 启动服务
	if err := r.Run(":" + config.ServerPort()); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
