package models

import (
	"log"

	"estate-chat/config"
)

// Migrate 自动迁移聊天相关的表结构
func Migrate() {
	err := config.DB.AutoMigrate(
		&User{},
		&Property{},
		&Conversation{},
		&Message{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
}
