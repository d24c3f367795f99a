package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// DB 全局数据库连接
var DB *gorm.DB

// InitDB 加载 .env 并初始化 MySQL 连接
func InitDB() {
	// .env 不存在时直接用环境变量
	_ = godotenv.Load()

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		Getenv("DB_USER", "root"),
		Getenv("DB_PASSWORD", ""),
		Getenv("DB_HOST", "localhost"),
		Getenv("DB_PORT", "3306"),
		Getenv("DB_NAME", "estate_chat"),
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	DB = db
}

// Getenv 读取环境变量，缺失时返回默认值
func Getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ServerPort 服务监听端口
func ServerPort() string {
	return Getenv("SERVER_PORT", "8082")
}

// JWTSecret Token 签名密钥，由平台统一下发
func JWTSecret() []byte {
	return []byte(Getenv("JWT_SECRET", "dev-secret"))
}
