package directory

import (
	"context"
	"log"

	"gorm.io/gorm"

	"estate-chat/models"
)

// 聊天子系统对平台其余部分的依赖只有这两个只读目录：
// 用户目录提供展示信息，房源目录提供标题。表归主站维护。

// BasicInfo 用户的基础展示信息
type BasicInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AvatarURL string `json:"avatar_url"`
}

// UserDirectory 用户目录
type UserDirectory interface {
	GetBasicInfo(ctx context.Context, userID uint) BasicInfo
}

// PropertyDirectory 房源目录
type PropertyDirectory interface {
	GetTitle(ctx context.Context, propertyID uint) string
}

type gormUserDirectory struct {
	db *gorm.DB
}

// NewUserDirectory 基于平台 users 表的用户目录
func NewUserDirectory(db *gorm.DB) UserDirectory {
	return &gormUserDirectory{db: db}
}

// GetBasicInfo 查不到用户时返回占位信息，不让整个响应失败
func (d *gormUserDirectory) GetBasicInfo(ctx context.Context, userID uint) BasicInfo {
	var user models.User
	err := d.db.WithContext(ctx).First(&user, userID).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Println("Failed to load user info:", err)
		}
		return BasicInfo{FirstName: "Unknown", LastName: "User"}
	}
	return BasicInfo{
		FirstName: user.FirstName,
		LastName:  user.LastName,
		AvatarURL: user.AvatarURL,
	}
}

type gormPropertyDirectory struct {
	db *gorm.DB
}

// NewPropertyDirectory 基于平台 properties 表的房源目录
func NewPropertyDirectory(db *gorm.DB) PropertyDirectory {
	return &gormPropertyDirectory{db: db}
}

// GetTitle 查不到房源时返回空串
func (d *gormPropertyDirectory) GetTitle(ctx context.Context, propertyID uint) string {
	var property models.Property
	err := d.db.WithContext(ctx).First(&property, propertyID).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Println("Failed to load property title:", err)
		}
		return ""
	}
	return property.Title
}
