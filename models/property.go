package models

import "time"

// Property 平台的房源表，由主站的 CRUD 模块维护
// 这里只用来给会话带上房源标题
type Property struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID   uint      `gorm:"index" json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}
