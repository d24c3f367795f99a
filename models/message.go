package models

import "time"

// Message 会话内的一条消息
// 会话内排序以 (created_at, id) 为准，并发发送时用 id 兜底保证全序
type Message struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string    `gorm:"type:varchar(36);index:idx_conversation_time,priority:1" json:"conversation_id"`
	SenderID       uint      `gorm:"index" json:"sender_id"`
	ReceiverID     uint      `gorm:"index" json:"receiver_id"` // 永远是会话里的另一方
	Content        string    `gorm:"type:text" json:"content"`
	IsRead         bool      `gorm:"default:false" json:"is_read"` // 只有接收方的已读操作才能置 true
	CreatedAt      time.Time `gorm:"index:idx_conversation_time,priority:2" json:"created_at"`
}
