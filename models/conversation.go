package models

import "time"

// Conversation 两个用户之间关于某个房源的私聊会话
// 参与者按 low/high 规范顺序存储，保证同一对用户加同一房源只有一条记录
type Conversation struct {
	ConversationID  string    `gorm:"primaryKey;type:varchar(36)" json:"conversation_id"`
	ParticipantLow  uint      `gorm:"uniqueIndex:idx_conversation_key;index" json:"participant_low"`
	ParticipantHigh uint      `gorm:"uniqueIndex:idx_conversation_key" json:"participant_high"`
	PropertyID      uint      `gorm:"uniqueIndex:idx_conversation_key;default:0" json:"property_id"` // 0 表示与房源无关的普通会话
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	LastMessageAt   time.Time `gorm:"index" json:"last_message_at"` // 每条新消息都会更新，用于会话列表排序
}

// CanonicalPair 把无序的用户对转成有序的 (low, high)
// 唯一索引按有序元组去重，谁先发起会话都落在同一行上
func CanonicalPair(a, b uint) (low, high uint) {
	if a < b {
		return a, b
	}
	return b, a
}

// HasParticipant 判断用户是否是会话成员
func (c *Conversation) HasParticipant(userID uint) bool {
	return c.ParticipantLow == userID || c.ParticipantHigh == userID
}

// OtherParticipant 返回会话中的另一方
func (c *Conversation) OtherParticipant(userID uint) uint {
	if c.ParticipantLow == userID {
		return c.ParticipantHigh
	}
	return c.ParticipantLow
}
