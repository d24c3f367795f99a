package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"estate-chat/models"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// ClampPage 页码最小为 1
func ClampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// ClampPageSize 页大小限制在 [1, MaxPageSize]，缺省 DefaultPageSize
func ClampPageSize(pageSize int) int {
	if pageSize < 1 {
		return DefaultPageSize
	}
	if pageSize > MaxPageSize {
		return MaxPageSize
	}
	return pageSize
}

// ConversationStore 会话和消息的持久层，唯一性和排序约束都落在这里
type ConversationStore struct {
	db *gorm.DB
}

func NewConversationStore(db *gorm.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// GetOrCreate 按规范顺序的参与者对 + 房源 ID 取会话，不存在则创建
// 双方同时打开聊天窗口时靠唯一索引兜底：插入被冲突忽略的一方回读赢家那行
func (s *ConversationStore) GetOrCreate(ctx context.Context, userA, userB, propertyID uint) (*models.Conversation, error) {
	low, high := models.CanonicalPair(userA, userB)

	now := time.Now()
	conv := models.Conversation{
		ConversationID:  uuid.New().String(),
		ParticipantLow:  low,
		ParticipantHigh: high,
		PropertyID:      propertyID,
		CreatedAt:       now,
		LastMessageAt:   now,
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "participant_low"},
			{Name: "participant_high"},
			{Name: "property_id"},
		},
		DoNothing: true,
	}).Create(&conv)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected > 0 {
		return &conv, nil
	}

	// 插入被唯一索引忽略，说明会话已存在
	var existing models.Conversation
	err := s.db.WithContext(ctx).
		Where("participant_low = ? AND participant_high = ? AND property_id = ?", low, high, propertyID).
		First(&existing).Error
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

// GetConversation 按 ID 取会话
func (s *ConversationStore) GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations 用户参与的会话，按最近消息时间倒序分页
func (s *ConversationStore) ListConversations(ctx context.Context, userID uint, page, pageSize int) ([]models.Conversation, error) {
	page = ClampPage(page)
	pageSize = ClampPageSize(pageSize)

	var conversations []models.Conversation
	err := s.db.WithContext(ctx).
		Where("participant_low = ? OR participant_high = ?", userID, userID).
		Order("last_message_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

// AppendMessage 写入消息并同步更新会话的 last_message_at，两步在同一个事务里
// 消息落库但会话排序标记没更新会导致会话列表顺序失真，所以必须一起成功或一起失败
func (s *ConversationStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		result := tx.Model(&models.Conversation{}).
			Where("conversation_id = ?", msg.ConversationID).
			Update("last_message_at", msg.CreatedAt)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ListMessages 会话内的消息，按 (created_at, id) 升序分页
// 升序意味着新消息只会追加到末尾，已取过的页在并发写入下保持稳定
func (s *ConversationStore) ListMessages(ctx context.Context, conversationID string, page, pageSize int) ([]models.Message, error) {
	page = ClampPage(page)
	pageSize = ClampPageSize(pageSize)

	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// GetMessage 按 ID 取消息
func (s *ConversationStore) GetMessage(ctx context.Context, messageID uint) (*models.Message, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).First(&msg, messageID).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// LastMessage 会话里最新的一条消息，没有消息时返回 (nil, nil)
func (s *ConversationStore) LastMessage(ctx context.Context, conversationID string) (*models.Message, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		First(&msg).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkMessageRead 把单条消息置为已读
func (s *ConversationStore) MarkMessageRead(ctx context.Context, messageID uint) error {
	return s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", messageID).
		Update("is_read", true).Error
}

// MarkConversationRead 批量把会话里发给该用户的未读消息置为已读
// 返回影响行数，重复调用影响 0 行，幂等
func (s *ConversationStore) MarkConversationRead(ctx context.Context, userID uint, conversationID string) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conversationID, userID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

// UnreadCount 会话里发给该用户且未读的消息数
func (s *ConversationStore) UnreadCount(ctx context.Context, userID uint, conversationID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conversationID, userID, false).
		Count(&count).Error
	return count, err
}
