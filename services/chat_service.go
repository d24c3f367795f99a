package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"estate-chat/directory"
	"estate-chat/models"
	"estate-chat/store"
)

// MaxContentLength 单条消息的最大长度（按字符数）
const MaxContentLength = 2000

// 读查询失败后重试一次的间隔；写操作不自动重试，避免网络抖动造成重复消息
const readRetryBackoff = 100 * time.Millisecond

// ConversationStore 服务层依赖的存储接口，store.ConversationStore 是生产实现
type ConversationStore interface {
	GetOrCreate(ctx context.Context, userA, userB, propertyID uint) (*models.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID uint, page, pageSize int) ([]models.Conversation, error)
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID string, page, pageSize int) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID uint) (*models.Message, error)
	LastMessage(ctx context.Context, conversationID string) (*models.Message, error)
	MarkMessageRead(ctx context.Context, messageID uint) error
	MarkConversationRead(ctx context.Context, userID uint, conversationID string) (int64, error)
	UnreadCount(ctx context.Context, userID uint, conversationID string) (int64, error)
}

// Notifier 持久化成功之后的实时推送出口，WSManager 是生产实现
// 推送只能发生在落库之后，且每次成功的变更恰好触发一次
type Notifier interface {
	MessageCreated(msg MessageView)
	ConversationRead(conversationID string, readerID uint)
}

// ParticipantView 会话对方的展示信息
type ParticipantView struct {
	UserID    uint   `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AvatarURL string `json:"avatar_url"`
}

// MessageView 消息的对外表示
type MessageView struct {
	ID             uint      `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       uint      `json:"sender_id"`
	ReceiverID     uint      `json:"receiver_id"`
	Content        string    `json:"content"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

// ConversationView 会话的对外表示
// UnreadCount 和 LastMessageIsMine 是按调用方视角在读取时算出来的，不落库
type ConversationView struct {
	ConversationID    string          `json:"conversation_id"`
	PropertyID        uint            `json:"property_id,omitempty"`
	PropertyTitle     string          `json:"property_title,omitempty"`
	Participant       ParticipantView `json:"participant"`
	UnreadCount       int64           `json:"unread_count"`
	LastMessage       *MessageView    `json:"last_message,omitempty"`
	LastMessageIsMine bool            `json:"last_message_is_mine"`
	CreatedAt         time.Time       `json:"created_at"`
	LastMessageAt     time.Time       `json:"last_message_at"`
}

// ChatService 聊天业务逻辑：鉴权、校验、编排存储和推送
// HTTP 和 WebSocket 两条路径都汇聚到这里，校验和推送行为与传输方式无关
type ChatService interface {
	GetOrCreateConversation(ctx context.Context, me, participantID, propertyID uint) (*ConversationView, error)
	ListConversationsForUser(ctx context.Context, me uint, page, pageSize int) ([]ConversationView, error)
	ListMessages(ctx context.Context, me uint, conversationID string, page, pageSize int) ([]MessageView, error)
	SendMessage(ctx context.Context, me uint, conversationID, content string) (*MessageView, error)
	MarkMessageRead(ctx context.Context, me uint, messageID uint) (*MessageView, error)
	MarkConversationRead(ctx context.Context, me uint, conversationID string) (int64, error)
}

type chatService struct {
	store      ConversationStore
	users      directory.UserDirectory
	properties directory.PropertyDirectory
	notifier   Notifier
}

func NewChatService(st ConversationStore, users directory.UserDirectory, properties directory.PropertyDirectory, notifier Notifier) ChatService {
	return &chatService{
		store:      st,
		users:      users,
		properties: properties,
		notifier:   notifier,
	}
}

// Chat 全局聊天服务实例
var Chat ChatService

// InitChat 初始化聊天服务，推送走全局 WSManager
func InitChat(db *gorm.DB) {
	Chat = NewChatService(
		store.NewConversationStore(db),
		directory.NewUserDirectory(db),
		directory.NewPropertyDirectory(db),
		Manager,
	)
}

// GetOrCreateConversation 获取或创建与指定用户的会话
func (s *chatService) GetOrCreateConversation(ctx context.Context, me, participantID, propertyID uint) (*ConversationView, error) {
	if participantID == me {
		return nil, fmt.Errorf("%w: cannot start a conversation with yourself", ErrInvalidArgument)
	}
	if participantID == 0 {
		return nil, fmt.Errorf("%w: participant_id is required", ErrInvalidArgument)
	}

	conv, err := s.store.GetOrCreate(ctx, me, participantID, propertyID)
	if err != nil {
		return nil, err
	}
	view := s.buildConversationView(ctx, me, conv)
	return &view, nil
}

// ListConversationsForUser 会话列表，带对方信息、未读数和最后一条消息
func (s *chatService) ListConversationsForUser(ctx context.Context, me uint, page, pageSize int) ([]ConversationView, error) {
	if page < 0 || pageSize < 0 {
		return nil, fmt.Errorf("%w: pagination must not be negative", ErrInvalidArgument)
	}

	var conversations []models.Conversation
	err := s.retryRead(ctx, func() error {
		var innerErr error
		conversations, innerErr = s.store.ListConversations(ctx, me, page, pageSize)
		return innerErr
	})
	if err != nil {
		return nil, err
	}

	views := make([]ConversationView, 0, len(conversations))
	for i := range conversations {
		views = append(views, s.buildConversationView(ctx, me, &conversations[i]))
	}
	return views, nil
}

// ListMessages 会话内的消息分页，非成员返回 Forbidden
func (s *chatService) ListMessages(ctx context.Context, me uint, conversationID string, page, pageSize int) ([]MessageView, error) {
	if page < 0 || pageSize < 0 {
		return nil, fmt.Errorf("%w: pagination must not be negative", ErrInvalidArgument)
	}

	conv, err := s.loadConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(me) {
		return nil, fmt.Errorf("%w: not a participant of this conversation", ErrForbidden)
	}

	var messages []models.Message
	err = s.retryRead(ctx, func() error {
		var innerErr error
		messages, innerErr = s.store.ListMessages(ctx, conversationID, page, pageSize)
		return innerErr
	})
	if err != nil {
		return nil, err
	}

	views := make([]MessageView, 0, len(messages))
	for i := range messages {
		views = append(views, toMessageView(&messages[i]))
	}
	return views, nil
}

// SendMessage 所有消息发送的唯一入口，HTTP 和 WebSocket 都走这里
// 落库成功后恰好触发一次推送，落库失败不推送
func (s *chatService) SendMessage(ctx context.Context, me uint, conversationID, content string) (*MessageView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content must not be empty", ErrInvalidArgument)
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, fmt.Errorf("%w: content exceeds %d characters", ErrInvalidArgument, MaxContentLength)
	}

	conv, err := s.loadConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(me) {
		return nil, fmt.Errorf("%w: not a participant of this conversation", ErrForbidden)
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       me,
		ReceiverID:     conv.OtherParticipant(me),
		Content:        content,
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}

	view := toMessageView(msg)
	if s.notifier != nil {
		s.notifier.MessageCreated(view)
	}
	return &view, nil
}

// MarkMessageRead 接收方把单条消息置为已读
// "消息不存在"和"消息不是发给你的"统一返回 NotFound，不泄露消息是否存在
func (s *chatService) MarkMessageRead(ctx context.Context, me uint, messageID uint) (*MessageView, error) {
	var msg *models.Message
	err := s.retryRead(ctx, func() error {
		var innerErr error
		msg, innerErr = s.store.GetMessage(ctx, messageID)
		return innerErr
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: message not found", ErrNotFound)
		}
		return nil, err
	}
	if msg.ReceiverID != me {
		return nil, fmt.Errorf("%w: message not found", ErrNotFound)
	}

	if !msg.IsRead {
		if err := s.store.MarkMessageRead(ctx, messageID); err != nil {
			return nil, err
		}
		msg.IsRead = true
	}
	view := toMessageView(msg)
	return &view, nil
}

// MarkConversationRead 把会话里发给我的未读消息全部置为已读
// 有消息被置为已读时广播一次已读回执；重复调用影响 0 行，不再广播
func (s *chatService) MarkConversationRead(ctx context.Context, me uint, conversationID string) (int64, error) {
	conv, err := s.loadConversation(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if !conv.HasParticipant(me) {
		return 0, fmt.Errorf("%w: not a participant of this conversation", ErrForbidden)
	}

	affected, err := s.store.MarkConversationRead(ctx, me, conversationID)
	if err != nil {
		return 0, err
	}
	if affected > 0 && s.notifier != nil {
		s.notifier.ConversationRead(conversationID, me)
	}
	return affected, nil
}

// loadConversation 取会话，不存在时映射成 NotFound
func (s *chatService) loadConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	var conv *models.Conversation
	err := s.retryRead(ctx, func() error {
		var innerErr error
		conv, innerErr = s.store.GetConversation(ctx, conversationID)
		return innerErr
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: conversation not found", ErrNotFound)
		}
		return nil, err
	}
	return conv, nil
}

// retryRead 只读查询失败后退避重试一次；NotFound 和取消的上下文不重试
func (s *chatService) retryRead(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || errors.Is(err, gorm.ErrRecordNotFound) || ctx.Err() != nil {
		return err
	}
	time.Sleep(readRetryBackoff)
	return fn()
}

func (s *chatService) buildConversationView(ctx context.Context, me uint, conv *models.Conversation) ConversationView {
	other := conv.OtherParticipant(me)
	info := s.users.GetBasicInfo(ctx, other)

	view := ConversationView{
		ConversationID: conv.ConversationID,
		PropertyID:     conv.PropertyID,
		Participant: ParticipantView{
			UserID:    other,
			FirstName: info.FirstName,
			LastName:  info.LastName,
			AvatarURL: info.AvatarURL,
		},
		CreatedAt:     conv.CreatedAt,
		LastMessageAt: conv.LastMessageAt,
	}
	if conv.PropertyID != 0 {
		view.PropertyTitle = s.properties.GetTitle(ctx, conv.PropertyID)
	}

	// 未读数和最后一条消息查询失败时降级为零值，不影响列表本身
	if count, err := s.store.UnreadCount(ctx, me, conv.ConversationID); err == nil {
		view.UnreadCount = count
	}
	if last, err := s.store.LastMessage(ctx, conv.ConversationID); err == nil && last != nil {
		lastView := toMessageView(last)
		view.LastMessage = &lastView
		view.LastMessageIsMine = last.SenderID == me
	}
	return view
}

func toMessageView(msg *models.Message) MessageView {
	return MessageView{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		ReceiverID:     msg.ReceiverID,
		Content:        msg.Content,
		IsRead:         msg.IsRead,
		CreatedAt:      msg.CreatedAt,
	}
}
