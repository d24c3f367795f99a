package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"estate-chat/directory"
	"estate-chat/models"
)

// 服务层测试用的内存假存储，语义对齐 store.ConversationStore
type fakeStore struct {
	mu            sync.Mutex
	conversations map[string]*models.Conversation
	messages      []*models.Message
	nextMessageID uint
	failNextRead  int // 大于 0 时接下来几次读操作返回瞬时错误
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: make(map[string]*models.Conversation),
		nextMessageID: 1,
	}
}

func (f *fakeStore) addConversation(id string, low, high, propertyID uint) *models.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv := &models.Conversation{
		ConversationID:  id,
		ParticipantLow:  low,
		ParticipantHigh: high,
		PropertyID:      propertyID,
		CreatedAt:       time.Now(),
		LastMessageAt:   time.Now(),
	}
	f.conversations[id] = conv
	return conv
}

func (f *fakeStore) transientReadError() error {
	if f.failNextRead > 0 {
		f.failNextRead--
		return fmt.Errorf("transient storage error")
	}
	return nil
}

func (f *fakeStore) GetOrCreate(ctx context.Context, userA, userB, propertyID uint) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	low, high := models.CanonicalPair(userA, userB)
	for _, conv := range f.conversations {
		if conv.ParticipantLow == low && conv.ParticipantHigh == high && conv.PropertyID == propertyID {
			return conv, nil
		}
	}
	conv := &models.Conversation{
		ConversationID:  fmt.Sprintf("conv-%d-%d-%d", low, high, propertyID),
		ParticipantLow:  low,
		ParticipantHigh: high,
		PropertyID:      propertyID,
		CreatedAt:       time.Now(),
		LastMessageAt:   time.Now(),
	}
	f.conversations[conv.ConversationID] = conv
	return conv, nil
}

func (f *fakeStore) GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transientReadError(); err != nil {
		return nil, err
	}
	conv, ok := f.conversations[conversationID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return conv, nil
}

func (f *fakeStore) ListConversations(ctx context.Context, userID uint, page, pageSize int) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transientReadError(); err != nil {
		return nil, err
	}
	var out []models.Conversation
	for _, conv := range f.conversations {
		if conv.HasParticipant(userID) {
			out = append(out, *conv)
		}
	}
	return out, nil
}

func (f *fakeStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[msg.ConversationID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.ID = f.nextMessageID
	f.nextMessageID++
	stored := *msg
	f.messages = append(f.messages, &stored)
	conv.LastMessageAt = msg.CreatedAt
	return nil
}

func (f *fakeStore) ListMessages(ctx context.Context, conversationID string, page, pageSize int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transientReadError(); err != nil {
		return nil, err
	}
	var out []models.Message
	for _, msg := range f.messages {
		if msg.ConversationID == conversationID {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (f *fakeStore) GetMessage(ctx context.Context, messageID uint) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.transientReadError(); err != nil {
		return nil, err
	}
	for _, msg := range f.messages {
		if msg.ID == messageID {
			copied := *msg
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStore) LastMessage(ctx context.Context, conversationID string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var last *models.Message
	for _, msg := range f.messages {
		if msg.ConversationID == conversationID {
			last = msg
		}
	}
	if last == nil {
		return nil, nil
	}
	copied := *last
	return &copied, nil
}

func (f *fakeStore) MarkMessageRead(ctx context.Context, messageID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, msg := range f.messages {
		if msg.ID == messageID {
			msg.IsRead = true
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeStore) MarkConversationRead(ctx context.Context, userID uint, conversationID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var affected int64
	for _, msg := range f.messages {
		if msg.ConversationID == conversationID && msg.ReceiverID == userID && !msg.IsRead {
			msg.IsRead = true
			affected++
		}
	}
	return affected, nil
}

func (f *fakeStore) UnreadCount(ctx context.Context, userID uint, conversationID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, msg := range f.messages {
		if msg.ConversationID == conversationID && msg.ReceiverID == userID && !msg.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) messageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// 记录推送调用的假 Notifier
type fakeNotifier struct {
	mu       sync.Mutex
	messages []MessageView
	reads    []string // conversationID:readerID
}

func (n *fakeNotifier) MessageCreated(msg MessageView) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
}

func (n *fakeNotifier) ConversationRead(conversationID string, readerID uint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reads = append(n.reads, fmt.Sprintf("%s:%d", conversationID, readerID))
}

func (n *fakeNotifier) messageCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

func (n *fakeNotifier) readCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.reads)
}

type fakeUserDirectory struct {
	users map[uint]directory.BasicInfo
}

func (d *fakeUserDirectory) GetBasicInfo(ctx context.Context, userID uint) directory.BasicInfo {
	if info, ok := d.users[userID]; ok {
		return info
	}
	return directory.BasicInfo{FirstName: "Unknown", LastName: "User"}
}

type fakePropertyDirectory struct {
	titles map[uint]string
}

func (d *fakePropertyDirectory) GetTitle(ctx context.Context, propertyID uint) string {
	return d.titles[propertyID]
}
