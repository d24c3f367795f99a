package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingInterval  = 10 * time.Second // 发送 ping 的间隔
	pongTimeout   = 15 * time.Second // 超过 15 秒未收到 pong 断开连接
	sendQueueSize = 64               // 每个连接的发送缓冲
)

// Client 一条 WebSocket 连接
// 连接建立时鉴权一次，UserID 在连接生命周期内不变
type Client struct {
	Conn      *websocket.Conn
	Send      chan []byte
	UserID    uint
	LastPing  time.Time
	mu        sync.Mutex
	closeOnce sync.Once
	done      chan struct{}       // 关闭后停止写出和心跳，Send 本身永不 close
	rooms     map[string]struct{} // 已加入的会话组，由 Manager 的锁保护
}

// NewClient 构造一条已鉴权的连接
func NewClient(conn *websocket.Conn, userID uint) *Client {
	return &Client{
		Conn:     conn,
		Send:     make(chan []byte, sendQueueSize),
		UserID:   userID,
		LastPing: time.Now(),
		done:     make(chan struct{}),
		rooms:    make(map[string]struct{}),
	}
}

// Event 服务端推送给客户端的事件帧
type Event struct {
	Type           string       `json:"type"` // message / sent / read / typing / joined / error
	ConversationID string       `json:"conversation_id,omitempty"`
	UserID         uint         `json:"user_id,omitempty"`
	IsTyping       bool         `json:"is_typing,omitempty"`
	Message        *MessageView `json:"message,omitempty"`
	Error          string       `json:"error,omitempty"`
}

// WSManager 维护在线连接和广播组
// clients 是用户个人组（一个用户可以开多个端），rooms 是会话组
// 组成员关系纯粹是路由结构，不持有任何会话或消息数据，进程重启后由客户端重新 join 重建
type WSManager struct {
	clients    map[uint][]*Client
	rooms      map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
}

// Manager 全局 WebSocket 管理器
var Manager = &WSManager{
	clients:    make(map[uint][]*Client),
	rooms:      make(map[string]map[*Client]struct{}),
	register:   make(chan *Client),
	unregister: make(chan *Client),
}

// Run 处理连接的注册和注销，main 里以 goroutine 启动
func (m *WSManager) Run() {
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			// 连接建立即加入本人的个人组，跨会话的未读提醒走这里
			m.clients[client.UserID] = append(m.clients[client.UserID], client)
			m.mu.Unlock()
			log.Println("New client registered:", client.UserID)
			go client.StartHeartbeat()

		case client := <-m.unregister:
			m.mu.Lock()
			m.removeClientLocked(client)
			m.mu.Unlock()
			log.Println("Client unregistered:", client.UserID)
		}
	}
}

// removeClientLocked 释放连接的所有组成员关系，调用方持有 m.mu
func (m *WSManager) removeClientLocked(client *Client) {
	if clients, ok := m.clients[client.UserID]; ok {
		for i, c := range clients {
			if c == client {
				m.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
				break
			}
		}
		if len(m.clients[client.UserID]) == 0 {
			delete(m.clients, client.UserID)
		}
	}
	for conversationID := range client.rooms {
		m.removeFromRoomLocked(client, conversationID)
	}
	client.shutdown()
}

// JoinRoom 把连接加入会话组，鉴权由调用方先行完成
func (m *WSManager) JoinRoom(client *Client, conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rooms[conversationID] == nil {
		m.rooms[conversationID] = make(map[*Client]struct{})
	}
	m.rooms[conversationID][client] = struct{}{}
	client.rooms[conversationID] = struct{}{}
}

// LeaveRoom 把连接移出会话组，本来就不在组里也不算错
func (m *WSManager) LeaveRoom(client *Client, conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeFromRoomLocked(client, conversationID)
}

func (m *WSManager) removeFromRoomLocked(client *Client, conversationID string) {
	if room, ok := m.rooms[conversationID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(m.rooms, conversationID)
		}
	}
	delete(client.rooms, conversationID)
}

// InRoom 判断连接是否在会话组里
func (m *WSManager) InRoom(client *Client, conversationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := client.rooms[conversationID]
	return ok
}

// MessageCreated 消息落库成功后的推送：发给会话组的所有连接
// 接收方没打开这个会话的端走个人组补发一份，用于更新会话列表的未读角标
func (m *WSManager) MessageCreated(msg MessageView) {
	payload, err := json.Marshal(Event{Type: "message", ConversationID: msg.ConversationID, Message: &msg})
	if err != nil {
		log.Println("Failed to marshal message event:", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	room := m.rooms[msg.ConversationID]
	for client := range room {
		m.pushLocked(client, payload)
	}
	for _, client := range m.clients[msg.ReceiverID] {
		if _, inRoom := room[client]; !inRoom {
			m.pushLocked(client, payload)
		}
	}
}

// ConversationRead 已读回执推送给会话组，对方打开的视图据此更新已读标记
func (m *WSManager) ConversationRead(conversationID string, readerID uint) {
	payload, err := json.Marshal(Event{Type: "read", ConversationID: conversationID, UserID: readerID})
	if err != nil {
		log.Println("Failed to marshal read event:", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for client := range m.rooms[conversationID] {
		m.pushLocked(client, payload)
	}
}

// Typing 输入状态转发给会话组里除发送者外的连接，不落库
func (m *WSManager) Typing(sender *Client, conversationID string, isTyping bool) {
	payload, err := json.Marshal(Event{
		Type:           "typing",
		ConversationID: conversationID,
		UserID:         sender.UserID,
		IsTyping:       isTyping,
	})
	if err != nil {
		log.Println("Failed to marshal typing event:", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for client := range m.rooms[conversationID] {
		if client != sender {
			m.pushLocked(client, payload)
		}
	}
}

// pushLocked 非阻塞投递，发送缓冲打满的慢客户端跳过本条
func (m *WSManager) pushLocked(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
		log.Println("Send buffer full, skipping client:", client.UserID)
	}
}

// SendEvent 只发给某一条连接，命令的执行结果和错误都走这里
func (c *Client) SendEvent(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Println("Failed to marshal event:", err)
		return
	}
	select {
	case c.Send <- payload:
	default:
		log.Println("Send buffer full, skipping client:", c.UserID)
	}
}

// WriteMessages 写出 goroutine，连接上的所有写都由它一家完成
func (c *Client) WriteMessages() {
	defer c.Conn.Close()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.Send:
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// StartHeartbeat 应用层心跳：定期发 ping，pong 超时就断开
func (c *Client) StartHeartbeat() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		select {
		case c.Send <- []byte("ping"):
		default:
			// 发送缓冲都塞不进 ping，连接已经不健康了
		}

		c.mu.Lock()
		expired := time.Since(c.LastPing) > pongTimeout
		c.mu.Unlock()
		if expired {
			log.Println("Client timeout, closing connection:", c.UserID)
			c.Conn.Close()
			Manager.unregister <- c
			return
		}
	}
}

// shutdown 停止写出和心跳 goroutine，重复调用无害
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
