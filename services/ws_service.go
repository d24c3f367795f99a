package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Command 客户端发来的命令帧
type Command struct {
	Type           string `json:"type"` // join / leave / send / mark_read / typing
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content,omitempty"`
	IsTyping       bool   `json:"is_typing,omitempty"`
}

// HandleWebSocket 建立 WebSocket 连接
// Token 从连接参数里带，升级前校验一次，之后命令不再逐条鉴权
func HandleWebSocket(ctx *gin.Context) {
	userID, err := ParseToken(ctx.Query("token"))
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing token"})
		return
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade connection"})
		return
	}

	client := NewClient(conn, userID)
	Manager.register <- client

	go client.ReadMessages()
	go client.WriteMessages()
}

// ReadMessages 读入 goroutine：解析命令帧并分发
// 命令失败只把错误回给本连接，广播只由落库成功的变更触发
func (c *Client) ReadMessages() {
	defer func() {
		Manager.unregister <- c
		c.Conn.Close()
	}()

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}
		if string(raw) == "pong" {
			c.mu.Lock()
			c.LastPing = time.Now()
			c.mu.Unlock()
			continue
		}

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.SendEvent(Event{Type: "error", Error: "invalid command frame"})
			continue
		}
		c.dispatch(cmd)
	}
}

func (c *Client) dispatch(cmd Command) {
	ctx := context.Background()

	switch cmd.Type {
	case "join":
		// 先借一次消息查询触发成员资格检查，通过了才加组
		if _, err := Chat.ListMessages(ctx, c.UserID, cmd.ConversationID, 1, 1); err != nil {
			c.sendCommandError(cmd, err)
			return
		}
		Manager.JoinRoom(c, cmd.ConversationID)
		c.SendEvent(Event{Type: "joined", ConversationID: cmd.ConversationID})

	case "leave":
		// 不在组里也直接成功，幂等
		Manager.LeaveRoom(c, cmd.ConversationID)

	case "send":
		view, err := Chat.SendMessage(ctx, c.UserID, cmd.ConversationID, cmd.Content)
		if err != nil {
			c.sendCommandError(cmd, err)
			return
		}
		// 组内广播由 Notifier 完成，这里只把结果回给发送方本连接
		c.SendEvent(Event{Type: "sent", ConversationID: cmd.ConversationID, Message: view})

	case "mark_read":
		if _, err := Chat.MarkConversationRead(ctx, c.UserID, cmd.ConversationID); err != nil {
			c.sendCommandError(cmd, err)
			return
		}

	case "typing":
		if !Manager.InRoom(c, cmd.ConversationID) {
			c.SendEvent(Event{Type: "error", ConversationID: cmd.ConversationID, Error: "join the conversation first"})
			return
		}
		Manager.Typing(c, cmd.ConversationID, cmd.IsTyping)

	default:
		c.SendEvent(Event{Type: "error", Error: "unknown command: " + cmd.Type})
	}
}

// sendCommandError 把业务错误回给本连接
func (c *Client) sendCommandError(cmd Command, err error) {
	switch {
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidArgument):
		c.SendEvent(Event{Type: "error", ConversationID: cmd.ConversationID, Error: err.Error()})
	default:
		log.Printf("Command %q failed for user %d: %v", cmd.Type, c.UserID, err)
		c.SendEvent(Event{Type: "error", ConversationID: cmd.ConversationID, Error: "internal error"})
	}
}
