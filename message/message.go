package message

import "time"

// Req WS 入站事件的统一载荷。先按 Type 探测，再取对应字段。
type Req struct {
	Type           string `json:"type"`                 // 事件类型：send_message/typing/stop_typing/read_message/join_conversation
	ConversationID uint64 `json:"conversation_id"`      // 会话 ID
	Content        string `json:"content,omitempty"`    // 消息内容（send_message）
	MsgType        string `json:"msg_type,omitempty"`   // 消息类型 text/image，缺省 text
	MessageID      uint64 `json:"message_id,omitempty"` // 单条已读（read_message 可选）
}

// NewMessageEvent 新消息广播（完整消息记录 + 发送者展示字段），
// 发送者自己的全部设备同样收到，保证渲染路径只有一条。
type NewMessageEvent struct {
	Type           string    `json:"type"`
	ID             uint64    `json:"id"`
	ConversationID uint64    `json:"conversation_id"`
	SenderID       uint64    `json:"sender_id"`
	SenderName     string    `json:"username"`
	SenderNickname string    `json:"nickname"`
	SenderAvatar   string    `json:"avatar"`
	MsgType        string    `json:"msg_type"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// TypingEvent typing/stop_typing 广播
type TypingEvent struct {
	Type           string `json:"type"`
	UserID         uint64 `json:"user_id"`
	Username       string `json:"username,omitempty"`
	ConversationID uint64 `json:"conversation_id"`
}

// PresenceEvent user_online/user_offline 广播
type PresenceEvent struct {
	Type   string `json:"type"`
	UserID uint64 `json:"user_id"`
}

// ErrorEvent 仅发给出错方
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
