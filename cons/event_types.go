package cons

// WS 入站事件类型（客户端 -> 服务端）
const (
	EventSendMessage      = "send_message"      // 发送消息
	EventTyping           = "typing"            // 正在输入
	EventStopTyping       = "stop_typing"       // 停止输入
	EventReadMessage      = "read_message"      // 标记已读
	EventJoinConversation = "join_conversation" // 加入新会话房间
)

// WS 出站事件类型（服务端 -> 客户端）
const (
	EventNewMessage  = "new_message"  // 新消息（含发送者展示字段）
	EventUserOnline  = "user_online"  // 好友上线
	EventUserOffline = "user_offline" // 好友下线
	EventError       = "error"        // 仅发给出错方的错误提示
)
