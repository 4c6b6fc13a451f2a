package im_sdk

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/symposium-im/im-sdk/cons"
	"github.com/symposium-im/im-sdk/message"
	"github.com/symposium-im/im-sdk/service"
)

// bindWsHandlersOnMessage 将 WS 入站事件处理从 engine.go 抽出来，避免 engine.go 臃肿。
// 说明：放在包根目录（同 WsServer/engine.go 同级），可以直接访问 Client 类型，
// 避免 service 层循环依赖。
func (e *Engine) bindWsHandlersOnMessage() {
	e.WsServer.SetOnMessage(func(client *Client, msg []byte) {
		if client == nil {
			return
		}

		// 1) 先尝试解析 type
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &head); err != nil {
			e.sendWsError(client, "无法解析消息")
			return
		}

		var req message.Req
		if err := json.Unmarshal(msg, &req); err != nil {
			log.Printf("Invalid message format: %v", err)
			e.sendWsError(client, "无法解析消息")
			return
		}

		switch head.Type {
		case cons.EventSendMessage:
			e.handleSendMessage(client, &req)
		case cons.EventTyping, cons.EventStopTyping:
			e.handleTyping(client, &req, head.Type)
		case cons.EventReadMessage:
			e.handleReadMessage(client, &req)
		case cons.EventJoinConversation:
			e.handleJoinConversation(client, &req)
		default:
			e.sendWsError(client, "未知的事件类型: "+head.Type)
		}
	})
}

// handleSendMessage 核心消息管道：成员校验 -> 落库 -> 房间广播 -> AI 派发。
// 落库成功即完成持久化，之后广播失败的连接会被 hub 摘除，不回滚消息。
func (e *Engine) handleSendMessage(client *Client, req *message.Req) {
	savedMsg, err := e.MsgService.SaveMessage(req.ConversationID, client.UserID, req.Content, req.MsgType)
	if err != nil {
		e.sendWsError(client, err.Error())
		return
	}

	// 发送方设备可能尚未进入该房间（例如会话是刚创建的），补订阅一次
	e.WsServer.Subscribe(client, req.ConversationID)

	resp := message.NewMessageEvent{
		Type:           cons.EventNewMessage,
		ID:             savedMsg.ID,
		ConversationID: savedMsg.ConversationID,
		SenderID:       savedMsg.SenderID,
		SenderName:     client.Username,
		SenderNickname: client.Nickname,
		SenderAvatar:   client.Avatar,
		MsgType:        savedMsg.Type,
		Content:        savedMsg.Content,
		CreatedAt:      savedMsg.CreatedAt,
	}

	respBytes, _ := json.Marshal(resp)
	// 发送者自己的设备也收到，客户端只有一条渲染路径
	e.WsServer.Publish(savedMsg.ConversationID, respBytes, nil)

	// AI 派发：会话里的每个 AI 成员独立排一个回合任务
	aiMembers, err := e.ConversationService.AIMembers(savedMsg.ConversationID)
	if err != nil {
		log.Printf("查询 AI 成员失败 conv=%d: %v", savedMsg.ConversationID, err)
		return
	}
	for i := range aiMembers {
		ai := &aiMembers[i]
		if ai.ID == client.UserID {
			continue
		}
		e.Orchestrator.Enqueue(savedMsg.ConversationID, ai)
	}
}

// handleTyping 输入状态按会话房间转发，不落库，发出的连接自己不收。
// 非成员的事件丢弃，错误只回给发出的那条连接。
func (e *Engine) handleTyping(client *Client, req *message.Req, eventType string) {
	if req.ConversationID == 0 {
		e.sendWsError(client, "缺少会话 ID")
		return
	}
	ok, err := e.ConversationService.IsMember(req.ConversationID, client.UserID)
	if err != nil {
		log.Printf("成员校验失败 conv=%d user=%d: %v", req.ConversationID, client.UserID, err)
		return
	}
	if !ok {
		e.sendWsError(client, service.ErrNotMember.Error())
		return
	}
	payload, _ := json.Marshal(message.TypingEvent{
		Type:           eventType,
		UserID:         client.UserID,
		Username:       client.Username,
		ConversationID: req.ConversationID,
	})
	e.WsServer.Publish(req.ConversationID, payload, client)
}

// handleReadMessage 已读回执。成员校验在 service 层，非成员不落任何更新。
// 幂等，重复标记无副作用。
func (e *Engine) handleReadMessage(client *Client, req *message.Req) {
	if req.ConversationID == 0 {
		e.sendWsError(client, "缺少会话 ID")
		return
	}
	if err := e.MsgService.MarkRead(req.ConversationID, client.UserID, req.MessageID); err != nil {
		if errors.Is(err, service.ErrNotMember) {
			e.sendWsError(client, err.Error())
			return
		}
		log.Printf("标记已读失败 conv=%d user=%d: %v", req.ConversationID, client.UserID, err)
	}
}

// handleJoinConversation 运行中加入新会话的房间（例如别人刚把你拉进群）。
func (e *Engine) handleJoinConversation(client *Client, req *message.Req) {
	if req.ConversationID == 0 {
		return
	}
	ok, err := e.ConversationService.IsMember(req.ConversationID, client.UserID)
	if err != nil {
		e.sendWsError(client, "加入会话失败")
		return
	}
	if !ok {
		e.sendWsError(client, service.ErrNotMember.Error())
		return
	}
	e.WsServer.Subscribe(client, req.ConversationID)
}

// sendWsError 只回给出错的那条连接，不打扰同用户的其他设备。
func (e *Engine) sendWsError(client *Client, errMsg string) {
	payload, _ := json.Marshal(message.ErrorEvent{Type: cons.EventError, Message: errMsg})
	select {
	case client.send <- payload:
	default:
		// 连接已堵塞，放弃投递
	}
}
