package service

import (
	"fmt"
	"time"

	"github.com/symposium-im/im-sdk/models"
	"github.com/symposium-im/im-sdk/repository"
)

// SenderDTO 发送人展示字段（用于消息列表返回）
type SenderDTO struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

// MessageDTO 消息列表项（带发送人信息）
type MessageDTO struct {
	ID             uint64     `json:"id"`
	ConversationID uint64     `json:"conversation_id"`
	SenderID       uint64     `json:"sender_id"`
	Sender         *SenderDTO `json:"sender,omitempty"`
	Type           string     `json:"type"`
	Content        string     `json:"content"`
	IsRead         bool       `json:"is_read"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toSenderDTO(u *models.User) *SenderDTO {
	if u == nil || u.ID == 0 {
		return nil
	}
	return &SenderDTO{ID: u.ID, Username: u.Username, Nickname: u.Nickname, Avatar: u.Avatar}
}

func toMessageDTO(m *models.Message) *MessageDTO {
	if m == nil {
		return nil
	}
	return &MessageDTO{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Sender:         toSenderDTO(&m.Sender),
		Type:           m.Type,
		Content:        m.Content,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
	}
}

type MessageService struct {
	*Service
	messageDAO *models.MessageDAO
	convDAO    *repository.ConversationDAO
}

func NewMessageService(s *Service) *MessageService {
	return &MessageService{
		Service:    s,
		messageDAO: models.NewMessageDAO(s.DB),
		convDAO:    repository.NewConversationDAO(s.DB),
	}
}

// ErrNotMember 发送者不在会话成员表里。管道据此走"仅回错误给发送者"的分支。
var ErrNotMember = fmt.Errorf("你不是该会话的成员")

// SaveMessage 校验成员身份后追加消息。
// 持久化是持久性边界：返回即落库，广播是其上的尽力而为通知层。
func (s *MessageService) SaveMessage(conversationID, senderID uint64, content, msgType string) (*models.Message, error) {
	if conversationID == 0 || content == "" {
		return nil, fmt.Errorf("会话 ID 和内容均为必填")
	}
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	if msgType != models.MessageTypeText && msgType != models.MessageTypeImage {
		return nil, fmt.Errorf("不支持的消息类型: %s", msgType)
	}

	ok, err := s.convDAO.IsMember(conversationID, senderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Type:           msgType,
		Content:        content,
	}
	if err := s.messageDAO.Create(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// GetConversationMessages 获取会话历史：最新 limit 条（可带 before 游标），按旧→新返回。
// 与原始行为一致，拉取历史同时把他人消息标记为已读。
func (s *MessageService) GetConversationMessages(conversationID, userID uint64, limit int, beforeID uint64) ([]MessageDTO, error) {
	ok, err := s.convDAO.IsMember(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}

	msgs, err := s.messageDAO.FindByConversation(conversationID, limit, beforeID)
	if err != nil {
		return nil, err
	}

	if err := s.messageDAO.MarkConversationRead(conversationID, userID); err != nil {
		return nil, err
	}

	// 倒序取出，正序返回
	out := make([]MessageDTO, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		if dto := toMessageDTO(&msgs[i]); dto != nil {
			out = append(out, *dto)
		}
	}
	return out, nil
}

// MarkRead 已读回执：messageID>0 只标记单条，否则批量标记会话内他人消息。
// 与 SaveMessage 同样先做成员校验，非成员一律拒绝。
// 两种路径都幂等，重复调用不改变结果。
func (s *MessageService) MarkRead(conversationID, readerID, messageID uint64) error {
	if conversationID == 0 {
		return fmt.Errorf("会话 ID 为必填")
	}
	ok, err := s.convDAO.IsMember(conversationID, readerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMember
	}
	if messageID > 0 {
		return s.messageDAO.MarkRead(conversationID, readerID, messageID)
	}
	return s.messageDAO.MarkConversationRead(conversationID, readerID)
}

// GetMessageByID 根据 ID 获取消息
func (s *MessageService) GetMessageByID(messageID uint64) (*models.Message, error) {
	return s.messageDAO.FindByID(messageID)
}
