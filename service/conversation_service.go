package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/symposium-im/im-sdk/models"
	"github.com/symposium-im/im-sdk/repository"
	"gorm.io/gorm"
)

type ConversationService struct {
	*Service
	convDAO *repository.ConversationDAO
	userDAO *models.UserDAO
}

func NewConversationService(s *Service) *ConversationService {
	return &ConversationService{
		Service: s,
		convDAO: repository.NewConversationDAO(s.DB),
		userDAO: models.NewUserDAO(s.DB),
	}
}

// ConversationDTO 会话列表项。私聊会话带对端用户，便于前端直接渲染。
type ConversationDTO struct {
	ID          uint64      `json:"id"`
	Type        string      `json:"type"`
	Name        string      `json:"name"`
	Peer        *UserDTO    `json:"peer,omitempty"`
	LastMessage *MessageDTO `json:"last_message,omitempty"`
	UnreadCount int64       `json:"unread_count"`
	CreatedAt   time.Time   `json:"created_at"`
}

// MemberDTO 会话成员
type MemberDTO struct {
	UserID   uint64 `json:"user_id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
	Status   string `json:"status"`
	IsAI     bool   `json:"is_ai"`
	Role     string `json:"role"`
}

// ListConversations 返回用户的全部会话，附最后一条消息与未读数。
func (s *ConversationService) ListConversations(userID uint64) ([]ConversationDTO, error) {
	convs, err := s.convDAO.ListByUserID(userID)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationDTO, 0, len(convs))
	for i := range convs {
		conv := &convs[i]
		dto := ConversationDTO{
			ID:        conv.ID,
			Type:      conv.Type,
			Name:      conv.Name,
			CreatedAt: conv.CreatedAt,
		}
		if conv.Type == models.ConversationTypePrivate {
			peer, err := s.convDAO.PrivatePeer(conv.ID, userID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
			dto.Peer = toUserDTO(peer)
			if dto.Peer != nil {
				dto.Name = dto.Peer.Nickname
			}
		}
		last, err := s.convDAO.LastMessage(conv.ID)
		if err != nil {
			return nil, err
		}
		dto.LastMessage = toMessageDTO(last)
		unread, err := s.convDAO.UnreadCount(conv.ID, userID)
		if err != nil {
			return nil, err
		}
		dto.UnreadCount = unread
		out = append(out, dto)
	}
	return out, nil
}

// GetOrCreatePrivate 获取或创建与对方的私聊会话。
func (s *ConversationService) GetOrCreatePrivate(userID, peerID uint64) (*ConversationDTO, bool, error) {
	if userID == peerID {
		return nil, false, fmt.Errorf("不能与自己创建私聊")
	}
	peer, err := s.userDAO.FindByID(peerID)
	if err != nil {
		if s.userDAO.IsNotFound(err) {
			return nil, false, fmt.Errorf("对方用户不存在")
		}
		return nil, false, err
	}

	conv, created, err := s.convDAO.GetOrCreatePrivate(userID, peerID)
	if err != nil {
		return nil, false, err
	}
	dto := &ConversationDTO{
		ID:        conv.ID,
		Type:      conv.Type,
		Name:      peer.Nickname,
		Peer:      toUserDTO(peer),
		CreatedAt: conv.CreatedAt,
	}
	return dto, created, nil
}

// CreateGroup 创建群聊，创建者为群主。
func (s *ConversationService) CreateGroup(ownerID uint64, name string, memberIDs []uint64) (*ConversationDTO, error) {
	if name == "" {
		return nil, fmt.Errorf("群名称不能为空")
	}
	conv, err := s.convDAO.CreateGroup(name, ownerID, memberIDs)
	if err != nil {
		return nil, err
	}
	return &ConversationDTO{
		ID:        conv.ID,
		Type:      conv.Type,
		Name:      conv.Name,
		CreatedAt: conv.CreatedAt,
	}, nil
}

// ListMembers 返回会话成员，含在线状态。调用方须先通过成员校验。
func (s *ConversationService) ListMembers(conversationID, userID uint64) ([]MemberDTO, error) {
	ok, err := s.convDAO.IsMember(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}
	infos, err := s.convDAO.ListMembers(conversationID)
	if err != nil {
		return nil, err
	}
	out := make([]MemberDTO, 0, len(infos))
	for _, m := range infos {
		out = append(out, MemberDTO{
			UserID:   m.UserID,
			Username: m.Username,
			Nickname: m.Nickname,
			Avatar:   m.Avatar,
			Status:   m.Status,
			IsAI:     m.IsAI,
			Role:     m.Role,
		})
	}
	return out, nil
}

// IsMember 成员校验，透传给管道和处理器使用。
func (s *ConversationService) IsMember(conversationID, userID uint64) (bool, error) {
	return s.convDAO.IsMember(conversationID, userID)
}

// MemberIDs 会话全部成员 ID，房间兜底订阅时使用。
func (s *ConversationService) MemberIDs(conversationID uint64) ([]uint64, error) {
	return s.convDAO.MemberIDs(conversationID)
}

// ConversationIDsOf 用户所属的全部会话 ID，连接建立时批量订阅房间。
func (s *ConversationService) ConversationIDsOf(userID uint64) ([]uint64, error) {
	return s.convDAO.ConversationIDsOf(userID)
}

// AIMembers 会话中的 AI 成员，消息入库后用来派发 AI 回合任务。
func (s *ConversationService) AIMembers(conversationID uint64) ([]models.User, error) {
	return s.convDAO.AIMembers(conversationID)
}

// StartAIChat 与指定 AI 角色开启（或复用）私聊会话。
func (s *ConversationService) StartAIChat(userID, aiUserID uint64) (*ConversationDTO, bool, error) {
	ai, err := s.userDAO.FindByID(aiUserID)
	if err != nil {
		if s.userDAO.IsNotFound(err) {
			return nil, false, fmt.Errorf("AI 角色不存在")
		}
		return nil, false, err
	}
	if !ai.IsAI {
		return nil, false, fmt.Errorf("该用户不是 AI 角色")
	}
	return s.GetOrCreatePrivate(userID, aiUserID)
}
