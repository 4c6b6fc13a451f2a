package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/symposium-im/im-sdk/models"
	"gorm.io/gorm"
)

// FriendService 好友关系 CRUD。
// 核心只消费它的一个结果：accepted 好友集合（presence 通知的收件人范围）。
type FriendService struct {
	*Service
	userDAO *models.UserDAO
}

func NewFriendService(s *Service) *FriendService {
	return &FriendService{Service: s, userDAO: models.NewUserDAO(s.DB)}
}

// FriendDTO 好友列表项
type FriendDTO struct {
	UserID      uint64    `json:"id"`
	Username    string    `json:"username"`
	Nickname    string    `json:"nickname"`
	Avatar      string    `json:"avatar"`
	Status      string    `json:"status"`
	FriendSince time.Time `json:"friend_since"`
}

// RequestDTO 好友申请项
type RequestDTO struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"user_id"`
	Username  string    `json:"username"`
	Nickname  string    `json:"nickname"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
}

// SendRequest 发送好友申请。任一方向已有关系则拒绝。
func (s *FriendService) SendRequest(fromID, toID uint64) error {
	if toID == 0 {
		return fmt.Errorf("需要目标用户 ID")
	}
	if fromID == toID {
		return fmt.Errorf("不能添加自己为好友")
	}
	if _, err := s.userDAO.FindByID(toID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("用户不存在")
		}
		return err
	}

	var count int64
	err := s.DB.Model(&models.Friend{}).
		Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)", fromID, toID, toID, fromID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("好友关系或申请已存在")
	}

	return s.DB.Create(&models.Friend{
		UserID:   fromID,
		FriendID: toID,
		Status:   models.FriendStatusPending,
	}).Error
}

// AcceptRequest 接受好友申请：申请必须是发给当前用户的 pending 记录。
func (s *FriendService) AcceptRequest(requestID, userID uint64) error {
	var f models.Friend
	err := s.DB.Where("id = ? AND friend_id = ? AND status = ?", requestID, userID, models.FriendStatusPending).
		First(&f).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("好友申请不存在")
		}
		return err
	}
	return s.DB.Model(&models.Friend{}).Where("id = ?", f.ID).
		Update("status", models.FriendStatusAccepted).Error
}

// RejectRequest 拒绝好友申请（直接删除记录，允许重新申请）。
func (s *FriendService) RejectRequest(requestID, userID uint64) error {
	res := s.DB.Where("id = ? AND friend_id = ? AND status = ?", requestID, userID, models.FriendStatusPending).
		Delete(&models.Friend{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("好友申请不存在")
	}
	return nil
}

// DeleteFriend 删除好友（双向删除）。
func (s *FriendService) DeleteFriend(userID, friendID uint64) error {
	return s.DB.Where("(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
		userID, friendID, friendID, userID).
		Delete(&models.Friend{}).Error
}

// ListFriends 已接受好友列表（带展示字段）。
func (s *FriendService) ListFriends(userID uint64) ([]FriendDTO, error) {
	friendTable := models.Friend{}.TableName()
	userTable := models.User{}.TableName()

	var out []FriendDTO
	err := s.DB.Table(friendTable+" f").
		Select("u.id AS user_id, u.username, u.nickname, u.avatar, u.status, f.created_at AS friend_since").
		Joins("JOIN "+userTable+" u ON (f.user_id = ? AND f.friend_id = u.id) OR (f.friend_id = ? AND f.user_id = u.id)", userID, userID).
		Where("f.status = ?", models.FriendStatusAccepted).
		Scan(&out).Error
	return out, err
}

// ListPending 待处理申请：received 是别人发给我的，sent 是我发出去的。
func (s *FriendService) ListPending(userID uint64) (received, sent []RequestDTO, err error) {
	friendTable := models.Friend{}.TableName()
	userTable := models.User{}.TableName()

	err = s.DB.Table(friendTable+" f").
		Select("f.id, u.id AS user_id, u.username, u.nickname, u.avatar, f.created_at").
		Joins("JOIN "+userTable+" u ON f.user_id = u.id").
		Where("f.friend_id = ? AND f.status = ?", userID, models.FriendStatusPending).
		Scan(&received).Error
	if err != nil {
		return nil, nil, err
	}

	err = s.DB.Table(friendTable+" f").
		Select("f.id, u.id AS user_id, u.username, u.nickname, u.avatar, f.created_at").
		Joins("JOIN "+userTable+" u ON f.friend_id = u.id").
		Where("f.user_id = ? AND f.status = ?", userID, models.FriendStatusPending).
		Scan(&sent).Error
	if err != nil {
		return nil, nil, err
	}
	return received, sent, nil
}
