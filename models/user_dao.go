package models

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// UserDAO 封装 User 相关的数据库操作
type UserDAO struct {
	db *gorm.DB
}

func NewUserDAO(db *gorm.DB) *UserDAO {
	return &UserDAO{db: db}
}

func (dao *UserDAO) Create(user *User) error {
	return dao.db.Create(user).Error
}

func (dao *UserDAO) FindByID(id uint64) (*User, error) {
	var u User
	if err := dao.db.Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (dao *UserDAO) FindByUsername(username string) (*User, error) {
	var u User
	if err := dao.db.Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (dao *UserDAO) FindByEmail(email string) (*User, error) {
	if email == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var u User
	if err := dao.db.Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByAccount username 优先，带 @ 视为邮箱。
func (dao *UserDAO) FindByAccount(account string) (*User, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return nil, gorm.ErrRecordNotFound
	}
	if strings.Contains(account, "@") {
		return dao.FindByEmail(strings.ToLower(account))
	}
	return dao.FindByUsername(account)
}

// ExistsByAccount 检查 username/email 是否已被占用（注册唯一性校验）。
func (dao *UserDAO) ExistsByAccount(username, email string) (bool, error) {
	var count int64
	err := dao.db.Model(&User{}).
		Where("username = ? OR email = ?", username, strings.ToLower(strings.TrimSpace(email))).
		Count(&count).Error
	return count > 0, err
}

func (dao *UserDAO) UpdateFields(id uint64, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return dao.db.Model(&User{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateStatus 更新持久化在线状态（online/offline）。
func (dao *UserDAO) UpdateStatus(id uint64, status string) error {
	return dao.db.Model(&User{}).Where("id = ?", id).Update("status", status).Error
}

// AcceptedFriendIDs 获取已接受的好友 ID 集合。
// 关系是对称的：user_id 或 friend_id 任一侧是本人都算。
func (dao *UserDAO) AcceptedFriendIDs(userID uint64) ([]uint64, error) {
	type row struct {
		UserID   uint64
		FriendID uint64
	}
	var rows []row
	err := dao.db.Model(&Friend{}).
		Select("user_id, friend_id").
		Where("(user_id = ? OR friend_id = ?) AND status = ?", userID, userID, FriendStatusAccepted).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]uint64, 0, len(rows))
	for _, r := range rows {
		if r.UserID == userID {
			out = append(out, r.FriendID)
		} else {
			out = append(out, r.UserID)
		}
	}
	return out, nil
}

// ListAIUsers 获取全部 AI 用户（种子数据）。
func (dao *UserDAO) ListAIUsers() ([]User, error) {
	var users []User
	err := dao.db.Where("is_ai = ?", true).Find(&users).Error
	return users, err
}

// SearchUsers 按关键字搜索用户（username/nickname），可排除某个 userID。
// 注意：返回完整 User 结构体（含 Password），上层请自行转 DTO/脱敏。
func (dao *UserDAO) SearchUsers(keyword string, excludeUserID uint64, limit int) ([]User, error) {
	keyword = strings.TrimSpace(keyword)
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	q := dao.db.Model(&User{})
	if excludeUserID > 0 {
		q = q.Where("id <> ?", excludeUserID)
	}
	if keyword != "" {
		like := "%" + keyword + "%"
		q = q.Where("username LIKE ? OR nickname LIKE ?", like, like)
	}

	var users []User
	err := q.Order("id DESC").Limit(limit).Find(&users).Error
	return users, err
}

func (dao *UserDAO) IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
