package repository

import (
	"fmt"

	"github.com/symposium-im/im-sdk/models"
	"gorm.io/gorm"
)

// ConversationDAO 封装 Conversation/ConversationMember 相关的数据库操作
//
// 约定：
// - 只做"数据访问"（CRUD/查询封装），不做业务编排（权限、通知等）。
// - 事务边界由 service 控制；如需在事务中执行，请使用 WithDB(tx)。
type ConversationDAO struct {
	db *gorm.DB
}

func NewConversationDAO(db *gorm.DB) *ConversationDAO {
	return &ConversationDAO{db: db}
}

// WithDB 用于在事务（tx）中复用 DAO
func (dao *ConversationDAO) WithDB(db *gorm.DB) *ConversationDAO {
	if db == nil {
		return dao
	}
	return &ConversationDAO{db: db}
}

func (dao *ConversationDAO) FindByID(id uint64) (*models.Conversation, error) {
	var conv models.Conversation
	if err := dao.db.Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// IsMember 发送者是否为会话成员
func (dao *ConversationDAO) IsMember(conversationID, userID uint64) (bool, error) {
	var count int64
	err := dao.db.Model(&models.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}

// MemberIDs 会话全部成员的用户 ID
func (dao *ConversationDAO) MemberIDs(conversationID uint64) ([]uint64, error) {
	var ids []uint64
	err := dao.db.Model(&models.ConversationMember{}).
		Where("conversation_id = ?", conversationID).
		Pluck("user_id", &ids).Error
	return ids, err
}

// ConversationIDsOf 用户当前所属的全部会话 ID（建连时订阅房间用）。
func (dao *ConversationDAO) ConversationIDsOf(userID uint64) ([]uint64, error) {
	var ids []uint64
	err := dao.db.Model(&models.ConversationMember{}).
		Where("user_id = ?", userID).
		Pluck("conversation_id", &ids).Error
	return ids, err
}

// AIMembers 会话中的 AI 成员（可能多个，各自独立触发回复）。
func (dao *ConversationDAO) AIMembers(conversationID uint64) ([]models.User, error) {
	var users []models.User
	err := dao.db.Model(&models.User{}).
		Joins("JOIN "+models.ConversationMember{}.TableName()+" cm ON cm.user_id = "+models.User{}.TableName()+".id").
		Where("cm.conversation_id = ? AND is_ai = ?", conversationID, true).
		Find(&users).Error
	return users, err
}

// AddMember 添加成员；(conversation_id, user_id) 唯一键保证一对至多一条。
func (dao *ConversationDAO) AddMember(conversationID, userID uint64, role string) error {
	if role == "" {
		role = models.MemberRoleMember
	}
	m := &models.ConversationMember{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
	}
	return dao.db.Create(m).Error
}

// FindPrivateBetween 查两人之间已存在的私聊会话。
func (dao *ConversationDAO) FindPrivateBetween(userA, userB uint64) (*models.Conversation, error) {
	cmTable := models.ConversationMember{}.TableName()
	convTable := models.Conversation{}.TableName()

	var conv models.Conversation
	err := dao.db.Model(&models.Conversation{}).
		Joins("JOIN "+cmTable+" cm1 ON cm1.conversation_id = "+convTable+".id AND cm1.user_id = ?", userA).
		Joins("JOIN "+cmTable+" cm2 ON cm2.conversation_id = "+convTable+".id AND cm2.user_id = ?", userB).
		Where(convTable+".type = ?", models.ConversationTypePrivate).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// privateLockWait 获取命名锁的等待上限（秒）。
const privateLockWait = 5

// GetOrCreatePrivate 获取或惰性创建两人私聊。
// lookup-then-insert 本身不防并发；HTTP 处理器是并发进来的，
// 同一对用户的创建用 MySQL 命名锁（GET_LOCK）串行，锁按连接持有、随事务连接释放。
func (dao *ConversationDAO) GetOrCreatePrivate(userA, userB uint64) (conv *models.Conversation, created bool, err error) {
	a, b := userA, userB
	if a > b {
		a, b = b, a
	}
	lockName := fmt.Sprintf("%sprivate_conv_%d_%d", models.TablePrefix(), a, b)

	err = dao.db.Transaction(func(tx *gorm.DB) error {
		txDAO := dao.WithDB(tx)

		var acquired int
		if lerr := tx.Raw("SELECT GET_LOCK(?, ?)", lockName, privateLockWait).Scan(&acquired).Error; lerr != nil {
			return lerr
		}
		if acquired != 1 {
			return fmt.Errorf("获取私聊创建锁超时: %s", lockName)
		}
		defer func() {
			var released int
			_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&released).Error
		}()

		existing, ferr := txDAO.FindPrivateBetween(userA, userB)
		if ferr == nil {
			conv = existing
			return nil
		}
		if ferr != gorm.ErrRecordNotFound {
			return ferr
		}

		c := &models.Conversation{Type: models.ConversationTypePrivate}
		if cerr := tx.Create(c).Error; cerr != nil {
			return cerr
		}
		if merr := txDAO.AddMember(c.ID, userA, models.MemberRoleMember); merr != nil {
			return merr
		}
		if merr := txDAO.AddMember(c.ID, userB, models.MemberRoleMember); merr != nil {
			return merr
		}
		conv = c
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return conv, created, nil
}

// CreateGroup 创建群会话：创建者为 owner，其余为 member。
func (dao *ConversationDAO) CreateGroup(name string, ownerID uint64, memberIDs []uint64) (*models.Conversation, error) {
	var conv *models.Conversation
	err := dao.db.Transaction(func(tx *gorm.DB) error {
		txDAO := dao.WithDB(tx)

		c := &models.Conversation{
			Type:    models.ConversationTypeGroup,
			Name:    name,
			OwnerID: ownerID,
		}
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		if err := txDAO.AddMember(c.ID, ownerID, models.MemberRoleOwner); err != nil {
			return err
		}

		// 去重 + 排除创建者
		seen := map[uint64]struct{}{ownerID: {}}
		for _, uid := range memberIDs {
			if uid == 0 {
				continue
			}
			if _, ok := seen[uid]; ok {
				continue
			}
			seen[uid] = struct{}{}
			if err := txDAO.AddMember(c.ID, uid, models.MemberRoleMember); err != nil {
				return err
			}
		}

		conv = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// MemberInfo 成员 + 用户展示字段
type MemberInfo struct {
	UserID   uint64 `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
	Status   string `json:"status"`
	IsAI     bool   `json:"is_ai"`
	Role     string `json:"role"`
}

// ListMembers 会话成员列表（带用户展示字段）。
func (dao *ConversationDAO) ListMembers(conversationID uint64) ([]MemberInfo, error) {
	cmTable := models.ConversationMember{}.TableName()
	userTable := models.User{}.TableName()

	var out []MemberInfo
	err := dao.db.Table(cmTable+" cm").
		Select("u.id AS user_id, u.username, u.nickname, u.avatar, u.status, u.is_ai, cm.role").
		Joins("JOIN "+userTable+" u ON cm.user_id = u.id").
		Where("cm.conversation_id = ?", conversationID).
		Scan(&out).Error
	return out, err
}

// ListByUserID 用户所属的全部会话。
func (dao *ConversationDAO) ListByUserID(userID uint64) ([]models.Conversation, error) {
	cmTable := models.ConversationMember{}.TableName()
	convTable := models.Conversation{}.TableName()

	var convs []models.Conversation
	err := dao.db.Model(&models.Conversation{}).
		Joins("JOIN "+cmTable+" cm ON cm.conversation_id = "+convTable+".id").
		Where("cm.user_id = ?", userID).
		Find(&convs).Error
	return convs, err
}

// UnreadCount 会话中非本人发送且未读的消息数。
func (dao *ConversationDAO) UnreadCount(conversationID, userID uint64) (int64, error) {
	var count int64
	err := dao.db.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, userID, false).
		Count(&count).Error
	return count, err
}

// LastMessage 会话最后一条消息；没有消息时返回 (nil, nil)。
func (dao *ConversationDAO) LastMessage(conversationID uint64) (*models.Message, error) {
	var msg models.Message
	err := dao.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		First(&msg).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// PrivatePeer 私聊中对方的用户信息；群会话返回 records not found。
func (dao *ConversationDAO) PrivatePeer(conversationID, selfID uint64) (*models.User, error) {
	cmTable := models.ConversationMember{}.TableName()
	userTable := models.User{}.TableName()

	var u models.User
	err := dao.db.Table(cmTable+" cm").
		Select("u.*").
		Joins("JOIN "+userTable+" u ON cm.user_id = u.id").
		Where("cm.conversation_id = ? AND cm.user_id <> ?", conversationID, selfID).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}
