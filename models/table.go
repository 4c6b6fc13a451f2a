package models

import (
	"time"

	"gorm.io/gorm"
)

// 表名前缀。通过 SetTablePrefix 在引擎初始化时改写，之后不可再变。
var prefix = "sym_"

// SetTablePrefix 设置表名前缀。必须在建立任何 DAO、执行迁移之前调用，
// TableName 和手写 JOIN 都从这里取前缀。传空串时保持现值。
func SetTablePrefix(p string) {
	if p != "" {
		prefix = p
	}
}

// TablePrefix 当前表名前缀。
func TablePrefix() string {
	return prefix
}

// 在线状态
const (
	UserStatusOffline = "offline"
	UserStatusOnline  = "online"
)

// User 用户表
// AI 用户是种子数据（IsAI=true，带 AIPrompt），不走注册流程，状态字段只在建连/断连时变化。
type User struct {
	ID       uint64 `gorm:"primarykey"`
	UID      string `gorm:"size:36;uniqueIndex;not null"`      // 对外用户 ID
	Username string `gorm:"size:50;uniqueIndex;not null"`      // 用户名
	Email    string `gorm:"size:100;uniqueIndex;default:null"` // 邮箱
	Password string `gorm:"size:255"`                          // bcrypt 哈希；AI 用户为空
	Nickname string `gorm:"size:100"`                          // 昵称
	Avatar   string `gorm:"size:500;default:'/default-avatar.png'"`
	Status   string `gorm:"size:10;default:'offline'"` // 在线状态: online/offline
	IsAI     bool   `gorm:"default:false"`             // 是否为 AI 参与者
	AIPrompt string `gorm:"column:ai_prompt;type:text"` // AI 角色设定（system prompt）

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	// 关联关系
	Memberships []ConversationMember `gorm:"foreignKey:UserID"`
	Messages    []Message            `gorm:"foreignKey:SenderID"`
}

func (User) TableName() string {
	return prefix + "user"
}

// 好友关系状态
const (
	FriendStatusPending  = "pending"
	FriendStatusAccepted = "accepted"
)

// Friend 好友关系表
// UserID 为发起方；accepted 后关系对双方对称生效（查询时两个方向都算）。
type Friend struct {
	ID       uint64 `gorm:"primarykey"`
	UserID   uint64 `gorm:"index:idx_user_friend,unique;not null"` // 发起方用户 ID
	FriendID uint64 `gorm:"index:idx_user_friend,unique;not null"` // 目标用户 ID
	Status   string `gorm:"size:10;default:'pending'"`             // pending/accepted

	CreatedAt time.Time
	UpdatedAt time.Time

	// 关联关系
	User       User `gorm:"foreignKey:UserID"`
	FriendUser User `gorm:"foreignKey:FriendID"`
}

func (Friend) TableName() string {
	return prefix + "friend"
}

// 会话类型
const (
	ConversationTypePrivate = "private"
	ConversationTypeGroup   = "group"
)

// Conversation 会话表
// private：两人会话，首次接触时惰性创建；group：命名群，有创建者。
type Conversation struct {
	ID      uint64 `gorm:"primarykey"`
	Type    string `gorm:"size:10;not null"` // private/group
	Name    string `gorm:"size:100"`         // 群名（私聊为空，展示时取对方昵称）
	Avatar  string `gorm:"size:500"`
	OwnerID uint64 `gorm:"index"` // 群创建者；私聊为 0

	CreatedAt time.Time
	UpdatedAt time.Time

	// 关联关系
	Members  []ConversationMember `gorm:"foreignKey:ConversationID"`
	Messages []Message            `gorm:"foreignKey:ConversationID"`
}

func (Conversation) TableName() string {
	return prefix + "conversation"
}

// 成员角色
const (
	MemberRoleOwner  = "owner"
	MemberRoleMember = "member"
)

// ConversationMember 会话成员表
// (conversation_id, user_id) 唯一，一个用户在一个会话至多一条记录。
type ConversationMember struct {
	ID             uint64    `gorm:"primarykey"`
	ConversationID uint64    `gorm:"index:idx_conv_user,unique;not null"` // 会话 ID
	UserID         uint64    `gorm:"index:idx_conv_user,unique;not null"` // 用户 ID
	Role           string    `gorm:"size:10;default:'member'"`            // owner/member
	JoinedAt       time.Time `gorm:"default:CURRENT_TIMESTAMP"`           // 加入时间

	CreatedAt time.Time
	UpdatedAt time.Time

	// 关联关系
	Conversation Conversation `gorm:"foreignKey:ConversationID"`
	User         User         `gorm:"foreignKey:UserID"`
}

func (ConversationMember) TableName() string {
	return prefix + "conversation_member"
}

// 消息类型
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

// Message 消息表
// 创建后除 is_read 外不可变，核心不删除消息。排序按 created_at，同时间戳以 id 决。
type Message struct {
	ID             uint64 `gorm:"primarykey"`
	ConversationID uint64 `gorm:"index;not null"`         // 会话 ID
	SenderID       uint64 `gorm:"index;not null"`         // 发送者 ID
	Type           string `gorm:"size:10;default:'text'"` // text/image
	Content        string `gorm:"type:text;not null"`     // 消息内容
	IsRead         bool   `gorm:"default:false"`          // 已读标记

	CreatedAt time.Time
	UpdatedAt time.Time

	// 关联关系
	Conversation Conversation `gorm:"foreignKey:ConversationID"`
	Sender       User         `gorm:"foreignKey:SenderID"`
}

func (Message) TableName() string {
	return prefix + "message"
}
