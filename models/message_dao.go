package models

import (
	"gorm.io/gorm"
)

// MessageDAO 封装 Message 相关的数据库操作
type MessageDAO struct {
	db *gorm.DB
}

func NewMessageDAO(db *gorm.DB) *MessageDAO {
	return &MessageDAO{db: db}
}

// Create 追加消息。插入后 msg.ID 为单调递增主键，CreatedAt 为服务端时间。
func (dao *MessageDAO) Create(msg *Message) error {
	return dao.db.Create(msg).Error
}

// FindByID 根据 ID 查找消息
func (dao *MessageDAO) FindByID(id uint64) (*Message, error) {
	var msg Message
	if err := dao.db.Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// FindByIDWithSender 根据 ID 查找消息并预载发送者（广播时需要昵称/头像）。
func (dao *MessageDAO) FindByIDWithSender(id uint64) (*Message, error) {
	var msg Message
	if err := dao.db.Preload("Sender").Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// FindByConversation 获取会话消息：最新的 limit 条，beforeID>0 时只取 id 更小的。
// 返回倒序（新→旧），展示侧 reverse。
func (dao *MessageDAO) FindByConversation(conversationID uint64, limit int, beforeID uint64) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	q := dao.db.Preload("Sender").Where("conversation_id = ?", conversationID)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var messages []Message
	err := q.Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// FindRecent 取会话最近 limit 条消息（AI 上下文窗口用，不预载发送者）。
func (dao *MessageDAO) FindRecent(conversationID uint64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}
	var messages []Message
	err := dao.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// MarkConversationRead 将会话中非 readerID 发送的未读消息全部置为已读。
// 幂等：第二次执行匹配不到行，直接 0 行更新。
func (dao *MessageDAO) MarkConversationRead(conversationID, readerID uint64) error {
	return dao.db.Model(&Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false).
		Update("is_read", true).Error
}

// MarkRead 单条置为已读。条件绑定在会话和非本人消息上，
// 消息 ID 不属于该会话或是读者自己发的，一行都不会更新。
func (dao *MessageDAO) MarkRead(conversationID, readerID, messageID uint64) error {
	return dao.db.Model(&Message{}).
		Where("id = ? AND conversation_id = ? AND sender_id <> ?", messageID, conversationID, readerID).
		Update("is_read", true).Error
}
