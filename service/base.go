package service

import (
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Service 基础服务，包含数据库和配置。表名前缀由 models.SetTablePrefix 全局设置。
type Service struct {
	DB  *gorm.DB
	RDB *redis.Client

	// WsNotifier 用于向某个用户的全部在线连接推送 WS 消息的回调函数。
	// 避免 service 层反向依赖 hub，通过函数注入的方式。
	WsNotifier func(userID uint64, message []byte)

	// RoomPublisher 向某个会话房间广播的回调函数（同上，注入而非引用 hub）。
	RoomPublisher func(conversationID uint64, message []byte)
}
