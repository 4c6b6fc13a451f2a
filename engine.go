package im_sdk

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/symposium-im/im-sdk/cons"
	"github.com/symposium-im/im-sdk/message"
	"github.com/symposium-im/im-sdk/middleware"
	model "github.com/symposium-im/im-sdk/models"
	"github.com/symposium-im/im-sdk/service"
)

// Engine IM 引擎实例。不使用包级单例，由调用方持有并注入依赖，
// 同一进程可建多个实例（主要便于测试）。
type Engine struct {
	config *Config

	UserService         *service.UserService
	FriendService       *service.FriendService
	ConversationService *service.ConversationService
	MsgService          *service.MessageService
	AuthService         *service.AuthService // 鉴权服务
	WsServer            *WsServer
	Orchestrator        *AIOrchestrator
}

// NewEngine 创建实例
// 使用选项模式传入配置，Option回调
func NewEngine(opts ...Option) *Engine {
	c := &Config{
		TablePrefix: "sym_", // Default
	}
	for _, opt := range opts {
		opt(c)
	}

	e := &Engine{config: c}

	// 表名前缀在建 DAO、迁移之前设置
	model.SetTablePrefix(c.TablePrefix)

	// 初始化 WS
	e.WsServer = NewWsServer()

	// 初始化基础 Service，注入 WS 回调避免循环依赖
	baseService := &service.Service{
		DB:            c.DB,
		RDB:           c.RDB,
		WsNotifier:    e.WsServer.SendToUser,
		RoomPublisher: func(conversationID uint64, msg []byte) { e.WsServer.Publish(conversationID, msg, nil) },
	}

	// 初始化各个 Service
	e.UserService = service.NewUserService(baseService)
	e.FriendService = service.NewFriendService(baseService)
	e.ConversationService = service.NewConversationService(baseService)
	e.MsgService = service.NewMessageService(baseService)
	e.AuthService = service.NewAuthService(c.RDB, c.DB)

	// AI 编排：补全客户端可被注入替换
	completer := c.Completer
	if completer == nil {
		completer = service.NewAIService(c.AI)
	}
	e.Orchestrator = NewAIOrchestrator(completer, baseService, c.AI.Workers, c.AI.QueueSize)

	// 迁移表
	if err := e.AutoMigrate(); err != nil {
		log.Printf("AutoMigrate failed: %v", err)
	}

	// 写入 AI 角色（按 username 幂等）
	if len(c.AISeeds) > 0 {
		if err := e.UserService.SeedAIUsers(c.AISeeds); err != nil {
			log.Printf("SeedAIUsers failed: %v", err)
		}
	}

	e.bindWsHandlersOnMessage()
	e.bindPresenceHooks()

	go e.WsServer.Run()
	e.Orchestrator.Start()

	return e
}

func (e *Engine) AutoMigrate() error {
	db := e.config.DB
	if db == nil {
		return nil
	}
	log.Println("AutoMigrate...")
	return db.AutoMigrate(
		&model.User{},
		&model.Friend{},
		&model.Conversation{},
		&model.ConversationMember{},
		&model.Message{},
	)
}

// Shutdown 停止 AI 编排协程。WS 连接由各自的 pump 随连接关闭收尾。
func (e *Engine) Shutdown() {
	e.Orchestrator.Stop()
}

// bindPresenceHooks 上下线状态流转：
// 第一条连接建立（0->1）落库 online 并通知已接受的好友，
// 最后一条连接断开（1->0）落库 offline 并再次通知。
// 两个判定都在 hub 的 Run 协程里串行做出，同一次流转只会触发一次。
func (e *Engine) bindPresenceHooks() {
	notifyFriends := func(userID uint64, eventType string) {
		friendIDs, err := e.UserService.AcceptedFriendIDs(userID)
		if err != nil {
			log.Printf("presence: 查询好友失败 user=%d: %v", userID, err)
			return
		}
		payload, _ := json.Marshal(message.PresenceEvent{Type: eventType, UserID: userID})
		for _, fid := range friendIDs {
			e.WsServer.SendToUser(fid, payload)
		}
	}

	e.WsServer.SetPresenceHooks(
		func(userID uint64) {
			if err := e.UserService.SetStatus(userID, model.UserStatusOnline); err != nil {
				log.Printf("presence: 更新在线状态失败 user=%d: %v", userID, err)
			}
			notifyFriends(userID, cons.EventUserOnline)
		},
		func(userID uint64) {
			if err := e.UserService.SetStatus(userID, model.UserStatusOffline); err != nil {
				log.Printf("presence: 更新离线状态失败 user=%d: %v", userID, err)
			}
			notifyFriends(userID, cons.EventUserOffline)
		},
	)
}

// ServeWS 处理 WebSocket 请求。鉴权失败返回 401，不做协议升级。
func (e *Engine) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := e.AuthService.ExtractToken(r)
	identity, err := e.AuthService.Verify(r.Context(), token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// 建连即订阅用户的全部会话房间
	rooms, err := e.ConversationService.ConversationIDsOf(identity.UserID)
	if err != nil {
		log.Printf("ServeWS: 查询会话失败 user=%d: %v", identity.UserID, err)
	}

	nickname := identity.DisplayName
	avatar := ""
	if u, uerr := e.UserService.GetUser(identity.UserID); uerr == nil && u != nil {
		nickname = u.Nickname
		avatar = u.Avatar
	}

	e.WsServer.ServeWS(w, r, identity.UserID, identity.Username, nickname, avatar, rooms)
}

// HandleWS 返回 WebSocket 的Handler
func (e *Engine) HandleWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e.ServeWS(w, r)
	}
}

// GinAuthMiddleware 返回配置好的 Gin 鉴权中间件
//
// 使用示例:
//
//	engine := im_sdk.NewEngine(...)
//	r := gin.Default()
//	r.Use(engine.GinAuthMiddleware(nil)) // 使用默认配置
func (e *Engine) GinAuthMiddleware(opt *middleware.AuthOptions) gin.HandlerFunc {
	return middleware.GinAuthMiddleware(e.AuthService, opt)
}
