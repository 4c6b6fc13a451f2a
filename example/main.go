package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	im_sdk "github.com/symposium-im/im-sdk"
	"github.com/symposium-im/im-sdk/service"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	// 1. 初始化数据库连接
	dsn := "root:password@tcp(127.0.0.1:3306)/symposium_db?charset=utf8mb4&parseTime=True&loc=Local"
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("数据库连接失败:", err)
	}

	// 2. Redis（token 存储）
	rdb := redis.NewClient(&redis.Options{
		Addr: "127.0.0.1:6379",
	})

	// 3. 初始化 IM Engine
	engine := im_sdk.NewEngine(
		im_sdk.WithDB(db),
		im_sdk.WithRDB(rdb),
		im_sdk.WithTablePrefix("sym_"),

		// AI 补全：不配置 APIKey 时从环境变量 DEEPSEEK_API_KEY 取
		im_sdk.WithAI(service.AIConfig{
			Model: "deepseek-chat",
		}),

		// 启动时写入的 AI 角色（按 username 幂等）
		im_sdk.WithAISeeds([]service.AISeed{
			{
				Username: "ai_assistant",
				Nickname: "AI 助手",
				Prompt:   "你是一个友善耐心的聊天助手，用简洁的中文回答问题。",
			},
		}),
	)
	defer engine.Shutdown()

	// 4. 创建 Gin 路由
	r := gin.Default()

	// CORS（如果需要）
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// 5. WebSocket 连接路由
	// 客户端连接：ws://localhost:6789/ws?token=xxx
	r.GET("/ws", func(c *gin.Context) {
		engine.ServeWS(c.Writer, c.Request)
	})

	// 6. API 路由组
	api := r.Group("/api/v1")

	// 认证模块（无需登录）
	authAPI := api.Group("/auth")
	{
		authAPI.POST("/register", engine.GinHandleUserRegister)
		authAPI.POST("/login", engine.GinHandleUserLogin)
	}

	// 以下接口需要登录
	authed := api.Group("")
	authed.Use(engine.GinAuthMiddleware(nil))
	{
		authed.POST("/auth/logout", engine.GinHandleUserLogout)

		userAPI := authed.Group("/user")
		{
			userAPI.GET("/info", engine.GinHandleGetUserInfo)
			userAPI.POST("/update", engine.GinHandleUpdateUser)
			userAPI.GET("/search", engine.GinHandleSearchUsers)
		}

		friendAPI := authed.Group("/friend")
		{
			friendAPI.POST("/request", engine.GinHandleSendFriendRequest)
			friendAPI.POST("/accept", engine.GinHandleAcceptFriendRequest)
			friendAPI.POST("/reject", engine.GinHandleRejectFriendRequest)
			friendAPI.DELETE("/delete", engine.GinHandleDeleteFriend)
			friendAPI.GET("/list", engine.GinHandleListFriends)
			friendAPI.GET("/requests", engine.GinHandleListFriendRequests)
		}

		convAPI := authed.Group("/conversation")
		{
			convAPI.GET("/list", engine.GinHandleListConversations)
			convAPI.POST("/private", engine.GinHandleCreatePrivateConversation)
			convAPI.POST("/group", engine.GinHandleCreateGroupConversation)
			convAPI.GET("/messages", engine.GinHandleGetConversationMessages)
			convAPI.GET("/members", engine.GinHandleListConversationMembers)
		}

		aiAPI := authed.Group("/ai")
		{
			aiAPI.GET("/list", engine.GinHandleListAIUsers)
			aiAPI.POST("/chat", engine.GinHandleStartAIChat)
		}
	}

	log.Println("listening on :6789")
	if err := r.Run(":6789"); err != nil {
		log.Fatal(err)
	}
}
