package im_sdk

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/symposium-im/im-sdk/middleware"
	"github.com/symposium-im/im-sdk/response"
)

// -------------------- AI 角色相关接口 --------------------

// GinHandleListAIUsers AI 角色列表
// @Summary AI 角色列表
// @Tags AI
// @Produce json
// @Success 200 {object} response.Response{data=[]service.UserDTO} "成功"
// @Security BearerAuth
// @Router /ai/list [get]
func (e *Engine) GinHandleListAIUsers(ctx *gin.Context) {
	users, err := e.UserService.ListAIUsers()
	if err != nil {
		ctx.JSON(http.StatusOK, response.Error(response.CodeInternalError, err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, response.Success(users))
}

// GinHandleStartAIChat 与 AI 角色开启私聊
// @Summary 与 AI 角色开启私聊
// @Description 会话不存在时创建，已存在时直接返回
// @Tags AI
// @Accept json
// @Produce json
// @Param req body object true "AI 用户（ai_user_id）"
// @Success 200 {object} response.Response{data=service.ConversationDTO} "成功"
// @Security BearerAuth
// @Router /ai/chat [post]
func (e *Engine) GinHandleStartAIChat(ctx *gin.Context) {
	userID := middleware.CurrentUserID(ctx)
	var req struct {
		AIUserID uint64 `json:"ai_user_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil || req.AIUserID == 0 {
		ctx.JSON(http.StatusBadRequest, response.Error(response.CodeParamError, "缺少 ai_user_id"))
		return
	}

	conv, created, err := e.ConversationService.StartAIChat(userID, req.AIUserID)
	if err != nil {
		ctx.JSON(http.StatusOK, response.Error(response.CodeParamError, err.Error()))
		return
	}

	// 发起方的在线设备立即进入新房间，AI 成员没有连接，空操作
	e.WsServer.SubscribeUser(userID, conv.ID)
	e.WsServer.SubscribeUser(req.AIUserID, conv.ID)

	ctx.JSON(http.StatusOK, response.Success(gin.H{
		"conversation": conv,
		"created":      created,
	}))
}
