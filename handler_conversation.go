package im_sdk

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/symposium-im/im-sdk/middleware"
	"github.com/symposium-im/im-sdk/response"
)

// -------------------- 会话（Conversation）相关接口 --------------------

// GinHandleListConversations 会话列表
// @Summary 会话列表
// @Description 返回当前用户的全部会话，含最后一条消息与未读数
// @Tags 会话
// @Produce json
// @Success 200 {object} response.Response{data=[]service.ConversationDTO} "成功"
// @Security BearerAuth
// @Router /conversation/list [get]
func (e *Engine) GinHandleListConversations(ctx *gin.Context) {
	userID := middleware.CurrentUserID(ctx)
	convs, err := e.ConversationService.ListConversations(userID)
	if err != nil {
		ctx.JSON(http.StatusOK, response.Error(response.CodeInternalError, err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, response.Success(convs))
}

// GinHandleCreatePrivateConversation 创建（或复用）私聊会话
// @Summary 创建私聊会话
// @Description 与指定用户的私聊会话已存在时直接返回
// @Tags 会话
// @Accept json
// @Produce json
// @Param req body object true "对方用户（peer_id）"
// @Success 200 {object} response.Response{data=service.ConversationDTO} "成功"
// @Security BearerAuth
// @Router /conversation/private [post]
func (e *Engine) GinHandleCreatePrivateConversation(ctx *gin.Context) {
	userID := middleware.CurrentUserID(ctx)
	var req struct {
		PeerID uint64 `json:"peer_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil || req.PeerID == 0 {
		ctx.JSON(http.StatusBadRequest, response.Error(response.CodeParamError, "缺少 peer_id"))
		return
	}

	conv, created, err := e.ConversationService.GetOrCreatePrivate(userID, req.PeerID)
	if err != nil {
		ctx.JSON(http.StatusOK, response.Error(response.CodeParamError, err.Error()))
		return
	}

	// 双方的在线设备立即进入新房间，不用等重连
	e.WsServer.SubscribeUser(userID, conv.ID)
	e.WsServer.SubscribeUser(req.PeerID, conv.ID)

	ctx.JSON(http.StatusOK, response.Success(gin.H{
		"conversation": conv,
		"created":      created,
	}))
}

// GinHandleCreateGroupConversation 创建群聊
// @Summary 创建群聊
// @Tags 会话
// @Accept json
// @Produce json
// @Param req body object true "群信息（name, member_ids）"
// @Success 200 {object} response.Response{data=service.ConversationDTO} "成功"
// @Security BearerAuth
// @Router /conversation/group [post]
func (e *Engine) GinHandleCreateGroupConversation(ctx *gin.Context) {
	userID := middleware.CurrentUserID(ctx)
	var req struct {
		Name      string   `json:"name"`
		MemberIDs []uint64 `json:"member_ids"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, response.Error(response.CodeParamError, err.Error()))
		return
	}

	conv, err := e.ConversationService.CreateGroup(userID, req.Name, req.MemberIDs)
	if err != nil {
		ctx.JSON(http.StatusOK, response.Error(response.CodeParamError, err.Error()))
		return
	}

	// 在线成员（含创建者）立即进入新房间
	e.WsServer.SubscribeUser(userID, conv.ID)
	for _, uid := range req.MemberIDs {
		e.WsServer.SubscribeUser(uid, conv.ID)
	}

	ctx.JSON(http.StatusOK, response.Success(conv))
}

// GinHandleGetConversationMessages 获取会话历史消息
// @Summary 获取会话历史消息
// @Description 最新 limit 条（可带 before 游标），按时间正序返回，同时把他人消息标记为已读
// @Tags 会话
// @Produce json
// @Param conversation_id query uint64 true "会话 ID"
// @Param limit query int false "条数，默认 50"
// @Param before query uint64 false "游标：只取该消息 ID 之前的消息"
// @Success 200 {object} response.Response{data=[]service.MessageDTO} "成功"
// @Security BearerAuth
// @Router /conversation/messages [get]
func (e *Engine) GinHandleGetConversationMessages(ctx *gin.Context) {
	userID := middleware.CurrentUserID(ctx)
	convID, err := strconv.ParseUint(ctx.Query("conversation_id"), 10, 64)
	if err != nil || convID == 0 {
		ctx.JSON(http.StatusBadRequest, response.Error(response.CodeParamError, "缺少 conversation_id"))
		return
	}

	limit := 50
	if s := ctx.Query("limit"); s != "" {
		if n, perr := strconv.Atoi(s); perr == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	var beforeID uint64
	if s := ctx.Query("before"); s != "" {
		beforeID, _ = strconv.ParseUint(s, 10, 64)
	}

	msgs, err := e.MsgService.GetConversationMessages(convID, userID, limit, beforeID)
	if err != nil {
		ctx.JSON(http.StatusOK, response.Error(response.CodePermissionDeny, err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, response.Success(msgs))
}

// GinHandleListConversationMembers 会话成员列表
// @Summary 会话成员列表
// @Tags 会话
// @Produce json
// @Param conversation_id query uint64 true "会话 ID"
// @Success 200 {object} response.Response{data=[]service.MemberDTO} "成功"
// @Security BearerAuth
// @Router /conversation/members [get]
func (e *Engine) GinHandleListConversationMembers(ctx *gin.Context) {
	userID := middleware.CurrentUserID(ctx)
	convID, err := strconv.ParseUint(ctx.Query("conversation_id"), 10, 64)
	if err != nil || convID == 0 {
		ctx.JSON(http.StatusBadRequest, response.Error(response.CodeParamError, "缺少 conversation_id"))
		return
	}

	members, err := e.ConversationService.ListMembers(convID, userID)
	if err != nil {
		ctx.JSON(http.StatusOK, response.Error(response.CodePermissionDeny, err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, response.Success(members))
}
