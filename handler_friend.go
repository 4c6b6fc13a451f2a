package im_sdk

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/symposium-im/im-sdk/middleware"
	"github.com/symposium-im/im-sdk/response"
)

// -------------------- 好友（Friend）相关接口 --------------------

// GinHandleSendFriendRequest 发送好友申请
// @Summary 发送好友申请
// @Tags 好友
// @Accept json
// @Produce json
// @Param req body object true "申请信息（friend_id）"
// @Success 200 {object} response.Response "成功"
// @Security BearerAuth
// @Router /friend/request [post]
func (e *Engine) GinHandleSendFriendRequest(ctx *gin.Context) {
	userID := middleware.CurrentUserID(ctx)
	var req struct {
		FriendID uint64 `json:"friend_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil || req.FriendID == 0 {
		ctx.JSON(http.StatusBadRequest, response.Error(response.CodeParamError, "缺少 friend_id"))
		return
	}

	if err := e.FriendService.SendRequest(userID, req.FriendID); err != nil {
		ctx.JSON(http.StatusOK, response.Error(response.CodeParamError, err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, response.Success(nil))
}

// GinHandleAcceptFriendRequest 接受好友申请
// @Summary 接受好友申请
// @Tags 好友
// @Accept json
// @Produce json
// @Param req body object true "申请 ID（request_id）"
// @Success 200 {object} response.Response "成功"
// @Security BearerAuth
// @Router /friend/accept [post]
func (e *Engine) GinHandleAcceptFriendRequest(ctx *gin.Context) {
	userID := middleware.CurrentUserID(ctx)
	var req struct {
		RequestID uint64 `json:"request_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil || req.RequestID == 0 {
		ctx.JSON(http.StatusBadRequest, response.Error(response.CodeParamError, "缺少 request_id"))
		return
	}

	if err := e.FriendService.AcceptRequest(req.RequestID, userID); err != nil {
		ctx.JSON(http.StatusOK, response.Error(response.CodeParamError, err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, response.Success(nil))
}

// GinHandleRejectFriendRequest 拒绝好友申请
// @Summary 拒绝好友申请
// @Tags 好友
// @Accept json
// @Produce json
// @Param req body object true "申请 ID（request_id）"
// @Success 200 {object} response.Response "成功"
// @Security BearerAuth
// @Router /friend/reject [post]
func (e *Engine) GinHandleRejectFriendRequest(ctx *gin.Context) {
	userID := middleware.CurrentUserID(ctx)
	var req struct {
		RequestID uint64 `json:"request_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil || req.RequestID == 0 {
		ctx.JSON(http.StatusBadRequest, response.Error(response.CodeParamError, "缺少 request_id"))
		return
	}

	if err := e.FriendService.RejectRequest(req.RequestID, userID); err != nil {
		ctx.JSON(http.StatusOK, response.Error(response.CodeParamError, err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, response.Success(nil))
}

// GinHandleDeleteFriend 删除好友
// @Summary 删除好友
// @Tags 好友
// @Produce json
// @Param friend_id query uint64 true "好友 ID"
// @Success 200 {object} response.Response "成功"
// @Security BearerAuth
// @Router /friend/delete [delete]
func (e *Engine) GinHandleDeleteFriend(ctx *gin.Context) {
	userID := middleware.CurrentUserID(ctx)
	friendID, err := strconv.ParseUint(ctx.Query("friend_id"), 10, 64)
	if err != nil || friendID == 0 {
		ctx.JSON(http.StatusBadRequest, response.Error(response.CodeParamError, "缺少 friend_id"))
		return
	}

	if err := e.FriendService.DeleteFriend(userID, friendID); err != nil {
		ctx.JSON(http.StatusOK, response.Error(response.CodeParamError, err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, response.Success(nil))
}

// GinHandleListFriends 好友列表
// @Summary 好友列表
// @Description 返回全部已接受的好友，含在线状态
// @Tags 好友
// @Produce json
// @Success 200 {object} response.Response{data=[]service.FriendDTO} "成功"
// @Security BearerAuth
// @Router /friend/list [get]
func (e *Engine) GinHandleListFriends(ctx *gin.Context) {
	userID := middleware.CurrentUserID(ctx)
	friends, err := e.FriendService.ListFriends(userID)
	if err != nil {
		ctx.JSON(http.StatusOK, response.Error(response.CodeInternalError, err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, response.Success(friends))
}

// GinHandleListFriendRequests 待处理好友申请（收到 + 发出）
// @Summary 待处理好友申请
// @Tags 好友
// @Produce json
// @Success 200 {object} response.Response "成功"
// @Security BearerAuth
// @Router /friend/requests [get]
func (e *Engine) GinHandleListFriendRequests(ctx *gin.Context) {
	userID := middleware.CurrentUserID(ctx)
	received, sent, err := e.FriendService.ListPending(userID)
	if err != nil {
		ctx.JSON(http.StatusOK, response.Error(response.CodeInternalError, err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, response.Success(gin.H{
		"received": received,
		"sent":     sent,
	}))
}
