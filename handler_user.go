package im_sdk

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/symposium-im/im-sdk/middleware"
	"github.com/symposium-im/im-sdk/response"
	"github.com/symposium-im/im-sdk/service"
)

// -------------------- 用户（User）相关接口 --------------------

// GinHandleUserRegister 用户注册
// @Summary 用户注册
// @Description 创建新用户账号：username + email + password + nickname
// @Tags 用户
// @Accept json
// @Produce json
// @Param req body service.RegisterReq true "注册信息"
// @Success 200 {object} response.Response{data=service.UserDTO} "注册成功"
// @Failure 400 {object} response.Response "请求错误"
// @Router /auth/register [post]
func (e *Engine) GinHandleUserRegister(ctx *gin.Context) {
	var req service.RegisterReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, response.Error(response.CodeParamError, err.Error()))
		return
	}

	u, err := e.UserService.Register(ctx.Request.Context(), req)
	if err != nil {
		code := response.CodeInternalError
		switch {
		case strings.Contains(err.Error(), "必填"), strings.Contains(err.Error(), "不能"):
			code = response.CodeParamError
		case strings.Contains(err.Error(), "已被"):
			code = response.CodeParamError
		}
		ctx.JSON(http.StatusOK, response.Error(code, err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, response.Success(u))
}

// GinHandleUserLogin 用户登录
// @Summary 用户登录
// @Description 用户名/邮箱 + 密码登录，返回 token
// @Tags 用户
// @Accept json
// @Produce json
// @Param req body service.LoginReq true "登录信息"
// @Success 200 {object} response.Response{data=service.LoginResp} "登录成功"
// @Failure 400 {object} response.Response "参数错误"
// @Router /auth/login [post]
func (e *Engine) GinHandleUserLogin(ctx *gin.Context) {
	var req service.LoginReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, response.Error(response.CodeParamError, err.Error()))
		return
	}

	resp, err := e.UserService.Login(ctx.Request.Context(), req)
	if err != nil {
		code := response.CodePasswordError
		if strings.Contains(err.Error(), "不存在") {
			code = response.CodeUserNotFound
		}
		ctx.JSON(http.StatusOK, response.Error(code, err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, response.Success(resp))
}

// GinHandleUserLogout 退出登录，注销当前 token
// @Summary 退出登录
// @Tags 用户
// @Produce json
// @Success 200 {object} response.Response "成功"
// @Security BearerAuth
// @Router /auth/logout [post]
func (e *Engine) GinHandleUserLogout(ctx *gin.Context) {
	token, _ := ctx.Get(middleware.ContextTokenKey)
	if t, ok := token.(string); ok && t != "" {
		if err := e.AuthService.RevokeToken(ctx.Request.Context(), t); err != nil {
			ctx.JSON(http.StatusOK, response.Error(response.CodeInternalError, err.Error()))
			return
		}
	}
	ctx.JSON(http.StatusOK, response.Success(nil))
}

// GinHandleGetUserInfo 获取用户信息
// @Summary 获取用户信息
// @Description 根据 user_id 查询用户详情，不传 user_id 则查询当前登录用户
// @Tags 用户
// @Produce json
// @Param user_id query uint64 false "用户ID (不传则查自己)"
// @Success 200 {object} response.Response{data=service.UserDTO} "查询成功"
// @Failure 401 {object} response.Response "未登录"
// @Security BearerAuth
// @Router /user/info [get]
func (e *Engine) GinHandleGetUserInfo(ctx *gin.Context) {
	targetUserID := middleware.CurrentUserID(ctx)

	if userIDStr := ctx.Query("user_id"); userIDStr != "" {
		id, err := strconv.ParseUint(userIDStr, 10, 64)
		if err != nil || id == 0 {
			ctx.JSON(http.StatusBadRequest, response.Error(response.CodeParamError, "invalid user_id"))
			return
		}
		targetUserID = id
	}
	if targetUserID == 0 {
		ctx.JSON(http.StatusUnauthorized, response.Error(response.CodeTokenInvalid, "user_id not found in context"))
		return
	}

	u, err := e.UserService.GetUser(targetUserID)
	if err != nil {
		ctx.JSON(http.StatusOK, response.Error(response.CodeUserNotFound, err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, response.Success(u))
}

// GinHandleUpdateUser 更新个人资料
// @Summary 更新个人资料
// @Tags 用户
// @Accept json
// @Produce json
// @Param req body service.UpdateUserReq true "更新字段"
// @Success 200 {object} response.Response{data=service.UserDTO} "成功"
// @Security BearerAuth
// @Router /user/update [post]
func (e *Engine) GinHandleUpdateUser(ctx *gin.Context) {
	userID := middleware.CurrentUserID(ctx)
	if userID == 0 {
		ctx.JSON(http.StatusUnauthorized, response.Error(response.CodeTokenInvalid, "未登录"))
		return
	}

	var req service.UpdateUserReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, response.Error(response.CodeParamError, err.Error()))
		return
	}

	u, err := e.UserService.UpdateUser(userID, req)
	if err != nil {
		ctx.JSON(http.StatusOK, response.Error(response.CodeInternalError, err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, response.Success(u))
}

// GinHandleSearchUsers 搜索用户
// @Summary 搜索用户
// @Description 按用户名/昵称模糊搜索，排除自己
// @Tags 用户
// @Produce json
// @Param keyword query string true "关键词"
// @Success 200 {object} response.Response{data=[]service.UserDTO} "成功"
// @Security BearerAuth
// @Router /user/search [get]
func (e *Engine) GinHandleSearchUsers(ctx *gin.Context) {
	userID := middleware.CurrentUserID(ctx)
	keyword := strings.TrimSpace(ctx.Query("keyword"))
	if keyword == "" {
		ctx.JSON(http.StatusBadRequest, response.Error(response.CodeParamError, "缺少 keyword"))
		return
	}

	limit := 20
	if s := ctx.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	users, err := e.UserService.SearchUsers(keyword, userID, limit)
	if err != nil {
		ctx.JSON(http.StatusOK, response.Error(response.CodeInternalError, err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, response.Success(users))
}
