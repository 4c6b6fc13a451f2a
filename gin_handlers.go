package im_sdk

/* @title           Symposium IM API
@version         1.0
@description     即时通讯后端 API（会话、好友、AI 角色）
@host            localhost:6789
@BasePath        /api/v1
@securityDefinitions.apikey BearerAuth
@in header
@name Authorization
*/

/* This file is now split into:
- handler_user.go
- handler_friend.go
- handler_conversation.go
- handler_ai.go
*/
