package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/symposium-im/im-sdk/models"
	"gorm.io/gorm"
)

// Identity token 校验结果：身份 + 展示名。其余信息对核心不透明。
type Identity struct {
	UserID      uint64
	Username    string
	DisplayName string
}

// AuthService 提供鉴权核心能力，供 WS 握手与 HTTP 中间件使用。
// - 解析 token（Bearer 优先，其次 query）
// - 校验 token -> userID（Redis）
// - Verify 追加用户表查询，返回展示字段
type AuthService struct {
	token   *TokenService
	userDAO *models.UserDAO
}

func NewAuthService(rdb *redis.Client, db *gorm.DB) *AuthService {
	a := &AuthService{token: NewTokenService(rdb)}
	if db != nil {
		a.userDAO = models.NewUserDAO(db)
	}
	return a
}

// ExtractToken 从 HTTP 请求中提取 token：优先 Authorization: Bearer，其次 query: token。
// WS 握手走 query（浏览器 WebSocket 不能带自定义 header）。
func (a *AuthService) ExtractToken(r *http.Request) string {
	if r == nil {
		return ""
	}

	// Authorization: Bearer <token>
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if ah != "" {
		parts := strings.SplitN(ah, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	// query: ?token=xxx
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// Authenticate 根据 token 获取 userID。
func (a *AuthService) Authenticate(ctx context.Context, token string) (uint64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, fmt.Errorf("缺少 token")
	}
	return a.token.GetUserIDByToken(ctx, token)
}

// Verify 完整校验：token -> 身份 + 展示名。建连许可在升级前调用，失败即拒绝连接。
func (a *AuthService) Verify(ctx context.Context, token string) (*Identity, error) {
	uid, err := a.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if a.userDAO == nil {
		return &Identity{UserID: uid}, nil
	}
	u, err := a.userDAO.FindByID(uid)
	if err != nil {
		return nil, err
	}
	name := u.Nickname
	if name == "" {
		name = u.Username
	}
	return &Identity{UserID: u.ID, Username: u.Username, DisplayName: name}, nil
}

// RevokeToken 注销单个 token（登出）。
func (a *AuthService) RevokeToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return a.token.RevokeToken(ctx, token)
}

// RevokeAllTokensByUser 注销用户全部 token。
func (a *AuthService) RevokeAllTokensByUser(ctx context.Context, userID uint64) error {
	return a.token.RevokeAllTokensByUser(ctx, userID)
}
