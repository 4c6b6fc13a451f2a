package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/symposium-im/im-sdk/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct {
	*Service
	userDAO       *models.UserDAO
	tokenService  *TokenService
	loginTokenTTL time.Duration
}

func NewUserService(s *Service) *UserService {
	return &UserService{
		Service:       s,
		userDAO:       models.NewUserDAO(s.DB),
		tokenService:  NewTokenService(s.RDB),
		loginTokenTTL: 7 * 24 * time.Hour,
	}
}

// --- types ---

type UserDTO struct {
	ID        uint64    `json:"id"`
	UID       string    `json:"uid"`
	Username  string    `json:"username"`
	Nickname  string    `json:"nickname"`
	Avatar    string    `json:"avatar"`
	Email     string    `json:"email,omitempty"`
	Status    string    `json:"status"`
	IsAI      bool      `json:"is_ai,omitempty"`
	AIPrompt  string    `json:"ai_prompt,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type RegisterReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

type LoginReq struct {
	Account  string `json:"account"` // username/email
	Password string `json:"password"`
}

type LoginResp struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

type UpdateUserReq struct {
	Nickname *string `json:"nickname"`
	Avatar   *string `json:"avatar"`
}

// --- impl ---

func toUserDTO(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:        u.ID,
		UID:       u.UID,
		Username:  u.Username,
		Nickname:  u.Nickname,
		Avatar:    u.Avatar,
		Email:     u.Email,
		Status:    u.Status,
		IsAI:      u.IsAI,
		AIPrompt:  u.AIPrompt,
		CreatedAt: u.CreatedAt,
	}
}

// Register 注册（唯一性校验 + bcrypt + 写库）。AI 用户不走这里，见 SeedAIUsers。
func (s *UserService) Register(ctx context.Context, req RegisterReq) (*UserDTO, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)
	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("用户名、邮箱和密码均为必填")
	}

	exists, err := s.userDAO.ExistsByAccount(username, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("用户名或邮箱已被注册")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		UID:      uuid.New().String(),
		Username: username,
		Email:    email,
		Password: string(hash),
		Nickname: strings.TrimSpace(req.Nickname),
		Status:   models.UserStatusOffline,
	}
	if user.Nickname == "" {
		user.Nickname = user.Username
	}

	if err := s.userDAO.Create(user); err != nil {
		return nil, err
	}
	return toUserDTO(user), nil
}

// Login 登录：校验密码，生成 token 并写 Redis。
func (s *UserService) Login(ctx context.Context, req LoginReq) (*LoginResp, error) {
	acc := strings.TrimSpace(req.Account)
	password := strings.TrimSpace(req.Password)
	if acc == "" || password == "" {
		return nil, fmt.Errorf("需要账户和密码")
	}

	u, err := s.userDAO.FindByAccount(acc)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("账户或密码无效")
		}
		return nil, err
	}
	if u.IsAI {
		// AI 用户是种子数据，没有可登录的凭证
		return nil, fmt.Errorf("账户或密码无效")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, fmt.Errorf("账户或密码无效")
	}

	resp := &LoginResp{User: *toUserDTO(u)}
	if s.RDB == nil {
		return resp, nil
	}

	token, err := s.tokenService.GenerateToken()
	if err != nil {
		return nil, err
	}
	if err := s.tokenService.StoreToken(ctx, token, u.ID, s.loginTokenTTL); err != nil {
		return nil, err
	}
	resp.Token = token
	return resp, nil
}

// GetUser 获取用户信息（脱敏）
func (s *UserService) GetUser(userID uint64) (*UserDTO, error) {
	u, err := s.userDAO.FindByID(userID)
	if err != nil {
		return nil, err
	}
	return toUserDTO(u), nil
}

// UpdateUser 更新用户资料
func (s *UserService) UpdateUser(userID uint64, req UpdateUserReq) (*UserDTO, error) {
	updates := make(map[string]any)
	if req.Nickname != nil {
		updates["nickname"] = strings.TrimSpace(*req.Nickname)
	}
	if req.Avatar != nil {
		updates["avatar"] = strings.TrimSpace(*req.Avatar)
	}
	if err := s.userDAO.UpdateFields(userID, updates); err != nil {
		return nil, err
	}
	return s.GetUser(userID)
}

// SetStatus 持久化在线状态（建连 0→1 / 断连 1→0 时由引擎调用）。
func (s *UserService) SetStatus(userID uint64, status string) error {
	return s.userDAO.UpdateStatus(userID, status)
}

// AcceptedFriendIDs 已接受好友的 ID 集合（presence 通知的收件人范围）。
func (s *UserService) AcceptedFriendIDs(userID uint64) ([]uint64, error) {
	return s.userDAO.AcceptedFriendIDs(userID)
}

// SearchUsers 按关键字搜索用户（排除自己和 AI 用户之外不做限制）。
func (s *UserService) SearchUsers(keyword string, excludeUserID uint64, limit int) ([]UserDTO, error) {
	users, err := s.userDAO.SearchUsers(keyword, excludeUserID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]UserDTO, 0, len(users))
	for i := range users {
		if dto := toUserDTO(&users[i]); dto != nil {
			dto.Email = "" // 搜索结果脱敏
			dto.AIPrompt = ""
			out = append(out, *dto)
		}
	}
	return out, nil
}

// ListAIUsers AI 用户列表（含角色设定，前端选择入口用）。
func (s *UserService) ListAIUsers() ([]UserDTO, error) {
	users, err := s.userDAO.ListAIUsers()
	if err != nil {
		return nil, err
	}
	out := make([]UserDTO, 0, len(users))
	for i := range users {
		if dto := toUserDTO(&users[i]); dto != nil {
			out = append(out, *dto)
		}
	}
	return out, nil
}

// AISeed AI 种子用户定义
type AISeed struct {
	Username string
	Nickname string
	Avatar   string
	Prompt   string
}

// SeedAIUsers 幂等写入 AI 种子用户：已存在（按 username）则跳过。
func (s *UserService) SeedAIUsers(seeds []AISeed) error {
	for _, seed := range seeds {
		username := strings.TrimSpace(seed.Username)
		if username == "" {
			continue
		}
		_, err := s.userDAO.FindByUsername(username)
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		u := &models.User{
			UID:      uuid.New().String(),
			Username: username,
			Email:    username + "@ai.local",
			Nickname: seed.Nickname,
			Avatar:   seed.Avatar,
			Status:   models.UserStatusOffline,
			IsAI:     true,
			AIPrompt: seed.Prompt,
		}
		if u.Nickname == "" {
			u.Nickname = username
		}
		if err := s.userDAO.Create(u); err != nil {
			return err
		}
	}
	return nil
}
