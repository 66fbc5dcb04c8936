package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/qs3c/audiosep_server/config"
	"github.com/qs3c/audiosep_server/internal/model"
	"github.com/qs3c/audiosep_server/internal/model/dto"
	"github.com/qs3c/audiosep_server/internal/pkg/jwt"
	"github.com/qs3c/audiosep_server/internal/pkg/oauth"
	"github.com/qs3c/audiosep_server/internal/repository"
)

var (
	ErrEmailExists        = errors.New("邮箱已被注册")
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrUserNotFound       = errors.New("用户不存在")
	ErrEmptyPassword      = errors.New("密码不能为空")
	ErrWrongPassword      = errors.New("当前密码错误")
)

type AuthService struct {
	userRepo    *repository.UserRepository
	subs        *SubscriptionService
	guests      *GuestService
	githubOAuth *oauth.GithubOAuth
	cfg         *config.Config
}

func NewAuthService(
	userRepo *repository.UserRepository,
	subs *SubscriptionService,
	guests *GuestService,
	githubOAuth *oauth.GithubOAuth,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		subs:        subs,
		guests:      guests,
		githubOAuth: githubOAuth,
		cfg:         cfg,
	}
}

// Register 用户注册，同时开通默认套餐
func (s *AuthService) Register(req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	emailAddr := strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := s.userRepo.ExistsByEmail(emailAddr)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = strings.SplitN(emailAddr, "@", 2)[0]
	}

	user := &model.User{
		Email:        &emailAddr,
		PasswordHash: &hashed,
		DisplayName:  displayName,
		Role:         model.RoleUser,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	if _, _, err := s.subs.ResolveCurrent(user.ID); err != nil {
		return nil, fmt.Errorf("failed to activate default plan: %w", err)
	}

	return &dto.RegisterResponse{
		UserID: user.ID,
	}, nil
}

// Login 用户登录
func (s *AuthService) Login(req *dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.userRepo.GetByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueToken(user)
}

// CreateGuestSession 创建访客会话
func (s *AuthService) CreateGuestSession() (*dto.GuestSessionResponse, error) {
	guest, err := s.guests.Create()
	if err != nil {
		return nil, err
	}
	return s.guests.Session(guest), nil
}

// ChangePassword 修改密码
func (s *AuthService) ChangePassword(userID int64, req *dto.ChangePasswordRequest) error {
	if strings.TrimSpace(req.CurrentPassword) == "" || strings.TrimSpace(req.NewPassword) == "" {
		return ErrEmptyPassword
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if user.PasswordHash == nil {
		return ErrWrongPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return ErrWrongPassword
	}

	hashed, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	return s.userRepo.UpdateFields(userID, map[string]interface{}{
		"password_hash": hashed,
	})
}

// GetUserByID 根据 ID 获取用户
func (s *AuthService) GetUserByID(id int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// GithubEnabled 是否配置了 GitHub 登录
func (s *AuthService) GithubEnabled() bool {
	return s.githubOAuth != nil && s.githubOAuth.Enabled()
}

// GetGithubAuthURL 获取 GitHub 授权 URL
func (s *AuthService) GetGithubAuthURL(state string) string {
	return s.githubOAuth.GetAuthURL(state)
}

// GithubCallback 处理 GitHub OAuth 回调
func (s *AuthService) GithubCallback(ctx context.Context, code string) (*dto.LoginResponse, error) {
	if !s.GithubEnabled() {
		return nil, oauth.ErrNotConfigured
	}

	token, err := s.githubOAuth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	githubUser, err := s.githubOAuth.GetUser(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get github user: %w", err)
	}

	user, err := s.findOrCreateGithubUser(githubUser)
	if err != nil {
		return nil, err
	}

	return s.issueToken(user)
}

func (s *AuthService) findOrCreateGithubUser(gu *oauth.GithubUser) (*model.User, error) {
	githubID := fmt.Sprintf("%d", gu.ID)

	user, err := s.userRepo.GetByGithubID(githubID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 邮箱已注册时绑定到已有账号
	if gu.Email != "" {
		emailAddr := strings.ToLower(gu.Email)
		user, err = s.userRepo.GetByEmail(emailAddr)
		if err == nil {
			if err := s.userRepo.UpdateFields(user.ID, map[string]interface{}{"github_id": githubID}); err != nil {
				return nil, err
			}
			user.GithubID = &githubID
			slog.Info("github account linked", "user_id", user.ID, "github_id", githubID)
			return user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	user = &model.User{
		GithubID:    &githubID,
		DisplayName: gu.DisplayName(),
		Role:        model.RoleUser,
	}
	if gu.Email != "" {
		emailAddr := strings.ToLower(gu.Email)
		user.Email = &emailAddr
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if _, _, err := s.subs.ResolveCurrent(user.ID); err != nil {
		return nil, fmt.Errorf("failed to activate default plan: %w", err)
	}

	return user, nil
}

func (s *AuthService) issueToken(user *model.User) (*dto.LoginResponse, error) {
	token, err := jwt.GenerateToken(user.ID, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		Token: token,
		User:  toUserInfo(user),
	}, nil
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
