package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"gorm.io/gorm"

	"github.com/Orderion/Beme-Market/internal/auth"
	"github.com/Orderion/Beme-Market/internal/config"
	"github.com/Orderion/Beme-Market/internal/datamodels/user"
)

type UserService struct {
	repo user.Repository
	jwt  *config.JWTConfig
}

func NewUserService(repo user.Repository, jwt *config.JWTConfig) *UserService {
	return &UserService{repo: repo, jwt: jwt}
}

func hashPassword(raw, salt string) string {
	h := sha256.Sum256([]byte(raw + salt))
	return hex.EncodeToString(h[:])
}

// EnsureAdmin 首次启动时按配置创建初始管理员，已存在则跳过
func (s *UserService) EnsureAdmin(ctx context.Context, cfg *config.AdminConfig) error {
	_, err := s.repo.GetByUsername(ctx, cfg.Username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	u := &user.User{
		Username: cfg.Username,
		Salt:     "beme-market", // 简化实现，真实业务请使用随机盐
		IsAdmin:  true,
	}
	u.Password = hashPassword(cfg.Password, u.Salt)
	return s.repo.Create(ctx, u)
}

// Login 登录并返回 JWT，仅管理员可登录后台
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if hashPassword(password, u.Salt) != u.Password {
		return "", errors.New("invalid password")
	}
	if !u.IsAdmin {
		return "", errors.New("not an admin account")
	}
	return auth.GenerateToken(s.jwt, u.ID, u.Username, u.IsAdmin)
}
