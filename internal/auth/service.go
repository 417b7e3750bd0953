// Package auth 实现用户注册、登录、JWT 签发与校验,以及头像管理。
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/clouddisk-server/internal/cache"
	"github.com/clouddisk-server/internal/disk"
	"github.com/clouddisk-server/internal/models"
)

// Claims JWT令牌声明
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service 认证服务
type Service struct {
	users  models.UserRepository
	disk   *disk.Service
	tokens cache.TokenStore
	secret []byte
	expiry time.Duration
	logger *logrus.Logger
}

// NewService 创建认证服务
func NewService(users models.UserRepository, diskSvc *disk.Service, tokens cache.TokenStore, secret string, expiry time.Duration, logger *logrus.Logger) *Service {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &Service{
		users:  users,
		disk:   diskSvc,
		tokens: tokens,
		secret: []byte(secret),
		expiry: expiry,
		logger: logger,
	}
}

// Register 注册用户并初始化其存储根目录
func (s *Service) Register(ctx context.Context, req *models.UserCreateRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	if username == "" || email == "" || req.Password == "" {
		return nil, ErrInvalidRequest
	}

	if _, err := s.users.UserByUsername(ctx, username); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, disk.ErrNotFound) {
		return nil, err
	}
	if _, err := s.users.UserByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, disk.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	if err := s.disk.EnsureUserRoot(user.ID); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Error("failed to create user root directory")
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("user registered")

	return user, nil
}

// Login 验证凭据并签发JWT令牌
func (s *Service) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, disk.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return "", nil, err
	}

	if err := s.disk.EnsureUserRoot(user.ID); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Warn("failed to ensure user root directory")
	}

	return token, user, nil
}

// GenerateToken 生成JWT令牌
func (s *Service) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   fmt.Sprintf("%d", user.ID),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken 校验JWT令牌并检查黑名单
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	revoked, err := s.tokens.IsRevoked(ctx, tokenString)
	if err != nil {
		s.logger.WithError(err).Warn("token blacklist check failed")
	} else if revoked {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Logout 将令牌加入黑名单直至其自然过期
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.ValidateToken(ctx, tokenString)
	if err != nil {
		return err
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	return s.tokens.Revoke(ctx, tokenString, ttl)
}

// GetUserByID 根据ID获取用户
func (s *Service) GetUserByID(ctx context.Context, userID int64) (*models.User, error) {
	return s.users.UserByID(ctx, userID)
}

// UpdateProfile 更新用户资料,用户名与邮箱须保持唯一
func (s *Service) UpdateProfile(ctx context.Context, userID int64, req *models.UserUpdateRequest) (*models.User, error) {
	user, err := s.users.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(req.Username); name != "" && name != user.Username {
		if _, err := s.users.UserByUsername(ctx, name); err == nil {
			return nil, ErrUserExists
		} else if !errors.Is(err, disk.ErrNotFound) {
			return nil, err
		}
		user.Username = name
	}
	if email := strings.TrimSpace(req.Email); email != "" && email != user.Email {
		if _, err := s.users.UserByEmail(ctx, email); err == nil {
			return nil, ErrEmailExists
		} else if !errors.Is(err, disk.ErrNotFound) {
			return nil, err
		}
		user.Email = email
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// avatarExtensions 头像允许的图片格式
var avatarExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {},
}

// UploadAvatar 保存用户头像到保留目录并更新资料中的相对路径。
// 旧头像文件被删除。
func (s *Service) UploadAvatar(ctx context.Context, userID int64, filename string, r io.Reader) (*models.User, error) {
	ext := disk.ExtractExtension(filename)
	if _, ok := avatarExtensions[ext]; !ok {
		return nil, fmt.Errorf("%w: avatar must be jpg, jpeg, png or gif", disk.ErrValidation)
	}

	user, err := s.users.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	dir := s.disk.Resolver().AvatarDir(userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create avatar directory: %w", err)
	}

	name := fmt.Sprintf("avatar_%d_%s.%s", userID, strings.ReplaceAll(uuid.New().String(), "-", ""), ext)
	path := filepath.Join(dir, name)

	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create avatar file: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write avatar: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write avatar: %w", err)
	}

	if user.AvatarURL != "" {
		old := filepath.Join(s.disk.Resolver().Root(), filepath.FromSlash(user.AvatarURL))
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			s.logger.WithError(err).WithField("path", old).Warn("failed to remove old avatar")
		}
	}

	user.AvatarURL = fmt.Sprintf("user_%d/%s/%s", userID, disk.ReservedFolderName, name)
	if err := s.users.UpdateUser(ctx, user); err != nil {
		os.Remove(path)
		return nil, err
	}
	return user, nil
}

// AvatarPath 将头像相对路径解析为磁盘路径。路径必须落在存储根内
// 且属于头像保留目录,防止路径穿越。
func (s *Service) AvatarPath(relative string) (string, error) {
	root := s.disk.Resolver().Root()
	path := filepath.Join(root, filepath.FromSlash(relative))

	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", disk.ErrNotFound
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 3 || !strings.HasPrefix(parts[0], "user_") || parts[1] != disk.ReservedFolderName {
		return "", disk.ErrNotFound
	}
	if _, err := os.Stat(path); err != nil {
		return "", disk.ErrNotFound
	}
	return path, nil
}

// 错误定义
var (
	ErrInvalidRequest     = Error("username, email and password are required")
	ErrUserExists         = Error("username already taken")
	ErrEmailExists        = Error("email already registered")
	ErrInvalidCredentials = Error("invalid username or password")
	ErrInvalidToken       = Error("invalid or expired token")
)

type Error string

func (e Error) Error() string {
	return string(e)
}
