package auth_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clouddisk-server/internal/auth"
	"github.com/clouddisk-server/internal/cache"
	"github.com/clouddisk-server/internal/config"
	"github.com/clouddisk-server/internal/disk"
	"github.com/clouddisk-server/internal/models"
	"github.com/clouddisk-server/internal/store"
)

type env struct {
	store   *store.Store
	service *auth.Service
	root    string
}

func newEnv(t *testing.T) *env {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Database.Type = "sqlite"
	cfg.Database.SQLite.Path = filepath.Join(dir, "test.db")

	s, err := store.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	root := filepath.Join(dir, "uploads")
	locks := disk.NewUserLocks()
	resolver := disk.NewResolver(root, s, s)
	diskSvc := disk.NewService(s, s, resolver, locks, logger)

	tokens := cache.NewMemoryStore(time.Minute)
	t.Cleanup(func() { tokens.Close() })

	svc := auth.NewService(s, diskSvc, tokens, "test-secret", time.Hour, logger)
	return &env{store: s, service: svc, root: root}
}

func (e *env) mustRegister(t *testing.T, name string) *models.User {
	t.Helper()
	user, err := e.service.Register(context.Background(), &models.UserCreateRequest{
		Username: name,
		Email:    name + "@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	return user
}

func TestRegisterCreatesUserAndRoot(t *testing.T) {
	e := newEnv(t)

	user := e.mustRegister(t, "alice")
	require.NotZero(t, user.ID)
	assert.NotEqual(t, "secret123", user.PasswordHash)

	info, err := os.Stat(filepath.Join(e.root, "user_1"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRegisterUniqueness(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.mustRegister(t, "bob")

	_, err := e.service.Register(ctx, &models.UserCreateRequest{
		Username: "bob", Email: "other@example.com", Password: "secret123",
	})
	assert.ErrorIs(t, err, auth.ErrUserExists)

	_, err = e.service.Register(ctx, &models.UserCreateRequest{
		Username: "bob2", Email: "bob@example.com", Password: "secret123",
	})
	assert.ErrorIs(t, err, auth.ErrEmailExists)
}

func TestLoginAndValidate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := e.mustRegister(t, "carol")

	token, got, err := e.service.Login(ctx, "carol", "secret123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	require.NotEmpty(t, token)

	claims, err := e.service.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "carol", claims.Username)
}

func TestLoginWrongPassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.mustRegister(t, "dave")

	_, _, err := e.service.Login(ctx, "dave", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, _, err = e.service.Login(ctx, "nobody", "secret123")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestValidateRejectsGarbage(t *testing.T) {
	e := newEnv(t)

	_, err := e.service.ValidateToken(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestLogoutRevokesToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.mustRegister(t, "erin")
	token, _, err := e.service.Login(ctx, "erin", "secret123")
	require.NoError(t, err)

	require.NoError(t, e.service.Logout(ctx, token))

	_, err = e.service.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestUpdateProfile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := e.mustRegister(t, "frank")
	other := e.mustRegister(t, "grace")

	updated, err := e.service.UpdateProfile(ctx, user.ID, &models.UserUpdateRequest{
		Username: "franklin",
		Email:    "franklin@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "franklin", updated.Username)
	assert.Equal(t, "franklin@example.com", updated.Email)

	// collisions with another user's identity are rejected
	_, err = e.service.UpdateProfile(ctx, user.ID, &models.UserUpdateRequest{Username: other.Username})
	assert.ErrorIs(t, err, auth.ErrUserExists)
	_, err = e.service.UpdateProfile(ctx, user.ID, &models.UserUpdateRequest{Email: other.Email})
	assert.ErrorIs(t, err, auth.ErrEmailExists)
}

func TestUploadAvatar(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user := e.mustRegister(t, "heidi")

	updated, err := e.service.UploadAvatar(ctx, user.ID, "me.png", strings.NewReader("imagebytes"))
	require.NoError(t, err)
	require.NotEmpty(t, updated.AvatarURL)
	assert.Contains(t, updated.AvatarURL, "avatars/")

	path, err := e.service.AvatarPath(updated.AvatarURL)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "imagebytes", string(data))

	// replacing the avatar removes the old file
	first := path
	updated, err = e.service.UploadAvatar(ctx, user.ID, "new.jpg", strings.NewReader("other"))
	require.NoError(t, err)
	_, err = os.Stat(first)
	assert.True(t, os.IsNotExist(err))

	_, err = e.service.UploadAvatar(ctx, user.ID, "evil.exe", strings.NewReader("x"))
	assert.ErrorIs(t, err, disk.ErrValidation)
}

func TestAvatarPathTraversal(t *testing.T) {
	e := newEnv(t)

	_, err := e.service.AvatarPath("../../../etc/passwd")
	assert.ErrorIs(t, err, disk.ErrNotFound)

	_, err = e.service.AvatarPath("user_1/notavatars/x.png")
	assert.ErrorIs(t, err, disk.ErrNotFound)
}
