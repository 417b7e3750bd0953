package disk_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/clouddisk-server/internal/config"
	"github.com/clouddisk-server/internal/disk"
	"github.com/clouddisk-server/internal/models"
	"github.com/clouddisk-server/internal/store"
)

type env struct {
	store    *store.Store
	resolver *disk.Resolver
	service  *disk.Service
	root     string
	user     *models.User
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
	service := disk.NewService(s, s, resolver, locks, logger)

	user := &models.User{Username: "tester", Email: "tester@example.com", PasswordHash: "x"}
	require.NoError(t, s.CreateUser(context.Background(), user))
	require.NoError(t, service.EnsureUserRoot(user.ID))

	return &env{store: s, resolver: resolver, service: service, root: root, user: user}
}

func (e *env) mustCreateFolder(t *testing.T, parentID *int64, name string) *models.Folder {
	t.Helper()
	folder, err := e.service.CreateFolder(context.Background(), e.user.ID, parentID, name)
	require.NoError(t, err)
	return folder
}

func (e *env) mustUpload(t *testing.T, folderID *int64, name, content string) *models.File {
	t.Helper()
	file, existed, err := e.service.Upload(context.Background(), e.user.ID, folderID, name, strings.NewReader(content))
	require.NoError(t, err)
	require.False(t, existed)
	return file
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
