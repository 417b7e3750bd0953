package share_test

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

	"github.com/clouddisk-server/internal/config"
	"github.com/clouddisk-server/internal/disk"
	"github.com/clouddisk-server/internal/models"
	"github.com/clouddisk-server/internal/share"
	"github.com/clouddisk-server/internal/store"
)

type env struct {
	store    *store.Store
	resolver *disk.Resolver
	disk     *disk.Service
	share    *share.Service
	owner    *models.User
	visitor  *models.User
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

	locks := disk.NewUserLocks()
	resolver := disk.NewResolver(filepath.Join(dir, "uploads"), s, s)
	diskSvc := disk.NewService(s, s, resolver, locks, logger)
	shareSvc := share.NewService(s, s, s, resolver, locks, logger)

	owner := &models.User{Username: "owner", Email: "owner@example.com", PasswordHash: "x"}
	require.NoError(t, s.CreateUser(context.Background(), owner))
	visitor := &models.User{Username: "visitor", Email: "visitor@example.com", PasswordHash: "x"}
	require.NoError(t, s.CreateUser(context.Background(), visitor))
	require.NoError(t, diskSvc.EnsureUserRoot(owner.ID))
	require.NoError(t, diskSvc.EnsureUserRoot(visitor.ID))

	return &env{store: s, resolver: resolver, disk: diskSvc, share: shareSvc, owner: owner, visitor: visitor}
}

func (e *env) mustUpload(t *testing.T, userID int64, folderID *int64, name, content string) *models.File {
	t.Helper()
	file, existed, err := e.disk.Upload(context.Background(), userID, folderID, name, strings.NewReader(content))
	require.NoError(t, err)
	require.False(t, existed)
	return file
}

func (e *env) mustCreateFolder(t *testing.T, userID int64, parentID *int64, name string) *models.Folder {
	t.Helper()
	folder, err := e.disk.CreateFolder(context.Background(), userID, parentID, name)
	require.NoError(t, err)
	return folder
}

func TestNewTokenIsURLSafeAndUnique(t *testing.T) {
	a, err := share.NewToken()
	require.NoError(t, err)
	b, err := share.NewToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "/")
	assert.NotContains(t, a, "+")
	assert.NotContains(t, a, "=")
}

func TestCreateAndResolveFileShare(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	file := e.mustUpload(t, e.owner.ID, nil, "shared.txt", "shared bytes")

	token, expiry, err := e.share.Create(ctx, e.owner.ID, file.ID, "file", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), expiry, time.Minute)

	content, err := e.share.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "file", content.Type)
	assert.Equal(t, "owner", content.OwnerName)
	require.NotNil(t, content.File)
	assert.Equal(t, file.ID, content.File.ID)
}

func TestCreateOverwritesPriorToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	file := e.mustUpload(t, e.owner.ID, nil, "twice.txt", "bytes")

	first, _, err := e.share.Create(ctx, e.owner.ID, file.ID, "file", 1)
	require.NoError(t, err)
	second, _, err := e.share.Create(ctx, e.owner.ID, file.ID, "file", 1)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, err = e.share.Resolve(ctx, first)
	assert.ErrorIs(t, err, disk.ErrNotFound)
	_, err = e.share.Resolve(ctx, second)
	assert.NoError(t, err)
}

func TestResolveExpiredShare(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	file := e.mustUpload(t, e.owner.ID, nil, "stale.txt", "bytes")

	token, _, err := e.share.Create(ctx, e.owner.ID, file.ID, "file", 1)
	require.NoError(t, err)

	// force the expiry into the past
	got, err := e.store.FileByID(ctx, e.owner.ID, file.ID)
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	got.ShareExpiry = &past
	require.NoError(t, e.store.UpdateFile(ctx, got))

	// expired is a distinct failure from unknown
	_, err = e.share.Resolve(ctx, token)
	assert.ErrorIs(t, err, disk.ErrExpired)
	_, err = e.share.Resolve(ctx, "no-such-token")
	assert.ErrorIs(t, err, disk.ErrNotFound)
}

func TestSaveExpiredShareRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	file := e.mustUpload(t, e.owner.ID, nil, "old.txt", "bytes")
	token, _, err := e.share.Create(ctx, e.owner.ID, file.ID, "file", 1)
	require.NoError(t, err)

	got, err := e.store.FileByID(ctx, e.owner.ID, file.ID)
	require.NoError(t, err)
	past := time.Now().Add(-time.Minute)
	got.ShareExpiry = &past
	require.NoError(t, e.store.UpdateFile(ctx, got))

	_, err = e.share.Save(ctx, token, e.visitor.ID, nil, nil, nil)
	assert.ErrorIs(t, err, disk.ErrExpired)

	copies, err := e.store.FilesInFolder(ctx, e.visitor.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, copies)
}

func TestResolveFolderShareListsSubtree(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	top := e.mustCreateFolder(t, e.owner.ID, nil, "album")
	sub := e.mustCreateFolder(t, e.owner.ID, &top.ID, "2024")
	e.mustUpload(t, e.owner.ID, &top.ID, "cover.txt", "c")
	e.mustUpload(t, e.owner.ID, &sub.ID, "inner.txt", "i")

	token, _, err := e.share.Create(ctx, e.owner.ID, top.ID, "folder", 0)
	require.NoError(t, err)

	content, err := e.share.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "folder", content.Type)
	require.NotEmpty(t, content.Folders)
	// shared root comes first
	assert.Equal(t, top.ID, content.Folders[0].ID)
	assert.Len(t, content.Folders, 2)
	assert.Len(t, content.Files, 2)
}

func TestSaveFileShareCreatesIndependentCopy(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	file := e.mustUpload(t, e.owner.ID, nil, "gift.txt", "present")
	token, _, err := e.share.Create(ctx, e.owner.ID, file.ID, "file", 0)
	require.NoError(t, err)

	res, err := e.share.Save(ctx, token, e.visitor.ID, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesCopied)

	copies, err := e.store.FilesInFolder(ctx, e.visitor.ID, nil)
	require.NoError(t, err)
	require.Len(t, copies, 1)
	copied := copies[0]

	assert.Equal(t, "gift.txt", copied.DisplayName)
	assert.Equal(t, file.Hash, copied.Hash)
	assert.NotEqual(t, file.StoredName, copied.StoredName)
	assert.Equal(t, e.visitor.ID, copied.OwnerID)

	// deleting the original leaves the copy intact
	require.NoError(t, e.disk.Delete(ctx, e.owner.ID, file.ID))
	_, path, err := e.resolver.FilePath(ctx, e.visitor.ID, copied.ID)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "present", string(data))
}

func TestSaveFolderShareCopiesSubtree(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	top := e.mustCreateFolder(t, e.owner.ID, nil, "project")
	sub := e.mustCreateFolder(t, e.owner.ID, &top.ID, "src")
	e.mustUpload(t, e.owner.ID, &top.ID, "readme.txt", "r")
	e.mustUpload(t, e.owner.ID, &sub.ID, "main.txt", "m")

	token, _, err := e.share.Create(ctx, e.owner.ID, top.ID, "folder", 0)
	require.NoError(t, err)

	res, err := e.share.Save(ctx, token, e.visitor.ID, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.FilesCopied)
	assert.Equal(t, 2, res.FoldersCopied)

	copiedTop, err := e.store.FolderByName(ctx, e.visitor.ID, nil, "project")
	require.NoError(t, err)
	copiedSub, err := e.store.FolderByName(ctx, e.visitor.ID, &copiedTop.ID, "src")
	require.NoError(t, err)

	files, err := e.store.FilesInFolder(ctx, e.visitor.ID, &copiedSub.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "main.txt", files[0].DisplayName)
}

func TestSaveSelectionFiltersNonMembers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	shared := e.mustCreateFolder(t, e.owner.ID, nil, "public")
	inside := e.mustUpload(t, e.owner.ID, &shared.ID, "in.txt", "in")
	outside := e.mustUpload(t, e.owner.ID, nil, "out.txt", "out")

	token, _, err := e.share.Create(ctx, e.owner.ID, shared.ID, "folder", 0)
	require.NoError(t, err)

	// the outside id must not leak through the selection
	res, err := e.share.Save(ctx, token, e.visitor.ID, nil, []int64{inside.ID, outside.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesCopied)

	copies, err := e.store.FilesInFolder(ctx, e.visitor.ID, nil)
	require.NoError(t, err)
	require.Len(t, copies, 1)
	assert.Equal(t, "in.txt", copies[0].DisplayName)
}

func TestSharedFilePath(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	folder := e.mustCreateFolder(t, e.owner.ID, nil, "pub")
	file := e.mustUpload(t, e.owner.ID, &folder.ID, "dl.txt", "download me")
	private := e.mustUpload(t, e.owner.ID, nil, "private.txt", "secret")

	token, _, err := e.share.Create(ctx, e.owner.ID, folder.ID, "folder", 0)
	require.NoError(t, err)

	got, path, err := e.share.SharedFilePath(ctx, token, file.ID)
	require.NoError(t, err)
	assert.Equal(t, "dl.txt", got.DisplayName)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "download me", string(data))

	// files outside the shared subtree are unreachable via the token
	_, _, err = e.share.SharedFilePath(ctx, token, private.ID)
	assert.ErrorIs(t, err, disk.ErrNotFound)
}
