// Package share 实现分享链接与跨用户保存:为文件或文件夹生成限时令牌,
// 解析令牌展示内容,并将分享内容复制到访问者自己的目录树中。
package share

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clouddisk-server/internal/disk"
	"github.com/clouddisk-server/internal/models"
)

// DefaultExpiryDays 分享链接默认有效期
const DefaultExpiryDays = 7

// Service 分享服务
type Service struct {
	users    models.UserRepository
	files    models.FileRepository
	folders  models.FolderRepository
	resolver *disk.Resolver
	locks    *disk.UserLocks
	logger   *logrus.Logger
}

// NewService 创建分享服务
func NewService(users models.UserRepository, files models.FileRepository, folders models.FolderRepository, resolver *disk.Resolver, locks *disk.UserLocks, logger *logrus.Logger) *Service {
	return &Service{
		users:    users,
		files:    files,
		folders:  folders,
		resolver: resolver,
		locks:    locks,
		logger:   logger,
	}
}

// NewToken 生成 URL 安全的分享令牌
func NewToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate share token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Create 为文件或文件夹生成分享令牌。kind 为 "file" 或 "folder";
// days <= 0 时采用默认有效期。重复分享会覆盖旧令牌。
func (s *Service) Create(ctx context.Context, userID, targetID int64, kind string, days int) (string, time.Time, error) {
	if days <= 0 {
		days = DefaultExpiryDays
	}
	token, err := NewToken()
	if err != nil {
		return "", time.Time{}, err
	}
	expiry := time.Now().Add(time.Duration(days) * 24 * time.Hour)

	switch kind {
	case "file":
		file, err := s.files.FileByID(ctx, userID, targetID)
		if err != nil {
			return "", time.Time{}, err
		}
		file.ShareToken = &token
		file.ShareExpiry = &expiry
		if err := s.files.UpdateFile(ctx, file); err != nil {
			return "", time.Time{}, err
		}
	case "folder":
		folder, err := s.folders.FolderByID(ctx, userID, targetID)
		if err != nil {
			return "", time.Time{}, err
		}
		folder.ShareToken = &token
		folder.ShareExpiry = &expiry
		if err := s.folders.UpdateFolder(ctx, folder); err != nil {
			return "", time.Time{}, err
		}
	default:
		return "", time.Time{}, fmt.Errorf("%w: share kind must be file or folder", disk.ErrValidation)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"kind":    kind,
		"target":  targetID,
	}).Info("share link created")

	return token, expiry, nil
}

// SharedContent 分享令牌解析结果。Type 为 "file" 或 "folder";
// 文件夹分享时 Folders 的首个元素是被分享的根文件夹,
// Files 与 Folders 覆盖整个子树。
type SharedContent struct {
	Type      string           `json:"type"`
	OwnerName string           `json:"owner_name"`
	File      *models.File     `json:"file,omitempty"`
	Folder    *models.Folder   `json:"folder,omitempty"`
	Files     []*models.File   `json:"files,omitempty"`
	Folders   []*models.Folder `json:"folders,omitempty"`
}

// Resolve 解析分享令牌。令牌不存在返回 ErrNotFound,
// 已过期返回 ErrExpired,两者对调用方是不同的失败。
func (s *Service) Resolve(ctx context.Context, token string) (*SharedContent, error) {
	if file, err := s.files.FileByShareToken(ctx, token); err == nil {
		if expired(file.ShareExpiry) {
			return nil, disk.ErrExpired
		}
		owner, err := s.users.UserByID(ctx, file.OwnerID)
		if err != nil {
			return nil, err
		}
		return &SharedContent{Type: "file", OwnerName: owner.Username, File: file}, nil
	} else if !errors.Is(err, disk.ErrNotFound) {
		return nil, err
	}

	folder, err := s.folders.FolderByShareToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if expired(folder.ShareExpiry) {
		return nil, disk.ErrExpired
	}
	owner, err := s.users.UserByID(ctx, folder.OwnerID)
	if err != nil {
		return nil, err
	}

	content := &SharedContent{
		Type:      "folder",
		OwnerName: owner.Username,
		Folder:    folder,
		Folders:   []*models.Folder{folder},
	}
	if err := s.collectSubtree(ctx, folder.OwnerID, folder.ID, content); err != nil {
		return nil, err
	}
	return content, nil
}

// collectSubtree 深度优先收集子树中的全部文件与文件夹
func (s *Service) collectSubtree(ctx context.Context, ownerID, folderID int64, content *SharedContent) error {
	files, err := s.files.FilesInFolder(ctx, ownerID, &folderID)
	if err != nil {
		return err
	}
	content.Files = append(content.Files, files...)

	children, err := s.folders.FoldersInParent(ctx, ownerID, &folderID)
	if err != nil {
		return err
	}
	for _, child := range children {
		content.Folders = append(content.Folders, child)
		if err := s.collectSubtree(ctx, ownerID, child.ID, content); err != nil {
			return err
		}
	}
	return nil
}

// SharedFilePath 解析分享中某个文件的磁盘路径,供未登录下载使用。
// 文件必须是被分享的文件本身,或位于被分享文件夹的子树内。
func (s *Service) SharedFilePath(ctx context.Context, token string, fileID int64) (*models.File, string, error) {
	content, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, "", err
	}

	var file *models.File
	switch content.Type {
	case "file":
		if content.File.ID != fileID {
			return nil, "", disk.ErrNotFound
		}
		file = content.File
	case "folder":
		for _, f := range content.Files {
			if f.ID == fileID {
				file = f
				break
			}
		}
		if file == nil {
			return nil, "", disk.ErrNotFound
		}
	}

	path, err := s.resolver.PathFor(ctx, file)
	if err != nil {
		return nil, "", err
	}
	return file, path, nil
}

// SaveResult 保存分享内容的结果统计
type SaveResult struct {
	FilesCopied   int `json:"files_copied"`
	FoldersCopied int `json:"folders_copied"`
}

// Save 将分享内容复制到 requesterID 自己的目录树中。fileIDs 与
// folderIDs 为空时复制全部内容;给定时仅复制其中确实属于该分享的
// 条目,其余静默跳过。复制出的文件使用全新存储名,与原件完全独立。
func (s *Service) Save(ctx context.Context, token string, requesterID int64, targetFolderID *int64, fileIDs, folderIDs []int64) (*SaveResult, error) {
	content, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(requesterID)
	defer unlock()

	if targetFolderID != nil {
		if _, err := s.folders.FolderByID(ctx, requesterID, *targetFolderID); err != nil {
			return nil, err
		}
	}

	res := &SaveResult{}

	if content.Type == "file" {
		if len(fileIDs) > 0 && !containsID(fileIDs, content.File.ID) {
			return res, nil
		}
		if err := s.copyFile(ctx, content.File, requesterID, targetFolderID, res); err != nil {
			return nil, err
		}
		return res, nil
	}

	// 文件夹分享:按成员集合过滤选择,防止令牌被用于访问子树之外的内容
	memberFiles := make(map[int64]*models.File, len(content.Files))
	for _, f := range content.Files {
		memberFiles[f.ID] = f
	}
	memberFolders := make(map[int64]*models.Folder, len(content.Folders))
	for _, f := range content.Folders {
		memberFolders[f.ID] = f
	}

	if len(fileIDs) == 0 && len(folderIDs) == 0 {
		// 未指定选择:复制整个被分享的文件夹
		if err := s.copyFolderRec(ctx, content.Folder, requesterID, targetFolderID, res); err != nil {
			return nil, err
		}
		return res, nil
	}

	for _, id := range folderIDs {
		folder, ok := memberFolders[id]
		if !ok {
			continue
		}
		if err := s.copyFolderRec(ctx, folder, requesterID, targetFolderID, res); err != nil {
			return nil, err
		}
	}
	for _, id := range fileIDs {
		file, ok := memberFiles[id]
		if !ok {
			continue
		}
		if err := s.copyFile(ctx, file, requesterID, targetFolderID, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// copyFile 把一个分享文件复制为 requester 名下的独立文件,
// 新记录使用全新存储名,字节逐份复制。
func (s *Service) copyFile(ctx context.Context, src *models.File, requesterID int64, targetFolderID *int64, res *SaveResult) error {
	srcPath, err := s.resolver.PathFor(ctx, src)
	if err != nil {
		return err
	}

	dir, err := s.resolver.FolderPath(ctx, requesterID, targetFolderID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create save target directory: %w", err)
	}

	storedName := disk.NewStoredName(src.Type)
	dstPath := filepath.Join(dir, storedName)
	if err := copyBytes(srcPath, dstPath); err != nil {
		return err
	}

	file := &models.File{
		StoredName:  storedName,
		DisplayName: src.DisplayName,
		Size:        src.Size,
		Hash:        src.Hash,
		Type:        src.Type,
		OwnerID:     requesterID,
		FolderID:    targetFolderID,
	}
	if err := s.files.CreateFile(ctx, file); err != nil {
		os.Remove(dstPath)
		return err
	}
	res.FilesCopied++
	return nil
}

// copyFolderRec 递归复制文件夹子树。目标位置已有同名文件夹时
// 直接并入,不再新建。
func (s *Service) copyFolderRec(ctx context.Context, src *models.Folder, requesterID int64, parentID *int64, res *SaveResult) error {
	dst, err := s.folders.FolderByName(ctx, requesterID, parentID, src.Name)
	if errors.Is(err, disk.ErrNotFound) {
		dst = &models.Folder{Name: src.Name, OwnerID: requesterID, ParentID: parentID}
		if err := s.folders.CreateFolder(ctx, dst); err != nil {
			return err
		}
		res.FoldersCopied++
	} else if err != nil {
		return err
	}

	dir, err := s.resolver.FolderPath(ctx, requesterID, &dst.ID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create copied folder directory: %w", err)
	}

	files, err := s.files.FilesInFolder(ctx, src.OwnerID, &src.ID)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := s.copyFile(ctx, f, requesterID, &dst.ID, res); err != nil {
			return err
		}
	}

	children, err := s.folders.FoldersInParent(ctx, src.OwnerID, &src.ID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := s.copyFolderRec(ctx, child, requesterID, &dst.ID, res); err != nil {
			return err
		}
	}
	return nil
}

func copyBytes(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open shared file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy shared file: %w", err)
	}
	return out.Close()
}

func expired(expiry *time.Time) bool {
	return expiry != nil && time.Now().After(*expiry)
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
