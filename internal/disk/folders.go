package disk

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clouddisk-server/internal/models"
)

// CreateFolder validates the name, records the folder and creates its
// directory. The record is rolled back if the directory cannot be made,
// so a successful create always leaves both sides in place.
func (s *Service) CreateFolder(ctx context.Context, userID int64, parentID *int64, name string) (*models.Folder, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: folder name required", ErrValidation)
	}
	if strings.EqualFold(name, ReservedFolderName) {
		return nil, fmt.Errorf("%w: folder name is reserved", ErrValidation)
	}
	if strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: folder name must not contain path separators", ErrValidation)
	}

	if parentID != nil {
		if _, err := s.folders.FolderByID(ctx, userID, *parentID); err != nil {
			return nil, err
		}
	}

	if _, err := s.folders.FolderByName(ctx, userID, parentID, name); err == nil {
		return nil, fmt.Errorf("%w: folder name already used here", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	folder := &models.Folder{
		Name:     name,
		OwnerID:  userID,
		ParentID: parentID,
	}
	if err := s.folders.CreateFolder(ctx, folder); err != nil {
		return nil, err
	}

	dir, err := s.resolver.FolderPath(ctx, userID, &folder.ID)
	if err == nil {
		err = os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		if delErr := s.folders.DeleteFolder(ctx, folder.ID); delErr != nil {
			s.logger.WithError(delErr).WithField("folder_id", folder.ID).Error("failed to roll back folder record")
		}
		return nil, fmt.Errorf("create folder directory: %w", err)
	}

	return folder, nil
}

// RenameFolder changes a folder's name and renames its directory in
// place. The record always advances; the physical rename is best-effort.
func (s *Service) RenameFolder(ctx context.Context, userID, folderID int64, newName string) (*models.Folder, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, fmt.Errorf("%w: folder name required", ErrValidation)
	}
	if strings.EqualFold(newName, ReservedFolderName) {
		return nil, fmt.Errorf("%w: folder name is reserved", ErrValidation)
	}
	if strings.ContainsAny(newName, `/\`) {
		return nil, fmt.Errorf("%w: folder name must not contain path separators", ErrValidation)
	}

	folder, err := s.folders.FolderByID(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}
	if newName == folder.Name {
		return folder, nil
	}

	if existing, err := s.folders.FolderByName(ctx, userID, folder.ParentID, newName); err == nil && existing.ID != folder.ID {
		return nil, fmt.Errorf("%w: folder name already used here", ErrConflict)
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	oldPath, err := s.resolver.FolderPath(ctx, userID, &folder.ID)
	if err != nil {
		return nil, err
	}
	parentDir, err := s.resolver.FolderPath(ctx, userID, folder.ParentID)
	if err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(oldPath); statErr == nil {
		if err := os.Rename(oldPath, filepath.Join(parentDir, newName)); err != nil {
			s.logger.WithError(err).WithField("path", oldPath).Warn("failed to rename folder on disk")
		}
	}

	folder.Name = newName
	if err := s.folders.UpdateFolder(ctx, folder); err != nil {
		return nil, err
	}
	return folder, nil
}

// DeleteFolder removes a folder, its subtree of records and its
// directory. It returns how many files and folders were deleted,
// counting the folder itself.
func (s *Service) DeleteFolder(ctx context.Context, userID, folderID int64) (int, int, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	folder, err := s.folders.FolderByID(ctx, userID, folderID)
	if err != nil {
		return 0, 0, err
	}

	dir, resolveErr := s.resolver.FolderPath(ctx, userID, &folder.ID)

	files, folders, err := s.deleteFolderRecords(ctx, userID, folder.ID)
	if err != nil {
		return files, folders, err
	}

	if resolveErr == nil {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.WithError(err).WithField("path", dir).Warn("failed to remove folder directory")
		}
	} else {
		s.logger.WithError(resolveErr).WithField("folder_id", folderID).Warn("could not resolve folder path on delete")
	}

	return files, folders, nil
}

// deleteFolderRecords removes the record subtree depth-first: files of
// each folder, then its subfolders, then the folder itself.
func (s *Service) deleteFolderRecords(ctx context.Context, userID, folderID int64) (int, int, error) {
	filesDeleted := 0
	foldersDeleted := 0

	files, err := s.files.FilesInFolder(ctx, userID, &folderID)
	if err != nil {
		return filesDeleted, foldersDeleted, err
	}
	for _, f := range files {
		if err := s.files.DeleteFile(ctx, f.ID); err != nil {
			return filesDeleted, foldersDeleted, err
		}
		filesDeleted++
	}

	children, err := s.folders.FoldersInParent(ctx, userID, &folderID)
	if err != nil {
		return filesDeleted, foldersDeleted, err
	}
	for _, child := range children {
		cf, cd, err := s.deleteFolderRecords(ctx, userID, child.ID)
		filesDeleted += cf
		foldersDeleted += cd
		if err != nil {
			return filesDeleted, foldersDeleted, err
		}
	}

	if err := s.folders.DeleteFolder(ctx, folderID); err != nil {
		return filesDeleted, foldersDeleted, err
	}
	foldersDeleted++

	s.logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"folder_id": folderID,
	}).Debug("folder record subtree removed")

	return filesDeleted, foldersDeleted, nil
}
