// Package disk is the file placement engine: it keeps the on-disk tree
// and the record store mutually consistent across uploads, moves,
// renames and deletes. Records are authoritative; the filesystem is a
// projection of them, repaired by Sync after out-of-band changes.
package disk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clouddisk-server/internal/models"
)

type Service struct {
	files    models.FileRepository
	folders  models.FolderRepository
	resolver *Resolver
	locks    *UserLocks
	logger   *logrus.Logger
}

func NewService(files models.FileRepository, folders models.FolderRepository, resolver *Resolver, locks *UserLocks, logger *logrus.Logger) *Service {
	return &Service{
		files:    files,
		folders:  folders,
		resolver: resolver,
		locks:    locks,
		logger:   logger,
	}
}

// Resolver exposes the path resolver for collaborators that only need
// read-only path derivation.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// EnsureUserRoot creates the user's root directory if missing. Called
// at registration and login so every later operation can assume it.
func (s *Service) EnsureUserRoot(userID int64) error {
	if err := os.MkdirAll(s.resolver.UserRoot(userID), 0o755); err != nil {
		return fmt.Errorf("create user root: %w", err)
	}
	return nil
}

// Upload stores the stream under a fresh collision-free name, hashes it
// and either records it or, when identical content already exists in
// the same (owner, folder), discards the copy and returns the existing
// record. The second return value reports a dedup hit.
func (s *Service) Upload(ctx context.Context, userID int64, folderID *int64, displayName string, r io.Reader) (*models.File, bool, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, false, fmt.Errorf("%w: file name required", ErrValidation)
	}
	if !ExtensionAllowed(displayName) {
		return nil, false, fmt.Errorf("%w: file type not allowed", ErrValidation)
	}

	if folderID != nil {
		if _, err := s.folders.FolderByID(ctx, userID, *folderID); err != nil {
			return nil, false, err
		}
	}

	dir, err := s.resolver.FolderPath(ctx, userID, folderID)
	if err != nil {
		return nil, false, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, false, fmt.Errorf("create target directory: %w", err)
	}

	// The extension comes from the display name; the stored name is
	// random but keeps it so dedup/type metadata survive on disk.
	ext := ExtractExtension(displayName)
	storedName := NewStoredName(ext)
	path := filepath.Join(dir, storedName)

	out, err := os.Create(path)
	if err != nil {
		return nil, false, fmt.Errorf("create file: %w", err)
	}

	// Hash while writing; a failed stream leaves no partial file behind.
	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(out, h), r)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, false, fmt.Errorf("write upload: %w", err)
	}
	hash := hex.EncodeToString(h.Sum(nil))

	existing, err := s.files.FileByHash(ctx, userID, folderID, hash)
	if err == nil {
		// Identical content already in this folder: keep one copy.
		if removeErr := os.Remove(path); removeErr != nil {
			s.logger.WithError(removeErr).WithField("path", path).Warn("failed to discard duplicate upload")
		}
		return existing, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		os.Remove(path)
		return nil, false, err
	}

	file := &models.File{
		StoredName:  storedName,
		DisplayName: displayName,
		Size:        size,
		Hash:        hash,
		Type:        ext,
		OwnerID:     userID,
		FolderID:    folderID,
	}
	if err := s.files.CreateFile(ctx, file); err != nil {
		os.Remove(path)
		return nil, false, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"file_id": file.ID,
		"size":    size,
	}).Info("file uploaded")

	return file, false, nil
}

// Move reassigns a file to another folder. The record always advances;
// the physical relocation is best-effort and its failure is reported to
// the caller (second return value false) rather than failing the move,
// since Sync repairs the mismatch on its next run.
func (s *Service) Move(ctx context.Context, userID, fileID int64, targetFolderID *int64) (*models.File, bool, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	file, err := s.files.FileByID(ctx, userID, fileID)
	if err != nil {
		return nil, false, err
	}

	if targetFolderID != nil {
		if _, err := s.folders.FolderByID(ctx, userID, *targetFolderID); err != nil {
			return nil, false, err
		}
	}

	oldPath, err := s.resolver.PathFor(ctx, file)
	if err != nil {
		return nil, false, err
	}
	newDir, err := s.resolver.FolderPath(ctx, userID, targetFolderID)
	if err != nil {
		return nil, false, err
	}
	newPath := filepath.Join(newDir, file.StoredName)

	physicalOK := true
	if oldPath != newPath {
		if _, statErr := os.Stat(oldPath); statErr == nil {
			if err := os.MkdirAll(newDir, 0o755); err != nil {
				physicalOK = false
				s.logger.WithError(err).WithField("path", newDir).Warn("failed to create move target directory")
			} else if err := os.Rename(oldPath, newPath); err != nil {
				physicalOK = false
				s.logger.WithError(err).WithFields(logrus.Fields{
					"from": oldPath,
					"to":   newPath,
				}).Warn("failed to relocate file, record moved anyway")
			}
		} else {
			physicalOK = false
			s.logger.WithField("path", oldPath).Warn("source file missing on move")
		}
	}

	file.FolderID = targetFolderID
	if err := s.files.UpdateFile(ctx, file); err != nil {
		return nil, false, err
	}
	return file, physicalOK, nil
}

// Rename changes a file's display name. The stored name keeps its
// random base and only follows the extension: a new extension in the
// display name wins, otherwise the old one is kept.
func (s *Service) Rename(ctx context.Context, userID, fileID int64, newName string) (*models.File, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, fmt.Errorf("%w: file name required", ErrValidation)
	}

	file, err := s.files.FileByID(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}
	if newName == file.DisplayName {
		return file, nil
	}

	existing, err := s.files.FileByDisplayName(ctx, userID, file.FolderID, newName)
	if err == nil && existing.ID != file.ID {
		return nil, fmt.Errorf("%w: file name already used in this folder", ErrConflict)
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	finalExt := ExtractExtension(newName)
	if finalExt == "" {
		finalExt = ExtractExtension(file.StoredName)
	}
	newStored := swapExtension(file.StoredName, finalExt)

	if newStored != file.StoredName {
		dir, err := s.resolver.FolderPath(ctx, userID, file.FolderID)
		if err != nil {
			return nil, err
		}
		oldPath := filepath.Join(dir, file.StoredName)
		newPath := filepath.Join(dir, newStored)
		if _, statErr := os.Stat(oldPath); statErr == nil {
			if err := os.Rename(oldPath, newPath); err != nil {
				s.logger.WithError(err).WithField("path", oldPath).Warn("failed to rename file on disk")
			}
		}
	}

	file.DisplayName = newName
	file.StoredName = newStored
	file.Type = finalExt
	if err := s.files.UpdateFile(ctx, file); err != nil {
		return nil, err
	}
	return file, nil
}

// Delete removes a file record and, best-effort, its bytes. A file
// already missing from disk does not block removing its stale record.
func (s *Service) Delete(ctx context.Context, userID, fileID int64) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	file, err := s.files.FileByID(ctx, userID, fileID)
	if err != nil {
		return err
	}

	path, err := s.resolver.PathFor(ctx, file)
	if err == nil {
		if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
			s.logger.WithError(removeErr).WithField("path", path).Warn("failed to delete file on disk")
		}
	} else {
		s.logger.WithError(err).WithField("file_id", fileID).Warn("could not resolve file path on delete")
	}

	return s.files.DeleteFile(ctx, file.ID)
}

// FilePath loads a file and resolves its on-disk path, for downloads.
func (s *Service) FilePath(ctx context.Context, userID, fileID int64) (*models.File, string, error) {
	return s.resolver.FilePath(ctx, userID, fileID)
}
