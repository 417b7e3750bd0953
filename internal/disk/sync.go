package disk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clouddisk-server/internal/models"
)

// SyncResult summarizes one reconciliation run.
type SyncResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// Sync walks a user's on-disk tree and reconciles it with the record
// store: directories without records get folder records, files without
// records get file records, records whose file is gone are removed, and
// files found at a different location than their record says adopt the
// on-disk location. The avatar directory is skipped at any depth.
func (s *Service) Sync(ctx context.Context, userID int64) (SyncResult, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	var res SyncResult

	root := s.resolver.UserRoot(userID)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return res, err
	}

	if err := s.syncDir(ctx, userID, root, nil, &res); err != nil {
		return res, err
	}

	// Drop records whose resolved path no longer exists on disk.
	files, err := s.files.FilesByOwner(ctx, userID)
	if err != nil {
		return res, err
	}
	for _, f := range files {
		path, err := s.resolver.PathFor(ctx, f)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Parent folder record is gone; the file record is stale.
				if delErr := s.files.DeleteFile(ctx, f.ID); delErr != nil {
					return res, delErr
				}
				res.Deleted++
				continue
			}
			return res, err
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			if err := s.files.DeleteFile(ctx, f.ID); err != nil {
				return res, err
			}
			res.Deleted++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"created": res.Created,
		"updated": res.Updated,
		"deleted": res.Deleted,
	}).Info("sync completed")

	return res, nil
}

// syncDir reconciles one directory level and recurses into
// subdirectories, creating missing folder records on the way down.
func (s *Service) syncDir(ctx context.Context, userID int64, dir string, folderID *int64, res *SyncResult) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			if strings.EqualFold(name, ReservedFolderName) {
				continue
			}
			childID, err := s.ensureFolderRecord(ctx, userID, folderID, name, res)
			if err != nil {
				return err
			}
			if err := s.syncDir(ctx, userID, filepath.Join(dir, name), &childID, res); err != nil {
				return err
			}
			continue
		}
		if err := s.syncFile(ctx, userID, filepath.Join(dir, name), name, folderID, res); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ensureFolderRecord(ctx context.Context, userID int64, parentID *int64, name string, res *SyncResult) (int64, error) {
	folder, err := s.folders.FolderByName(ctx, userID, parentID, name)
	if err == nil {
		return folder.ID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, err
	}
	folder = &models.Folder{Name: name, OwnerID: userID, ParentID: parentID}
	if err := s.folders.CreateFolder(ctx, folder); err != nil {
		return 0, err
	}
	res.Created++
	return folder.ID, nil
}

// syncFile matches one on-disk file against the records. Matching order:
// by stored name (the name is unique enough to identify the record),
// then by content hash, then a fresh record is created. Display names of
// untracked files cannot be recovered; the stored name stands in.
func (s *Service) syncFile(ctx context.Context, userID int64, path, name string, folderID *int64, res *SyncResult) error {
	file, err := s.files.FileByStoredName(ctx, userID, name)
	if err == nil {
		return s.refreshTrackedFile(ctx, file, path, folderID, res)
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	hash, size, err := HashFile(path)
	if err != nil {
		return err
	}

	// Same content elsewhere in the tree means the file is already
	// tracked; the pass that prunes missing paths settles the rest.
	if _, err := s.files.FileByHashAnyFolder(ctx, userID, hash); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	file = &models.File{
		StoredName:  name,
		DisplayName: name,
		Size:        size,
		Hash:        hash,
		Type:        ExtractExtension(name),
		OwnerID:     userID,
		FolderID:    folderID,
	}
	if err := s.files.CreateFile(ctx, file); err != nil {
		return err
	}
	res.Created++
	return nil
}

// refreshTrackedFile updates a record matched by stored name: if the
// record's own location still holds the file it is left in place,
// otherwise the record adopts the walked location. Size and hash are
// refreshed when the bytes changed underneath the record.
func (s *Service) refreshTrackedFile(ctx context.Context, file *models.File, path string, folderID *int64, res *SyncResult) error {
	changed := false

	recordPath, err := s.resolver.PathFor(ctx, file)
	if err != nil || recordPath != path {
		stillThere := false
		if err == nil {
			if _, statErr := os.Stat(recordPath); statErr == nil {
				stillThere = true
			}
		}
		if !stillThere {
			file.FolderID = folderID
			changed = true
		}
	}

	hash, size, err := HashFile(path)
	if err != nil {
		return err
	}
	if file.Hash != hash || file.Size != size {
		file.Hash = hash
		file.Size = size
		changed = true
	}

	if changed {
		if err := s.files.UpdateFile(ctx, file); err != nil {
			return err
		}
		res.Updated++
	}
	return nil
}
