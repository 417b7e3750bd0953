package disk

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/clouddisk-server/internal/models"
)

// maxFolderDepth bounds the parent-chain walk. A chain longer than this
// can only mean a corrupted parent link, not a real tree.
const maxFolderDepth = 256

// Resolver derives on-disk paths from the record graph. Paths are never
// stored; they are recomputed by walking the parent chain, re-checking
// ownership at every hop. All methods are read-only.
type Resolver struct {
	root    string
	folders models.FolderRepository
	files   models.FileRepository
}

func NewResolver(root string, folders models.FolderRepository, files models.FileRepository) *Resolver {
	return &Resolver{root: root, folders: folders, files: files}
}

// Root returns the storage root shared by all users.
func (r *Resolver) Root() string {
	return r.root
}

// UserRoot returns the root directory of a user's tree.
func (r *Resolver) UserRoot(userID int64) string {
	return filepath.Join(r.root, fmt.Sprintf("user_%d", userID))
}

// AvatarDir returns the reserved avatar directory inside a user's root.
func (r *Resolver) AvatarDir(userID int64) string {
	return filepath.Join(r.UserRoot(userID), ReservedFolderName)
}

// FolderPath resolves a folder id to its absolute directory path. A nil
// folder id resolves to the user's root. Every folder in the chain must
// belong to userID or the walk fails with ErrNotFound.
func (r *Resolver) FolderPath(ctx context.Context, userID int64, folderID *int64) (string, error) {
	if folderID == nil {
		return r.UserRoot(userID), nil
	}

	var parts []string
	id := *folderID
	for depth := 0; ; depth++ {
		if depth >= maxFolderDepth {
			return "", fmt.Errorf("folder %d: parent chain exceeds depth limit", *folderID)
		}
		folder, err := r.folders.FolderByID(ctx, userID, id)
		if err != nil {
			return "", fmt.Errorf("resolve folder %d: %w", id, err)
		}
		parts = append([]string{folder.Name}, parts...)
		if folder.ParentID == nil {
			break
		}
		id = *folder.ParentID
	}

	return filepath.Join(append([]string{r.UserRoot(userID)}, parts...)...), nil
}

// FilePath resolves a file id to its absolute on-disk path.
func (r *Resolver) FilePath(ctx context.Context, userID, fileID int64) (*models.File, string, error) {
	file, err := r.files.FileByID(ctx, userID, fileID)
	if err != nil {
		return nil, "", err
	}
	path, err := r.PathFor(ctx, file)
	if err != nil {
		return nil, "", err
	}
	return file, path, nil
}

// PathFor resolves the on-disk path of an already-loaded file record.
func (r *Resolver) PathFor(ctx context.Context, file *models.File) (string, error) {
	dir, err := r.FolderPath(ctx, file.OwnerID, file.FolderID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, file.StoredName), nil
}
