package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clouddisk-server/internal/disk"
	"github.com/clouddisk-server/internal/models"
)

const folderColumns = `id, name, created_at, owner_id, parent_id, share_token, share_expiry`

func (s *Store) CreateFolder(ctx context.Context, f *models.Folder) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	id, err := s.insertID(ctx,
		`INSERT INTO folders (name, created_at, owner_id, parent_id, share_token, share_expiry) VALUES (?, ?, ?, ?, ?, ?)`,
		f.Name, f.CreatedAt, f.OwnerID, nullInt(f.ParentID), nullStr(f.ShareToken), nullTime(f.ShareExpiry))
	if err != nil {
		return fmt.Errorf("create folder: %w", err)
	}
	f.ID = id
	return nil
}

func (s *Store) FolderByID(ctx context.Context, ownerID, id int64) (*models.Folder, error) {
	return s.scanFolder(s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+folderColumns+` FROM folders WHERE id = ? AND owner_id = ?`), id, ownerID))
}

func (s *Store) FolderByName(ctx context.Context, ownerID int64, parentID *int64, name string) (*models.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders WHERE owner_id = ? AND name = ? AND parent_id IS NULL`
	args := []any{ownerID, name}
	if parentID != nil {
		query = `SELECT ` + folderColumns + ` FROM folders WHERE owner_id = ? AND name = ? AND parent_id = ?`
		args = append(args, *parentID)
	}
	return s.scanFolder(s.db.QueryRowContext(ctx, s.rebind(query), args...))
}

func (s *Store) FoldersInParent(ctx context.Context, ownerID int64, parentID *int64) ([]*models.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders WHERE owner_id = ? AND parent_id IS NULL ORDER BY created_at DESC`
	args := []any{ownerID}
	if parentID != nil {
		query = `SELECT ` + folderColumns + ` FROM folders WHERE owner_id = ? AND parent_id = ? ORDER BY created_at DESC`
		args = append(args, *parentID)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query folders: %w", err)
	}
	defer rows.Close()

	var folders []*models.Folder
	for rows.Next() {
		var f models.Folder
		var parent sql.NullInt64
		var token sql.NullString
		var expiry sql.NullTime
		if err := rows.Scan(&f.ID, &f.Name, &f.CreatedAt, &f.OwnerID, &parent, &token, &expiry); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		f.ParentID = intPtr(parent)
		f.ShareToken = strPtr(token)
		f.ShareExpiry = timePtr(expiry)
		folders = append(folders, &f)
	}
	return folders, rows.Err()
}

func (s *Store) FolderByShareToken(ctx context.Context, token string) (*models.Folder, error) {
	return s.scanFolder(s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+folderColumns+` FROM folders WHERE share_token = ?`), token))
}

func (s *Store) UpdateFolder(ctx context.Context, f *models.Folder) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE folders SET name = ?, parent_id = ?, share_token = ?, share_expiry = ? WHERE id = ?`),
		f.Name, nullInt(f.ParentID), nullStr(f.ShareToken), nullTime(f.ShareExpiry), f.ID)
	if err != nil {
		return fmt.Errorf("update folder: %w", err)
	}
	return nil
}

func (s *Store) DeleteFolder(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM folders WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}
	return nil
}

func (s *Store) scanFolder(row *sql.Row) (*models.Folder, error) {
	var f models.Folder
	var parent sql.NullInt64
	var token sql.NullString
	var expiry sql.NullTime
	err := row.Scan(&f.ID, &f.Name, &f.CreatedAt, &f.OwnerID, &parent, &token, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, disk.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan folder: %w", err)
	}
	f.ParentID = intPtr(parent)
	f.ShareToken = strPtr(token)
	f.ShareExpiry = timePtr(expiry)
	return &f, nil
}
