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

const fileColumns = `id, stored_name, display_name, size, hash, type, uploaded_at, share_token, share_expiry, owner_id, folder_id`

func (s *Store) CreateFile(ctx context.Context, f *models.File) error {
	if f.UploadedAt.IsZero() {
		f.UploadedAt = time.Now().UTC()
	}
	id, err := s.insertID(ctx,
		`INSERT INTO files (stored_name, display_name, size, hash, type, uploaded_at, share_token, share_expiry, owner_id, folder_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.StoredName, f.DisplayName, f.Size, f.Hash, f.Type, f.UploadedAt,
		nullStr(f.ShareToken), nullTime(f.ShareExpiry), f.OwnerID, nullInt(f.FolderID))
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	f.ID = id
	return nil
}

func (s *Store) FileByID(ctx context.Context, ownerID, id int64) (*models.File, error) {
	return s.scanFile(s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+fileColumns+` FROM files WHERE id = ? AND owner_id = ?`), id, ownerID))
}

func (s *Store) FileByStoredName(ctx context.Context, ownerID int64, storedName string) (*models.File, error) {
	return s.scanFile(s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+fileColumns+` FROM files WHERE owner_id = ? AND stored_name = ?`), ownerID, storedName))
}

func (s *Store) FileByHash(ctx context.Context, ownerID int64, folderID *int64, hash string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE owner_id = ? AND hash = ? AND folder_id IS NULL`
	args := []any{ownerID, hash}
	if folderID != nil {
		query = `SELECT ` + fileColumns + ` FROM files WHERE owner_id = ? AND hash = ? AND folder_id = ?`
		args = append(args, *folderID)
	}
	return s.scanFile(s.db.QueryRowContext(ctx, s.rebind(query), args...))
}

func (s *Store) FileByHashAnyFolder(ctx context.Context, ownerID int64, hash string) (*models.File, error) {
	return s.scanFile(s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+fileColumns+` FROM files WHERE owner_id = ? AND hash = ?`), ownerID, hash))
}

func (s *Store) FileByDisplayName(ctx context.Context, ownerID int64, folderID *int64, name string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE owner_id = ? AND display_name = ? AND folder_id IS NULL`
	args := []any{ownerID, name}
	if folderID != nil {
		query = `SELECT ` + fileColumns + ` FROM files WHERE owner_id = ? AND display_name = ? AND folder_id = ?`
		args = append(args, *folderID)
	}
	return s.scanFile(s.db.QueryRowContext(ctx, s.rebind(query), args...))
}

func (s *Store) FilesInFolder(ctx context.Context, ownerID int64, folderID *int64) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE owner_id = ? AND folder_id IS NULL ORDER BY uploaded_at DESC`
	args := []any{ownerID}
	if folderID != nil {
		query = `SELECT ` + fileColumns + ` FROM files WHERE owner_id = ? AND folder_id = ? ORDER BY uploaded_at DESC`
		args = append(args, *folderID)
	}
	return s.scanFiles(ctx, query, args...)
}

func (s *Store) FilesByOwner(ctx context.Context, ownerID int64) ([]*models.File, error) {
	return s.scanFiles(ctx, `SELECT `+fileColumns+` FROM files WHERE owner_id = ?`, ownerID)
}

func (s *Store) FileByShareToken(ctx context.Context, token string) (*models.File, error) {
	return s.scanFile(s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+fileColumns+` FROM files WHERE share_token = ?`), token))
}

func (s *Store) UpdateFile(ctx context.Context, f *models.File) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE files SET stored_name = ?, display_name = ?, size = ?, hash = ?, type = ?, share_token = ?, share_expiry = ?, folder_id = ? WHERE id = ?`),
		f.StoredName, f.DisplayName, f.Size, f.Hash, f.Type,
		nullStr(f.ShareToken), nullTime(f.ShareExpiry), nullInt(f.FolderID), f.ID)
	if err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	return nil
}

func (s *Store) DeleteFile(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM files WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func (s *Store) scanFile(row *sql.Row) (*models.File, error) {
	var f models.File
	var token sql.NullString
	var expiry sql.NullTime
	var folder sql.NullInt64
	err := row.Scan(&f.ID, &f.StoredName, &f.DisplayName, &f.Size, &f.Hash, &f.Type,
		&f.UploadedAt, &token, &expiry, &f.OwnerID, &folder)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, disk.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	f.ShareToken = strPtr(token)
	f.ShareExpiry = timePtr(expiry)
	f.FolderID = intPtr(folder)
	return &f, nil
}

func (s *Store) scanFiles(ctx context.Context, query string, args ...any) ([]*models.File, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var files []*models.File
	for rows.Next() {
		var f models.File
		var token sql.NullString
		var expiry sql.NullTime
		var folder sql.NullInt64
		if err := rows.Scan(&f.ID, &f.StoredName, &f.DisplayName, &f.Size, &f.Hash, &f.Type,
			&f.UploadedAt, &token, &expiry, &f.OwnerID, &folder); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		f.ShareToken = strPtr(token)
		f.ShareExpiry = timePtr(expiry)
		f.FolderID = intPtr(folder)
		files = append(files, &f)
	}
	return files, rows.Err()
}
