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

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	id, err := s.insertID(ctx,
		`INSERT INTO users (username, email, password_hash, avatar_url, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.AvatarURL, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	u.ID = id
	return nil
}

func (s *Store) UserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, username, email, password_hash, avatar_url, created_at FROM users WHERE id = ?`), id))
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, username, email, password_hash, avatar_url, created_at FROM users WHERE username = ?`), username))
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, username, email, password_hash, avatar_url, created_at FROM users WHERE email = ?`), email))
}

func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE users SET username = ?, email = ?, password_hash = ?, avatar_url = ? WHERE id = ?`),
		u.Username, u.Email, u.PasswordHash, u.AvatarURL, u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *Store) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var avatar sql.NullString
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &avatar, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, disk.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.AvatarURL = avatar.String
	return &u, nil
}
