// Package store is the relational record store for users, folders and
// files. It is the single source of truth for logical structure; the
// on-disk tree is a derived projection repaired by the reconciler.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/clouddisk-server/internal/config"
)

type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the configured database and applies pool settings.
func Open(cfg *config.Config) (*Store, error) {
	driver := "sqlite3"
	if cfg.Database.Type == "postgres" {
		driver = "postgres"
	}

	dsn := cfg.GetDSN()
	if dsn == "" {
		return nil, fmt.Errorf("unsupported database type %q", cfg.Database.Type)
	}

	if driver == "sqlite3" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema. Safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == "postgres" {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id ` + serial + `,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			avatar_url TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS folders (
			id ` + serial + `,
			name TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			owner_id BIGINT NOT NULL,
			parent_id BIGINT,
			share_token TEXT UNIQUE,
			share_expiry TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS files (
			id ` + serial + `,
			stored_name TEXT NOT NULL,
			display_name TEXT NOT NULL,
			size BIGINT NOT NULL,
			hash TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT '',
			uploaded_at TIMESTAMP NOT NULL,
			share_token TEXT UNIQUE,
			share_expiry TIMESTAMP,
			owner_id BIGINT NOT NULL,
			folder_id BIGINT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_files_owner_folder ON files(owner_id, folder_id)`,
		`CREATE INDEX IF NOT EXISTS idx_files_owner_hash ON files(owner_id, hash)`,
		`CREATE INDEX IF NOT EXISTS idx_files_owner_stored ON files(owner_id, stored_name)`,
		`CREATE INDEX IF NOT EXISTS idx_folders_owner_parent ON folders(owner_id, parent_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $N for the postgres driver.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// insertID runs an INSERT and returns the generated id. lib/pq has no
// LastInsertId, so the postgres path appends RETURNING id.
func (s *Store) insertID(ctx context.Context, query string, args ...any) (int64, error) {
	if s.driver == "postgres" {
		var id int64
		err := s.db.QueryRowContext(ctx, s.rebind(query)+" RETURNING id", args...).Scan(&id)
		return id, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullStr(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *p, Valid: true}
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func strPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	v := n.Time
	return &v
}
