package models

import "context"

// Repositories are the record-store contracts. Lookups are scoped by
// owner id except the share-token lookups, which are global: a share
// token is a capability resolvable without ownership context.

type UserRepository interface {
	CreateUser(ctx context.Context, u *User) error
	UserByID(ctx context.Context, id int64) (*User, error)
	UserByUsername(ctx context.Context, username string) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error
}

type FileRepository interface {
	CreateFile(ctx context.Context, f *File) error
	FileByID(ctx context.Context, ownerID, id int64) (*File, error)
	FileByStoredName(ctx context.Context, ownerID int64, storedName string) (*File, error)
	FileByHash(ctx context.Context, ownerID int64, folderID *int64, hash string) (*File, error)
	FileByHashAnyFolder(ctx context.Context, ownerID int64, hash string) (*File, error)
	FileByDisplayName(ctx context.Context, ownerID int64, folderID *int64, name string) (*File, error)
	FilesInFolder(ctx context.Context, ownerID int64, folderID *int64) ([]*File, error)
	FilesByOwner(ctx context.Context, ownerID int64) ([]*File, error)
	FileByShareToken(ctx context.Context, token string) (*File, error)
	UpdateFile(ctx context.Context, f *File) error
	DeleteFile(ctx context.Context, id int64) error
}

type FolderRepository interface {
	CreateFolder(ctx context.Context, f *Folder) error
	FolderByID(ctx context.Context, ownerID, id int64) (*Folder, error)
	FolderByName(ctx context.Context, ownerID int64, parentID *int64, name string) (*Folder, error)
	FoldersInParent(ctx context.Context, ownerID int64, parentID *int64) ([]*Folder, error)
	FolderByShareToken(ctx context.Context, token string) (*Folder, error)
	UpdateFolder(ctx context.Context, f *Folder) error
	DeleteFolder(ctx context.Context, id int64) error
}
