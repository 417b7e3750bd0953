package models

import "time"

// File is one stored content item. StoredName is the randomized on-disk
// name; DisplayName is what the owner sees. The two only agree on the
// extension.
type File struct {
	ID          int64      `json:"id"`
	StoredName  string     `json:"-"`
	DisplayName string     `json:"filename"`
	Size        int64      `json:"file_size"`
	Hash        string     `json:"-"`
	Type        string     `json:"file_type"`
	UploadedAt  time.Time  `json:"upload_date"`
	ShareToken  *string    `json:"share_token,omitempty"`
	ShareExpiry *time.Time `json:"share_expiry,omitempty"`
	OwnerID     int64      `json:"owner_id"`
	FolderID    *int64     `json:"folder_id"`
}

type FileMoveRequest struct {
	FolderID *int64 `json:"folder_id"`
}

type FileRenameRequest struct {
	Filename string `json:"filename" binding:"required"`
}
