package models

import "time"

// Folder is a named node in a per-user tree. A nil ParentID means the
// folder sits in the user's root directory.
type Folder struct {
	ID          int64      `json:"id"`
	Name        string     `json:"folder_name"`
	CreatedAt   time.Time  `json:"created_date"`
	OwnerID     int64      `json:"owner_id"`
	ParentID    *int64     `json:"parent_folder_id"`
	ShareToken  *string    `json:"share_token,omitempty"`
	ShareExpiry *time.Time `json:"share_expiry,omitempty"`
}

type FolderCreateRequest struct {
	Name     string `json:"folder_name" binding:"required"`
	ParentID *int64 `json:"parent_folder_id"`
}

type FolderRenameRequest struct {
	Name string `json:"folder_name" binding:"required"`
}
