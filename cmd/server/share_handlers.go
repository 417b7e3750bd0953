package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clouddisk-server/internal/share"
)

type shareCreateRequest struct {
	Days int `json:"days"`
}

type shareSaveRequest struct {
	TargetFolderID *int64  `json:"target_folder_id"`
	FileIDs        []int64 `json:"file_ids"`
	FolderIDs      []int64 `json:"folder_ids"`
}

func handleShareFile(shareService *share.Service) gin.HandlerFunc {
	return shareTarget(shareService, "file")
}

func handleShareFolder(shareService *share.Service) gin.HandlerFunc {
	return shareTarget(shareService, "folder")
}

func shareTarget(shareService *share.Service, kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		// Body is optional; an empty one means the default expiry.
		var req shareCreateRequest
		_ = c.ShouldBindJSON(&req)

		token, expiry, err := shareService.Create(c.Request.Context(), currentUserID(c), id, kind, req.Days)
		if err != nil {
			respondServiceError(c, err)
			return
		}

		respond(c, http.StatusOK, "share link created", gin.H{
			"share_token":  token,
			"share_expiry": expiry,
		})
	}
}

func handleGetShare(shareService *share.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		content, err := shareService.Resolve(c.Request.Context(), c.Param("token"))
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respond(c, http.StatusOK, "", content)
	}
}

func handleDownloadShared(shareService *share.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileID, ok := parseIDParam(c, "file_id")
		if !ok {
			return
		}

		file, path, err := shareService.SharedFilePath(c.Request.Context(), c.Param("token"), fileID)
		if err != nil {
			respondServiceError(c, err)
			return
		}

		c.FileAttachment(path, file.DisplayName)
	}
}

func handleSaveShared(shareService *share.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req shareSaveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}

		result, err := shareService.Save(c.Request.Context(), c.Param("token"), currentUserID(c), req.TargetFolderID, req.FileIDs, req.FolderIDs)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respond(c, http.StatusOK, "shared content saved", result)
	}
}
