package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clouddisk-server/internal/disk"
	"github.com/clouddisk-server/internal/models"
)

func handleUpload(diskService *disk.Service, maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		header, err := c.FormFile("file")
		if err != nil {
			respondError(c, http.StatusBadRequest, "file is required")
			return
		}
		if maxSize > 0 && header.Size > maxSize {
			respondError(c, http.StatusRequestEntityTooLarge, "file exceeds upload size limit")
			return
		}

		folderID, err := parseOptionalID(c.PostForm("folder_id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}

		src, err := header.Open()
		if err != nil {
			respondError(c, http.StatusBadRequest, "could not read uploaded file")
			return
		}
		defer src.Close()

		file, existed, err := diskService.Upload(c.Request.Context(), currentUserID(c), folderID, header.Filename, src)
		if err != nil {
			respondServiceError(c, err)
			return
		}

		if existed {
			respond(c, http.StatusOK, "file already exists", file)
			return
		}
		respond(c, http.StatusCreated, "file uploaded", file)
	}
}

func handleListFiles(files models.FileRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		folderID, err := parseOptionalID(c.Query("folder_id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}

		list, err := files.FilesInFolder(c.Request.Context(), currentUserID(c), folderID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respond(c, http.StatusOK, "", gin.H{"files": list})
	}
}

func handleDownload(diskService *disk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		file, path, err := diskService.FilePath(c.Request.Context(), currentUserID(c), id)
		if err != nil {
			respondServiceError(c, err)
			return
		}

		c.FileAttachment(path, file.DisplayName)
	}
}

func handleMoveFile(diskService *disk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		var req models.FileMoveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}

		file, physicalOK, err := diskService.Move(c.Request.Context(), currentUserID(c), id, req.FolderID)
		if err != nil {
			respondServiceError(c, err)
			return
		}

		message := "file moved"
		if !physicalOK {
			message = "file record moved, storage will be reconciled"
		}
		respond(c, http.StatusOK, message, file)
	}
}

func handleRenameFile(diskService *disk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		var req models.FileRenameRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}

		file, err := diskService.Rename(c.Request.Context(), currentUserID(c), id, req.Filename)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respond(c, http.StatusOK, "file renamed", file)
	}
}

func handleDeleteFile(diskService *disk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		if err := diskService.Delete(c.Request.Context(), currentUserID(c), id); err != nil {
			respondServiceError(c, err)
			return
		}
		respond(c, http.StatusOK, "file deleted", nil)
	}
}

func handleSync(diskService *disk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := diskService.Sync(c.Request.Context(), currentUserID(c))
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respond(c, http.StatusOK, "sync completed", result)
	}
}
