package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clouddisk-server/internal/disk"
	"github.com/clouddisk-server/internal/models"
)

func handleListFolders(folders models.FolderRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		parentID, err := parseOptionalID(c.Query("parent_id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}

		list, err := folders.FoldersInParent(c.Request.Context(), currentUserID(c), parentID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respond(c, http.StatusOK, "", gin.H{"folders": list})
	}
}

func handleCreateFolder(diskService *disk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.FolderCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}

		folder, err := diskService.CreateFolder(c.Request.Context(), currentUserID(c), req.ParentID, req.Name)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respond(c, http.StatusCreated, "folder created", folder)
	}
}

func handleRenameFolder(diskService *disk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		var req models.FolderRenameRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}

		folder, err := diskService.RenameFolder(c.Request.Context(), currentUserID(c), id, req.Name)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respond(c, http.StatusOK, "folder renamed", folder)
	}
}

func handleDeleteFolder(diskService *disk.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		filesDeleted, foldersDeleted, err := diskService.DeleteFolder(c.Request.Context(), currentUserID(c), id)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		respond(c, http.StatusOK, "folder deleted", gin.H{
			"files_deleted":   filesDeleted,
			"folders_deleted": foldersDeleted,
		})
	}
}
