package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/clouddisk-server/internal/disk"
)

// All endpoints answer with the same envelope. Data is omitted on
// failures, Error on successes.
func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   message,
	})
}

// respondServiceError maps the engine's error taxonomy onto HTTP status
// codes. Anything outside the taxonomy is an internal error.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, disk.ErrValidation):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, disk.ErrNotFound):
		respondError(c, http.StatusNotFound, "not found")
	case errors.Is(err, disk.ErrConflict):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, disk.ErrExpired):
		respondError(c, http.StatusGone, "share link has expired")
	default:
		respondError(c, http.StatusInternalServerError, "internal server error")
	}
}

func currentUserID(c *gin.Context) int64 {
	return c.GetInt64("userID")
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// parseOptionalID reads an optional folder reference from a query or
// form value. Empty, "null" and "root" all mean the user's root.
func parseOptionalID(raw string) (*int64, error) {
	switch raw {
	case "", "null", "root":
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.New("invalid folder id")
	}
	return &id, nil
}
