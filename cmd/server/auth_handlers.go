package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clouddisk-server/internal/auth"
	"github.com/clouddisk-server/internal/models"
)

func handleRegister(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UserCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}

		user, err := authService.Register(c.Request.Context(), &req)
		if err != nil {
			switch err {
			case auth.ErrUserExists, auth.ErrEmailExists:
				respondError(c, http.StatusConflict, err.Error())
			case auth.ErrInvalidRequest:
				respondError(c, http.StatusBadRequest, err.Error())
			default:
				respondError(c, http.StatusInternalServerError, "failed to register user")
			}
			return
		}

		respond(c, http.StatusCreated, "user registered", user)
	}
}

func handleLogin(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UserLoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}

		token, user, err := authService.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			if err == auth.ErrInvalidCredentials {
				respondError(c, http.StatusUnauthorized, err.Error())
				return
			}
			respondError(c, http.StatusInternalServerError, "failed to login")
			return
		}

		respond(c, http.StatusOK, "login successful", models.UserLoginResponse{
			Token: token,
			User:  user,
		})
	}
}

func handleLogout(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetString("token")
		if err := authService.Logout(c.Request.Context(), token); err != nil {
			respondError(c, http.StatusInternalServerError, "failed to logout")
			return
		}
		respond(c, http.StatusOK, "logged out", nil)
	}
}

func handleGetProfile(authService *auth.Service, files models.FileRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := currentUserID(c)
		user, err := authService.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			respondServiceError(c, err)
			return
		}

		owned, err := files.FilesByOwner(c.Request.Context(), userID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		var totalSize int64
		for _, f := range owned {
			totalSize += f.Size
		}

		respond(c, http.StatusOK, "", gin.H{
			"user": user,
			"stats": gin.H{
				"file_count": len(owned),
				"total_size": totalSize,
			},
		})
	}
}

func handleUpdateProfile(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UserUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}

		user, err := authService.UpdateProfile(c.Request.Context(), currentUserID(c), &req)
		if err != nil {
			switch err {
			case auth.ErrUserExists, auth.ErrEmailExists:
				respondError(c, http.StatusConflict, err.Error())
			default:
				respondServiceError(c, err)
			}
			return
		}

		respond(c, http.StatusOK, "profile updated", user)
	}
}

func handleUploadAvatar(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header, err := c.FormFile("avatar")
		if err != nil {
			respondError(c, http.StatusBadRequest, "avatar file required")
			return
		}

		src, err := header.Open()
		if err != nil {
			respondError(c, http.StatusBadRequest, "could not read avatar file")
			return
		}
		defer src.Close()

		user, err := authService.UploadAvatar(c.Request.Context(), currentUserID(c), header.Filename, src)
		if err != nil {
			respondServiceError(c, err)
			return
		}

		respond(c, http.StatusOK, "avatar updated", user)
	}
}

func handleGetAvatar(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		path, err := authService.AvatarPath(c.Param("path"))
		if err != nil {
			respondError(c, http.StatusNotFound, "avatar not found")
			return
		}
		c.File(path)
	}
}
